package blade

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"path"
)

// Render executes the template identified by entry (e.g. "pages/home")
// into w with data. Data is a map of bindings; any other value is bound
// under the "data" key.
func (e *Engine) Render(w io.Writer, entry string, data any) error {
	return e.RenderWithContext(context.Background(), w, entry, data)
}

// RenderWithContext is Render with a context governing async data
// resolution.
func (e *Engine) RenderWithContext(ctx context.Context, w io.Writer, entry string, data any) error {
	prog, err := e.program(entry)
	if err != nil {
		return e.fail(entry, err)
	}
	rs := newRenderState(e, prog)
	scope := e.buildScope(data, rs)
	if err := e.resolveAsync(ctx, scope); err != nil {
		return e.fail(entry, err)
	}

	var buf bytes.Buffer
	if err := prog.tmpl.Execute(&buf, scope); err != nil {
		return e.fail(entry, err)
	}
	return e.writeOut(w, &buf)
}

// RenderString renders to a string.
func (e *Engine) RenderString(entry string, data any) (string, error) {
	var buf bytes.Buffer
	if err := e.Render(&buf, entry, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderFragment renders only the named fragment of a template,
// byte-identical to that region's output within a full render.
func (e *Engine) RenderFragment(w io.Writer, entry, fragment string, data any) error {
	return e.RenderFragmentWithContext(context.Background(), w, entry, fragment, data)
}

func (e *Engine) RenderFragmentWithContext(ctx context.Context, w io.Writer, entry, fragment string, data any) error {
	prog, err := e.program(entry)
	if err != nil {
		return e.fail(entry, err)
	}
	defName, ok := prog.fragments[fragment]
	if !ok {
		return e.fail(entry, &Error{Template: prog.Entry, Kind: KindNotFound,
			Detail: fmt.Sprintf("fragment %q", fragment)})
	}
	rs := newRenderState(e, prog)
	rs.fragment = fragment
	scope := e.buildScope(data, rs)
	if err := e.resolveAsync(ctx, scope); err != nil {
		return e.fail(entry, err)
	}

	var buf bytes.Buffer
	if err := prog.tmpl.ExecuteTemplate(&buf, defName, scope); err != nil {
		return e.fail(entry, err)
	}
	return e.writeOut(w, &buf)
}

func (e *Engine) writeOut(w io.Writer, buf *bytes.Buffer) error {
	if e.minifier != nil {
		return e.minifier.Minify("text/html", w, buf)
	}
	_, err := io.Copy(w, buf)
	return err
}

// program returns the compiled program for an entry, recompiling when
// any source it was built from changed. Fast-paths mode trusts cache
// hits blindly; concurrent compiles of one entry are deduplicated and
// last-writer-wins.
func (e *Engine) program(entry string) (*CompiledProgram, error) {
	name := normalizeName(entry)
	if p, ok := e.programs.Get(name); ok {
		if e.fastPaths || !p.stale(e.resolver) {
			return p, nil
		}
	}
	v, err, _ := e.sf.Do(name, func() (any, error) {
		p, err := e.compile(name)
		if err != nil {
			return nil, err
		}
		e.programs.Set(name, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CompiledProgram), nil
}

// fail maps an error for the caller: full diagnostics in debug mode, a
// generic failure with the detail logged in release mode.
func (e *Engine) fail(entry string, err error) error {
	var te *Error
	if !errors.As(err, &te) {
		te = &Error{Template: normalizeName(entry), Kind: KindExec, Err: err}
	}
	if e.mode == ReleaseMode {
		e.log.Error("template render failed",
			"template", te.Template, "kind", te.Kind.String(), "err", err)
		return ErrRenderFailed
	}
	return te
}

// Warm compiles every template matching the given path patterns (all
// templates when none are given) and reports how many were compiled.
// The resolver must support listing.
func (e *Engine) Warm(patterns ...string) (int, error) {
	lister, ok := e.resolver.(Lister)
	if !ok {
		return 0, errors.New("blade: resolver does not support listing")
	}
	names, err := lister.List()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, name := range names {
		if len(patterns) > 0 && !matchAny(patterns, name) {
			continue
		}
		if _, err := e.program(name); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(normalizeName(p), name); ok {
			return true
		}
	}
	return false
}

// Load precompiles every known template. Kept as the bulk-compile
// entry point for engines that want eager startup errors.
func (e *Engine) Load() error {
	_, err := e.Warm()
	return err
}

// Invalidate drops the compiled program for one logical path.
func (e *Engine) Invalidate(logicalPath string) {
	e.programs.Del(normalizeName(logicalPath))
}

// InvalidateAll drops every compiled program.
func (e *Engine) InvalidateAll() {
	e.programs.ForEach(func(k string, _ *CompiledProgram) bool {
		e.programs.Del(k)
		return true
	})
}

// Cache exposes the rendered-content cache for forget/flush control.
func (e *Engine) Cache() *ContentCache { return e.cache }

// Global registers a process-wide binding visible to every render.
func (e *Engine) Global(name string, value any) {
	e.mu.Lock()
	e.globals[name] = value
	e.mu.Unlock()
}

// Funcs registers template functions, extending the builtin set.
func (e *Engine) Funcs(funcs template.FuncMap) {
	e.mu.Lock()
	for k, v := range funcs {
		e.funcs[k] = v
	}
	e.mu.Unlock()
}

// RegisterDirective adds a custom directive resolved by exact name
// through the same registry lookup as the builtin set.
func (e *Engine) RegisterDirective(name string, fn DirectiveFunc) error {
	if identLen(name) != len(name) || name == "" {
		return fmt.Errorf("blade: invalid directive name %q", name)
	}
	if directiveNames[name] {
		return fmt.Errorf("blade: cannot override builtin directive @%s", name)
	}
	e.mu.Lock()
	e.directives[name] = fn
	e.mu.Unlock()
	return nil
}

// RegisterComponent maps a short component alias to a template path.
func (e *Engine) RegisterComponent(alias, logicalPath string) {
	e.mu.Lock()
	e.components[alias] = normalizeName(logicalPath)
	e.mu.Unlock()
}

// GetDebugTemplates returns the generated template text per compiled
// entry, for inspection.
func (e *Engine) GetDebugTemplates() map[string]string {
	out := map[string]string{}
	e.programs.ForEach(func(k string, p *CompiledProgram) bool {
		out[k] = p.Text
		return true
	})
	return out
}

func (e *Engine) directive(name string) (DirectiveFunc, bool) {
	e.mu.RLock()
	fn, ok := e.directives[name]
	e.mu.RUnlock()
	return fn, ok
}

// isDirective reports whether a name is lexed as a directive; anything
// else stays literal text.
func (e *Engine) isDirective(name string) bool {
	if directiveNames[name] {
		return true
	}
	_, ok := e.directive(name)
	return ok
}

func (e *Engine) funcMap() template.FuncMap {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(template.FuncMap, len(e.funcs))
	for k, v := range e.funcs {
		out[k] = v
	}
	return out
}
