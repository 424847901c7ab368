package blade

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// CompiledProgram is the fully expanded, executable form of one entry
// template after inheritance and component resolution. It is stored in
// the artifact cache and shared read-only by concurrent renders.
type CompiledProgram struct {
	Entry      string
	Text       string // generated template source, kept for debugging
	CompiledAt time.Time

	tmpl      *template.Template
	deps      map[string]string // logical path -> source fingerprint
	fragments map[string]string // fragment name -> defined template name
}

// Fragments lists the fragment names the program exposes.
func (p *CompiledProgram) Fragments() []string {
	out := make([]string, 0, len(p.fragments))
	for name := range p.fragments {
		out = append(out, name)
	}
	return out
}

// stale reports whether any source the program was compiled from no
// longer matches its recorded fingerprint.
func (p *CompiledProgram) stale(r Resolver) bool {
	for path, fp := range p.deps {
		src, err := r.Resolve(path)
		if err != nil || src.Fingerprint != fp {
			return true
		}
	}
	return false
}

// scopeVar is the generated-code binding for the render scope. Context
// lookups and helper calls go through it instead of dot because range
// actions rebind dot to the loop cursor; component bodies shadow it
// with their own scope.
const scopeVar = `$__scope`

const tmplPrologue = `{{ $loop := rootLoop }}{{ ` + scopeVar + ` := . }}`

// stack render sites are emitted as placeholders and substituted once
// every contribution (chain, partials, components) has been collected.
const stackMarker = "\x00blade:stack:"

// compiler holds the state of one entry-template compilation: the
// define table, hoisted stack contributions, fragment and teleport
// registrations, and the component inline chain.
type compiler struct {
	eng       *Engine
	deps      map[string]string
	defines   []define
	partials  map[string]string   // logical path -> define name
	stacks    map[string][]string // name -> ordered compiled contributions
	fragments map[string]string
	teleports []teleportDef
	inlining  []string // component paths currently being inlined
	counter   int
}

type define struct {
	name string
	body string
}

type teleportDef struct {
	target string
	define string
}

// unit is the per-template compilation context: the section table for
// one inheritance chain, local variable bindings and the current output
// buffer. Components and partials compile in their own units while
// sharing the enclosing compiler.
type unit struct {
	c        *compiler
	tpl      string // template path for diagnostics
	sections map[string][]sectionEntry
	vars     []string // template-local variables ($item and friends)
	errField []string
	secStack []secRef // yield emission state, drives @parent
	hoisted  bool     // stack contributions already collected
	wraps    []wrap   // enclosing control structure, guards hoisted content
	buf      *strings.Builder
}

// wrap is the template text of one enclosing control structure. Stack
// and section content hoisted out of a conditional or loop keeps its
// guard by re-emitting the structure around the contribution.
type wrap struct {
	pre, post string
}

type sectionEntry struct {
	tpl   string
	nodes []Node
	wraps []wrap
}

type secRef struct {
	name string
	idx  int
}

type parsedTemplate struct {
	path  string
	nodes []Node
}

func newCompiler(e *Engine) *compiler {
	return &compiler{
		eng:       e,
		deps:      map[string]string{},
		partials:  map[string]string{},
		stacks:    map[string][]string{},
		fragments: map[string]string{},
	}
}

// compile builds the executable program for one entry template.
func (e *Engine) compile(entry string) (*CompiledProgram, error) {
	entry = normalizeName(entry)
	c := newCompiler(e)

	body, err := c.compileTemplate(entry)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	text.WriteString(tmplPrologue)
	text.WriteString(body)
	c.writeTeleportTail(&text)
	for _, d := range c.defines {
		text.WriteString(`{{ define ` + quoteGo(d.name) + ` }}`)
		text.WriteString(tmplPrologue)
		text.WriteString(d.body)
		text.WriteString(`{{ end }}`)
	}

	final := c.substituteStacks(text.String())

	tmpl, err := template.New(entry).
		Funcs(builtinFuncs()).
		Funcs(e.funcMap()).
		Option("missingkey=zero").
		Parse(final)
	if err != nil {
		return nil, &Error{Template: entry, Kind: KindSyntax, Detail: "generated template", Err: err}
	}

	return &CompiledProgram{
		Entry:      entry,
		Text:       final,
		CompiledAt: time.Now(),
		tmpl:       tmpl,
		deps:       c.deps,
		fragments:  c.fragments,
	}, nil
}

// parseTemplate resolves and parses one template, recording its
// fingerprint as a dependency of the program being built.
func (c *compiler) parseTemplate(path string) (*parsedTemplate, error) {
	path = normalizeName(path)
	src, err := c.eng.resolver.Resolve(path)
	if err != nil {
		return nil, &Error{Template: path, Kind: KindNotFound, Err: err}
	}
	c.deps[src.Path] = src.Fingerprint
	nodes, err := parseSource(src.Path, string(src.Bytes), c.eng.isDirective)
	if err != nil {
		return nil, err
	}
	return &parsedTemplate{path: src.Path, nodes: nodes}, nil
}

// compileTemplate flattens a template's inheritance chain and emits its
// effective body. Sections and stacks accumulate child-first so the
// closest definition wins; an extending template's own body contributes
// nothing but its captures.
func (c *compiler) compileTemplate(path string) (string, error) {
	cur, err := c.parseTemplate(path)
	if err != nil {
		return "", err
	}

	u := &unit{c: c, tpl: cur.path, sections: map[string][]sectionEntry{}, hoisted: true}
	chain := []string{cur.path}

	for {
		ext := findExtends(cur.nodes)
		if ext == nil {
			break
		}
		parentName, ok := stringArg(ext.Arg)
		if !ok {
			return "", syntaxErr(cur.path, ext.Line, "@extends requires a literal template name")
		}
		parentName = normalizeName(parentName)
		for _, seen := range chain {
			if seen == parentName {
				return "", &Error{
					Template: cur.path, Line: ext.Line, Kind: KindCycle,
					Detail: fmt.Sprintf("extends chain %s -> %s", strings.Join(chain, " -> "), parentName),
				}
			}
		}

		if err := u.collect(cur.path, cur.nodes); err != nil {
			return "", err
		}
		cur, err = c.parseTemplate(parentName)
		if err != nil {
			return "", err
		}
		chain = append(chain, cur.path)
	}

	// The root layout may itself define sections (@section ... @show)
	// and push to stacks; collect those too before emission.
	if err := u.collect(cur.path, cur.nodes); err != nil {
		return "", err
	}

	u.tpl = cur.path
	u.buf = &strings.Builder{}
	if err := u.emit(cur.nodes); err != nil {
		return "", err
	}
	return u.buf.String(), nil
}

// collect walks a template tree gathering section definitions and stack
// contributions. Push bodies are compiled immediately, in place, so the
// final @stack output preserves document order across the whole chain.
// Content nested inside a conditional or loop keeps its guard: the
// enclosing structure is recorded and re-emitted around the hoisted
// contribution.
func (u *unit) collect(tpl string, nodes []Node) error {
	for _, n := range nodes {
		switch node := n.(type) {
		case *BlockNode:
			switch node.Name {
			case "section":
				name, ok := stringArg(node.Arg)
				if !ok {
					return syntaxErr(tpl, node.Line, "@section requires a literal name")
				}
				u.sections[name] = append(u.sections[name], sectionEntry{
					tpl: tpl, nodes: node.Children, wraps: u.currentWraps(),
				})
			case "push", "prepend":
				if err := u.collectStack(tpl, node); err != nil {
					return err
				}
			case "if", "unless", "isset", "empty":
				if err := u.collectConditional(tpl, node); err != nil {
					return err
				}
			case "foreach", "forelse", "for":
				if err := u.collectLoop(tpl, node); err != nil {
					return err
				}
			default:
				if err := u.collect(tpl, node.Children); err != nil {
					return err
				}
				for _, br := range node.Branches {
					if err := u.collect(tpl, br.Children); err != nil {
						return err
					}
				}
				if err := u.collect(tpl, node.Else); err != nil {
					return err
				}
			}
		case *DirectiveNode:
			if node.Name == "section" {
				args := splitArgs(node.Arg)
				if len(args) != 2 {
					return syntaxErr(tpl, node.Line, "inline @section requires a name and a value")
				}
				name, ok := stringArg(args[0])
				if !ok {
					return syntaxErr(tpl, node.Line, "@section requires a literal name")
				}
				u.sections[name] = append(u.sections[name], sectionEntry{
					tpl:   tpl,
					nodes: []Node{&EchoNode{Expr: args[1], Line: node.Line}},
					wraps: u.currentWraps(),
				})
			}
		case *ComponentNode:
			for _, slot := range node.Slots {
				if err := u.collect(tpl, slot); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (u *unit) currentWraps() []wrap {
	if len(u.wraps) == 0 {
		return nil
	}
	return append([]wrap(nil), u.wraps...)
}

func (u *unit) collectWrapped(tpl string, nodes []Node, w wrap) error {
	u.wraps = append(u.wraps, w)
	err := u.collect(tpl, nodes)
	u.wraps = u.wraps[:len(u.wraps)-1]
	return err
}

// collectConditional descends a conditional's arms, guarding anything
// hoisted out of them. A branch guard replays the whole chain with the
// earlier arms left empty, so only the matching arm contributes.
func (u *unit) collectConditional(tpl string, node *BlockNode) error {
	open := u.conditionalOpen(node)
	if err := u.collectWrapped(tpl, node.Children, wrap{open, `{{ end }}`}); err != nil {
		return err
	}
	prefix := open
	for _, br := range node.Branches {
		prefix += `{{ else if ` + u.translateExpr(br.Arg) + ` }}`
		if err := u.collectWrapped(tpl, br.Children, wrap{prefix, `{{ end }}`}); err != nil {
			return err
		}
	}
	if node.Else != nil {
		return u.collectWrapped(tpl, node.Else, wrap{prefix + `{{ else }}`, `{{ end }}`})
	}
	return nil
}

// collectLoop descends a loop body with its range as the guard, so a
// push inside @foreach contributes once per iteration with the loop
// variables bound.
func (u *unit) collectLoop(tpl string, node *BlockNode) error {
	open, binds, vars, err := u.loopHeader(node)
	if err != nil {
		return err
	}
	u.vars = append(u.vars, vars...)
	err = u.collectWrapped(tpl, node.Children, wrap{open + binds, `{{ end }}`})
	u.vars = u.vars[:len(u.vars)-len(vars)]
	if err != nil {
		return err
	}
	if node.Name == "forelse" && node.Else != nil {
		return u.collectWrapped(tpl, node.Else, wrap{open + `{{ else }}`, `{{ end }}`})
	}
	return nil
}

// collectStack compiles a @push/@prepend body and appends (or fronts)
// it onto the named stack.
func (u *unit) collectStack(tpl string, node *BlockNode) error {
	name, ok := stringArg(node.Arg)
	if !ok {
		return syntaxErr(tpl, node.Line, "@%s requires a literal stack name", node.Name)
	}
	body, err := u.emitSub(node.Children)
	if err != nil {
		return err
	}
	for i := len(u.wraps) - 1; i >= 0; i-- {
		body = u.wraps[i].pre + body + u.wraps[i].post
	}
	if node.Name == "prepend" {
		u.c.stacks[name] = append([]string{body}, u.c.stacks[name]...)
	} else {
		u.c.stacks[name] = append(u.c.stacks[name], body)
	}
	return nil
}

// emitSub renders nodes into a fresh buffer, preserving the unit's
// variable and section state.
func (u *unit) emitSub(nodes []Node) (string, error) {
	prev := u.buf
	u.buf = &strings.Builder{}
	err := u.emit(nodes)
	out := u.buf.String()
	u.buf = prev
	return out, err
}

// addDefine registers a named sub-template and returns its name.
func (c *compiler) addDefine(name, body string) string {
	c.defines = append(c.defines, define{name: name, body: body})
	return name
}

func (c *compiler) nextID() int {
	c.counter++
	return c.counter
}

// partialDefine compiles an included template (flattening its own
// inheritance chain) into a named sub-template, once per program.
func (c *compiler) partialDefine(path string) (string, error) {
	path = normalizeName(path)
	if name, ok := c.partials[path]; ok {
		return name, nil
	}
	name := "__p_" + sanitizeName(path)
	// Register before compiling so recursive partials terminate.
	c.partials[path] = name
	body, err := c.compileTemplate(path)
	if err != nil {
		delete(c.partials, path)
		return "", err
	}
	c.addDefine(name, body)
	return name, nil
}

// substituteStacks replaces stack markers with the accumulated
// contributions. Unknown stacks render empty rather than failing.
func (c *compiler) substituteStacks(text string) string {
	if !strings.Contains(text, stackMarker) {
		return text
	}
	var out strings.Builder
	out.Grow(len(text))
	for {
		i := strings.Index(text, stackMarker)
		if i < 0 {
			out.WriteString(text)
			return out.String()
		}
		out.WriteString(text[:i])
		rest := text[i+len(stackMarker):]
		j := strings.IndexByte(rest, '\x00')
		if j < 0 {
			return out.String() + rest
		}
		name := rest[:j]
		out.WriteString(strings.Join(c.stacks[name], ""))
		text = rest[j+1:]
	}
}

func (c *compiler) writeTeleportTail(text *strings.Builder) {
	if len(c.teleports) == 0 {
		return
	}
	for _, tp := range c.teleports {
		text.WriteString(`<template data-blade-teleport="` + EncodeAttr(tp.target) + `">`)
		text.WriteString(`{{ template ` + quoteGo(tp.define) + ` ` + scopeVar + ` }}`)
		text.WriteString(`</template>`)
	}
	text.WriteString(`<script{{ nonceAttr ` + scopeVar + ` }}>(function(){` +
		`document.querySelectorAll("template[data-blade-teleport]").forEach(function(t){` +
		`var d=document.querySelector(t.getAttribute("data-blade-teleport"));` +
		`if(d){d.appendChild(t.content.cloneNode(true));}t.remove();});})();</script>`)
}

func findExtends(nodes []Node) *DirectiveNode {
	for _, n := range nodes {
		if d, ok := n.(*DirectiveNode); ok && d.Name == "extends" {
			return d
		}
	}
	return nil
}

func sanitizeName(s string) string {
	var out strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_':
			out.WriteRune(r)
		default:
			out.WriteByte('_')
		}
	}
	return out.String()
}

// isVar reports whether name is a template-local variable in scope.
func (u *unit) isVar(name string) bool {
	for _, v := range u.vars {
		if v == name {
			return true
		}
	}
	return false
}

func (u *unit) currentErrorField() string {
	if len(u.errField) == 0 {
		return ""
	}
	return u.errField[len(u.errField)-1]
}
