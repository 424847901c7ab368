package blade

import (
	"errors"
	"fmt"
	"strings"
)

// DirectiveFunc is a user-registered directive handler. It receives the
// raw argument span (already balanced) and returns template text to
// emit in place of the directive.
type DirectiveFunc func(arg string) (string, error)

// emit generates template text for a node list into the current buffer.
func (u *unit) emit(nodes []Node) error {
	for _, n := range nodes {
		if err := u.emitNode(n); err != nil {
			return err
		}
	}
	return nil
}

func (u *unit) emitNode(n Node) error {
	switch node := n.(type) {
	case *TextNode:
		u.emitText(node.Text)
		return nil
	case *EchoNode:
		return u.emitEcho(node)
	case *DirectiveNode:
		return u.emitDirective(node)
	case *BlockNode:
		return u.emitBlock(node)
	case *ComponentNode:
		return u.emitComponent(node)
	}
	return nil
}

// emitText writes literal output, escaping template braces so source
// text is never reinterpreted by the downstream engine.
func (u *unit) emitText(text string) {
	text = strings.ReplaceAll(text, `{{`, `{{"{{"}}`)
	u.buf.WriteString(text)
}

func (u *unit) emitEcho(node *EchoNode) error {
	expr := strings.TrimSpace(node.Expr)
	switch {
	case expr == "$slot":
		u.buf.WriteString(`{{ slot ` + scopeVar + ` }}`)
	case expr == "$attributes":
		u.buf.WriteString(`{{ attrs ` + scopeVar + ` }}`)
	case strings.HasPrefix(expr, "$attributes.merge"):
		u.buf.WriteString(`{{ mergeAttrs ` + scopeVar + u.translateArgs(strings.TrimPrefix(expr, "$attributes.merge")) + ` }}`)
	case strings.HasPrefix(expr, "$attributes.get"):
		u.buf.WriteString(`{{ echo (attrGet ` + scopeVar + u.translateArgs(strings.TrimPrefix(expr, "$attributes.get")) + `) }}`)
	case node.Raw:
		u.buf.WriteString(`{{ raw (` + u.translateExpr(expr) + `) }}`)
	default:
		u.buf.WriteString(`{{ echo (` + u.translateExpr(expr) + `) }}`)
	}
	return nil
}

func (u *unit) emitDirective(node *DirectiveNode) error {
	c := u.c
	switch node.Name {
	case "extends", "props", "aware", "section":
		// Consumed during collection; nothing to emit in place.
		return nil

	case "yield":
		return u.emitYield(node)

	case "parent":
		return u.emitParent(node)

	case "stack":
		name, ok := stringArg(node.Arg)
		if !ok {
			return syntaxErr(u.tpl, node.Line, "@stack requires a literal name")
		}
		u.buf.WriteString(stackMarker + name + "\x00")
		return nil

	case "include", "includeIf":
		return u.emitInclude(node)

	case "includeWhen":
		args := splitArgs(node.Arg)
		if len(args) < 2 {
			return syntaxErr(u.tpl, node.Line, "@includeWhen requires a condition and a template name")
		}
		u.buf.WriteString(`{{ if ` + u.translateExpr(args[0]) + ` }}`)
		inc := &DirectiveNode{Name: "include", Arg: strings.Join(args[1:], ", "), Line: node.Line}
		if err := u.emitInclude(inc); err != nil {
			return err
		}
		u.buf.WriteString(`{{ end }}`)
		return nil

	case "break", "continue":
		if strings.TrimSpace(node.Arg) == "" {
			u.buf.WriteString(`{{ ` + node.Name + ` }}`)
		} else {
			u.buf.WriteString(`{{ if ` + u.translateExpr(node.Arg) + ` }}{{ ` + node.Name + ` }}{{ end }}`)
		}
		return nil

	case "csrf":
		u.buf.WriteString(`<input type="hidden" name="_token" value="{{ csrfToken ` + scopeVar + ` }}">`)
		return nil

	case "method":
		verb, ok := stringArg(node.Arg)
		if !ok {
			return syntaxErr(u.tpl, node.Line, "@method requires a literal verb")
		}
		u.buf.WriteString(`<input type="hidden" name="_method" value="` + EncodeAttr(verb) + `">`)
		return nil

	case "json":
		u.buf.WriteString(`{{ json (` + u.translateExpr(node.Arg) + `) }}`)
		return nil

	case "nonce":
		u.buf.WriteString(`{{ nonceAttr ` + scopeVar + ` }}`)
		return nil

	default:
		if handler, ok := c.eng.directive(node.Name); ok {
			text, err := handler(node.Arg)
			if err != nil {
				return &Error{Template: u.tpl, Line: node.Line, Kind: KindSyntax,
					Detail: "@" + node.Name, Err: err}
			}
			u.buf.WriteString(text)
			return nil
		}
		return syntaxErr(u.tpl, node.Line, "unknown directive @%s", node.Name)
	}
}

func (u *unit) emitBlock(node *BlockNode) error {
	switch node.Name {
	case "if", "unless", "isset", "empty":
		return u.emitConditional(node)
	case "foreach", "forelse":
		return u.emitLoop(node)
	case "for":
		return u.emitLoop(node)
	case "section":
		// Captured during collection. @section ... @show additionally
		// yields in place (parser stored the yield in Else).
		if len(node.Else) > 0 {
			return u.emit(node.Else)
		}
		return nil
	case "push", "prepend":
		if u.hoisted {
			return nil
		}
		return u.collectStack(u.tpl, node)
	case "once":
		id := fmt.Sprintf("once:%s:%d", u.tpl, u.c.nextID())
		u.buf.WriteString(`{{ if once ` + scopeVar + ` ` + quoteGo(id) + ` }}`)
		if err := u.emit(node.Children); err != nil {
			return err
		}
		u.buf.WriteString(`{{ end }}`)
		return nil
	case "error":
		return u.emitError(node)
	case "fragment":
		return u.emitFragment(node)
	case "teleport":
		return u.emitTeleport(node)
	case "cache":
		return u.emitCache(node)
	case "slot":
		// @slot outside a component invocation renders inline.
		return u.emit(node.Children)
	}
	return syntaxErr(u.tpl, node.Line, "unknown block @%s", node.Name)
}

func (u *unit) emitConditional(node *BlockNode) error {
	open := u.conditionalOpen(node)
	u.buf.WriteString(open)
	if err := u.emitWrapped(node.Children, wrap{open, `{{ end }}`}); err != nil {
		return err
	}
	prefix := open
	for _, br := range node.Branches {
		arm := `{{ else if ` + u.translateExpr(br.Arg) + ` }}`
		u.buf.WriteString(arm)
		prefix += arm
		if err := u.emitWrapped(br.Children, wrap{prefix, `{{ end }}`}); err != nil {
			return err
		}
	}
	if node.Else != nil {
		u.buf.WriteString(`{{ else }}`)
		if err := u.emitWrapped(node.Else, wrap{prefix + `{{ else }}`, `{{ end }}`}); err != nil {
			return err
		}
	}
	u.buf.WriteString(`{{ end }}`)
	return nil
}

func (u *unit) conditionalOpen(node *BlockNode) string {
	switch node.Name {
	case "unless":
		return `{{ if not (` + u.translateExpr(node.Arg) + `) }}`
	case "isset":
		return `{{ if ` + u.issetExpr(node.Arg) + ` }}`
	case "empty":
		return `{{ if blank (` + u.translateExpr(node.Arg) + `) }}`
	default:
		return `{{ if ` + u.translateExpr(node.Arg) + ` }}`
	}
}

// emitWrapped emits child nodes with the enclosing control structure on
// the wrap stack, so stack contributions met along the way keep their
// guard.
func (u *unit) emitWrapped(nodes []Node, w wrap) error {
	u.wraps = append(u.wraps, w)
	err := u.emit(nodes)
	u.wraps = u.wraps[:len(u.wraps)-1]
	return err
}

// issetExpr prefers a structural key check for simple $name / $a.b
// references and falls back to truthiness for anything more complex.
func (u *unit) issetExpr(arg string) string {
	path := strings.TrimSpace(arg)
	path = strings.TrimPrefix(path, "$")
	if path != "" && identLike(path) {
		return `hasKey ` + scopeVar + ` ` + quoteGo(path)
	}
	return `not (blank (` + u.translateExpr(arg) + `))`
}

func identLike(s string) bool {
	for _, part := range strings.Split(s, ".") {
		if part == "" || identLen(part) != len(part) {
			return false
		}
	}
	return true
}

// emitLoop compiles @foreach / @forelse. The loop cursor shadows $loop
// for the body, chaining to the enclosing cursor for nesting. Dot is
// rebound to the cursor inside the range, which is why generated scope
// access goes through $__scope.
func (u *unit) emitLoop(node *BlockNode) error {
	open, binds, vars, err := u.loopHeader(node)
	if err != nil {
		return err
	}
	u.buf.WriteString(open)
	u.buf.WriteString(binds)

	u.vars = append(u.vars, vars...)
	err = u.emitWrapped(node.Children, wrap{open + binds, `{{ end }}`})
	u.vars = u.vars[:len(u.vars)-len(vars)]
	if err != nil {
		return err
	}

	if node.Name == "forelse" {
		u.buf.WriteString(`{{ else }}`)
		if err := u.emitWrapped(node.Else, wrap{open + `{{ else }}`, `{{ end }}`}); err != nil {
			return err
		}
	}
	u.buf.WriteString(`{{ end }}`)
	return nil
}

// loopHeader builds the range opening and loop-variable bindings for a
// @foreach / @forelse argument.
func (u *unit) loopHeader(node *BlockNode) (open, binds string, vars []string, err error) {
	arg := node.Arg
	asIdx := strings.LastIndex(arg, " as ")
	if asIdx < 0 {
		return "", "", nil, syntaxErr(u.tpl, node.Line, "@%s requires the form (expression as $var)", node.Name)
	}
	seq := u.translateExpr(arg[:asIdx])
	keyVar, valVar, verr := loopVars(arg[asIdx+4:])
	if verr != nil {
		return "", "", nil, syntaxErr(u.tpl, node.Line, "@%s: %v", node.Name, verr)
	}

	open = `{{ range $loop := cursor (` + seq + `) $loop }}`
	if keyVar != "" {
		binds = `{{ $` + keyVar + ` := $loop.Key }}`
		vars = append(vars, keyVar)
	}
	binds += `{{ $` + valVar + ` := $loop.Value }}`
	vars = append(vars, valVar)
	return open, binds, vars, nil
}

// loopVars parses the "$item" or "$key => $value" tail of a loop.
func loopVars(s string) (key, value string, err error) {
	parts := strings.Split(s, "=>")
	switch len(parts) {
	case 1:
		value = cleanVar(parts[0])
	case 2:
		key = cleanVar(parts[0])
		value = cleanVar(parts[1])
	default:
		return "", "", fmt.Errorf("malformed loop variables %q", s)
	}
	if value == "" || identLen(value) != len(value) {
		return "", "", fmt.Errorf("malformed loop variables %q", s)
	}
	if key != "" && identLen(key) != len(key) {
		return "", "", fmt.Errorf("malformed loop variables %q", s)
	}
	return key, value, nil
}

func cleanVar(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "$")
}

// emitYield renders the closest captured section for a name, or the
// literal default when nothing in the chain captured it.
func (u *unit) emitYield(node *DirectiveNode) error {
	args := splitArgs(node.Arg)
	if len(args) == 0 {
		return syntaxErr(u.tpl, node.Line, "@yield requires a section name")
	}
	name, ok := stringArg(args[0])
	if !ok {
		return syntaxErr(u.tpl, node.Line, "@yield requires a literal section name")
	}
	entries := u.sections[name]
	if len(entries) == 0 {
		if len(args) > 1 {
			u.buf.WriteString(`{{ echo (` + u.translateExpr(args[1]) + `) }}`)
		}
		return nil
	}
	return u.emitSection(name, 0)
}

// emitSection emits one entry of a section chain; @parent inside it
// splices the next-further ancestor entry. A section captured inside a
// conditional re-emits its guard around the content.
func (u *unit) emitSection(name string, idx int) error {
	entries := u.sections[name]
	if idx >= len(entries) {
		return nil
	}
	entry := entries[idx]
	for _, w := range entry.wraps {
		u.buf.WriteString(w.pre)
	}
	u.secStack = append(u.secStack, secRef{name: name, idx: idx})
	// Section bodies are skipped by the collect pass, so pushes inside
	// them are gathered here, from the winning entry only. The entry's
	// own guards join the wrap stack so those pushes stay guarded too.
	prevHoisted, prevWraps := u.hoisted, u.wraps
	u.hoisted = false
	u.wraps = append(u.currentWraps(), entry.wraps...)
	err := u.emit(entry.nodes)
	u.hoisted, u.wraps = prevHoisted, prevWraps
	u.secStack = u.secStack[:len(u.secStack)-1]
	if err != nil {
		return err
	}
	for i := len(entry.wraps) - 1; i >= 0; i-- {
		u.buf.WriteString(entry.wraps[i].post)
	}
	return nil
}

func (u *unit) emitParent(node *DirectiveNode) error {
	if len(u.secStack) == 0 {
		return nil
	}
	ref := u.secStack[len(u.secStack)-1]
	return u.emitSection(ref.name, ref.idx+1)
}

func (u *unit) emitInclude(node *DirectiveNode) error {
	args := splitArgs(node.Arg)
	if len(args) == 0 {
		return syntaxErr(u.tpl, node.Line, "@include requires a template name")
	}
	name, ok := stringArg(args[0])
	if !ok {
		return syntaxErr(u.tpl, node.Line, "@include requires a literal template name")
	}
	defName, err := u.c.partialDefine(name)
	if err != nil {
		if node.Name == "includeIf" && isNotFound(err) {
			return nil
		}
		return err
	}
	if len(args) > 1 {
		u.buf.WriteString(`{{ partial ` + scopeVar + ` ` + quoteGo(defName) + ` (` + u.translateExpr(args[1]) + `) }}`)
	} else {
		u.buf.WriteString(`{{ partial ` + scopeVar + ` ` + quoteGo(defName) + ` }}`)
	}
	return nil
}

func (u *unit) emitError(node *BlockNode) error {
	field, ok := stringArg(node.Arg)
	if !ok {
		return syntaxErr(u.tpl, node.Line, "@error requires a literal field name")
	}
	u.buf.WriteString(`{{ if hasError ` + scopeVar + ` ` + quoteGo(field) + ` }}`)
	u.errField = append(u.errField, field)
	err := u.emit(node.Children)
	u.errField = u.errField[:len(u.errField)-1]
	if err != nil {
		return err
	}
	u.buf.WriteString(`{{ end }}`)
	return nil
}

// emitFragment registers the region as a named sub-template and renders
// it inline through the same definition, so a fragment-only render is
// byte-identical to the region's inline output. Define names carry the
// declaring template so fragments in partials cannot collide with the
// entry's; the fragment name itself must still be unique per program.
func (u *unit) emitFragment(node *BlockNode) error {
	name, ok := stringArg(node.Arg)
	if !ok {
		return syntaxErr(u.tpl, node.Line, "@fragment requires a literal name")
	}
	if _, exists := u.c.fragments[name]; exists {
		return syntaxErr(u.tpl, node.Line, "duplicate fragment %q", name)
	}
	body, err := u.emitSub(node.Children)
	if err != nil {
		return err
	}
	defName := "__frag_" + sanitizeName(u.tpl) + "_" + sanitizeName(name)
	u.c.addDefine(defName, body)
	u.c.fragments[name] = defName
	u.buf.WriteString(`{{ template ` + quoteGo(defName) + ` ` + scopeVar + ` }}`)
	return nil
}

// emitTeleport captures the region and registers it against a target
// selector; nothing renders inline. The relocation markup and script
// are emitted at end of document.
func (u *unit) emitTeleport(node *BlockNode) error {
	target, ok := stringArg(node.Arg)
	if !ok {
		return syntaxErr(u.tpl, node.Line, "@teleport requires a literal target selector")
	}
	body, err := u.emitSub(node.Children)
	if err != nil {
		return err
	}
	defName := fmt.Sprintf("__tp_%d", u.c.nextID())
	u.c.addDefine(defName, body)
	u.c.teleports = append(u.c.teleports, teleportDef{target: target, define: defName})
	return nil
}

func (u *unit) emitCache(node *BlockNode) error {
	args := splitArgs(node.Arg)
	if len(args) == 0 {
		return syntaxErr(u.tpl, node.Line, "@cache requires a key")
	}
	body, err := u.emitSub(node.Children)
	if err != nil {
		return err
	}
	defName := fmt.Sprintf("__cb_%d", u.c.nextID())
	u.c.addDefine(defName, body)

	key := u.translateExpr(args[0])
	ttl := `""`
	if len(args) > 1 {
		if lit, ok := stringArg(args[1]); ok {
			ttl = quoteGo(lit)
		} else {
			ttl = quoteGo(strings.TrimSpace(args[1]))
		}
	}
	u.buf.WriteString(`{{ cacheBlock ` + scopeVar + ` ` + quoteGo(defName) + ` (` + key + `) ` + ttl)
	for _, tag := range args[2:] {
		if lit, ok := stringArg(tag); ok {
			u.buf.WriteString(` ` + quoteGo(lit))
		}
	}
	u.buf.WriteString(` }}`)
	return nil
}

func isNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindNotFound
	}
	return errors.Is(err, ErrNotFound)
}
