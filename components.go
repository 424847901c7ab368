package blade

import (
	"fmt"
	"html/template"
	"strings"
)

// emitComponent inlines an <x-name> invocation: the component source is
// parsed and its body compiled at the call site, wrapped in a scope
// overlay that resolves props, the attribute bag, slots and aware data
// at render time.
func (u *unit) emitComponent(node *ComponentNode) error {
	c := u.c
	path := c.eng.componentPath(node.Name)

	for _, p := range c.inlining {
		if p == path {
			return &Error{
				Template: u.tpl, Line: node.Line, Kind: KindCycle,
				Detail: fmt.Sprintf("component %s includes itself (%s)", node.Name, strings.Join(append(c.inlining, path), " -> ")),
			}
		}
	}

	parsed, err := c.parseTemplate(path)
	if err != nil {
		if isNotFound(err) {
			return &Error{Template: u.tpl, Line: node.Line, Kind: KindNotFound,
				Detail: fmt.Sprintf("component <x-%s>", node.Name), Err: err}
		}
		return err
	}
	props, aware := componentMeta(parsed.nodes)

	// Slot bodies compile in the caller's unit and execute against the
	// caller's scope.
	id := c.nextID()
	slotRefs := make([]string, 0, len(node.Slots)*2)
	for slotName, nodes := range node.Slots {
		body, err := u.emitSub(nodes)
		if err != nil {
			return err
		}
		defName := fmt.Sprintf("__slot_%d_%s", id, sanitizeName(slotName))
		c.addDefine(defName, body)
		slotRefs = append(slotRefs, slotName, defName)
	}

	u.buf.WriteString(`{{ with componentScope ` + scopeVar + ` ` + quoteGo(node.Name))
	for _, p := range props {
		if p.Bare {
			u.buf.WriteString(` (propReq ` + quoteGo(p.Name) + `)`)
		} else {
			u.buf.WriteString(` (propDef ` + quoteGo(p.Name) + ` ` + quoteGo(p.Value) + `)`)
		}
	}
	for _, a := range aware {
		u.buf.WriteString(` (awareOf ` + quoteGo(a.Name) + `)`)
		if !a.Bare {
			// An @aware default applies when no ancestor published the value.
			u.buf.WriteString(` (propDef ` + quoteGo(a.Name) + ` ` + quoteGo(a.Value) + `)`)
		}
	}
	for _, at := range node.Attrs {
		switch {
		case at.Bound && !at.Bare:
			u.buf.WriteString(` (attrBind ` + quoteGo(at.Name) + ` (` + u.translateExpr(at.Value) + `))`)
		case at.Bare:
			u.buf.WriteString(` (attrBind ` + quoteGo(at.Name) + ` true)`)
		default:
			u.buf.WriteString(` (attrLit ` + quoteGo(at.Name) + ` ` + quoteGo(at.Value) + `)`)
		}
	}
	for i := 0; i < len(slotRefs); i += 2 {
		u.buf.WriteString(` (slotRef ` + quoteGo(slotRefs[i]) + ` ` + quoteGo(slotRefs[i+1]) + `)`)
	}
	// Shadow the scope binding with the component's own scope for the
	// body; the with block ends the shadow.
	u.buf.WriteString(` }}{{ ` + scopeVar + ` := . }}`)

	cu := &unit{c: c, tpl: parsed.path, sections: map[string][]sectionEntry{}, buf: u.buf}
	c.inlining = append(c.inlining, path)
	err = cu.emit(parsed.nodes)
	c.inlining = c.inlining[:len(c.inlining)-1]
	if err != nil {
		return err
	}
	u.buf.WriteString(`{{ popAware ` + scopeVar + ` }}{{ end }}`)
	return nil
}

// componentMeta extracts @props and @aware declarations from a
// component tree.
func componentMeta(nodes []Node) (props, aware []Attr) {
	for _, n := range nodes {
		d, ok := n.(*DirectiveNode)
		if !ok {
			continue
		}
		switch d.Name {
		case "props":
			props = append(props, propNames(d.Arg)...)
		case "aware":
			aware = append(aware, propNames(d.Arg)...)
		}
	}
	return props, aware
}

// componentPath maps a component name to a template path: registered
// aliases first, then the component root with dots as separators.
func (e *Engine) componentPath(name string) string {
	e.mu.RLock()
	alias, ok := e.components[name]
	e.mu.RUnlock()
	if ok {
		return alias
	}
	return e.componentRoot + "/" + strings.ReplaceAll(name, ".", "/")
}

// compArg is one binding passed to componentScope by generated code.
type compArg struct {
	kind  int
	name  string
	value any
}

const (
	argPropDef = iota
	argPropReq
	argAttrLit
	argAttrBind
	argSlot
	argAware
)

func propDefArg(name string, def any) compArg { return compArg{kind: argPropDef, name: name, value: def} }
func propReqArg(name string) compArg          { return compArg{kind: argPropReq, name: name} }
func attrLitArg(name, v string) compArg       { return compArg{kind: argAttrLit, name: name, value: v} }
func attrBindArg(name string, v any) compArg  { return compArg{kind: argAttrBind, name: name, value: v} }
func slotRefArg(name, def string) compArg     { return compArg{kind: argSlot, name: name, value: def} }
func awareOfArg(name string) compArg          { return compArg{kind: argAware, name: name} }

// componentScope builds the scope a component body executes against:
// shared globals, then prop defaults, then call-site attributes
// (call-site wins), then aware data for anything still unbound.
// Undeclared attributes land in the attribute bag. The resolved props
// are published on the aware stack for descendant components; the
// matching pop is emitted at the end of the component body.
func componentScope(caller Scope, name string, args ...any) (Scope, error) {
	rs := caller.state()
	scope := componentBase(rs)

	type propInfo struct {
		def      any
		required bool
	}
	declared := map[string]propInfo{}
	var declaredOrder []string
	var awareWants []string
	bag := &AttrBag{}
	slots := map[string]string{}
	props := map[string]any{}

	for _, raw := range args {
		a, ok := raw.(compArg)
		if !ok {
			continue
		}
		switch a.kind {
		case argPropDef:
			declared[a.name] = propInfo{def: a.value}
			declaredOrder = append(declaredOrder, a.name)
		case argPropReq:
			declared[a.name] = propInfo{required: true}
			declaredOrder = append(declaredOrder, a.name)
		case argAware:
			awareWants = append(awareWants, a.name)
		case argSlot:
			slots[a.name] = a.value.(string)
		}
	}
	for _, raw := range args {
		a, ok := raw.(compArg)
		if !ok {
			continue
		}
		switch a.kind {
		case argAttrLit, argAttrBind:
			if _, isProp := declared[a.name]; isProp {
				props[a.name] = a.value
			} else {
				bag.add(a.name, a.value)
			}
		}
	}
	for _, want := range awareWants {
		if _, set := props[want]; set {
			continue
		}
		if v, ok := rs.lookupAware(want); ok {
			props[want] = v
		}
	}
	for _, pname := range declaredOrder {
		if _, set := props[pname]; set {
			continue
		}
		info := declared[pname]
		if info.required {
			if rs.eng.mode == DebugMode {
				return nil, &Error{Template: name, Kind: KindMissingProp, Detail: pname}
			}
			rs.eng.log.Warn("missing required component prop",
				"component", name, "prop", pname)
			props[pname] = ""
			continue
		}
		props[pname] = info.def
	}

	for k, v := range props {
		scope[k] = v
	}
	scope[scopeAttrs] = bag
	scope[scopeSlots] = slots
	scope[scopeCaller] = caller
	rs.pushAware(props)
	return scope, nil
}

// popAware restores the enclosing aware state; generated code pairs it
// with every componentScope.
func popAware(s Scope) string {
	if rs := s.state(); rs != nil {
		rs.popAware()
	}
	return ""
}

// AttrBag holds the call-site attributes a component did not declare as
// props, in call order.
type AttrBag struct {
	attrs []bagAttr
}

type bagAttr struct {
	name  string
	value any
}

func (b *AttrBag) add(name string, v any) {
	for i := range b.attrs {
		if b.attrs[i].name == name {
			b.attrs[i].value = v
			return
		}
	}
	b.attrs = append(b.attrs, bagAttr{name: name, value: v})
}

// Get returns the bag value for name as a string, or "".
func (b *AttrBag) Get(name string) string {
	for _, a := range b.attrs {
		if a.name == name {
			return echoString(a.value)
		}
	}
	return ""
}

// Has reports whether the bag contains name.
func (b *AttrBag) Has(name string) bool {
	for _, a := range b.attrs {
		if a.name == name {
			return true
		}
	}
	return false
}

// render emits the bag as HTML attribute text. Boolean true renders the
// bare attribute, false drops it, everything else renders quoted and
// attribute-encoded.
func (b *AttrBag) render() template.HTMLAttr {
	var out strings.Builder
	for _, a := range b.attrs {
		if v, isBool := a.value.(bool); isBool && !v {
			continue
		}
		if out.Len() > 0 {
			out.WriteByte(' ')
		}
		if _, isBool := a.value.(bool); isBool {
			out.WriteString(a.name)
			continue
		}
		out.WriteString(a.name + `="` + EncodeAttr(echoString(a.value)) + `"`)
	}
	return template.HTMLAttr(out.String())
}

// mergeWith merges base name/value pairs under the bag: class values
// space-join, anything else is overwritten by the call site.
func (b *AttrBag) mergeWith(base []bagAttr) *AttrBag {
	merged := &AttrBag{attrs: append([]bagAttr(nil), base...)}
	for _, a := range b.attrs {
		if a.name == "class" && merged.Has("class") {
			for i := range merged.attrs {
				if merged.attrs[i].name == "class" {
					merged.attrs[i].value = strings.TrimSpace(
						echoString(merged.attrs[i].value) + " " + echoString(a.value))
				}
			}
			continue
		}
		merged.add(a.name, a.value)
	}
	return merged
}
