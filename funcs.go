package blade

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"
)

// builtinFuncs is the function set generated code relies on. User
// functions registered through Engine.Funcs layer on top and may not
// shadow these names.
func builtinFuncs() template.FuncMap {
	return template.FuncMap{
		"echo":           echoFn,
		"raw":            rawFn,
		"json":           jsonFn,
		"cursor":         cursor,
		"rootLoop":       rootLoop,
		"dict":           dictFn,
		"hasKey":         hasKey,
		"blank":          blank,
		"once":           onceFn,
		"partial":        partialFn,
		"slot":           slotFn,
		"hasSlot":        hasSlotFn,
		"componentScope": componentScope,
		"popAware":       popAware,
		"propDef":        propDefArg,
		"propReq":        propReqArg,
		"attrLit":        attrLitArg,
		"attrBind":       attrBindArg,
		"slotRef":        slotRefArg,
		"awareOf":        awareOfArg,
		"attrs":          attrsFn,
		"mergeAttrs":     mergeAttrsFn,
		"attrGet":        attrGetFn,
		"cacheBlock":     cacheBlockFn,
		"hasError":       hasErrorFn,
		"errorMsg":       errorMsgFn,
		"csrfToken":      csrfTokenFn,
		"nonceAttr":      nonceAttrFn,
		"query":          EncodeQuery,
		"safeURL":        EncodeURL,
	}
}

// echoString renders a value the way an echo does: nil prints nothing,
// byte slices print as text, everything else through fmt.
func echoString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func echoFn(v any) string { return echoString(v) }

func rawFn(v any) template.HTML { return template.HTML(echoString(v)) }

// jsonFn returns the encoded value as JS so script positions embed it
// verbatim while HTML positions still escape it.
func jsonFn(v any) template.JS { return template.JS(EncodeScript(v)) }

// dictFn builds a string-keyed map from alternating key/value pairs;
// handy for @include data.
func dictFn(kv ...any) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}

// hasKey reports whether a dotted path resolves to a present,
// non-nil value in a scope or nested maps.
func hasKey(v any, path string) bool {
	cur := v
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case Scope:
			val, ok := m[part]
			if !ok {
				return false
			}
			cur = val
		case map[string]any:
			val, ok := m[part]
			if !ok {
				return false
			}
			cur = val
		default:
			return false
		}
	}
	return cur != nil
}

// blank reports emptiness the way @empty does: nil, empty strings,
// zero numbers and empty collections are blank.
func blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case Scope:
		return len(t) == 0
	default:
		return false
	}
}

func onceFn(s Scope, id string) bool {
	rs := s.state()
	if rs == nil {
		return true
	}
	return rs.seenOnce(id)
}

// executeDefine runs a named sub-template against data, returning its
// output as already-safe HTML.
func executeDefine(rs *renderState, name string, data any) (template.HTML, error) {
	if rs == nil || rs.tmpl == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := rs.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// partialFn renders an included template against the caller's scope,
// optionally merged with extra data (extra wins).
func partialFn(s Scope, define string, extra ...any) (template.HTML, error) {
	child := s.clone()
	if len(extra) > 0 {
		switch m := extra[0].(type) {
		case map[string]any:
			for k, v := range m {
				child[k] = v
			}
		case Scope:
			for k, v := range m {
				child[k] = v
			}
		}
	}
	return executeDefine(s.state(), define, child)
}

// slotFn renders a component slot in the caller's scope. Missing slots
// resolve to empty output, never an error.
func slotFn(s Scope, name ...string) (template.HTML, error) {
	slotName := "default"
	if len(name) > 0 {
		slotName = name[0]
	}
	slots, _ := s[scopeSlots].(map[string]string)
	define, ok := slots[slotName]
	if !ok {
		return "", nil
	}
	caller, _ := s[scopeCaller].(Scope)
	return executeDefine(s.state(), define, caller)
}

func hasSlotFn(s Scope, name string) bool {
	slots, _ := s[scopeSlots].(map[string]string)
	_, ok := slots[name]
	return ok
}

func scopeBag(s Scope) *AttrBag {
	bag, _ := s[scopeAttrs].(*AttrBag)
	if bag == nil {
		bag = &AttrBag{}
	}
	return bag
}

func attrsFn(s Scope) template.HTMLAttr { return scopeBag(s).render() }

// mergeAttrsFn merges default name/value pairs under the call-site bag:
// {{ mergeAttrs . "class" "btn" "type" "button" }}.
func mergeAttrsFn(s Scope, kv ...any) template.HTMLAttr {
	var base []bagAttr
	for i := 0; i+1 < len(kv); i += 2 {
		base = append(base, bagAttr{name: fmt.Sprint(kv[i]), value: kv[i+1]})
	}
	return scopeBag(s).mergeWith(base).render()
}

func attrGetFn(s Scope, name string) string { return scopeBag(s).Get(name) }

// cacheBlockFn serves a @cache block from the content cache, rendering
// the captured region on a miss. Producer errors propagate exactly as
// if caching were not involved.
func cacheBlockFn(s Scope, define string, key any, ttl string, tags ...string) (template.HTML, error) {
	rs := s.state()
	if rs == nil {
		return "", nil
	}
	d, err := parseTTL(ttl)
	if err != nil {
		return "", err
	}
	out, err := rs.eng.cache.Remember(echoString(key), d, func() (string, error) {
		html, err := executeDefine(rs, define, s)
		return string(html), err
	}, tags...)
	return template.HTML(out), err
}

// parseTTL accepts duration strings ("10m") or bare seconds ("300");
// empty means cache forever.
func parseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" || s == "forever" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("blade: invalid cache ttl %q: %w", s, err)
	}
	return d, nil
}

func hasErrorFn(s Scope, field string) bool {
	return errorMsgFn(s, field) != ""
}

// errorMsgFn resolves the first message for a field from the render's
// error bag.
func errorMsgFn(s Scope, field string) string {
	rs := s.state()
	if rs == nil || rs.errBag == nil {
		return ""
	}
	switch v := rs.errBag[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
		return ""
	case []any:
		if len(v) > 0 {
			return echoString(v[0])
		}
		return ""
	default:
		return echoString(v)
	}
}

func csrfTokenFn(s Scope) string {
	if rs := s.state(); rs != nil {
		return rs.csrf
	}
	return ""
}

// nonceAttrFn renders a nonce attribute when the render carries a CSP
// nonce, and nothing otherwise.
func nonceAttrFn(s Scope) template.HTMLAttr {
	rs := s.state()
	if rs == nil || rs.nonce == "" {
		return ""
	}
	return template.HTMLAttr(` nonce="` + EncodeAttr(rs.nonce) + `"`)
}
