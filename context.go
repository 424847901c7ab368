package blade

import (
	"html/template"
)

// Scope is the variable binding set a template executes against. The
// root scope merges engine globals with per-render data; components and
// partials execute against derived scopes.
//
// Keys starting with "__" are engine-reserved.
type Scope map[string]any

const (
	scopeState  = "__state"
	scopeCaller = "__caller"
	scopeSlots  = "__slots"
	scopeAttrs  = "__attrs"
)

// state returns the per-render state carried by every scope.
func (s Scope) state() *renderState {
	rs, _ := s[scopeState].(*renderState)
	return rs
}

func (s Scope) clone() Scope {
	out := make(Scope, len(s)+4)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// renderState is the engine-reserved, render-scoped mutable state: the
// aware-data stack, the once set, the error bag and security bindings.
// One instance per render call; never shared across calls.
type renderState struct {
	eng      *Engine
	prog     *CompiledProgram
	tmpl     *template.Template
	globals  Scope
	aware    []map[string]any
	once     map[string]struct{}
	errBag   map[string]any
	csrf     string
	nonce    string
	fragment string
	streamed bool
}

// pushAware publishes a component's resolved props for its subtree and
// must be paired with popAware on scope exit.
func (rs *renderState) pushAware(data map[string]any) {
	rs.aware = append(rs.aware, data)
}

func (rs *renderState) popAware() {
	if n := len(rs.aware); n > 0 {
		rs.aware = rs.aware[:n-1]
	}
}

// lookupAware resolves an ancestor-published value, innermost first.
func (rs *renderState) lookupAware(name string) (any, bool) {
	for i := len(rs.aware) - 1; i >= 0; i-- {
		if v, ok := rs.aware[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// seenOnce records an @once block id, reporting whether this is its
// first occurrence in the render.
func (rs *renderState) seenOnce(id string) bool {
	if _, ok := rs.once[id]; ok {
		return false
	}
	rs.once[id] = struct{}{}
	return true
}

// buildScope assembles the root scope for one render: shared globals
// first, then per-render data (data wins), then reserved bindings.
func (e *Engine) buildScope(data any, rs *renderState) Scope {
	scope := make(Scope, 8)
	globals := make(Scope, 8)
	e.mu.RLock()
	for k, v := range e.globals {
		scope[k] = v
		globals[k] = v
	}
	e.mu.RUnlock()

	switch d := data.(type) {
	case nil:
	case Scope:
		for k, v := range d {
			scope[k] = v
		}
	case map[string]any:
		for k, v := range d {
			scope[k] = v
		}
	default:
		scope["data"] = d
	}

	rs.globals = globals
	if bag, ok := scope["errors"].(map[string]any); ok {
		rs.errBag = bag
	}
	if tok, ok := scope["_token"].(string); ok {
		rs.csrf = tok
	}
	if nonce, ok := scope["cspNonce"].(string); ok {
		rs.nonce = nonce
	}
	scope[scopeState] = rs
	return scope
}

// componentBase builds the isolated base scope a component body sees:
// shared globals plus reserved bindings, never the caller's locals.
func componentBase(rs *renderState) Scope {
	scope := make(Scope, len(rs.globals)+4)
	for k, v := range rs.globals {
		scope[k] = v
	}
	scope[scopeState] = rs
	return scope
}

func newRenderState(e *Engine, prog *CompiledProgram) *renderState {
	return &renderState{
		eng:  e,
		prog: prog,
		tmpl: prog.tmpl,
		once: map[string]struct{}{},
	}
}
