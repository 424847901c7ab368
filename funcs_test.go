package blade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEchoString(t *testing.T) {
	assert.Equal(t, "", echoString(nil))
	assert.Equal(t, "hi", echoString("hi"))
	assert.Equal(t, "hi", echoString([]byte("hi")))
	assert.Equal(t, "42", echoString(42))
	assert.Equal(t, "3.5", echoString(3.5))
	assert.Equal(t, "true", echoString(true))
}

func TestBlank(t *testing.T) {
	for _, v := range []any{nil, "", "   ", false, 0, int64(0), 0.0, []any{}, map[string]any{}, Scope{}} {
		assert.True(t, blank(v), "value %#v", v)
	}
	for _, v := range []any{"x", true, 1, []any{1}, map[string]any{"k": 1}, struct{}{}} {
		assert.False(t, blank(v), "value %#v", v)
	}
}

func TestHasKey(t *testing.T) {
	s := Scope{
		"user": map[string]any{
			"profile": map[string]any{"name": "Ada"},
			"gone":    nil,
		},
	}
	assert.True(t, hasKey(s, "user"))
	assert.True(t, hasKey(s, "user.profile.name"))
	assert.False(t, hasKey(s, "user.profile.age"))
	assert.False(t, hasKey(s, "user.gone"))
	assert.False(t, hasKey(s, "missing"))
	assert.False(t, hasKey(s, "user.profile.name.deeper"))
}

func TestDict(t *testing.T) {
	d := dictFn("a", 1, "b", "two")
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, d)
	assert.Empty(t, dictFn())
}

func TestErrorMsgForms(t *testing.T) {
	mk := func(v any) Scope {
		rs := &renderState{errBag: map[string]any{"email": v}}
		return Scope{scopeState: rs}
	}
	assert.Equal(t, "required", errorMsgFn(mk("required"), "email"))
	assert.Equal(t, "first", errorMsgFn(mk([]string{"first", "second"}), "email"))
	assert.Equal(t, "first", errorMsgFn(mk([]any{"first"}), "email"))
	assert.Equal(t, "", errorMsgFn(mk(nil), "email"))
	assert.Equal(t, "", errorMsgFn(mk([]string{}), "email"))
	assert.Equal(t, "", errorMsgFn(Scope{}, "email"))
	assert.True(t, hasErrorFn(mk("x"), "email"))
	assert.False(t, hasErrorFn(mk("x"), "name"))
}

func TestScopeStateAndClone(t *testing.T) {
	rs := &renderState{}
	s := Scope{"a": 1, scopeState: rs}
	assert.Same(t, rs, s.state())

	c := s.clone()
	c["a"] = 2
	assert.Equal(t, 1, s["a"])
	assert.Same(t, rs, c.state())
}

func TestSeenOnce(t *testing.T) {
	rs := &renderState{once: map[string]struct{}{}}
	assert.True(t, rs.seenOnce("id"))
	assert.False(t, rs.seenOnce("id"))
	assert.True(t, rs.seenOnce("other"))
}

func TestAwareStack(t *testing.T) {
	rs := &renderState{}
	rs.pushAware(map[string]any{"color": "red", "size": "sm"})
	rs.pushAware(map[string]any{"color": "blue"})

	v, ok := rs.lookupAware("color")
	assert.True(t, ok)
	assert.Equal(t, "blue", v)

	v, ok = rs.lookupAware("size")
	assert.True(t, ok)
	assert.Equal(t, "sm", v)

	rs.popAware()
	v, _ = rs.lookupAware("color")
	assert.Equal(t, "red", v)

	rs.popAware()
	_, ok = rs.lookupAware("color")
	assert.False(t, ok)
}
