package blade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttributes(t *testing.T) {
	attrs := parseAttributes(`type="error" :count="$n" disabled data-x='y' size=sm`)
	require.Len(t, attrs, 5)

	assert.Equal(t, Attr{Name: "type", Value: "error"}, attrs[0])
	assert.Equal(t, Attr{Name: "count", Value: "$n", Bound: true}, attrs[1])
	assert.Equal(t, Attr{Name: "disabled", Bare: true}, attrs[2])
	assert.Equal(t, Attr{Name: "data-x", Value: "y"}, attrs[3])
	assert.Equal(t, Attr{Name: "size", Value: "sm"}, attrs[4])
}

func TestParseAttributesEmpty(t *testing.T) {
	assert.Empty(t, parseAttributes(""))
	assert.Empty(t, parseAttributes("   "))
}

func TestParseAttributesQuotedSpaces(t *testing.T) {
	attrs := parseAttributes(`title="hello world"`)
	require.Len(t, attrs, 1)
	assert.Equal(t, "hello world", attrs[0].Value)
}

func TestPropNamesArrayForm(t *testing.T) {
	props := propNames(`['type' => 'info', 'title', 'count' => '0']`)
	require.Len(t, props, 3)
	assert.Equal(t, Attr{Name: "type", Value: "info"}, props[0])
	assert.Equal(t, Attr{Name: "title", Bare: true}, props[1])
	assert.Equal(t, Attr{Name: "count", Value: "0"}, props[2])
}

func TestPropNamesBareForm(t *testing.T) {
	props := propNames(`size='md', title`)
	require.Len(t, props, 2)
	assert.Equal(t, Attr{Name: "size", Value: "md"}, props[0])
	assert.Equal(t, Attr{Name: "title", Bare: true}, props[1])
}

func TestAttrBagRender(t *testing.T) {
	bag := &AttrBag{}
	bag.add("id", "a1")
	bag.add("disabled", true)
	bag.add("hidden", false)
	bag.add("title", `say "hi"`)

	out := string(bag.render())
	assert.Equal(t, `id="a1" disabled title="say &#34;hi&#34;"`, out)
}

func TestAttrBagMergeClassJoins(t *testing.T) {
	bag := &AttrBag{}
	bag.add("class", "mt-2")
	bag.add("type", "submit")

	merged := bag.mergeWith([]bagAttr{
		{name: "class", value: "btn"},
		{name: "type", value: "button"},
	})
	assert.Equal(t, "btn mt-2", merged.Get("class"))
	assert.Equal(t, "submit", merged.Get("type"))
}

func TestAttrBagGetHas(t *testing.T) {
	bag := &AttrBag{}
	bag.add("href", "/home")
	assert.True(t, bag.Has("href"))
	assert.False(t, bag.Has("class"))
	assert.Equal(t, "/home", bag.Get("href"))
	assert.Equal(t, "", bag.Get("missing"))
}
