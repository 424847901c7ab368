package blade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAll(t *testing.T, src string) []Node {
	t.Helper()
	nodes, err := parseSource("test", src, func(name string) bool { return directiveNames[name] })
	require.NoError(t, err)
	return nodes
}

func TestParserConditionalChain(t *testing.T) {
	nodes := parseAll(t, `@if ($a)A@elseif ($b)B@elseif ($c)C@else D@endif`)
	require.Len(t, nodes, 1)
	blk, ok := nodes[0].(*BlockNode)
	require.True(t, ok)
	assert.Equal(t, "if", blk.Name)
	assert.Equal(t, "$a", blk.Arg)
	require.Len(t, blk.Branches, 2)
	assert.Equal(t, "$b", blk.Branches[0].Arg)
	assert.Equal(t, "$c", blk.Branches[1].Arg)
	require.Len(t, blk.Else, 1)
}

func TestParserForelseEmpty(t *testing.T) {
	nodes := parseAll(t, `@forelse ($items as $item){{ $item }}@empty none@endforelse`)
	require.Len(t, nodes, 1)
	blk := nodes[0].(*BlockNode)
	assert.Equal(t, "forelse", blk.Name)
	require.Len(t, blk.Children, 1)
	require.Len(t, blk.Else, 1)
	assert.Equal(t, " none", blk.Else[0].(*TextNode).Text)
}

func TestParserEmptyBlockOutsideForelse(t *testing.T) {
	nodes := parseAll(t, `@empty($list)nothing@endempty`)
	blk := nodes[0].(*BlockNode)
	assert.Equal(t, "empty", blk.Name)
	assert.Equal(t, "$list", blk.Arg)
}

func TestParserSectionShow(t *testing.T) {
	nodes := parseAll(t, `@section('sidebar')S@show`)
	blk := nodes[0].(*BlockNode)
	assert.Equal(t, "section", blk.Name)
	require.Len(t, blk.Else, 1)
	y := blk.Else[0].(*DirectiveNode)
	assert.Equal(t, "yield", y.Name)
	assert.Equal(t, "'sidebar'", y.Arg)
}

func TestParserInlineSection(t *testing.T) {
	nodes := parseAll(t, `@section('title', 'Home')`)
	require.Len(t, nodes, 1)
	d, ok := nodes[0].(*DirectiveNode)
	require.True(t, ok)
	assert.Equal(t, "section", d.Name)
}

func TestParserNestedBlocks(t *testing.T) {
	nodes := parseAll(t, `@foreach ($xs as $x)@if ($x)y@endif@endforeach`)
	outer := nodes[0].(*BlockNode)
	require.Len(t, outer.Children, 1)
	inner := outer.Children[0].(*BlockNode)
	assert.Equal(t, "if", inner.Name)
}

func TestParserMissingEnd(t *testing.T) {
	_, err := parseSource("test", `@if ($a)unclosed`, func(n string) bool { return directiveNames[n] })
	require.Error(t, err)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindSyntax, te.Kind)
	assert.Contains(t, te.Detail, "endif")
}

func TestParserStrayEnd(t *testing.T) {
	_, err := parseSource("test", `text@endif`, func(n string) bool { return directiveNames[n] })
	require.Error(t, err)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindSyntax, te.Kind)
}

func TestParserComponentWithSlots(t *testing.T) {
	nodes := parseAll(t, `<x-card title="Hi">body<x-slot:footer>f</x-slot>more</x-card>`)
	require.Len(t, nodes, 1)
	comp := nodes[0].(*ComponentNode)
	assert.Equal(t, "card", comp.Name)
	require.Len(t, comp.Attrs, 1)
	assert.Equal(t, "title", comp.Attrs[0].Name)
	require.Contains(t, comp.Slots, "default")
	require.Contains(t, comp.Slots, "footer")
	require.Len(t, comp.Slots["default"], 2)
}

func TestParserNestedComponents(t *testing.T) {
	nodes := parseAll(t, `<x-menu><x-item>a</x-item></x-menu>`)
	menu := nodes[0].(*ComponentNode)
	def := menu.Slots["default"]
	require.Len(t, def, 1)
	item := def[0].(*ComponentNode)
	assert.Equal(t, "item", item.Name)
}

func TestParserUnclosedComponent(t *testing.T) {
	_, err := parseSource("test", `<x-card>never closed`, func(n string) bool { return directiveNames[n] })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x-card")
}

func TestParserMismatchedClosingTag(t *testing.T) {
	_, err := parseSource("test", `<x-card>body</x-alert>`, func(n string) bool { return directiveNames[n] })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x-alert")
}

func TestSplitArgs(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{``, nil},
		{`'a'`, []string{`'a'`}},
		{`'a', 'b'`, []string{`'a'`, `'b'`}},
		{`f(x, y), z`, []string{`f(x, y)`, `z`}},
		{`['a' => 1, 'b' => 2], c`, []string{`['a' => 1, 'b' => 2]`, `c`}},
		{`'with, comma', next`, []string{`'with, comma'`, `next`}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, splitArgs(tc.in), "input %q", tc.in)
	}
}
