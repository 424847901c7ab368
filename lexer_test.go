package blade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(src string) []token {
	return newLexer(src, func(name string) bool { return directiveNames[name] }).run()
}

func TestLexerEchoAndText(t *testing.T) {
	tokens := lexAll(`Hello, {{ $name }}!`)
	require.Len(t, tokens, 3)
	assert.Equal(t, tokText, tokens[0].kind)
	assert.Equal(t, "Hello, ", tokens[0].text)
	assert.Equal(t, tokEcho, tokens[1].kind)
	assert.Equal(t, "$name", tokens[1].text)
	assert.Equal(t, "!", tokens[2].text)
}

func TestLexerRawEcho(t *testing.T) {
	tokens := lexAll(`{!! $html !!}`)
	require.Len(t, tokens, 1)
	assert.Equal(t, tokRawEcho, tokens[0].kind)
	assert.Equal(t, "$html", tokens[0].text)
}

func TestLexerCommentsDropped(t *testing.T) {
	tokens := lexAll(`a{{-- secret --}}b<!--! also secret -->c`)
	require.Len(t, tokens, 3)
	for _, tok := range tokens {
		assert.Equal(t, tokText, tok.kind)
		assert.NotContains(t, tok.text, "secret")
	}
}

func TestLexerEscapedEcho(t *testing.T) {
	tokens := lexAll(`@{{ name }}`)
	require.Len(t, tokens, 1)
	assert.Equal(t, tokText, tokens[0].kind)
	assert.Equal(t, "{{ name }}", tokens[0].text)
}

func TestLexerEscapedDirective(t *testing.T) {
	tokens := lexAll(`@@if still literal`)
	require.Len(t, tokens, 1)
	assert.Equal(t, "@if still literal", tokens[0].text)
}

func TestLexerDirectiveBalancedParens(t *testing.T) {
	tokens := lexAll(`@if (f(x, g(y)) > 0)ok@endif`)
	require.Len(t, tokens, 3)
	assert.Equal(t, tokDirective, tokens[0].kind)
	assert.Equal(t, "if", tokens[0].name)
	assert.Equal(t, "f(x, g(y)) > 0", tokens[0].text)
	assert.Equal(t, "endif", tokens[2].name)
}

func TestLexerParensSkipQuotedStrings(t *testing.T) {
	tokens := lexAll(`@if ($x == ":)")y@endif`)
	require.Equal(t, tokDirective, tokens[0].kind)
	assert.Equal(t, `$x == ":)"`, tokens[0].text)
}

func TestLexerUnterminatedArgIsLiteral(t *testing.T) {
	tokens := lexAll(`@if (broken`)
	require.Len(t, tokens, 1)
	assert.Equal(t, tokText, tokens[0].kind)
	assert.Equal(t, "@if (broken", tokens[0].text)
}

func TestLexerUnknownWordAfterAtIsLiteral(t *testing.T) {
	tokens := lexAll(`a@media screen {} user@example.com`)
	require.Len(t, tokens, 1)
	assert.Equal(t, tokText, tokens[0].kind)
	assert.Equal(t, "a@media screen {} user@example.com", tokens[0].text)
}

func TestLexerVerbatim(t *testing.T) {
	tokens := lexAll("@verbatim\n{{ $raw }} @if(x)\n@endverbatim")
	require.Len(t, tokens, 1)
	assert.Equal(t, tokText, tokens[0].kind)
	assert.Equal(t, "{{ $raw }} @if(x)\n", tokens[0].text)
}

func TestLexerComponentTags(t *testing.T) {
	tokens := lexAll(`<x-alert type="error" :count="$n">hi</x-alert>`)
	require.Len(t, tokens, 3)
	assert.Equal(t, tokTagOpen, tokens[0].kind)
	assert.Equal(t, "alert", tokens[0].name)
	assert.Equal(t, `type="error" :count="$n"`, tokens[0].text)
	assert.False(t, tokens[0].selfClosing)
	assert.Equal(t, tokTagClose, tokens[2].kind)
	assert.Equal(t, "alert", tokens[2].name)
}

func TestLexerSelfClosingTag(t *testing.T) {
	tokens := lexAll(`<x-icon name="x" />`)
	require.Len(t, tokens, 1)
	assert.True(t, tokens[0].selfClosing)
	assert.Equal(t, `name="x"`, tokens[0].text)
}

func TestLexerSlotTags(t *testing.T) {
	tokens := lexAll(`<x-slot:footer>f</x-slot>`)
	require.Len(t, tokens, 3)
	assert.Equal(t, tokSlotOpen, tokens[0].kind)
	assert.Equal(t, "footer", tokens[0].name)
	assert.Equal(t, tokSlotClose, tokens[2].kind)
}

func TestLexerSlotNameAttribute(t *testing.T) {
	tokens := lexAll(`<x-slot name="footer">f</x-slot>`)
	require.Len(t, tokens, 3)
	assert.Equal(t, tokSlotOpen, tokens[0].kind)
	assert.Equal(t, "footer", tokens[0].name)
}

func TestLexerTagWithGtInQuotedAttr(t *testing.T) {
	tokens := lexAll(`<x-badge label="a > b" />`)
	require.Len(t, tokens, 1)
	assert.Equal(t, tokTagOpen, tokens[0].kind)
	assert.Equal(t, `label="a > b"`, tokens[0].text)
}

func TestLexerLineNumbers(t *testing.T) {
	tokens := lexAll("line one\nline two {{ $x }}\n@if ($y)\n@endif")
	var echoLine, ifLine int
	for _, tok := range tokens {
		switch {
		case tok.kind == tokEcho:
			echoLine = tok.line
		case tok.kind == tokDirective && tok.name == "if":
			ifLine = tok.line
		}
	}
	assert.Equal(t, 2, echoLine)
	assert.Equal(t, 3, ifLine)
}

func TestLexerUnterminatedEchoDegradesToText(t *testing.T) {
	tokens := lexAll(`before {{ $x`)
	var out string
	for _, tok := range tokens {
		require.Equal(t, tokText, tok.kind)
		out += tok.text
	}
	assert.Equal(t, "before {{ $x", out)
}
