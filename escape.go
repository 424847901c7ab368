package blade

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

// Context selects the output position a value is encoded for.
type Context int

const (
	// CtxBody is regular HTML element content.
	CtxBody Context = iota
	// CtxAttr is a quoted attribute value.
	CtxAttr
	// CtxScript is a JSON literal embedded in a <script> element.
	CtxScript
	// CtxURL is an href/src style attribute.
	CtxURL
	// CtxQuery is a URL query component.
	CtxQuery
	// CtxRaw bypasses encoding entirely.
	CtxRaw
)

// filteredURL replaces URLs whose scheme could execute script. The
// marker is inert and greppable.
const filteredURL = "about:invalid#blade-filtered"

// Encode maps a value to a string safe for the given output context.
// Plain template echoes are encoded automatically by position; these
// functions back the helpers that extend or bypass that pipeline.
func Encode(value string, ctx Context) string {
	switch ctx {
	case CtxAttr:
		return EncodeAttr(value)
	case CtxScript:
		return EncodeScript(value)
	case CtxURL:
		return EncodeURL(value)
	case CtxQuery:
		return EncodeQuery(value)
	case CtxRaw:
		return value
	default:
		return EncodeBody(value)
	}
}

var bodyReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"'", "&#39;",
)

// EncodeBody encodes a value for HTML element content.
func EncodeBody(s string) string { return bodyReplacer.Replace(s) }

var attrReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"'", "&#39;",
	"`", "&#96;",
)

// EncodeAttr encodes a value for use inside a quoted attribute value.
func EncodeAttr(s string) string { return attrReplacer.Replace(s) }

// EncodeScript encodes a value as a JSON string literal safe inside a
// <script> element: tag-closing sequences and HTML-significant bytes are
// unicode-escaped so the literal can never terminate the element early.
func EncodeScript(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(escapeJSONForHTML(b))
}

func escapeJSONForHTML(b []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(b))
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '<':
			out.WriteString(`\u003c`)
		case '>':
			out.WriteString(`\u003e`)
		case '&':
			out.WriteString(`\u0026`)
		default:
			out.WriteByte(b[i])
		}
	}
	// U+2028 / U+2029 are line terminators in JavaScript but legal in JSON.
	s := out.Bytes()
	s = bytes.ReplaceAll(s, []byte("\u2028"), []byte(`\u2028`))
	s = bytes.ReplaceAll(s, []byte("\u2029"), []byte(`\u2029`))
	return s
}

// EncodeURL neutralizes script-executing pseudo-protocols while leaving
// legitimate absolute and relative URLs intact.
func EncodeURL(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	if i := strings.IndexAny(trimmed, ":/?#"); i >= 0 && trimmed[i] == ':' {
		scheme := strings.ToLower(stripControl(trimmed[:i]))
		switch scheme {
		case "http", "https", "mailto", "tel", "ftp", "ftps", "ws", "wss":
			return s
		default:
			return filteredURL
		}
	}
	// No scheme: relative path, fragment or query — safe as-is.
	return s
}

// EncodeQuery percent-encodes a value for a URL query component.
func EncodeQuery(s string) string { return url.QueryEscape(s) }

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
