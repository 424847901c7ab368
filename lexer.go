package blade

import (
	"strings"
)

// tokenKind identifies the kind of a lexed token.
type tokenKind int

const (
	tokText tokenKind = iota
	tokEcho
	tokRawEcho
	tokDirective
	tokTagOpen
	tokTagClose
	tokSlotOpen
	tokSlotClose
)

// token is one element of the flat stream produced by the lexer.
// Directives carry the raw argument span (without the surrounding
// parentheses); tags carry the raw attribute text.
type token struct {
	kind        tokenKind
	text        string // literal text, echo expression, directive arg or attr text
	name        string // directive or tag name
	line        int
	selfClosing bool
}

// lexer splits raw template source into text, echoes, directives and
// component tag events. It never fails: any construct that cannot be
// terminated (unbalanced parentheses, unterminated echo) is emitted as
// literal text so that broken input degrades visibly instead of panicking.
type lexer struct {
	src         string
	pos         int
	line        int
	tokens      []token
	isDirective func(name string) bool
}

func newLexer(src string, isDirective func(string) bool) *lexer {
	return &lexer{src: src, line: 1, isDirective: isDirective}
}

func (lx *lexer) run() []token {
	var text strings.Builder
	textLine := lx.line

	flush := func() {
		if text.Len() > 0 {
			lx.tokens = append(lx.tokens, token{kind: tokText, text: text.String(), line: textLine})
			text.Reset()
		}
		textLine = lx.line
	}

	for lx.pos < len(lx.src) {
		rest := lx.src[lx.pos:]

		switch {
		case strings.HasPrefix(rest, "{{--"):
			// Comments are dropped before anything else sees them.
			end := strings.Index(rest, "--}}")
			if end < 0 {
				text.WriteString(rest[:4])
				lx.advance(4)
				continue
			}
			flush()
			lx.advance(end + 4)
			textLine = lx.line

		case strings.HasPrefix(rest, "<!--!"):
			end := strings.Index(rest, "-->")
			if end < 0 {
				text.WriteString(rest[:5])
				lx.advance(5)
				continue
			}
			flush()
			lx.advance(end + 3)
			textLine = lx.line

		case strings.HasPrefix(rest, "@{{"):
			// Escaped echo: emit the braces literally.
			text.WriteString("{{")
			lx.advance(3)

		case strings.HasPrefix(rest, "@@"):
			text.WriteByte('@')
			lx.advance(2)
			if n := identLen(lx.src[lx.pos:]); n > 0 {
				text.WriteString(lx.src[lx.pos : lx.pos+n])
				lx.advance(n)
			}

		case strings.HasPrefix(rest, "{!!"):
			end := strings.Index(rest, "!!}")
			if end < 0 {
				text.WriteString(rest[:3])
				lx.advance(3)
				continue
			}
			flush()
			lx.tokens = append(lx.tokens, token{kind: tokRawEcho, text: strings.TrimSpace(rest[3:end]), line: lx.line})
			lx.advance(end + 3)
			textLine = lx.line

		case strings.HasPrefix(rest, "{{"):
			end := strings.Index(rest, "}}")
			if end < 0 {
				text.WriteString(rest[:2])
				lx.advance(2)
				continue
			}
			flush()
			lx.tokens = append(lx.tokens, token{kind: tokEcho, text: strings.TrimSpace(rest[2:end]), line: lx.line})
			lx.advance(end + 2)
			textLine = lx.line

		case rest[0] == '@' && identLen(rest[1:]) > 0:
			if !lx.lexDirective(&text, flush) {
				text.WriteByte('@')
				lx.advance(1)
			}
			textLine = lx.line

		case strings.HasPrefix(rest, "<x-") || strings.HasPrefix(rest, "</x-"):
			if !lx.lexTag(flush) {
				text.WriteByte('<')
				lx.advance(1)
			}
			textLine = lx.line

		default:
			text.WriteByte(rest[0])
			lx.advance(1)
		}
	}
	flush()
	return lx.tokens
}

// lexDirective consumes @name with an optional balanced-parenthesis
// argument. Returns false when the word after @ is not a recognized
// directive, so that plain text like email handles or CSS at-rules
// passes through untouched.
func (lx *lexer) lexDirective(text *strings.Builder, flush func()) bool {
	start := lx.pos
	nameLen := identLen(lx.src[start+1:])
	name := lx.src[start+1 : start+1+nameLen]

	if name == "verbatim" {
		return lx.lexVerbatim(text, flush, start, nameLen)
	}
	if !lx.isDirective(name) {
		return false
	}

	line := lx.line
	lx.advance(1 + nameLen)

	// Optional argument list; horizontal whitespace before "(" is allowed.
	probe := lx.pos
	for probe < len(lx.src) && (lx.src[probe] == ' ' || lx.src[probe] == '\t') {
		probe++
	}
	arg := ""
	if probe < len(lx.src) && lx.src[probe] == '(' {
		end, ok := matchParens(lx.src, probe)
		if !ok {
			// Unterminated argument list: rewind and emit literally.
			lx.pos = start
			lx.line = line
			text.WriteString(lx.src[start : start+1+nameLen])
			lx.advance(1 + nameLen)
			return true
		}
		arg = lx.src[probe+1 : end]
		lx.advanceTo(end + 1)
	}

	flush()
	lx.tokens = append(lx.tokens, token{kind: tokDirective, name: name, text: arg, line: line})
	return true
}

// lexVerbatim captures everything between @verbatim and @endverbatim as
// plain text, immune to any further interpretation.
func (lx *lexer) lexVerbatim(text *strings.Builder, flush func(), start, nameLen int) bool {
	body := lx.src[start+1+nameLen:]
	end := strings.Index(body, "@endverbatim")
	if end < 0 {
		text.WriteString(lx.src[start : start+1+nameLen])
		lx.advance(1 + nameLen)
		return true
	}
	flush()
	inner := body[:end]
	inner = strings.TrimPrefix(inner, "\n")
	lx.tokens = append(lx.tokens, token{kind: tokText, text: inner, line: lx.line})
	lx.advance(1 + nameLen + end + len("@endverbatim"))
	return true
}

// lexTag consumes a component tag: <x-name ...>, <x-name ... />,
// </x-name>, <x-slot:name> and </x-slot>. Returns false when no
// terminating ">" exists.
func (lx *lexer) lexTag(flush func()) bool {
	src := lx.src[lx.pos:]
	closing := strings.HasPrefix(src, "</")
	nameStart := 1
	if closing {
		nameStart = 2
	}
	i := nameStart
	for i < len(src) && isTagNameChar(src[i]) {
		i++
	}
	name := src[nameStart:i]

	// Scan to ">" honoring quoted attribute values.
	end := -1
	quote := byte(0)
	for j := i; j < len(src); j++ {
		c := src[j]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
		} else if c == '>' {
			end = j
			break
		}
	}
	if end < 0 {
		return false
	}

	attrText := src[i:end]
	selfClosing := strings.HasSuffix(strings.TrimSpace(attrText), "/")
	if selfClosing {
		attrText = strings.TrimSuffix(strings.TrimSpace(attrText), "/")
	}
	line := lx.line
	flush()
	lx.advance(end + 1)

	switch {
	case strings.HasPrefix(name, "x-slot"):
		slotName := "default"
		if k := strings.IndexByte(name, ':'); k >= 0 {
			slotName = name[k+1:]
		} else if !closing {
			// <x-slot name="..."> is the attribute spelling of <x-slot:...>.
			for _, at := range parseAttributes(strings.TrimSpace(attrText)) {
				if at.Name == "name" && at.Value != "" {
					slotName = at.Value
				}
			}
		}
		if closing {
			lx.tokens = append(lx.tokens, token{kind: tokSlotClose, name: slotName, line: line})
		} else {
			lx.tokens = append(lx.tokens, token{kind: tokSlotOpen, name: slotName, line: line})
		}
	case closing:
		lx.tokens = append(lx.tokens, token{kind: tokTagClose, name: strings.TrimPrefix(name, "x-"), line: line})
	default:
		lx.tokens = append(lx.tokens, token{
			kind:        tokTagOpen,
			name:        strings.TrimPrefix(name, "x-"),
			text:        strings.TrimSpace(attrText),
			line:        line,
			selfClosing: selfClosing,
		})
	}
	return true
}

func (lx *lexer) advance(n int) {
	lx.advanceTo(lx.pos + n)
}

func (lx *lexer) advanceTo(to int) {
	if to > len(lx.src) {
		to = len(lx.src)
	}
	lx.line += strings.Count(lx.src[lx.pos:to], "\n")
	lx.pos = to
}

// matchParens returns the index of the ")" matching the "(" at src[open],
// tracking arbitrary nesting and skipping quoted strings.
func matchParens(src string, open int) (int, bool) {
	depth := 0
	quote := byte(0)
	for i := open; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func identLen(s string) int {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && c >= '0' && c <= '9' {
			i++
			continue
		}
		break
	}
	return i
}

func isTagNameChar(c byte) bool {
	return c == '-' || c == '.' || c == ':' || c == '_' ||
		c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
