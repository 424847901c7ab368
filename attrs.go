package blade

import "strings"

// Attr is one attribute extracted from a component tag: a literal
// name="value" pair, a bare flag, or a :name="expr" expression binding.
type Attr struct {
	Name  string
	Value string
	Bound bool // :name="expr" — Value is an expression
	Bare  bool // name with no value
}

// parseAttributes extracts attributes from the raw text between a tag
// name and its closing ">". Values may be double- or single-quoted;
// unquoted values run to the next whitespace.
func parseAttributes(text string) []Attr {
	var attrs []Attr
	i := 0
	n := len(text)
	for i < n {
		for i < n && isSpace(text[i]) {
			i++
		}
		if i >= n {
			break
		}
		bound := false
		if text[i] == ':' {
			bound = true
			i++
		}
		start := i
		for i < n && !isSpace(text[i]) && text[i] != '=' {
			i++
		}
		name := text[start:i]
		if name == "" {
			i++
			continue
		}
		if i >= n || text[i] != '=' {
			attrs = append(attrs, Attr{Name: name, Bare: true, Bound: bound})
			continue
		}
		i++ // consume "="
		if i >= n {
			attrs = append(attrs, Attr{Name: name, Bound: bound})
			break
		}
		var value string
		if text[i] == '"' || text[i] == '\'' {
			quote := text[i]
			i++
			vstart := i
			for i < n && text[i] != quote {
				i++
			}
			value = text[vstart:i]
			if i < n {
				i++
			}
		} else {
			vstart := i
			for i < n && !isSpace(text[i]) {
				i++
			}
			value = text[vstart:i]
		}
		attrs = append(attrs, Attr{Name: name, Value: value, Bound: bound})
	}
	return attrs
}

// propNames parses a @props / @aware argument list into names and
// optional literal defaults. Both the array spelling
// @props(['size' => 'md', 'title']) and the bare spelling
// @props(size='md', title) are accepted.
func propNames(arg string) []Attr {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "[") && strings.HasSuffix(arg, "]") {
		arg = arg[1 : len(arg)-1]
	}
	var out []Attr
	for _, part := range splitArgs(arg) {
		part = strings.TrimPrefix(strings.TrimSpace(part), "$")
		eq := indexTopLevel(part, '=')
		if eq < 0 {
			out = append(out, Attr{Name: strings.Trim(part, `'" `), Bare: true})
			continue
		}
		name := strings.Trim(part[:eq], `'" `)
		val := part[eq+1:]
		val = strings.TrimPrefix(val, ">") // the 'name' => value arrow
		val = strings.Trim(strings.TrimSpace(val), `'"`)
		out = append(out, Attr{Name: name, Value: val})
	}
	return out
}

func indexTopLevel(s string, sep byte) int {
	quote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
		} else if c == sep {
			return i
		}
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
