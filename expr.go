package blade

import (
	"strings"
)

// translateExpr rewrites a directive/echo expression into Go template
// pipeline form: $name becomes a scope lookup ($__scope.name), except
// for template-local variables introduced by enclosing loops and for
// the reserved $loop cursor. Lookups go through the $__scope binding
// rather than dot because range actions rebind dot to the loop cursor.
// Single-quoted strings become double-quoted so the common '...'
// spelling keeps working.
func (u *unit) translateExpr(expr string) string {
	var out strings.Builder
	out.Grow(len(expr))
	i := 0
	n := len(expr)
	for i < n {
		c := expr[i]
		switch c {
		case '\'':
			// Convert to a Go string literal.
			j := i + 1
			var lit strings.Builder
			for j < n {
				if expr[j] == '\\' && j+1 < n {
					lit.WriteByte(expr[j+1])
					j += 2
					continue
				}
				if expr[j] == '\'' {
					break
				}
				lit.WriteByte(expr[j])
				j++
			}
			out.WriteByte('"')
			out.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(lit.String()))
			out.WriteByte('"')
			i = j + 1

		case '"', '`':
			// Copy the literal as-is.
			quote := c
			out.WriteByte(c)
			i++
			for i < n {
				out.WriteByte(expr[i])
				if expr[i] == '\\' && quote == '"' && i+1 < n {
					i++
					out.WriteByte(expr[i])
					i++
					continue
				}
				if expr[i] == quote {
					i++
					break
				}
				i++
			}

		case '$':
			l := identLen(expr[i+1:])
			if l == 0 {
				out.WriteByte(c)
				i++
				continue
			}
			name := expr[i+1 : i+1+l]
			switch {
			case name == "loop" || u.isVar(name):
				out.WriteByte('$')
				out.WriteString(name)
			case name == "message":
				out.WriteString("(errorMsg " + scopeVar + " ")
				out.WriteString(quoteGo(u.currentErrorField()))
				out.WriteString(")")
			default:
				out.WriteString(scopeVar)
				out.WriteByte('.')
				out.WriteString(name)
			}
			i += 1 + l

		default:
			out.WriteByte(c)
			i++
		}
	}
	return strings.TrimSpace(out.String())
}

// translateArgs converts a parenthesized comma-separated argument list
// into space-separated pipeline arguments, each translated and wrapped.
func (u *unit) translateArgs(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	var out strings.Builder
	for _, a := range splitArgs(s) {
		out.WriteString(" (" + u.translateExpr(a) + ")")
	}
	return out.String()
}

func quoteGo(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// stringArg extracts a plain string literal argument ('x' or "x"),
// reporting whether the argument really was a literal.
func stringArg(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if len(arg) < 2 {
		return "", false
	}
	q := arg[0]
	if (q == '\'' || q == '"') && arg[len(arg)-1] == q {
		inner := arg[1 : len(arg)-1]
		if !strings.ContainsRune(inner, rune(q)) {
			return inner, true
		}
	}
	return "", false
}
