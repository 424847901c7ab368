package blade

import (
	"errors"
	"fmt"
)

// Kind classifies template errors so callers can dispatch without
// string-matching messages.
type Kind int

const (
	KindNotFound Kind = iota
	KindSyntax
	KindCycle
	KindMissingProp
	KindAsync
	KindExec
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindSyntax:
		return "syntax error"
	case KindCycle:
		return "cyclic inheritance"
	case KindMissingProp:
		return "missing required prop"
	case KindAsync:
		return "async resolution failed"
	case KindExec:
		return "execution error"
	}
	return "error"
}

// Error is a structured template diagnostic carrying the template name,
// the source line when determinable, and the proximate cause.
type Error struct {
	Template string
	Line     int
	Kind     Kind
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("blade: [%s]", e.Template)
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	msg += ": " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNotFound is returned by resolvers for unknown template paths.
var ErrNotFound = errors.New("blade: template not found")

// ErrRenderFailed is the generic failure returned to callers in release
// mode; the full diagnostic is logged, never exposed.
var ErrRenderFailed = errors.New("blade: render failed")
