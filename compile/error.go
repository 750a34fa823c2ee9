package compile

import (
	"fmt"
	"strings"

	"github.com/jcorbin/runevm/source"
)

// ErrorKind classifies one compile-time diagnostic.
type ErrorKind int

const (
	ParseError ErrorKind = iota
	ResolveError
	VisibilityError
	AmbiguousItem
	MetaConflict
	ImportCycle
	IrBudgetExceeded
	ModNotFound
	DuplicateKey
	UnsupportedExpr
)

func (k ErrorKind) String() string {
	switch k {
	case ParseError:
		return "ParseError"
	case ResolveError:
		return "ResolveError"
	case VisibilityError:
		return "VisibilityError"
	case AmbiguousItem:
		return "AmbiguousItem"
	case MetaConflict:
		return "MetaConflict"
	case ImportCycle:
		return "ImportCycle"
	case IrBudgetExceeded:
		return "IrBudgetExceeded"
	case ModNotFound:
		return "ModNotFound"
	case DuplicateKey:
		return "DuplicateKey"
	default:
		return "UnsupportedExpr"
	}
}

// Error is one compile diagnostic, carrying the source location it
// pertains to.
type Error struct {
	Kind     ErrorKind
	Location source.Location
	Mess     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Mess)
}

// ErrorList accumulates every Error raised during one compilation; once
// Max is reached, Add still records the error but tells the caller to
// stop (spec.md §7's recoverable-error cap, the same idea as the parser's
// own maxErrors).
type ErrorList struct {
	Errors []*Error
	Max    int
}

// Add appends err, reporting whether the caller should keep compiling
// (false once Max is reached).
func (l *ErrorList) Add(err *Error) bool {
	l.Errors = append(l.Errors, err)
	if l.Max > 0 && len(l.Errors) >= l.Max {
		return false
	}
	return true
}

// HasErrors reports whether any diagnostic was recorded.
func (l *ErrorList) HasErrors() bool { return len(l.Errors) > 0 }

func (l *ErrorList) Error() string {
	parts := make([]string, len(l.Errors))
	for i, e := range l.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "\n")
}
