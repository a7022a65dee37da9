// Package mlerr defines the error kinds shared by the loader, trainer,
// model store and prediction engine.
package mlerr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindIO Kind = iota + 1
	KindParse
	KindSchema
	KindData
	KindConvergence
	KindCorruptModel
	KindNotFound
	KindUnknownLabel
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io error"
	case KindParse:
		return "parse error"
	case KindSchema:
		return "schema error"
	case KindData:
		return "data error"
	case KindConvergence:
		return "convergence warning"
	case KindCorruptModel:
		return "corrupt model"
	case KindNotFound:
		return "not found"
	case KindUnknownLabel:
		return "unknown label"
	default:
		return "error"
	}
}

var (
	ErrIO           = errors.New(KindIO.String())
	ErrParse        = errors.New(KindParse.String())
	ErrSchema       = errors.New(KindSchema.String())
	ErrData         = errors.New(KindData.String())
	ErrConvergence  = errors.New(KindConvergence.String())
	ErrCorruptModel = errors.New(KindCorruptModel.String())
	ErrNotFound     = errors.New(KindNotFound.String())
	ErrUnknownLabel = errors.New(KindUnknownLabel.String())
)

func sentinel(k Kind) error {
	switch k {
	case KindIO:
		return ErrIO
	case KindParse:
		return ErrParse
	case KindSchema:
		return ErrSchema
	case KindData:
		return ErrData
	case KindConvergence:
		return ErrConvergence
	case KindCorruptModel:
		return ErrCorruptModel
	case KindNotFound:
		return ErrNotFound
	case KindUnknownLabel:
		return ErrUnknownLabel
	}
	return nil
}

// Error carries the kind of failure together with the offending input.
// Path, Line and Column are zero when they do not apply.
type Error struct {
	Kind   Kind
	Op     string
	Path   string
	Line   int
	Column string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Op != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Op)
	}
	if e.Path != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&sb, ":%d", e.Line)
		}
	} else if e.Line > 0 {
		fmt.Fprintf(&sb, ": line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&sb, ": column %q", e.Column)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause so that
// errors.Is works for either.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := sentinel(e.Kind); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error found in err's chain,
// or zero if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsWarning reports whether err only signals a recoverable condition.
func IsWarning(err error) bool {
	return err != nil && errors.Is(err, ErrConvergence)
}
