package spec

import "fmt"

// ParseError reports a spec document that is not valid for its declared
// format. Line and Column are 1-based and zero when unknown.
type ParseError struct {
	Format string
	Offset int64
	Line   int
	Column int
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("parse %s: line %d, column %d: %s", e.Format, e.Line, e.Column, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("parse %s: line %d: %s", e.Format, e.Line, e.Msg)
	default:
		return fmt.Sprintf("parse %s: %s", e.Format, e.Msg)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports a declared format other than json, yaml or yml.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format == "" {
		return "unsupported spec format: no format given (expected json, yaml or yml)"
	}
	return fmt.Sprintf("unsupported spec format %q (expected json, yaml or yml)", e.Format)
}
