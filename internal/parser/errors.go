package parser

import "fmt"

// ParseError reports a structured report that is not well-formed. It is fatal
// for the document it occurred in; batch callers continue with other inputs.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
