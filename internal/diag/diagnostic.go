package diag

import (
	"slices"

	"kalmap/internal/source"
)

type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	// SevError fails the unit it belongs to.
	SevError
)

var severityNames = [...]string{"INFO", "WARNING", "ERROR"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "UNKNOWN"
}

// Note points at a location related to the primary one.
type Note struct {
	Span source.Span
	Msg  string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Notes    []Note
}

func NewError(code Code, primary source.Span, msg string) Diagnostic {
	return Diagnostic{Severity: SevError, Code: code, Message: msg, Primary: primary}
}

func (d Diagnostic) IsError() bool { return d.Severity >= SevError }

// WithNote returns a copy of d with one more note. d itself is unchanged.
func (d Diagnostic) WithNote(sp source.Span, msg string) Diagnostic {
	d.Notes = append(slices.Clip(d.Notes), Note{Span: sp, Msg: msg})
	return d
}
