package diag

import (
	"ferro/internal/source"
)

// Severity ranks how serious a finding is. Verification fails only on
// SevError; SevWarning covers advisory findings such as interior-mutability
// bypasses, SevInfo everything below that.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

// String returns the upper-case label the renderers print.
func (s Severity) String() string {
	switch s {
	case SevError:
		return "ERROR"
	case SevWarning:
		return "WARNING"
	case SevInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// Note attaches a secondary span to a diagnostic, e.g. the creation site of
// the conflicting borrow.
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

func New(sev Severity, code Code, primary source.Span, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

func NewError(code Code, primary source.Span, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func (d Diagnostic) WithNote(sp source.Span, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Span: sp, Msg: msg})
	return d
}
