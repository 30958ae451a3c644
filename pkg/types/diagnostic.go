package types

// Severity classifies a diagnostic. Values match the editor protocol.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

// String returns the lowercase name of the severity
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Diagnostic codes produced by the default Go collaborators
const (
	CodeSyntaxError          = "syntax-error"
	CodeUnresolvedReference  = "unresolved-reference"
	CodeUnusedImport         = "unused-import"
	CodeDuplicateDeclaration = "duplicate-declaration"
	CodeUnknownMember        = "unknown-member"
)

// Diagnostic is a reported issue with a source range and message
type Diagnostic struct {
	Range    Range
	Severity Severity
	Code     string
	Source   string // Producer, e.g. "parser" or "semantic"
	Message  string
}

// IsError returns true for error-severity diagnostics
func (d *Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// IsSyntaxError returns true if the diagnostic came from the parser
func (d *Diagnostic) IsSyntaxError() bool {
	return d.Code == CodeSyntaxError
}

// Validate checks the diagnostic is well formed
func (d *Diagnostic) Validate() error {
	if d.Message == "" {
		return ErrEmptyMessage
	}
	if d.Severity < SeverityError || d.Severity > SeverityHint {
		return ErrInvalidSeverity
	}
	if d.Range.End.Before(d.Range.Start) {
		return ErrInvalidRange
	}
	return nil
}

// CloneDiagnostics returns a copy of the slice so callers cannot alias
// the stored list. A nil input yields nil.
func CloneDiagnostics(diags []Diagnostic) []Diagnostic {
	if diags == nil {
		return nil
	}
	out := make([]Diagnostic, len(diags))
	copy(out, diags)
	return out
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for i := range diags {
		if diags[i].IsError() {
			return true
		}
	}
	return false
}
