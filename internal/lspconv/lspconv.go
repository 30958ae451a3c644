// Package lspconv converts engine diagnostics and ranges to and from the
// editor-protocol shapes in go.lsp.dev/protocol.
package lspconv

import (
	"go.lsp.dev/protocol"

	"github.com/dshills/gocontext-analysis/internal/scheduler"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

// ToProtocolPosition converts a position. Negative components clamp to zero.
func ToProtocolPosition(p types.Position) protocol.Position {
	return protocol.Position{
		Line:      uint32(max(p.Line, 0)),
		Character: uint32(max(p.Character, 0)),
	}
}

// FromProtocolPosition converts a protocol position
func FromProtocolPosition(p protocol.Position) types.Position {
	return types.Position{Line: int(p.Line), Character: int(p.Character)}
}

// ToProtocolRange converts a range
func ToProtocolRange(r types.Range) protocol.Range {
	return protocol.Range{
		Start: ToProtocolPosition(r.Start),
		End:   ToProtocolPosition(r.End),
	}
}

// FromProtocolRange converts a protocol range
func FromProtocolRange(r protocol.Range) types.Range {
	return types.Range{
		Start: FromProtocolPosition(r.Start),
		End:   FromProtocolPosition(r.End),
	}
}

// ToProtocolSeverity maps a severity. Unknown values become errors so
// they are never hidden by a client filter.
func ToProtocolSeverity(s types.Severity) protocol.DiagnosticSeverity {
	switch s {
	case types.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case types.SeverityInformation:
		return protocol.DiagnosticSeverityInformation
	case types.SeverityHint:
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityError
	}
}

// FromProtocolSeverity maps a protocol severity back
func FromProtocolSeverity(s protocol.DiagnosticSeverity) types.Severity {
	switch s {
	case protocol.DiagnosticSeverityWarning:
		return types.SeverityWarning
	case protocol.DiagnosticSeverityInformation:
		return types.SeverityInformation
	case protocol.DiagnosticSeverityHint:
		return types.SeverityHint
	default:
		return types.SeverityError
	}
}

// ToProtocolDiagnostic converts one diagnostic. Unused imports carry the
// unnecessary tag so editors can fade them.
func ToProtocolDiagnostic(d types.Diagnostic) protocol.Diagnostic {
	out := protocol.Diagnostic{
		Range:    ToProtocolRange(d.Range),
		Severity: ToProtocolSeverity(d.Severity),
		Source:   d.Source,
		Message:  d.Message,
	}
	if d.Code != "" {
		out.Code = d.Code
	}
	if d.Code == types.CodeUnusedImport {
		out.Tags = []protocol.DiagnosticTag{protocol.DiagnosticTagUnnecessary}
	}
	return out
}

// ToProtocolDiagnostics converts a list. The result is never nil, since
// an empty list is how a client learns that diagnostics were cleared.
func ToProtocolDiagnostics(diags []types.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, ToProtocolDiagnostic(d))
	}
	return out
}

// FromProtocolDiagnostic converts a protocol diagnostic. Non-string codes
// are dropped.
func FromProtocolDiagnostic(d protocol.Diagnostic) types.Diagnostic {
	code, _ := d.Code.(string)
	return types.Diagnostic{
		Range:    FromProtocolRange(d.Range),
		Severity: FromProtocolSeverity(d.Severity),
		Code:     code,
		Source:   d.Source,
		Message:  d.Message,
	}
}

// PublishDiagnostics builds the notification params for an update
func PublishDiagnostics(update scheduler.DiagnosticsUpdate) *protocol.PublishDiagnosticsParams {
	return &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(update.URI),
		Version:     uint32(max(update.Version, 0)),
		Diagnostics: ToProtocolDiagnostics(update.Diagnostics),
	}
}
