package analysis

import "github.com/dshills/gocontext-analysis/pkg/types"

// SuppressCascades drops secondary diagnostics whose range overlaps any
// syntax-error range. Syntax-error diagnostics themselves always survive.
func SuppressCascades(diags []types.Diagnostic, syntaxErrors []types.Range) []types.Diagnostic {
	if len(syntaxErrors) == 0 {
		return diags
	}
	out := make([]types.Diagnostic, 0, len(diags))
	for _, d := range diags {
		if d.IsSyntaxError() || !overlapsAny(d.Range, syntaxErrors) {
			out = append(out, d)
		}
	}
	return out
}

func overlapsAny(r types.Range, ranges []types.Range) bool {
	for _, other := range ranges {
		if r.Overlaps(other) {
			return true
		}
	}
	return false
}
