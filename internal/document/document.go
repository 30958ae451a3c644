package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

// State is the analysis state of a document. It is one of Unanalyzed,
// Parsed, or Analyzed; no other implementations exist.
type State interface {
	state()
	// Name returns a short label for logs and stats
	Name() string
}

// Unanalyzed means no artifacts are valid for the current text
type Unanalyzed struct{}

// Parsed means only a parse tree is valid for the current text
type Parsed struct {
	Parse *analysis.ParseResult
}

// Analyzed means a complete artifact bundle is valid for the current text
type Analyzed struct {
	Bundle *analysis.Bundle
}

func (Unanalyzed) state() {}
func (Parsed) state()     {}
func (Analyzed) state()   {}

func (Unanalyzed) Name() string { return "unanalyzed" }
func (Parsed) Name() string     { return "parsed" }
func (Analyzed) Name() string   { return "analyzed" }

// Revision identifies one exact state of a document's text. Generation
// increases on every open, edit, and invalidation, so re-opening a URI at
// the same version still yields a different revision.
type Revision struct {
	Version    int32
	Generation uint64
}

func (r Revision) String() string {
	return fmt.Sprintf("v%d#%d", r.Version, r.Generation)
}

// Document is an open, editable unit of source text. Values handed out by
// the Store are snapshots; mutating them does not affect the store.
type Document struct {
	URI        string
	Version    int32
	Generation uint64
	Text       string
	ModifiedAt time.Time
	State      State

	// Diagnostics from the last successful analysis. Survives invalidation
	// so that errors do not flicker away while the user types.
	Diagnostics []types.Diagnostic
}

// Revision returns the revision of the text this snapshot holds
func (d *Document) Revision() Revision {
	return Revision{Version: d.Version, Generation: d.Generation}
}

// IsParsed reports whether a parse tree is available for the current text
func (d *Document) IsParsed() bool {
	switch d.State.(type) {
	case Parsed, Analyzed:
		return true
	}
	return false
}

// IsAnalyzed reports whether the bundle matches the current text
func (d *Document) IsAnalyzed() bool {
	_, ok := d.State.(Analyzed)
	return ok
}

// Bundle returns the current artifact bundle, or nil if not analyzed
func (d *Document) Bundle() *analysis.Bundle {
	if a, ok := d.State.(Analyzed); ok {
		return a.Bundle
	}
	return nil
}

// ParseResult returns the parse tree for the current text, if any
func (d *Document) ParseResult() *analysis.ParseResult {
	switch s := d.State.(type) {
	case Parsed:
		return s.Parse
	case Analyzed:
		return s.Bundle.Parse
	}
	return nil
}

// HasErrors reports whether the last diagnostics contain an error
func (d *Document) HasErrors() bool {
	return types.HasErrors(d.Diagnostics)
}

// LineCount returns the number of lines in the text. An empty document
// has one (empty) line.
func (d *Document) LineCount() int {
	return strings.Count(d.Text, "\n") + 1
}

// Path returns the file path derived from the document URI
func (d *Document) Path() string {
	return PathFromURI(d.URI)
}

func (d *Document) clone() *Document {
	c := *d
	c.Diagnostics = types.CloneDiagnostics(d.Diagnostics)
	return &c
}

// invalidate clears every artifact except diagnostics
func (d *Document) invalidate() {
	d.State = Unanalyzed{}
}
