package document

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

var (
	// ErrDocumentNotFound is returned when an operation names a URI that is not open
	ErrDocumentNotFound = errors.New("document not found")

	// ErrStaleVersion is returned when a write-back targets a version the
	// document has already moved past
	ErrStaleVersion = errors.New("stale document version")
)

var log = commonlog.GetLogger("gocontext.document")

// Stats aggregates the state of every open document
type Stats struct {
	Open       int `json:"open"`
	Parsed     int `json:"parsed"`
	Analyzed   int `json:"analyzed"`
	Lines      int `json:"lines"`
	Characters int `json:"characters"`
}

// Store is the thread-safe registry of open documents
type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document
	gen  uint64
	now  func() time.Time
}

// NewStore creates an empty document store
func NewStore() *Store {
	return &Store{
		docs: make(map[string]*Document),
		now:  time.Now,
	}
}

// Open registers a document. Re-opening an already open URI replaces the
// previous entry.
func (s *Store) Open(uri, text string, version int32) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[uri]; exists {
		log.Warningf("document %s re-opened at version %d, replacing previous entry", uri, version)
	}

	doc := &Document{
		URI:        uri,
		Version:    version,
		Generation: s.nextGeneration(),
		Text:       text,
		ModifiedAt: s.now(),
		State:      Unanalyzed{},
	}
	s.docs[uri] = doc
	return doc.clone()
}

// Close removes a document and returns its final state, or nil if it was
// not open.
func (s *Store) Close(uri string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		return nil
	}
	delete(s.docs, uri)
	return doc
}

// Get returns a snapshot of the document, or nil if it is not open
func (s *Store) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if doc, ok := s.docs[uri]; ok {
		return doc.clone()
	}
	return nil
}

// Lookup is Get that fails with ErrDocumentNotFound
func (s *Store) Lookup(uri string) (*Document, error) {
	if doc := s.Get(uri); doc != nil {
		return doc, nil
	}
	return nil, fmt.Errorf("%s: %w", uri, ErrDocumentNotFound)
}

// Update replaces the full text of a document
func (s *Store) Update(uri, text string, version int32) error {
	return s.mutate(uri, version, func(string) string { return text })
}

// ApplyEdit replaces a line/character range (UTF-16 characters) with text
func (s *Store) ApplyEdit(uri string, rng types.Range, text string, version int32) error {
	return s.mutate(uri, version, func(old string) string {
		start, end := RangeFor(old, rng)
		return splice(old, start, end, text)
	})
}

// ApplyOffsetEdit replaces the span [start, end) addressed by UTF-16 code
// unit offsets from the start of the document.
func (s *Store) ApplyOffsetEdit(uri string, start, end int, text string, version int32) error {
	return s.mutate(uri, version, func(old string) string {
		from := ByteOffset(old, start)
		to := ByteOffset(old, end)
		if to < from {
			to = from
		}
		return splice(old, from, to, text)
	})
}

// ApplyChanges applies an ordered batch of changes and sets the resulting
// version once.
func (s *Store) ApplyChanges(uri string, version int32, changes []Change) error {
	return s.mutate(uri, version, func(old string) string {
		text := old
		for _, c := range changes {
			text = applyChange(text, c)
		}
		return text
	})
}

func (s *Store) mutate(uri string, version int32, edit func(string) string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		return fmt.Errorf("%s: %w", uri, ErrDocumentNotFound)
	}
	if version <= doc.Version {
		log.Debugf("document %s version did not increase (%d -> %d)", uri, doc.Version, version)
	}

	doc.Text = edit(doc.Text)
	doc.Version = version
	doc.Generation = s.nextGeneration()
	doc.ModifiedAt = s.now()
	doc.invalidate()
	return nil
}

// nextGeneration must be called with the write lock held
func (s *Store) nextGeneration() uint64 {
	s.gen++
	return s.gen
}

// Invalidate drops the artifacts of an open document without changing its
// text or version. Diagnostics are kept until the next analysis replaces
// them. Runs that read the document before the call can no longer write
// back.
func (s *Store) Invalidate(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		return fmt.Errorf("%s: %w", uri, ErrDocumentNotFound)
	}
	doc.Generation = s.nextGeneration()
	doc.invalidate()
	return nil
}

// SetParsed records a parse tree for the given revision. A document that is
// already analyzed keeps its bundle.
func (s *Store) SetParsed(uri string, rev Revision, parse *analysis.ParseResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.fenced(uri, rev)
	if err != nil {
		return err
	}
	if _, ok := doc.State.(Unanalyzed); ok {
		doc.State = Parsed{Parse: parse}
	}
	return nil
}

// SetAnalyzed installs a complete artifact bundle and its diagnostics. The
// write-back is refused with ErrStaleVersion if the document has been
// edited, re-opened, or invalidated since the bundle's input was read.
func (s *Store) SetAnalyzed(uri string, rev Revision, bundle *analysis.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.fenced(uri, rev)
	if err != nil {
		return err
	}
	doc.State = Analyzed{Bundle: bundle}
	doc.Diagnostics = types.CloneDiagnostics(bundle.Diagnostics)
	return nil
}

// fenced returns the live document if it is open at exactly rev.
// Caller must hold the write lock.
func (s *Store) fenced(uri string, rev Revision) (*Document, error) {
	doc, ok := s.docs[uri]
	if !ok {
		return nil, fmt.Errorf("%s: %w", uri, ErrDocumentNotFound)
	}
	if cur := doc.Revision(); cur != rev {
		return nil, fmt.Errorf("%s at %s, write-back for %s: %w", uri, cur, rev, ErrStaleVersion)
	}
	return doc, nil
}

// URIs lists every open document, sorted
func (s *Store) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Unparsed lists documents that have no parse tree for their current text
func (s *Store) Unparsed() []string {
	return s.filter(func(d *Document) bool { return !d.IsParsed() })
}

// ParsedNotAnalyzed lists documents with a parse tree but no full analysis
func (s *Store) ParsedNotAnalyzed() []string {
	return s.filter(func(d *Document) bool {
		_, ok := d.State.(Parsed)
		return ok
	})
}

// WithErrors lists documents with at least one error-severity diagnostic
func (s *Store) WithErrors() []string {
	return s.filter((*Document).HasErrors)
}

func (s *Store) filter(match func(*Document) bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var uris []string
	for uri, doc := range s.docs {
		if match(doc) {
			uris = append(uris, uri)
		}
	}
	sort.Strings(uris)
	return uris
}

// Stats returns aggregate counts over all open documents
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Open: len(s.docs)}
	for _, doc := range s.docs {
		if doc.IsParsed() {
			st.Parsed++
		}
		if doc.IsAnalyzed() {
			st.Analyzed++
		}
		st.Lines += doc.LineCount()
		st.Characters += types.UTF16Len(doc.Text)
	}
	return st
}
