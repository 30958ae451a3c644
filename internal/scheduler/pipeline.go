package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/internal/artifact"
	"github.com/dshills/gocontext-analysis/internal/document"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

// ErrPanic marks a run that was aborted by a panic in a collaborator
var ErrPanic = errors.New("analysis panicked")

// StageError reports which pipeline stage failed
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// pipeline analyzes one document snapshot and returns the resulting bundle.
// It merges the file's index fragment but never writes to the store; the
// caller decides whether the result may be committed. onParsed, if set, is
// called once a fresh parse is available.
func (s *Scheduler) pipeline(ctx context.Context, doc *document.Document, onParsed func(*analysis.ParseResult)) (bundle *analysis.Bundle, cached bool, err error) {
	ctx, span := startAnalyzeSpan(ctx, doc.URI, doc.Version)
	defer span.End()

	if s.opts.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.AnalysisTimeout)
		defer cancel()
	}

	start := time.Now()
	stage := "cache"
	defer func() {
		if p := recover(); p != nil {
			bundle, cached = nil, false
			err = &StageError{Stage: stage, Err: fmt.Errorf("%w: %v", ErrPanic, p)}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	key := doc.URI
	filePath := doc.Path()
	hash := artifact.Hash(doc.Text)

	// Identical text was analyzed before (an undo, or a re-open)
	if prev, ok := s.cache.Analyses().GetHash(key, hash); ok {
		reused := *prev
		reused.Version = doc.Version
		reused.Diagnostics = types.CloneDiagnostics(prev.Diagnostics)
		reused.Duration = time.Since(start)
		stage = "merge"
		s.merge(ctx, reused.FileIndex)
		return &reused, true, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	stage = "parse"
	parse, ok := s.cache.Parses().GetHash(key, hash)
	if !ok {
		parse, err = s.opts.Parser.Parse(ctx, filePath, doc.Text)
		if err != nil {
			return nil, false, &StageError{Stage: stage, Err: err}
		}
		s.cache.Parses().PutHash(key, hash, parse)
	}
	if onParsed != nil {
		onParsed(parse)
	}

	stage = "symbols"
	symbols, ok := s.cache.Symbols().GetHash(key, hash)
	if !ok {
		symbols, err = s.opts.Builder.Build(parse.Tree, filePath)
		if err != nil {
			return nil, false, &StageError{Stage: stage, Err: err}
		}
		s.cache.Symbols().PutHash(key, hash, symbols)
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	stage = "analyze"
	actx := analysis.NewContext(filePath, parse, symbols, s.opts.Index)
	if err := s.opts.Analyzer(actx).Analyze(ctx); err != nil {
		return nil, false, &StageError{Stage: stage, Err: err}
	}
	diagnostics := collectDiagnostics(parse.SyntaxErrors, analysis.SuppressCascades(actx.Diagnostics(), actx.SyntaxErrors))

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	stage = "merge"
	fragment := analysis.NewFileIndex(symbols, hash)
	s.merge(ctx, fragment)

	bundle = &analysis.Bundle{
		Parse:       parse,
		Symbols:     symbols,
		Context:     actx,
		FileIndex:   fragment,
		Diagnostics: diagnostics,
		ContentHash: hash,
		Version:     doc.Version,
		Duration:    time.Since(start),
	}
	s.cache.Analyses().PutHash(key, hash, bundle)
	return bundle, false, nil
}

// merge folds a fragment into the project index. A failed merge degrades
// cross-file resolution but not this document's own results.
func (s *Scheduler) merge(ctx context.Context, fragment *analysis.FileIndex) {
	if s.opts.Index == nil || fragment == nil {
		return
	}
	if err := s.opts.Index.UpdateFile(ctx, fragment); err != nil {
		recordFailure(ctx, "merge")
		log.Warningf("failed to merge index fragment for %s: %v", fragment.FilePath, err)
	}
}

// collectDiagnostics returns syntax errors plus the surviving semantic
// diagnostics, ordered by position
func collectDiagnostics(syntax, semantic []types.Diagnostic) []types.Diagnostic {
	out := make([]types.Diagnostic, 0, len(syntax)+len(semantic))
	out = append(out, syntax...)
	for _, d := range semantic {
		if !d.IsSyntaxError() {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Range.Start.Before(out[j].Range.Start)
	})
	return out
}
