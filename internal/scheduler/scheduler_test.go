package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/internal/document"
	"github.com/dshills/gocontext-analysis/internal/parser"
	"github.com/dshills/gocontext-analysis/internal/semantic"
	"github.com/dshills/gocontext-analysis/internal/stdlib"
	"github.com/dshills/gocontext-analysis/internal/symbols"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

const waitFor = 2 * time.Second

// stubParser treats the text itself as the tree. Every '@' is a syntax
// error. gate, if set, runs before parsing and may block.
type stubParser struct {
	calls    atomic.Int32
	inflight atomic.Int32
	maxSeen  atomic.Int32

	mu     sync.Mutex
	texts  []string
	gate   func(ctx context.Context, text string) error
	panics bool
}

func (p *stubParser) Parse(ctx context.Context, _ string, text string) (*analysis.ParseResult, error) {
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		seen := p.maxSeen.Load()
		if n <= seen || p.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	p.calls.Add(1)

	p.mu.Lock()
	p.texts = append(p.texts, text)
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		if err := gate(ctx, text); err != nil {
			return nil, err
		}
	}
	if strings.Contains(text, "panic") {
		panic("parser blew up")
	}

	result := &analysis.ParseResult{Tree: text}
	for i, r := range text {
		if r == '@' {
			result.SyntaxErrors = append(result.SyntaxErrors, types.Diagnostic{
				Range:    types.NewRange(0, i, 0, i+1),
				Severity: types.SeverityError,
				Code:     types.CodeSyntaxError,
				Message:  "unexpected @",
			})
		}
	}
	return result, nil
}

func (p *stubParser) setGate(gate func(ctx context.Context, text string) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate = gate
}

func (p *stubParser) parsed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

type stubBuilder struct{}

func (stubBuilder) Build(tree analysis.Tree, filePath string) (*analysis.SymbolTable, error) {
	return analysis.NewSymbolTable(filePath, "p", nil, nil), nil
}

// stubAnalyzer reports every '?' and '@' as an unresolved reference and
// fails on "fail"
type stubAnalyzer struct {
	actx *analysis.Context
}

func (a stubAnalyzer) Analyze(ctx context.Context) error {
	text := a.actx.Tree.(string)
	if strings.Contains(text, "fail") {
		return errors.New("analyzer failed")
	}
	for i, r := range text {
		if r == '?' || r == '@' {
			a.actx.Report(types.Diagnostic{
				Range:    types.NewRange(0, i, 0, i+1),
				Severity: types.SeverityError,
				Code:     types.CodeUnresolvedReference,
				Message:  "undefined",
			})
		}
	}
	return nil
}

// recordingIndex counts merged fragments
type recordingIndex struct {
	mu        sync.Mutex
	fragments []*analysis.FileIndex
}

func (r *recordingIndex) UpdateFile(_ context.Context, f *analysis.FileIndex) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fragments = append(r.fragments, f)
	return nil
}

func (r *recordingIndex) LookupSymbol(context.Context, string, string, string, string) (bool, error) {
	return false, nil
}

func (r *recordingIndex) Stdlib() *stdlib.Index {
	idx, _ := stdlib.Default()
	return idx
}

func (r *recordingIndex) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fragments)
}

type fixture struct {
	store  *document.Store
	parser *stubParser
	index  *recordingIndex
	sched  *Scheduler
}

func setup(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		store:  document.NewStore(),
		parser: &stubParser{},
		index:  &recordingIndex{},
	}
	opts := Options{
		Store:        f.store,
		Parser:       f.parser,
		Builder:      stubBuilder{},
		Analyzer:     func(actx *analysis.Context) analysis.Analyzer { return stubAnalyzer{actx: actx} },
		Index:        f.index,
		Debounce:     50 * time.Millisecond,
		FastDebounce: 10 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&opts)
	}
	sched, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, sched.Start())
	t.Cleanup(sched.Stop)
	f.sched = sched
	return f
}

func next(t *testing.T, sub *Subscription) DiagnosticsUpdate {
	t.Helper()
	select {
	case u, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return u
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for diagnostics update")
	}
	return DiagnosticsUpdate{}
}

func assertQuiet(t *testing.T, sub *Subscription, d time.Duration) {
	t.Helper()
	select {
	case u := <-sub.C:
		t.Fatalf("unexpected update: %+v", u)
	case <-time.After(d):
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Store: document.NewStore(), Parser: &stubParser{}, Builder: stubBuilder{}})
	assert.Error(t, err)

	s, err := New(Options{
		Store:    document.NewStore(),
		Parser:   &stubParser{},
		Builder:  stubBuilder{},
		Analyzer: func(actx *analysis.Context) analysis.Analyzer { return stubAnalyzer{actx: actx} },
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, s.opts.Debounce)
	assert.Equal(t, DefaultFastDebounce, s.opts.FastDebounce)
	assert.NotNil(t, s.Cache())
}

func TestScenarioA_ImmediateAnalysisEmitsOnce(t *testing.T) {
	f := setup(t)
	sub := f.sched.Subscribe()
	defer sub.Close()

	f.store.Open("a.txt", "x", 1)
	f.sched.ScheduleImmediate("a.txt")

	u := next(t, sub)
	assert.Equal(t, "a.txt", u.URI)
	assert.Equal(t, int32(1), u.Version)
	assert.Empty(t, u.Diagnostics)
	assertQuiet(t, sub, 100*time.Millisecond)

	doc := f.store.Get("a.txt")
	assert.True(t, doc.IsAnalyzed())
	assert.False(t, f.sched.IsPending("a.txt"))
}

func TestScenarioB_UnresolvedReference(t *testing.T) {
	store := document.NewStore()
	sched, err := New(Options{
		Store:    store,
		Parser:   parser.New(),
		Builder:  symbols.New(),
		Analyzer: semantic.Factory,
	})
	require.NoError(t, err)
	require.NoError(t, sched.Start())
	defer sched.Stop()

	store.Open("b.txt", "package p\n\nfunc f() int {\n\treturn missing\n}\n", 1)
	result, err := sched.AnalyzeSync(context.Background(), "b.txt")
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, result.Diagnostics, 1)
	d := result.Diagnostics[0]
	assert.Equal(t, types.CodeUnresolvedReference, d.Code)
	assert.Equal(t, types.NewRange(3, 8, 3, 15), d.Range)
	assert.Equal(t, result.Diagnostics, store.Get("b.txt").Diagnostics)
}

func TestDebounceCollapsesBurst(t *testing.T) {
	f := setup(t)
	sub := f.sched.Subscribe()
	defer sub.Close()

	f.store.Open("u", "v1", 1)
	for v := int32(2); v <= 10; v++ {
		require.NoError(t, f.store.Update("u", strings.Repeat("?", int(v)), v))
		f.sched.Schedule("u", PriorityNormal)
	}
	assert.True(t, f.sched.IsPending("u"))

	u := next(t, sub)
	assert.Equal(t, int32(10), u.Version)
	assert.Len(t, u.Diagnostics, 10)
	assertQuiet(t, sub, 150*time.Millisecond)

	assert.Equal(t, int32(1), f.parser.calls.Load())
	assert.Equal(t, []string{strings.Repeat("?", 10)}, f.parser.parsed())
}

func TestCancelledJobNeverWritesBack(t *testing.T) {
	f := setup(t)
	sub := f.sched.Subscribe()
	defer sub.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	f.parser.setGate(func(ctx context.Context, text string) error {
		if text == "old" {
			close(started)
			<-release
		}
		return nil
	})

	f.store.Open("u", "old", 1)
	f.sched.ScheduleImmediate("u")
	<-started

	// Superseded while the first run is inside the parser
	require.NoError(t, f.store.Update("u", "new?", 2))
	f.sched.ScheduleImmediate("u")
	close(release)

	u := next(t, sub)
	assert.Equal(t, int32(2), u.Version)
	assert.Len(t, u.Diagnostics, 1)
	assertQuiet(t, sub, 100*time.Millisecond)

	doc := f.store.Get("u")
	require.NotNil(t, doc.Bundle())
	assert.Equal(t, int32(2), doc.Bundle().Version)
}

func TestAtMostOneRunInFlight(t *testing.T) {
	f := setup(t)
	f.parser.setGate(func(ctx context.Context, text string) error {
		time.Sleep(2 * time.Millisecond)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		uri := string(rune('a' + i))
		f.store.Open(uri, uri, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				f.sched.Schedule(uri, PriorityImmediate)
				_, _ = f.sched.AnalyzeSync(context.Background(), uri)
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return f.sched.PendingCount() == 0 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, int32(1), f.parser.maxSeen.Load())
}

func TestDiagnosticsSurviveEdit(t *testing.T) {
	f := setup(t)
	f.store.Open("u", "a?", 1)

	result, err := f.sched.AnalyzeSync(context.Background(), "u")
	require.NoError(t, err)
	require.Len(t, result.Diagnostics, 1)

	require.NoError(t, f.store.Update("u", "clean", 2))
	doc := f.store.Get("u")
	assert.False(t, doc.IsAnalyzed())
	assert.Equal(t, result.Diagnostics, doc.Diagnostics)
}

func TestCascadeSuppression(t *testing.T) {
	f := setup(t)
	f.store.Open("u", "?@", 1)

	result, err := f.sched.AnalyzeSync(context.Background(), "u")
	require.NoError(t, err)
	require.Len(t, result.Diagnostics, 2)

	assert.Equal(t, types.CodeUnresolvedReference, result.Diagnostics[0].Code)
	assert.Equal(t, 0, result.Diagnostics[0].Range.Start.Character)
	assert.Equal(t, types.CodeSyntaxError, result.Diagnostics[1].Code)
	assert.Equal(t, 1, result.Diagnostics[1].Range.Start.Character)
}

func TestFailuresAreAbsorbed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"parser panic", "panic"},
		{"analyzer error", "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			sub := f.sched.Subscribe()
			defer sub.Close()

			f.store.Open("u", "??", 1)
			_, err := f.sched.AnalyzeSync(context.Background(), "u")
			require.NoError(t, err)
			next(t, sub)

			require.NoError(t, f.store.Update("u", tt.text, 2))
			result, err := f.sched.AnalyzeSync(context.Background(), "u")
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Nil(t, result.Bundle)
			assert.Len(t, result.Diagnostics, 2, "previous diagnostics stay visible")
			assertQuiet(t, sub, 50*time.Millisecond)

			// The scheduler keeps serving other documents
			f.store.Open("other", "?", 1)
			result, err = f.sched.AnalyzeSync(context.Background(), "other")
			require.NoError(t, err)
			assert.Len(t, result.Diagnostics, 1)
		})
	}
}

func TestAnalyzeSync_NotOpen(t *testing.T) {
	f := setup(t)
	result, err := f.sched.AnalyzeSync(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = f.sched.EnsureAnalyzed(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestEnsureAnalyzed_FastPath(t *testing.T) {
	f := setup(t)
	f.store.Open("u", "?", 1)

	first, err := f.sched.EnsureAnalyzed(context.Background(), "u")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int32(1), f.parser.calls.Load())

	second, err := f.sched.EnsureAnalyzed(context.Background(), "u")
	require.NoError(t, err)
	assert.Same(t, first.Bundle, second.Bundle)
	assert.Equal(t, int32(1), f.parser.calls.Load())

	require.NoError(t, f.store.Update("u", "??", 2))
	third, err := f.sched.EnsureAnalyzed(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, int32(2), third.Version)
	assert.Equal(t, int32(2), f.parser.calls.Load())
}

func TestUndoReusesCachedBundle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.store.Open("u", "a?", 1)
	_, err := f.sched.AnalyzeSync(ctx, "u")
	require.NoError(t, err)

	// An edit and its undo land before the next analysis
	require.NoError(t, f.store.Update("u", "b", 2))
	require.NoError(t, f.store.Update("u", "a?", 3))
	result, err := f.sched.AnalyzeSync(ctx, "u")
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.parser.calls.Load())
	assert.Equal(t, int32(3), result.Version)
	assert.Len(t, result.Diagnostics, 1)
	assert.Equal(t, int32(3), f.store.Get("u").Bundle().Version)
	assert.Equal(t, 2, f.index.count(), "every run merges its fragment")
}

func TestCloseDuringRun(t *testing.T) {
	f := setup(t)
	sub := f.sched.Subscribe()
	defer sub.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	f.parser.setGate(func(ctx context.Context, text string) error {
		close(started)
		<-release
		return nil
	})

	f.store.Open("u", "?", 1)
	f.sched.ScheduleImmediate("u")
	<-started

	f.store.Close("u")
	f.sched.Cancel("u")
	close(release)

	assertQuiet(t, sub, 100*time.Millisecond)
	assert.Nil(t, f.store.Get("u"))
	assert.False(t, f.sched.IsPending("u"))
}

func TestCancelAndPending(t *testing.T) {
	f := setup(t, func(o *Options) { o.Debounce = time.Hour })

	f.store.Open("a", "a", 1)
	f.store.Open("b", "b", 1)
	f.sched.Schedule("a", PriorityNormal)
	f.sched.Schedule("b", PriorityNormal)
	f.sched.Schedule("b", PriorityNormal)

	assert.True(t, f.sched.IsPending("a"))
	assert.Equal(t, 2, f.sched.PendingCount())

	f.sched.Cancel("a")
	assert.False(t, f.sched.IsPending("a"))
	assert.Equal(t, 1, f.sched.PendingCount())

	f.sched.CancelAll()
	assert.Equal(t, 0, f.sched.PendingCount())
	assert.Equal(t, int32(0), f.parser.calls.Load())
}

func TestAnalysisTimeout(t *testing.T) {
	f := setup(t, func(o *Options) { o.AnalysisTimeout = 20 * time.Millisecond })
	f.parser.setGate(func(ctx context.Context, text string) error {
		<-ctx.Done()
		return ctx.Err()
	})

	f.store.Open("u", "slow", 1)
	result, err := f.sched.AnalyzeSync(context.Background(), "u")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Nil(t, result.Bundle)
	assert.False(t, f.store.Get("u").IsAnalyzed())
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	f := setup(t)
	slow := f.sched.Subscribe()
	defer slow.Close()

	var mu sync.Mutex
	var heard []int32
	remove := f.sched.OnDiagnostics(func(u DiagnosticsUpdate) {
		mu.Lock()
		defer mu.Unlock()
		heard = append(heard, u.Version)
	})
	defer remove()

	f.store.Open("u", "x", 1)
	for v := int32(1); v <= 3; v++ {
		if v > 1 {
			require.NoError(t, f.store.Update("u", strings.Repeat("x", int(v)), v))
		}
		_, err := f.sched.AnalyzeSync(context.Background(), "u")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(heard) == 3
	}, waitFor, 5*time.Millisecond)

	for v := int32(1); v <= 3; v++ {
		assert.Equal(t, v, next(t, slow).Version)
	}
}

func TestSubmit(t *testing.T) {
	s, err := New(Options{
		Store:    document.NewStore(),
		Parser:   &stubParser{},
		Builder:  stubBuilder{},
		Analyzer: func(actx *analysis.Context) analysis.Analyzer { return stubAnalyzer{actx: actx} },
	})
	require.NoError(t, err)

	err = s.Submit(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, s.Start())
	sentinel := errors.New("boom")
	err = s.Submit(context.Background(), func(context.Context) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)

	ran := false
	require.NoError(t, s.Submit(context.Background(), func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Submit(ctx, func(context.Context) error { return nil }), context.Canceled)

	s.Stop()
}

func TestStop(t *testing.T) {
	f := setup(t, func(o *Options) { o.Debounce = time.Hour })
	sub := f.sched.Subscribe()

	f.store.Open("u", "x", 1)
	f.sched.Schedule("u", PriorityNormal)
	f.sched.Stop()

	assert.Equal(t, 0, f.sched.PendingCount())
	f.sched.Schedule("u", PriorityImmediate)
	assert.False(t, f.sched.IsPending("u"))

	assert.ErrorIs(t, f.sched.Submit(context.Background(), func(context.Context) error { return nil }), ErrStopped)
	assert.ErrorIs(t, f.sched.Start(), ErrStopped)

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("subscription not closed after stop")
	}

	// Stop is idempotent
	f.sched.Stop()
}

func TestPriorityString(t *testing.T) {
	assert.Equal(t, "normal", PriorityNormal.String())
	assert.Equal(t, "fast", PriorityFast.String())
	assert.Equal(t, "immediate", PriorityImmediate.String())
	assert.Equal(t, "unknown", Priority(42).String())
}

// holdText blocks the parser on text until release is closed. started is
// closed the first time text reaches the parser.
func holdText(f *fixture, text string) (started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	f.parser.setGate(func(ctx context.Context, got string) error {
		if got != text {
			return nil
		}
		once.Do(func() { close(started) })
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return started, release
}

func TestAnalyzeSync_ReopenDuringRunIsNotStored(t *testing.T) {
	f := setup(t)
	started, release := holdText(f, "a?")

	f.store.Open("u", "a?", 1)
	done := make(chan error, 1)
	go func() {
		_, err := f.sched.AnalyzeSync(context.Background(), "u")
		done <- err
	}()
	<-started

	// Same version, different text
	f.store.Open("u", "clean", 1)
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("AnalyzeSync did not return")
	}

	doc := f.store.Get("u")
	assert.Equal(t, "clean", doc.Text)
	assert.False(t, doc.IsAnalyzed())
	assert.Empty(t, doc.Diagnostics)

	result, err := f.sched.EnsureAnalyzed(context.Background(), "u")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Diagnostics)
	assert.Equal(t, []string{"a?", "clean"}, f.parser.parsed())
	assert.True(t, f.store.Get("u").IsAnalyzed())
}

func TestScheduledRunAfterReopenIsNotStored(t *testing.T) {
	f := setup(t)
	sub := f.sched.Subscribe()
	defer sub.Close()
	started, release := holdText(f, "a?")

	f.store.Open("u", "a?", 1)
	f.sched.ScheduleImmediate("u")
	<-started

	f.store.Open("u", "clean", 1)
	close(release)

	assertQuiet(t, sub, 100*time.Millisecond)
	require.Eventually(t, func() bool { return f.sched.PendingCount() == 0 }, waitFor, 5*time.Millisecond)

	doc := f.store.Get("u")
	assert.False(t, doc.IsParsed())
	assert.Empty(t, doc.Diagnostics)
}

func TestAnalyzeSync_SharedRunOutlivesCancelledCaller(t *testing.T) {
	f := setup(t)
	started, release := holdText(f, "a?")
	f.store.Open("u", "a?", 1)

	ctx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	first := make(chan error, 1)
	go func() {
		_, err := f.sched.AnalyzeSync(ctx1, "u")
		first <- err
	}()
	<-started

	type outcome struct {
		result *analysis.Result
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		result, err := f.sched.AnalyzeSync(context.Background(), "u")
		second <- outcome{result, err}
	}()

	cancel1()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case out := <-second:
		require.NoError(t, out.err)
		require.NotNil(t, out.result)
		require.NotNil(t, out.result.Bundle)
		assert.Len(t, out.result.Diagnostics, 1)
	case <-time.After(waitFor):
		t.Fatal("second caller did not return")
	}
	assert.True(t, f.store.Get("u").IsAnalyzed())
}

func TestJobStateString(t *testing.T) {
	assert.Equal(t, "debouncing", jobDebouncing.String())
	assert.Equal(t, "running", jobRunning.String())

	j := newJob(context.Background(), "u", PriorityFast)
	defer j.cancel()
	assert.Equal(t, jobDebouncing, j.state)
	assert.False(t, j.scheduledAt.IsZero())
}
