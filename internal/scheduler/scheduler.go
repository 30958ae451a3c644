package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/internal/artifact"
	"github.com/dshills/gocontext-analysis/internal/document"
)

var log = commonlog.GetLogger("gocontext.scheduler")

var (
	// ErrStopped is returned by operations on a scheduler that has been stopped
	ErrStopped = errors.New("scheduler stopped")

	// ErrNotRunning is returned when work is submitted before Start
	ErrNotRunning = errors.New("scheduler not running")
)

const (
	// DefaultDebounce is the delay applied to PriorityNormal jobs
	DefaultDebounce = 500 * time.Millisecond

	// DefaultFastDebounce is the delay applied to PriorityFast jobs
	DefaultFastDebounce = 100 * time.Millisecond
)

// Options configures a Scheduler
type Options struct {
	Store    *document.Store
	Cache    *artifact.Cache
	Parser   analysis.Parser
	Builder  analysis.SymbolBuilder
	Analyzer analysis.AnalyzerFactory

	// Index receives every file's index fragment. Optional.
	Index analysis.ProjectIndex

	Debounce     time.Duration
	FastDebounce time.Duration

	// AnalysisTimeout bounds a single run. Zero means no limit.
	AnalysisTimeout time.Duration
}

// task is a unit of work for the analysis goroutine
type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Scheduler serializes all analysis onto one goroutine
type Scheduler struct {
	opts  Options
	cache *artifact.Cache

	mu      sync.Mutex
	jobs    map[string]*job
	running bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup

	tasks     chan task
	group     singleflight.Group
	broadcast *broadcaster
}

// New validates opts and creates a scheduler. Call Start before use.
func New(opts Options) (*Scheduler, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("scheduler: document store is required")
	case opts.Parser == nil:
		return nil, errors.New("scheduler: parser is required")
	case opts.Builder == nil:
		return nil, errors.New("scheduler: symbol builder is required")
	case opts.Analyzer == nil:
		return nil, errors.New("scheduler: analyzer factory is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.FastDebounce <= 0 {
		opts.FastDebounce = DefaultFastDebounce
	}
	if opts.Cache == nil {
		cache, err := artifact.New(artifact.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to create artifact cache: %w", err)
		}
		opts.Cache = cache
	}

	return &Scheduler{
		opts:      opts,
		cache:     opts.Cache,
		jobs:      make(map[string]*job),
		tasks:     make(chan task),
		broadcast: newBroadcaster(),
	}, nil
}

// Cache returns the artifact cache used by the pipeline
func (s *Scheduler) Cache() *artifact.Cache {
	return s.cache
}

// Start launches the analysis goroutine. A stopped scheduler cannot be
// restarted.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.running {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.stopCh = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop cancels every job, waits for the analysis goroutine to finish its
// current task, and closes all subscriptions once they have been drained.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.stopped = true
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	for uri, j := range s.jobs {
		j.cancel()
		delete(s.jobs, uri)
	}
	s.cancel()
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.broadcast.close()
	log.Infof("scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.tasks:
			t.done <- s.runTask(t)
		}
	}
}

// runTask runs fn with a context that ends when either the submitter's
// context or the scheduler does
func (s *Scheduler) runTask(t task) error {
	ctx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if err := ctx.Err(); err != nil {
		return err
	}
	return t.fn(ctx)
}

// Submit runs fn on the analysis goroutine and waits for it. Project index
// mutations from outside the pipeline go through here.
func (s *Scheduler) Submit(ctx context.Context, fn func(context.Context) error) error {
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return ErrStopped
	case !s.running:
		s.mu.Unlock()
		return ErrNotRunning
	}
	stopCh := s.stopCh
	s.mu.Unlock()

	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case s.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-stopCh:
		return ErrStopped
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule queues an analysis of uri, cancelling any job already pending or
// running for it. It is a no-op unless the scheduler is running.
func (s *Scheduler) Schedule(uri string, priority Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancelLocked(uri)

	j := newJob(s.ctx, uri, priority)
	s.jobs[uri] = j

	s.wg.Add(1)
	go s.debounce(j, s.delay(priority))
}

// ScheduleImmediate schedules uri with no debounce
func (s *Scheduler) ScheduleImmediate(uri string) {
	s.Schedule(uri, PriorityImmediate)
}

func (s *Scheduler) delay(priority Priority) time.Duration {
	switch priority {
	case PriorityImmediate:
		return 0
	case PriorityFast:
		return s.opts.FastDebounce
	default:
		return s.opts.Debounce
	}
}

func (s *Scheduler) debounce(j *job, delay time.Duration) {
	defer s.wg.Done()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-j.ctx.Done():
			timer.Stop()
			return
		}
	}

	t := task{
		ctx:  j.ctx,
		fn:   func(ctx context.Context) error { return s.runJob(ctx, j) },
		done: make(chan error, 1),
	}
	select {
	case s.tasks <- t:
	case <-j.ctx.Done():
	}
}

// runJob executes on the analysis goroutine
func (s *Scheduler) runJob(ctx context.Context, j *job) error {
	s.mu.Lock()
	if s.jobs[j.uri] != j || j.cancelled() {
		s.mu.Unlock()
		return nil
	}
	j.state = jobRunning
	s.mu.Unlock()
	defer s.finish(j)
	recordQueueDelay(ctx, j.priority, time.Since(j.scheduledAt))

	doc := s.opts.Store.Get(j.uri)
	if doc == nil {
		return nil
	}
	rev := doc.Revision()

	onParsed := func(parse *analysis.ParseResult) {
		_ = s.commit(j, func() error {
			return s.opts.Store.SetParsed(doc.URI, rev, parse)
		})
	}

	bundle, cached, err := s.pipeline(ctx, doc, onParsed)
	if err != nil {
		s.reportFailure(ctx, doc, err)
		return err
	}

	err = s.commit(j, func() error {
		if err := s.opts.Store.SetAnalyzed(doc.URI, rev, bundle); err != nil {
			return err
		}
		s.emit(doc.URI, bundle)
		return nil
	})
	if err != nil {
		log.Debugf("discarding analysis of %s@%d: %v", doc.URI, doc.Version, err)
		return nil
	}
	recordAnalysis(ctx, bundle.Duration, cached)
	return nil
}

var errSuperseded = errors.New("job superseded")

// commit runs fn under the scheduler mutex only if j is still the live job
// for its URI
func (s *Scheduler) commit(j *job, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[j.uri] != j || j.cancelled() {
		return errSuperseded
	}
	return fn()
}

// finish removes j from the table unless it has already been replaced
func (s *Scheduler) finish(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[j.uri] == j {
		delete(s.jobs, j.uri)
	}
	j.cancel()
}

func (s *Scheduler) emit(uri string, bundle *analysis.Bundle) {
	s.broadcast.publish(DiagnosticsUpdate{
		URI:         uri,
		Version:     bundle.Version,
		Diagnostics: bundle.Diagnostics,
	})
}

func (s *Scheduler) reportFailure(ctx context.Context, doc *document.Document, err error) {
	if errors.Is(err, context.Canceled) {
		log.Debugf("analysis of %s@%d cancelled", doc.URI, doc.Version)
		return
	}
	stage := "pipeline"
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	recordFailure(ctx, stage)
	log.Errorf("analysis of %s@%d failed: %v", doc.URI, doc.Version, err)
}

// AnalyzeSync analyzes uri on the analysis goroutine and waits for the
// result. It returns nil if the document is not open. A failed run yields
// the document's previous diagnostics rather than an error. Concurrent
// callers for the same revision share one run; the shared run is bounded
// by the scheduler, not by any one caller, so a caller giving up only
// abandons its own wait.
func (s *Scheduler) AnalyzeSync(ctx context.Context, uri string) (*analysis.Result, error) {
	doc := s.opts.Store.Get(uri)
	if doc == nil {
		return nil, nil
	}

	shared := context.WithoutCancel(ctx)
	key := uri + "@" + doc.Revision().String()
	ch := s.group.DoChan(key, func() (interface{}, error) {
		var result *analysis.Result
		err := s.Submit(shared, func(ctx context.Context) error {
			result = s.analyzeNow(ctx, uri)
			return nil
		})
		return result, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result, _ := res.Val.(*analysis.Result)
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// analyzeNow runs on the analysis goroutine
func (s *Scheduler) analyzeNow(ctx context.Context, uri string) *analysis.Result {
	doc := s.opts.Store.Get(uri)
	if doc == nil {
		return nil
	}

	rev := doc.Revision()
	onParsed := func(parse *analysis.ParseResult) {
		_ = s.opts.Store.SetParsed(doc.URI, rev, parse)
	}
	bundle, cached, err := s.pipeline(ctx, doc, onParsed)
	if err != nil {
		s.reportFailure(ctx, doc, err)
		return &analysis.Result{URI: uri, Version: doc.Version, Diagnostics: doc.Diagnostics}
	}

	s.mu.Lock()
	err = s.opts.Store.SetAnalyzed(doc.URI, rev, bundle)
	if err == nil {
		s.emit(doc.URI, bundle)
	}
	s.mu.Unlock()

	switch {
	case errors.Is(err, document.ErrDocumentNotFound):
		return nil
	case err != nil:
		log.Debugf("analysis of %s@%d not stored: %v", doc.URI, doc.Version, err)
	default:
		recordAnalysis(ctx, bundle.Duration, cached)
	}
	return bundle.Result(uri)
}

// EnsureAnalyzed returns the stored results when the document has not been
// edited since its last analysis, and otherwise analyzes it synchronously
func (s *Scheduler) EnsureAnalyzed(ctx context.Context, uri string) (*analysis.Result, error) {
	doc := s.opts.Store.Get(uri)
	if doc == nil {
		return nil, nil
	}
	if bundle := doc.Bundle(); bundle != nil {
		return bundle.Result(uri), nil
	}
	return s.AnalyzeSync(ctx, uri)
}

// Cancel drops any pending or running job for uri
func (s *Scheduler) Cancel(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(uri)
}

// CancelAll drops every job
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uri := range s.jobs {
		s.cancelLocked(uri)
	}
}

func (s *Scheduler) cancelLocked(uri string) {
	j, ok := s.jobs[uri]
	if !ok {
		return
	}
	j.cancel()
	delete(s.jobs, uri)
	recordCancellation(context.Background(), j.priority)
	log.Debugf("cancelled %s %s job %s for %s after %s", j.state, j.priority, j.id, uri, time.Since(j.scheduledAt))
}

// IsPending reports whether uri has a debouncing or running job
func (s *Scheduler) IsPending(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[uri]
	return ok
}

// PendingCount returns the number of debouncing or running jobs
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Subscribe returns a new subscription to diagnostics updates
func (s *Scheduler) Subscribe() *Subscription {
	return s.broadcast.subscribe()
}

// OnDiagnostics registers a listener called for every update, in order,
// on a goroutine owned by the listener. The returned func removes it.
func (s *Scheduler) OnDiagnostics(fn func(DiagnosticsUpdate)) func() {
	return s.broadcast.listen(fn)
}
