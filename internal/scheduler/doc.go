// Package scheduler decides when open documents are analyzed.
//
// Every analysis runs on one dedicated goroutine. Edits schedule a job per
// URI; a job waits out its debounce delay on its own goroutine and then
// queues onto the analysis goroutine. Scheduling a URI that already has a
// job cancels the old job first, so a burst of edits collapses into a
// single run over the final text.
//
// The job table is guarded by the scheduler mutex. Cancellation and the
// final write-back are both decided under that mutex: a job that has been
// cancelled never reaches Store.SetAnalyzed and never emits an update.
// The store in turn refuses any write-back whose document revision is no
// longer current, which covers a re-open at the same version.
//
// Completed runs are fanned out as DiagnosticsUpdate values to
// Subscriptions and OnDiagnostics listeners. Each receiver has its own
// unbounded queue, so a slow reader neither loses updates nor stalls the
// analysis goroutine.
package scheduler
