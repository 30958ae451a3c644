package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Priority selects the debounce delay applied before a job runs
type Priority int

const (
	// PriorityNormal is used for keystrokes
	PriorityNormal Priority = iota
	// PriorityFast is a short debounce for latency-sensitive edits
	PriorityFast
	// PriorityImmediate skips the debounce, used on open and save
	PriorityImmediate
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityFast:
		return "fast"
	case PriorityImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

type jobState int

const (
	jobDebouncing jobState = iota
	jobRunning
)

func (s jobState) String() string {
	if s == jobRunning {
		return "running"
	}
	return "debouncing"
}

// job is one scheduled analysis of a URI. It lives in the job table from
// Schedule until it completes or is superseded.
type job struct {
	id          uuid.UUID
	uri         string
	priority    Priority
	state       jobState
	scheduledAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func newJob(parent context.Context, uri string, priority Priority) *job {
	ctx, cancel := context.WithCancel(parent)
	return &job{
		id:          uuid.New(),
		uri:         uri,
		priority:    priority,
		state:       jobDebouncing,
		scheduledAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (j *job) cancelled() bool {
	return j.ctx.Err() != nil
}
