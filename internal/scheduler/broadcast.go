package scheduler

import (
	"sync"

	"github.com/dshills/gocontext-analysis/pkg/types"
)

// DiagnosticsUpdate is emitted once per completed, non-cancelled run
type DiagnosticsUpdate struct {
	URI         string             `json:"uri"`
	Version     int32              `json:"version"`
	Diagnostics []types.Diagnostic `json:"diagnostics"`
}

// receiver owns an unbounded FIFO and a pump goroutine that hands queued
// updates to deliver. push never blocks.
type receiver struct {
	mu      sync.Mutex
	queue   []DiagnosticsUpdate
	closing bool

	wake chan struct{}
	done chan struct{}
	once sync.Once

	deliver func(DiagnosticsUpdate) bool
}

func newReceiver(deliver func(DiagnosticsUpdate) bool) *receiver {
	return &receiver{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		deliver: deliver,
	}
}

func (r *receiver) push(u DiagnosticsUpdate) {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return
	}
	u.Diagnostics = types.CloneDiagnostics(u.Diagnostics)
	r.queue = append(r.queue, u)
	r.mu.Unlock()
	r.signal()
}

func (r *receiver) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// drain asks the pump to deliver what is queued and then exit
func (r *receiver) drain() {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()
	r.signal()
}

// stop exits the pump immediately, discarding the queue
func (r *receiver) stop() {
	r.once.Do(func() { close(r.done) })
}

func (r *receiver) next() (DiagnosticsUpdate, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return DiagnosticsUpdate{}, false, r.closing
	}
	u := r.queue[0]
	r.queue[0] = DiagnosticsUpdate{}
	r.queue = r.queue[1:]
	return u, true, false
}

func (r *receiver) run(onExit func()) {
	defer onExit()
	for {
		select {
		case <-r.wake:
		case <-r.done:
			return
		}
		for {
			u, ok, closing := r.next()
			if closing {
				return
			}
			if !ok {
				break
			}
			if !r.deliver(u) {
				return
			}
		}
	}
}

// Subscription receives every DiagnosticsUpdate published after it was
// created, in order. C is closed after Close or after the scheduler stops
// and the backlog has been read.
type Subscription struct {
	C <-chan DiagnosticsUpdate

	r *receiver
	b *broadcaster
}

// Close unsubscribes and closes C. Undelivered updates are discarded.
func (s *Subscription) Close() {
	s.b.remove(s.r)
	s.r.stop()
}

type broadcaster struct {
	mu        sync.Mutex
	receivers map[*receiver]struct{}
	closed    bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{receivers: make(map[*receiver]struct{})}
}

func (b *broadcaster) subscribe() *Subscription {
	ch := make(chan DiagnosticsUpdate)
	var r *receiver
	r = newReceiver(func(u DiagnosticsUpdate) bool {
		select {
		case ch <- u:
			return true
		case <-r.done:
			return false
		}
	})
	sub := &Subscription{C: ch, r: r, b: b}
	b.add(r, func() { close(ch) })
	return sub
}

func (b *broadcaster) listen(fn func(DiagnosticsUpdate)) func() {
	r := newReceiver(func(u DiagnosticsUpdate) bool {
		defer func() {
			if p := recover(); p != nil {
				log.Errorf("diagnostics listener panicked: %v", p)
			}
		}()
		fn(u)
		return true
	})
	b.add(r, func() {})
	return func() {
		b.remove(r)
		r.stop()
	}
}

func (b *broadcaster) add(r *receiver, onExit func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		r.stop()
		go r.run(onExit)
		return
	}
	b.receivers[r] = struct{}{}
	go r.run(onExit)
}

func (b *broadcaster) remove(r *receiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.receivers, r)
}

func (b *broadcaster) publish(u DiagnosticsUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for r := range b.receivers {
		r.push(u)
	}
}

// close lets every receiver finish its backlog and exit
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for r := range b.receivers {
		r.drain()
	}
	b.receivers = make(map[*receiver]struct{})
}
