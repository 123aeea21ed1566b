// Package poll repeatedly invokes an asynchronous predicate at a fixed interval
// until it reports completion, fails, runs out of attempts or is stopped.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrAttemptsExhausted ends a bounded run whose predicate never reported done.
var ErrAttemptsExhausted = errors.New("polling attempts exhausted")

// Func is the polled predicate. done=true ends the run; a non-nil error ends it too.
type Func func(ctx context.Context) (done bool, err error)

type Option func(*Poller)

// WithMaxAttempts bounds a run to n invocations. Zero means unbounded.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) { p.maxAttempts = n }
}

func WithScheduler(s Scheduler) Option {
	return func(p *Poller) { p.sched = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithOnFinish registers f to be called once whenever a run ends on its own
// (done, error or exhaustion). It is not called for Stop or context cancellation.
func WithOnFinish(f func(err error)) Option {
	return func(p *Poller) { p.onFinish = f }
}

// WithObserver registers f to be called before each invocation of the predicate.
func WithObserver(f func(attempt int)) Option {
	return func(p *Poller) { p.observe = f }
}

// Poller drives a single logical polling loop. Each Start begins a new run; timers
// and in-flight invocations left over from an earlier run are ignored.
type Poller struct {
	fn          Func
	interval    time.Duration
	maxAttempts int
	sched       Scheduler
	logger      *slog.Logger
	onFinish    func(error)
	observe     func(int)

	mu       sync.Mutex
	polling  bool
	run      uint64
	timer    Timer
	attempts int
	err      error
	done     chan struct{}
	release  func() bool
}

func New(fn Func, interval time.Duration, opts ...Option) *Poller {
	done := make(chan struct{})
	close(done)
	p := &Poller{
		fn:       fn,
		interval: interval,
		sched:    RealScheduler,
		logger:   slog.Default(),
		done:     done,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling, invoking the predicate immediately. It is a no-op while
// a run is active. Cancelling ctx stops the run.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.polling {
		p.mu.Unlock()
		return
	}
	p.polling = true
	p.run++
	id := p.run
	p.attempts = 0
	p.err = nil
	p.done = make(chan struct{})
	p.release = context.AfterFunc(ctx, func() { p.stopRun(id) })
	p.mu.Unlock()

	go p.tick(ctx, id)
}

// Stop ends the active run and cancels any pending invocation. An invocation
// already in flight completes but schedules nothing further.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLocked()
}

func (p *Poller) IsPolling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polling
}

// Done is closed when the current run ends. It is already closed before the first Start.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Err reports why the last run ended on its own: the predicate's error,
// ErrAttemptsExhausted, or nil.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Attempts is the number of predicate invocations in the current or last run.
func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func (p *Poller) tick(ctx context.Context, id uint64) {
	p.mu.Lock()
	if !p.activeLocked(id) {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.attempts++
	attempt := p.attempts
	p.mu.Unlock()

	if p.observe != nil {
		p.observe(attempt)
	}
	done, err := p.fn(ctx)

	p.mu.Lock()
	if !p.activeLocked(id) {
		p.mu.Unlock()
		return
	}
	finished := true
	var cause error
	switch {
	case err != nil:
		cause = err
		p.logger.Warn("polling stopped on predicate error", "attempt", attempt, "error", err)
	case done:
	case p.maxAttempts > 0 && attempt >= p.maxAttempts:
		cause = ErrAttemptsExhausted
		p.logger.Warn("polling attempts exhausted", "attempts", attempt, "interval", p.interval)
	default:
		finished = false
		p.timer = p.sched.AfterFunc(p.interval, func() { p.tick(ctx, id) })
	}
	if finished {
		p.err = cause
		p.endLocked()
	}
	p.mu.Unlock()

	if finished && p.onFinish != nil {
		p.onFinish(cause)
	}
}

func (p *Poller) stopRun(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run == id {
		p.endLocked()
	}
}

func (p *Poller) activeLocked(id uint64) bool {
	return p.polling && p.run == id
}

func (p *Poller) endLocked() {
	if !p.polling {
		return
	}
	p.polling = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.release != nil {
		p.release()
		p.release = nil
	}
	close(p.done)
}
