// Package jobs tracks long running backend jobs (summaries, quiz generation)
// to a terminal state on top of the poll package.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"studynotes-client/internal/domain"
	"studynotes-client/internal/poll"
)

// State is the lifecycle of a tracked job.
type State int

const (
	Idle State = iota
	Pending
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatusFunc fetches the current status of a job.
type StatusFunc func(ctx context.Context, jobID string) (domain.JobStatus, error)

// ResultFunc fetches the result of a job once it reported success.
type ResultFunc[T any] func(ctx context.Context, jobID string) (T, error)

// Observer receives tracker activity, e.g. for metrics.
type Observer interface {
	ObservePoll(policy string)
	ObserveOutcome(policy string, state State)
}

// Snapshot is a point-in-time copy of a tracker. Result is set only when
// State is Succeeded and Error only when State is Failed.
type Snapshot[T any] struct {
	JobID    string           `json:"jobId"`
	State    State            `json:"state"`
	Status   domain.JobStatus `json:"status,omitempty"`
	Result   *T               `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
	Attempts int              `json:"attempts"`
	Cause    error            `json:"-"`
}

// Terminal reports whether the job reached Succeeded or Failed.
func (s Snapshot[T]) Terminal() bool {
	return s.State == Succeeded || s.State == Failed
}

type options struct {
	sched    poll.Scheduler
	logger   *slog.Logger
	observer Observer
}

type Option func(*options)

func WithScheduler(s poll.Scheduler) Option {
	return func(o *options) { o.sched = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Tracker polls one job until it reaches a terminal status, then fetches its result.
type Tracker[T any] struct {
	jobID       string
	fetchStatus StatusFunc
	fetchResult ResultFunc[T]
	policy      Policy
	opts        options
	resolved    bool

	mu          sync.Mutex
	run         uint64
	state       State
	status      domain.JobStatus
	result      *T
	errMsg      string
	cause       error
	attempts    int
	poller      *poll.Poller
	release     func() bool
	done        chan struct{}
	subscribers map[chan Snapshot[T]]struct{}
}

func NewTracker[T any](jobID string, fetchStatus StatusFunc, fetchResult ResultFunc[T], policy Policy, opts ...Option) *Tracker[T] {
	o := options{sched: poll.RealScheduler, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	done := make(chan struct{})
	close(done)
	return &Tracker[T]{
		jobID:       jobID,
		fetchStatus: fetchStatus,
		fetchResult: fetchResult,
		policy:      policy,
		opts:        o,
		done:        done,
		subscribers: make(map[chan Snapshot[T]]struct{}),
	}
}

// Resolved returns a tracker that already succeeded with result. Start is a no-op on it;
// callers use it when the result is cached and no polling is needed.
func Resolved[T any](jobID string, result T) *Tracker[T] {
	t := NewTracker[T](jobID, nil, nil, Policy{Name: "cached"})
	t.resolved = true
	t.state = Succeeded
	t.result = &result
	return t
}

func (t *Tracker[T]) JobID() string { return t.jobID }

// Start begins polling. It is a no-op while pending or on a resolved tracker;
// starting a finished tracker retries the job from scratch. Cancelling ctx stops it.
func (t *Tracker[T]) Start(ctx context.Context) {
	t.mu.Lock()
	if t.resolved || t.state == Pending {
		t.mu.Unlock()
		return
	}
	t.run++
	run := t.run
	t.state = Pending
	t.status = ""
	t.result = nil
	t.errMsg = ""
	t.cause = nil
	t.attempts = 0
	t.done = make(chan struct{})
	t.poller = poll.New(
		func(ctx context.Context) (bool, error) { return t.check(ctx, run) },
		t.policy.Interval,
		poll.WithMaxAttempts(t.policy.MaxAttempts),
		poll.WithScheduler(t.opts.sched),
		poll.WithLogger(t.opts.logger),
		poll.WithOnFinish(func(err error) {
			if err != nil {
				t.fail(run, t.policy.timeoutMessage(), fmt.Errorf("%s: %w", t.policy.Name, err))
			}
		}),
	)
	t.release = context.AfterFunc(ctx, func() { t.stopRun(run) })
	p := t.poller
	t.broadcastLocked()
	t.mu.Unlock()

	t.opts.logger.Debug("tracking job", "job_id", t.jobID, "policy", t.policy.Name)
	p.Start(ctx)
}

// Stop cancels polling. A pending job goes back to Idle; terminal results are kept.
// Cancelling the ctx given to Start has the same effect, even mid-fetch.
func (t *Tracker[T]) Stop() {
	t.mu.Lock()
	run := t.run
	t.mu.Unlock()
	t.stopRun(run)
}

func (t *Tracker[T]) stopRun(run uint64) {
	t.mu.Lock()
	if t.run != run {
		t.mu.Unlock()
		return
	}
	p := t.poller
	if t.state == Pending {
		t.run++
		t.state = Idle
		t.endLocked()
	}
	t.mu.Unlock()

	if p != nil {
		p.Stop()
	}
}

// IsPolling reports whether a status check is scheduled or in flight.
func (t *Tracker[T]) IsPolling() bool {
	t.mu.Lock()
	p := t.poller
	t.mu.Unlock()
	return p != nil && p.IsPolling()
}

// Done is closed once the current run is terminal or stopped.
func (t *Tracker[T]) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Wait blocks until the current run ends or ctx is done.
func (t *Tracker[T]) Wait(ctx context.Context) (Snapshot[T], error) {
	select {
	case <-t.Done():
		return t.Snapshot(), nil
	case <-ctx.Done():
		return t.Snapshot(), ctx.Err()
	}
}

func (t *Tracker[T]) Snapshot() Snapshot[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot on every change, starting with the
// current one. The caller must invoke the returned cancel function to avoid leaks.
func (t *Tracker[T]) Subscribe() (<-chan Snapshot[T], func()) {
	ch := make(chan Snapshot[T], 8)

	t.mu.Lock()
	t.subscribers[ch] = struct{}{}
	ch <- t.snapshotLocked()
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		if _, ok := t.subscribers[ch]; ok {
			delete(t.subscribers, ch)
			close(ch)
		}
		t.mu.Unlock()
	}
	return ch, cancel
}

func (t *Tracker[T]) check(ctx context.Context, run uint64) (bool, error) {
	if t.opts.observer != nil {
		t.opts.observer.ObservePoll(t.policy.Name)
	}
	status, err := t.fetchStatus(ctx, t.jobID)
	if err != nil {
		if ctx.Err() != nil {
			t.stopRun(run)
			return true, nil
		}
		t.fail(run, t.policy.fetchErrorMessage(err), err)
		return true, nil
	}
	if !t.observe(run, status) {
		return true, nil
	}

	switch t.policy.Classify(status) {
	case Success:
		result, err := t.fetchResult(ctx, t.jobID)
		if err != nil {
			if ctx.Err() != nil {
				t.stopRun(run)
				return true, nil
			}
			t.fail(run, t.policy.fetchErrorMessage(err), err)
			return true, nil
		}
		t.succeed(run, result)
		return true, nil
	case Failure:
		t.fail(run, t.policy.failureMessage(), fmt.Errorf("%s: job %s reported status %q", t.policy.Name, t.jobID, status))
		return true, nil
	default:
		t.opts.logger.Debug("job still running", "job_id", t.jobID, "status", status, "policy", t.policy.Name)
		return false, nil
	}
}

// observe records a status for run and reports whether the run is still current.
func (t *Tracker[T]) observe(run uint64, status domain.JobStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run != run || t.state != Pending {
		return false
	}
	t.attempts++
	t.status = status
	t.broadcastLocked()
	return true
}

func (t *Tracker[T]) succeed(run uint64, result T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run != run || t.state != Pending {
		return
	}
	t.state = Succeeded
	t.result = &result
	t.endLocked()
	t.opts.logger.Info("job succeeded", "job_id", t.jobID, "policy", t.policy.Name, "attempts", t.attempts)
}

func (t *Tracker[T]) fail(run uint64, msg string, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run != run || t.state != Pending {
		return
	}
	t.state = Failed
	t.errMsg = msg
	t.cause = cause
	t.endLocked()
	t.opts.logger.Warn("job failed", "job_id", t.jobID, "policy", t.policy.Name, "error", cause)
}

func (t *Tracker[T]) endLocked() {
	if t.release != nil {
		t.release()
		t.release = nil
	}
	close(t.done)
	if t.opts.observer != nil {
		t.opts.observer.ObserveOutcome(t.policy.Name, t.state)
	}
	t.broadcastLocked()
}

func (t *Tracker[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		JobID:    t.jobID,
		State:    t.state,
		Status:   t.status,
		Result:   t.result,
		Error:    t.errMsg,
		Attempts: t.attempts,
		Cause:    t.cause,
	}
}

func (t *Tracker[T]) broadcastLocked() {
	snap := t.snapshotLocked()
	for ch := range t.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest queued snapshot so a slow reader always sees the latest one.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
