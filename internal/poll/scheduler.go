package poll

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the call was still pending.
	Stop() bool
}

// Scheduler runs f once after d on its own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler is backed by time.AfterFunc.
var RealScheduler Scheduler = realScheduler{}

// FakeScheduler is a virtual clock for tests. Timers fire only when Advance moves
// the clock past their deadline.
type FakeScheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Duration
	seq     int
	pending map[int]*fakeTimer
}

type fakeTimer struct {
	s        *FakeScheduler
	id       int
	deadline time.Duration
	f        func()
}

func NewFakeScheduler() *FakeScheduler {
	s := &FakeScheduler{pending: make(map[int]*fakeTimer)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &fakeTimer{s: s, id: s.seq, deadline: s.now + d, f: f}
	s.pending[t.id] = t
	s.cond.Broadcast()
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.pending[t.id]; !ok {
		return false
	}
	delete(t.s.pending, t.id)
	t.s.cond.Broadcast()
	return true
}

// Pending returns the number of timers that have not fired or been stopped.
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// BlockUntil waits until exactly n timers are pending.
func (s *FakeScheduler) BlockUntil(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) != n {
		s.cond.Wait()
	}
}

// Advance moves the clock forward by d and fires every timer that became due,
// each on its own goroutine, in deadline order.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*fakeTimer
	for id, t := range s.pending {
		if t.deadline <= s.now {
			due = append(due, t)
			delete(s.pending, id)
		}
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline != due[j].deadline {
			return due[i].deadline < due[j].deadline
		}
		return due[i].id < due[j].id
	})
	for _, t := range due {
		go t.f()
	}
}
