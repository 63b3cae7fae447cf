package sandbox

import (
	"sync"
	"time"
)

// Timer scheduling limits. Delays outside these bounds are clamped, not
// rejected, so a misbehaving extension degrades instead of erroring.
const (
	// MaxOneShotDelay caps how far out a one-shot timer may fire.
	MaxOneShotDelay = 10 * time.Second
	// MinRepeatInterval floors the period of a repeating timer.
	MinRepeatInterval = 100 * time.Millisecond
)

// TimerHandle cancels a scheduled timer.
type TimerHandle interface {
	Stop()
}

// timerSet tracks every live timer an extension scheduled so they can
// all be stopped when the extension is disabled, quarantined or
// unregistered.
type timerSet struct {
	mu      sync.Mutex
	nextID  uint64
	timers  map[uint64]TimerHandle
	stopped bool

	// guard wraps every timer callback, for panic containment.
	guard func(fn func())
}

func newTimerSet(guard func(fn func())) *timerSet {
	if guard == nil {
		guard = func(fn func()) { fn() }
	}
	return &timerSet{
		timers: make(map[uint64]TimerHandle),
		guard:  guard,
	}
}

// After schedules fn once after delay, clamped to MaxOneShotDelay.
func (ts *timerSet) After(delay time.Duration, fn func()) TimerHandle {
	if delay > MaxOneShotDelay {
		delay = MaxOneShotDelay
	}
	if delay < 0 {
		delay = 0
	}

	ts.mu.Lock()
	if ts.stopped {
		ts.mu.Unlock()
		return nopHandle{}
	}
	ts.nextID++
	id := ts.nextID
	timer := time.AfterFunc(delay, func() {
		ts.remove(id)
		ts.guard(fn)
	})
	handle := &oneShotHandle{set: ts, id: id, timer: timer}
	ts.timers[id] = handle
	ts.mu.Unlock()
	return handle
}

// Every schedules fn repeatedly at interval, clamped up to
// MinRepeatInterval.
func (ts *timerSet) Every(interval time.Duration, fn func()) TimerHandle {
	if interval < MinRepeatInterval {
		interval = MinRepeatInterval
	}

	ts.mu.Lock()
	if ts.stopped {
		ts.mu.Unlock()
		return nopHandle{}
	}
	ts.nextID++
	id := ts.nextID
	handle := &repeatHandle{
		set:    ts,
		id:     id,
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	ts.timers[id] = handle
	ts.mu.Unlock()

	go func() {
		for {
			select {
			case <-handle.ticker.C:
				ts.guard(fn)
			case <-handle.done:
				return
			}
		}
	}()
	return handle
}

// StopAll cancels every live timer and rejects new scheduling until
// Reset is called.
func (ts *timerSet) StopAll() {
	ts.mu.Lock()
	handles := make([]TimerHandle, 0, len(ts.timers))
	for _, h := range ts.timers {
		handles = append(handles, h)
	}
	ts.timers = make(map[uint64]TimerHandle)
	ts.stopped = true
	ts.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

// Reset re-enables scheduling after StopAll.
func (ts *timerSet) Reset() {
	ts.mu.Lock()
	ts.stopped = false
	ts.mu.Unlock()
}

// Len returns the number of live timers.
func (ts *timerSet) Len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.timers)
}

func (ts *timerSet) remove(id uint64) {
	ts.mu.Lock()
	delete(ts.timers, id)
	ts.mu.Unlock()
}

type oneShotHandle struct {
	set   *timerSet
	id    uint64
	timer *time.Timer
}

func (h *oneShotHandle) Stop() {
	h.timer.Stop()
	h.set.remove(h.id)
}

type repeatHandle struct {
	set    *timerSet
	id     uint64
	ticker *time.Ticker
	once   sync.Once
	done   chan struct{}
}

func (h *repeatHandle) Stop() {
	h.once.Do(func() {
		h.ticker.Stop()
		close(h.done)
		h.set.remove(h.id)
	})
}

type nopHandle struct{}

func (nopHandle) Stop() {}
