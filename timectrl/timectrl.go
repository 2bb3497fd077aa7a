package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is the read side of the frame clock. Animation code depends on
// this rather than on TimeController so tests can substitute a fixed clock.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime emits a frame every Tick of wall-clock time, stamped with the
	// wall-clock time elapsed since Start. Late or dropped ticks do not slow
	// the simulation down.
	RealTime Mode = iota
	// Accelerated emits frames back to back, stepping by exactly Tick.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// TimeController stands in for the host render loop: it produces one frame
// per Tick and hands the frame time to every registered listener, in
// registration order, on a single goroutine.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	listeners   []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime moves the clock without emitting a frame.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	tc.mu.Unlock()
}

// AddListener registers a callback invoked on every frame.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Step advances the clock by d and emits one frame synchronously. It is the
// manual counterpart of Start for headless runs and tests.
func (tc *TimeController) Step(d time.Duration) time.Time {
	tc.mu.Lock()
	return tc.emitLocked(tc.currentTime.Add(d))
}

// advanceTo moves the clock to t and emits one frame. The clock never moves
// backwards.
func (tc *TimeController) advanceTo(t time.Time) time.Time {
	tc.mu.Lock()
	if t.Before(tc.currentTime) {
		t = tc.currentTime
	}
	return tc.emitLocked(t)
}

// emitLocked sets the clock, releases tc.mu and notifies listeners outside
// the lock.
func (tc *TimeController) emitLocked(t time.Time) time.Time {
	tc.currentTime = t
	listeners := append([]func(time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
	return t
}

// Start emits frames in a separate goroutine until duration has elapsed in
// simulation time (duration <= 0 runs until ctx is cancelled). It returns a
// channel that is closed when the controller finishes. A non-positive Tick
// emits nothing.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if tc.Tick <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)

		tc.SetTime(tc.StartTime)
		if tc.Mode == RealTime {
			tc.runRealTime(ctx, duration)
			return
		}

		for elapsed := time.Duration(0); duration <= 0 || elapsed < duration; elapsed += tc.Tick {
			if ctx.Err() != nil {
				return
			}
			tc.Step(tc.Tick)
		}
	}()
	return done
}

func (tc *TimeController) runRealTime(ctx context.Context, duration time.Duration) {
	ticker := time.NewTicker(tc.Tick)
	defer ticker.Stop()

	wallStart := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		elapsed := time.Since(wallStart)
		if duration > 0 && elapsed >= duration {
			elapsed = duration
		}
		tc.advanceTo(tc.StartTime.Add(elapsed))
		if duration > 0 && elapsed >= duration {
			return
		}
	}
}
