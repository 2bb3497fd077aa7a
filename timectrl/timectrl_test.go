package timectrl

import (
	"context"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStepNotifiesListenersInOrder(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 16*time.Millisecond, Accelerated)

	var order []string
	var seen time.Time
	tc.AddListener(func(now time.Time) {
		order = append(order, "first")
		seen = now
	})
	tc.AddListener(func(time.Time) { order = append(order, "second") })

	got := tc.Step(100 * time.Millisecond)
	want := start.Add(100 * time.Millisecond)
	if !got.Equal(want) || !seen.Equal(want) || !tc.Now().Equal(want) {
		t.Fatalf("Step returned %v, listener saw %v, Now %v; want %v", got, seen, tc.Now(), want)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("listener order = %v", order)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	frames := 0
	tc.AddListener(func(time.Time) { frames++ })

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if frames != 3 {
		t.Fatalf("frames = %d, want 3", frames)
	}
}

func TestTimeControllerStartStopsOnCancel(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Millisecond, RealTime)

	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("controller did not stop after cancel")
	}
}

func TestTimeControllerRealTimeFollowsWallClockWithSlowListener(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 10*time.Millisecond, RealTime)
	tc.AddListener(func(time.Time) { time.Sleep(40 * time.Millisecond) })

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	wallStart := time.Now()
	<-tc.Start(ctx, 0)
	wall := time.Since(wallStart)
	sim := tc.Now().Sub(start)

	// The last frame is stamped before its listener sleeps, so sim time may
	// trail by about one listener call plus one tick.
	if lag := wall - sim; lag > 150*time.Millisecond {
		t.Fatalf("sim clock lags wall clock: wall %s, sim %s", wall, sim)
	}
}

func TestTimeControllerRealTimeStopsAtDuration(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, RealTime)

	select {
	case <-tc.Start(context.Background(), 30*time.Millisecond):
	case <-time.After(time.Second):
		t.Fatalf("controller did not stop at duration")
	}
	if got, want := tc.Now(), start.Add(30*time.Millisecond); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestTimeControllerStartWithoutTickEmitsNothing(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 0, Accelerated)

	frames := 0
	tc.AddListener(func(time.Time) { frames++ })

	select {
	case <-tc.Start(context.Background(), time.Second):
	case <-time.After(time.Second):
		t.Fatalf("controller with zero tick did not return")
	}
	if frames != 0 {
		t.Fatalf("frames = %d, want 0", frames)
	}
}
