package sync

import (
	stdsync "sync"
	"testing"
	"time"
)

type refreshCounter struct {
	mu    stdsync.Mutex
	count int
}

func (c *refreshCounter) bump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *refreshCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	var counter refreshCounter
	d := NewRefreshDebouncer(20*time.Millisecond, 40*time.Millisecond, counter.bump)
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Notify("thread/item/delta")
	}
	time.Sleep(100 * time.Millisecond)
	if got := counter.value(); got != 1 {
		t.Fatalf("refreshes = %d, want 1 for a coalesced burst", got)
	}
}

func TestDebouncerPendingWindowNotReset(t *testing.T) {
	var counter refreshCounter
	d := NewRefreshDebouncer(30*time.Millisecond, 60*time.Millisecond, counter.bump)
	defer d.Stop()

	d.Notify("thread/item/delta")
	// Later events inside the window must not push the deadline out.
	time.Sleep(15 * time.Millisecond)
	d.Notify("thread/item/delta")
	time.Sleep(30 * time.Millisecond)
	if got := counter.value(); got != 1 {
		t.Fatalf("refreshes = %d, want 1 within the original window", got)
	}
}

func TestDebouncerForceRefreshesImmediately(t *testing.T) {
	var counter refreshCounter
	d := NewRefreshDebouncer(time.Hour, time.Hour, counter.bump)
	defer d.Stop()

	d.Notify("thread/updated")
	d.Force()
	if got := counter.value(); got != 1 {
		t.Fatalf("refreshes = %d, want 1 immediately after Force", got)
	}
	// The cancelled pending window must not fire a second refresh.
	time.Sleep(30 * time.Millisecond)
	if got := counter.value(); got != 1 {
		t.Fatalf("refreshes = %d, want still 1", got)
	}
}

func TestDebouncerStopDiscardsPending(t *testing.T) {
	var counter refreshCounter
	d := NewRefreshDebouncer(10*time.Millisecond, 20*time.Millisecond, counter.bump)

	d.Notify("thread/item/delta")
	d.Stop()
	time.Sleep(40 * time.Millisecond)
	if got := counter.value(); got != 0 {
		t.Fatalf("refreshes = %d, want 0 after Stop", got)
	}
	d.Schedule(time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if got := counter.value(); got != 0 {
		t.Fatalf("refreshes = %d, want 0 while stopped", got)
	}
}

func TestDebouncerRestartAcceptsWorkAgain(t *testing.T) {
	var counter refreshCounter
	d := NewRefreshDebouncer(5*time.Millisecond, 10*time.Millisecond, counter.bump)

	d.Stop()
	d.Schedule(time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if got := counter.value(); got != 0 {
		t.Fatalf("refreshes = %d, want 0 while stopped", got)
	}

	d.Restart()
	d.Notify("thread/item/delta")
	time.Sleep(30 * time.Millisecond)
	if got := counter.value(); got != 1 {
		t.Fatalf("refreshes = %d, want 1 after Restart", got)
	}
	d.Force()
	if got := counter.value(); got != 2 {
		t.Fatalf("refreshes = %d, want 2 after Force", got)
	}
	d.Stop()
}

func TestNotifyTierSelection(t *testing.T) {
	if !isDeltaMethod("thread/item/DELTA") {
		t.Fatal("delta method not recognized")
	}
	if isDeltaMethod("thread/updated") {
		t.Fatal("non-delta method classified as delta")
	}
}
