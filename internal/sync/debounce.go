package sync

import (
	stdsync "sync"
	"time"
)

const (
	defaultDebounceShort = 80 * time.Millisecond
	defaultDebounceLong  = 120 * time.Millisecond
)

// RefreshDebouncer coalesces bursts of stream notifications into a single
// refresh. A pending window is not reset by later events inside it; only
// Force cancels it and refreshes immediately.
type RefreshDebouncer struct {
	mu      stdsync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
	refresh func()
	short   time.Duration
	long    time.Duration
}

func NewRefreshDebouncer(short, long time.Duration, refresh func()) *RefreshDebouncer {
	if short <= 0 {
		short = defaultDebounceShort
	}
	if long <= 0 {
		long = defaultDebounceLong
	}
	return &RefreshDebouncer{refresh: refresh, short: short, long: long}
}

// Notify schedules a refresh for a stream notification, choosing the tier by
// method: high-frequency delta methods get the short window.
func (d *RefreshDebouncer) Notify(method string) {
	if isDeltaMethod(method) {
		d.Schedule(d.short)
	} else {
		d.Schedule(d.long)
	}
}

// Schedule arms a refresh after delay unless one is already pending.
func (d *RefreshDebouncer) Schedule(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.pending {
		return
	}
	d.pending = true
	d.timer = time.AfterFunc(delay, d.fire)
}

func (d *RefreshDebouncer) fire() {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()
	d.refresh()
}

// Force cancels any pending window and refreshes immediately.
func (d *RefreshDebouncer) Force() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
	d.mu.Unlock()
	d.refresh()
}

// Stop cancels any pending refresh and rejects new ones until Restart.
func (d *RefreshDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Restart clears a previous Stop so the debouncer accepts work again.
func (d *RefreshDebouncer) Restart() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = false
}
