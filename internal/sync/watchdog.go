package sync

import (
	"context"
	"time"

	"tether/internal/logging"
)

const (
	defaultWatchdogTick   = 15 * time.Second
	defaultStalenessAfter = 600 * time.Second
)

// StalenessMessage is surfaced when the watchdog forces a stuck run to a
// settled state.
const StalenessMessage = "No activity received for a while; the run was marked finished locally. Refresh to re-check."

// StalenessWatchdog watches for a run that looks active while nothing has
// arrived from the server for a long time, and forces the view settled so
// the thinking indicator cannot get stuck forever.
type StalenessWatchdog struct {
	tick  time.Duration
	after time.Duration
	log   logging.Logger

	// active reports whether any active-run signal is currently set.
	active func() bool
	// lastActivity is the time of the last stream event or refresh result.
	lastActivity func() time.Time
	// force settles the engine and surfaces the staleness message.
	force func()
}

func NewStalenessWatchdog(tick, after time.Duration, log logging.Logger, active func() bool, lastActivity func() time.Time, force func()) *StalenessWatchdog {
	if tick <= 0 {
		tick = defaultWatchdogTick
	}
	if after <= 0 {
		after = defaultStalenessAfter
	}
	if log == nil {
		log = logging.Nop()
	}
	return &StalenessWatchdog{
		tick:         tick,
		after:        after,
		log:          log,
		active:       active,
		lastActivity: lastActivity,
		force:        force,
	}
}

// Run ticks until ctx is cancelled. It belongs on its own goroutine.
func (w *StalenessWatchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.Check(now)
		}
	}
}

// Check performs one watchdog evaluation.
func (w *StalenessWatchdog) Check(now time.Time) {
	if !w.active() {
		return
	}
	idle := now.Sub(w.lastActivity())
	if idle < w.after {
		return
	}
	w.log.Warn("forcing stale run settled", logging.F("idle", idle))
	w.force()
}
