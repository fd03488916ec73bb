package sync

import (
	"context"
	"errors"
	"strings"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"tether/internal/logging"
)

type InterruptState int

const (
	InterruptIdle InterruptState = iota
	InterruptRequesting
	InterruptVerifying
	InterruptSettled
	InterruptRejected
)

const defaultVerifyInterval = 700 * time.Millisecond

// ErrExternalRun is surfaced when the active run belongs to another client
// surface and cannot be interrupted from here.
var ErrExternalRun = errors.New("run was started by another client and cannot be interrupted here")

// InterruptDeps are the engine capabilities an interrupt drives.
type InterruptDeps struct {
	// Issue sends the stop request with the given idempotency token.
	Issue func(ctx context.Context, token string) error
	// RunActive reports the engine's current belief about the run.
	RunActive func() bool
	// Refresh runs a loaderless refresh between verification attempts.
	Refresh func(ctx context.Context)
	// OnSettled and OnRejected run terminal transitions on the engine.
	OnSettled  func()
	OnRejected func(err error)
}

// InterruptCoordinator drives one stop request and the verification retry
// loop that follows, until the server-observed run state confirms the stop.
// A new request supersedes and cancels any loop still running.
type InterruptCoordinator struct {
	log      logging.Logger
	interval time.Duration

	mu     stdsync.Mutex
	state  InterruptState
	token  string
	cancel context.CancelFunc
	gen    int
}

func NewInterruptCoordinator(log logging.Logger, interval time.Duration) *InterruptCoordinator {
	if log == nil {
		log = logging.Nop()
	}
	if interval <= 0 {
		interval = defaultVerifyInterval
	}
	return &InterruptCoordinator{log: log, interval: interval}
}

func (c *InterruptCoordinator) State() InterruptState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InFlight reports whether a stop is being requested or verified.
func (c *InterruptCoordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == InterruptRequesting || c.state == InterruptVerifying
}

// Request starts a stop attempt. When the run is externally owned the
// request is rejected without contacting the server.
func (c *InterruptCoordinator) Request(ctx context.Context, externallyOwned bool, deps InterruptDeps) {
	if externallyOwned {
		c.mu.Lock()
		c.cancelLocked()
		c.state = InterruptRejected
		c.mu.Unlock()
		if deps.OnRejected != nil {
			deps.OnRejected(ErrExternalRun)
		}
		return
	}

	c.mu.Lock()
	c.cancelLocked()
	c.gen++
	gen := c.gen
	c.state = InterruptRequesting
	c.token = uuid.NewString()
	token := c.token
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(loopCtx, gen, token, deps)
}

func (c *InterruptCoordinator) run(ctx context.Context, gen int, token string, deps InterruptDeps) {
	err := deps.Issue(ctx, token)
	if err != nil {
		// The server rejecting because no turn is running while we still
		// believe one is means the run may have just finished; verify
		// instead of failing.
		if !(isNoActiveTurnErr(err) && deps.RunActive()) {
			if c.transition(gen, InterruptRejected) && deps.OnRejected != nil {
				deps.OnRejected(err)
			}
			return
		}
		c.log.Debug("interrupt raced turn completion", logging.F("err", err))
	}
	if !c.transition(gen, InterruptVerifying) {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !deps.RunActive() {
			if c.transition(gen, InterruptSettled) && deps.OnSettled != nil {
				deps.OnSettled()
			}
			return
		}
		if err := deps.Issue(ctx, token); err != nil && !isNoActiveTurnErr(err) {
			c.log.Debug("interrupt retry failed", logging.F("err", err))
		}
		if ctx.Err() != nil {
			return
		}
		if deps.Refresh != nil {
			deps.Refresh(ctx)
		}
	}
}

// transition moves to next only if the coordinator still belongs to gen.
func (c *InterruptCoordinator) transition(gen int, next InterruptState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.state = next
	return true
}

// Cancel stops any verification loop and returns to idle.
func (c *InterruptCoordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.gen++
	c.state = InterruptIdle
}

func (c *InterruptCoordinator) cancelLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func isNoActiveTurnErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no active turn") && strings.Contains(msg, "interrupt")
}
