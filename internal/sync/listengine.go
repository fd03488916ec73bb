package sync

import (
	"context"
	"errors"
	"sort"
	stdsync "sync"
	"time"

	"tether/internal/logging"
	"tether/internal/store"
	"tether/internal/types"
)

const (
	defaultListPollFast = 2 * time.Second
	defaultListPollSlow = 10 * time.Second
	defaultHydrationTTL = 30 * time.Second
)

type ListOptions struct {
	PollFast      time.Duration
	PollSlow      time.Duration
	HydrationTTL  time.Duration
	DebounceShort time.Duration
	DebounceLong  time.Duration
}

// PendingThreadHydration makes an optimistically-created thread visible
// before the authoritative list includes it.
type PendingThreadHydration struct {
	Summary types.ThreadSummary
	Expires time.Time
}

type ListState struct {
	Threads []types.ThreadSummary
	Syncing bool
	Error   string
}

// ListEngine keeps a collection of thread summaries in sync: adaptive
// polling cadence, pending-thread hydration, and per-thread subscription
// fan-out over one shared stream connection.
type ListEngine struct {
	opts    ListOptions
	gateway Gateway
	stream  Stream
	cursors store.CursorStore
	log     logging.Logger

	debounce *RefreshDebouncer

	mu         stdsync.Mutex
	started    bool
	runCtx     context.Context
	cancel     context.CancelFunc
	wg         stdsync.WaitGroup
	threads    []types.ThreadSummary
	hydrations map[string]PendingThreadHydration
	watched    map[string]*SubscriptionManager
	syncing    bool
	errMsg     string
}

func NewListEngine(opts ListOptions, gateway Gateway, stream Stream, cursors store.CursorStore, log logging.Logger) (*ListEngine, error) {
	if gateway == nil || stream == nil || cursors == nil {
		return nil, errors.New("gateway, stream and cursor store are required")
	}
	if log == nil {
		log = logging.Nop()
	}
	if opts.PollFast <= 0 {
		opts.PollFast = defaultListPollFast
	}
	if opts.PollSlow <= 0 {
		opts.PollSlow = defaultListPollSlow
	}
	if opts.HydrationTTL <= 0 {
		opts.HydrationTTL = defaultHydrationTTL
	}
	e := &ListEngine{
		opts:       opts,
		gateway:    gateway,
		stream:     stream,
		cursors:    cursors,
		log:        log,
		hydrations: make(map[string]PendingThreadHydration),
		watched:    make(map[string]*SubscriptionManager),
	}
	e.debounce = NewRefreshDebouncer(opts.DebounceShort, opts.DebounceLong, func() {
		e.mu.Lock()
		ctx := e.runCtx
		e.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		e.RefreshList(ctx, false)
	})
	return e, nil
}

func (e *ListEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.runCtx, e.cancel = context.WithCancel(ctx)
	runCtx := e.runCtx
	e.mu.Unlock()
	e.debounce.Restart()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(runCtx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.consumeStream(runCtx)
	}()

	e.RefreshList(runCtx, true)
	return nil
}

func (e *ListEngine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.debounce.Stop()
	_ = e.stream.Close()
	e.wg.Wait()
}

// pollLoop re-lists threads with an adaptive cadence: fast while anything
// looks busy or a hydration is pending, slow otherwise.
func (e *ListEngine) pollLoop(ctx context.Context) {
	timer := time.NewTimer(e.interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.RefreshList(ctx, false)
			timer.Reset(e.interval())
		}
	}
}

func (e *ListEngine) interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.hydrations) > 0 {
		return e.opts.PollFast
	}
	for _, summary := range e.threads {
		if summary.Active {
			return e.opts.PollFast
		}
	}
	return e.opts.PollSlow
}

func (e *ListEngine) consumeStream(ctx context.Context) {
	for ctx.Err() == nil {
		ch, err := e.stream.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.mu.Lock()
			e.surfaceErrLocked(err)
			e.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}
		for event := range ch {
			e.ApplyStreamEvent(ctx, event)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// RefreshList fetches the authoritative thread list. Fails soft.
func (e *ListEngine) RefreshList(ctx context.Context, showLoader bool) {
	e.mu.Lock()
	if showLoader {
		e.syncing = true
	}
	e.mu.Unlock()

	threads, err := e.gateway.ListThreads(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncing = false
	if err != nil {
		e.surfaceErrLocked(err)
		return
	}
	e.errMsg = ""
	e.threads = threads
	for id := range e.hydrations {
		if containsThread(threads, id) {
			delete(e.hydrations, id)
		}
	}
	e.pruneHydrationsLocked(time.Now())
}

// CreateThread creates a thread server-side and hydrates it locally so it is
// visible before the authoritative list catches up.
func (e *ListEngine) CreateThread(ctx context.Context, cwd string) (types.ThreadSummary, error) {
	summary, err := e.gateway.CreateThread(ctx, cwd)
	if err != nil {
		return types.ThreadSummary{}, err
	}
	e.mu.Lock()
	e.hydrations[summary.ID] = PendingThreadHydration{
		Summary: summary,
		Expires: time.Now().Add(e.opts.HydrationTTL),
	}
	e.mu.Unlock()
	e.debounce.Force()
	return summary, nil
}

// ArchiveThread archives server-side, then drops all local traces: summary,
// hydration, subscription, and the persisted cursor.
func (e *ListEngine) ArchiveThread(ctx context.Context, id string) error {
	if err := e.gateway.ArchiveThread(ctx, id); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.hydrations, id)
	if _, ok := e.watched[id]; ok {
		delete(e.watched, id)
	}
	for i, summary := range e.threads {
		if summary.ID == id {
			e.threads = append(e.threads[:i], e.threads[i+1:]...)
			break
		}
	}
	e.mu.Unlock()
	_ = e.stream.Unsubscribe(ctx, id)
	if err := e.cursors.Clear(ctx, id); err != nil {
		e.log.Warn("cursor clear failed", logging.F("thread", id), logging.F("err", err))
	}
	return nil
}

// Watch subscribes the shared stream to a thread's events.
func (e *ListEngine) Watch(ctx context.Context, id string) error {
	e.mu.Lock()
	manager, ok := e.watched[id]
	if !ok {
		manager = NewSubscriptionManager(id, e.stream, e.cursors, e.log)
		e.watched[id] = manager
	}
	e.mu.Unlock()
	return manager.Subscribe(ctx)
}

func (e *ListEngine) Unwatch(ctx context.Context, id string) error {
	e.mu.Lock()
	manager, ok := e.watched[id]
	if ok {
		delete(e.watched, id)
	}
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return manager.Unsubscribe(ctx)
}

// ApplyStreamEvent routes inbound events by thread id across the watched
// set; anything surviving the sequence rules coalesces into a list refresh.
func (e *ListEngine) ApplyStreamEvent(ctx context.Context, event types.StreamEvent) {
	switch event.Kind {
	case types.StreamConnected:
		e.mu.Lock()
		managers := make([]*SubscriptionManager, 0, len(e.watched))
		for _, manager := range e.watched {
			managers = append(managers, manager)
		}
		e.mu.Unlock()
		for _, manager := range managers {
			if err := manager.Subscribe(ctx); err != nil {
				e.log.Warn("subscribe failed", logging.F("err", err))
			}
		}
		e.debounce.Force()

	case types.StreamDisconnected:
		// Polling covers the outage.

	case types.StreamError:
		e.mu.Lock()
		e.surfaceErrLocked(errors.New(event.Message))
		e.mu.Unlock()

	case types.StreamNotification, types.StreamThreadSync, types.StreamThreadSnapshot:
		if event.ThreadID != "" {
			e.mu.Lock()
			manager, watched := e.watched[event.ThreadID]
			e.mu.Unlock()
			if !watched {
				return
			}
			if event.Seq != nil && manager.Observe(ctx, *event.Seq) != SeqApply {
				return
			}
		}
		e.debounce.Notify(event.Method)

	case types.StreamRequest:
		if event.RequestID == nil {
			return
		}
		if err := e.stream.Ack(ctx, *event.RequestID, isKnownRequestMethod(event.Method)); err != nil {
			e.log.Warn("request ack failed", logging.F("err", err))
		}
	}
}

// State merges the authoritative list with still-pending hydrations.
func (e *ListEngine) State() ListState {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pruneHydrationsLocked(time.Now())
	threads := append([]types.ThreadSummary(nil), e.threads...)
	for _, hydration := range e.hydrations {
		if !containsThread(threads, hydration.Summary.ID) {
			threads = append(threads, hydration.Summary)
		}
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].CreatedAt.After(threads[j].CreatedAt)
	})
	return ListState{
		Threads: threads,
		Syncing: e.syncing,
		Error:   e.errMsg,
	}
}

func (e *ListEngine) pruneHydrationsLocked(now time.Time) {
	for id, hydration := range e.hydrations {
		if now.After(hydration.Expires) {
			delete(e.hydrations, id)
		}
	}
}

func (e *ListEngine) surfaceErrLocked(err error) {
	if err == nil {
		return
	}
	e.errMsg = err.Error()
}

func containsThread(threads []types.ThreadSummary, id string) bool {
	for _, summary := range threads {
		if summary.ID == id {
			return true
		}
	}
	return false
}
