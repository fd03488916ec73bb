package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"tether/internal/client"
	"tether/internal/logging"
	"tether/internal/store"
	"tether/internal/types"
)

const (
	defaultRefreshInterval = 30 * time.Second
	defaultRunMarkerTTL    = 90 * time.Second
	reconnectDelay         = 2 * time.Second
)

var (
	ErrSendDisabled     = errors.New("sending is disabled")
	ErrSteerDisabled    = errors.New("steering is disabled")
	ErrNoQueuedDraft    = errors.New("no queued draft to steer")
	ErrDispatchInFlight = errors.New("a dispatch is already in flight")
)

type Options struct {
	ThreadID        string
	RefreshInterval time.Duration
	VerifyInterval  time.Duration
	WatchdogTick    time.Duration
	StalenessAfter  time.Duration
	DebounceShort   time.Duration
	DebounceLong    time.Duration
	RunMarkerTTL    time.Duration
	// SteerEnabled is the policy default used until GetConfig answers.
	SteerEnabled bool
	// SendDisabled rejects every send when set.
	SendDisabled bool
}

// EngineState is the externally-observed state of one thread, rebuilt
// atomically after each reconciliation pass.
type EngineState struct {
	ThreadID     string
	Title        string
	Subtitle     string
	Timeline     []TimelineRow
	QueuedDrafts []QueuedDraft
	Busy         bool
	Syncing      bool
	Connected    bool
	RunActive    bool
	Interrupting bool
	Error        string
	OutOfCredit  string
	Staleness    string
}

// Engine reconciles three racing sources of truth for one thread (periodic
// full refresh, the incremental event stream, and local optimistic
// mutations) into one monotonically-advancing view. All state mutation is
// serialized on mu; background tasks call back through the public entry
// points and never touch fields directly.
type Engine struct {
	opts    Options
	gateway Gateway
	stream  Stream
	runs    store.RunMarker
	log     logging.Logger

	subs      *SubscriptionManager
	interrupt *InterruptCoordinator
	debounce  *RefreshDebouncer

	mu      stdsync.Mutex
	started bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      stdsync.WaitGroup

	snapshot        *types.ThreadSnapshot
	tracker         *OptimisticTracker
	drafts          *DraftQueue
	timeline        []TimelineRow
	steerEnabled    bool
	sending         bool
	steering        bool
	interrupting    bool
	syncing         bool
	connected       bool
	settledOverride bool
	markerUntil     time.Time
	lastActivity    time.Time
	errMsg          string
	creditMsg       string
	staleMsg        string
}

func NewEngine(opts Options, gateway Gateway, stream Stream, cursors store.CursorStore, runs store.RunMarker, log logging.Logger) (*Engine, error) {
	if opts.ThreadID == "" {
		return nil, errors.New("thread id is required")
	}
	if gateway == nil || stream == nil || cursors == nil {
		return nil, errors.New("gateway, stream and cursor store are required")
	}
	if runs == nil {
		runs = store.NewMemoryRunMarker()
	}
	if log == nil {
		log = logging.Nop()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefreshInterval
	}
	if opts.RunMarkerTTL <= 0 {
		opts.RunMarkerTTL = defaultRunMarkerTTL
	}
	log = log.With(logging.F("thread", opts.ThreadID))

	e := &Engine{
		opts:         opts,
		gateway:      gateway,
		stream:       stream,
		runs:         runs,
		log:          log,
		subs:         NewSubscriptionManager(opts.ThreadID, stream, cursors, log),
		interrupt:    NewInterruptCoordinator(log, opts.VerifyInterval),
		tracker:      NewOptimisticTracker(),
		drafts:       NewDraftQueue(),
		steerEnabled: opts.SteerEnabled,
	}
	e.debounce = NewRefreshDebouncer(opts.DebounceShort, opts.DebounceLong, func() {
		e.mu.Lock()
		ctx := e.runCtx
		e.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		e.Refresh(ctx, false)
	})
	return e, nil
}

// Start begins periodic refresh, the stream consumer, and the staleness
// watchdog. Calling Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.lastActivity = time.Now()
	e.runCtx, e.cancel = context.WithCancel(ctx)
	runCtx := e.runCtx
	e.mu.Unlock()
	e.debounce.Restart()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.restoreRunMarker(runCtx)
		e.fetchPolicy(runCtx)
		e.Refresh(runCtx, true)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.refreshLoop(runCtx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.consumeStream(runCtx)
	}()

	watchdog := NewStalenessWatchdog(e.opts.WatchdogTick, e.opts.StalenessAfter, e.log,
		e.watchdogActive, e.lastActivityAt, e.forceSettle)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		watchdog.Run(runCtx)
	}()

	return nil
}

// Stop cancels all background work and closes the stream. Idempotent.
func (e *Engine) Stop() {
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
	e.interrupt.Cancel()
	_ = e.stream.Close()
	e.wg.Wait()
}

// restoreRunMarker picks up a persisted run marker left by a previous
// process, so a restart keeps showing the run until the server catches up
// or the marker expires.
func (e *Engine) restoreRunMarker(ctx context.Context) {
	active, err := e.runs.IsActive(ctx, e.opts.ThreadID)
	if err != nil || !active {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.markerUntil.IsZero() {
		e.markerUntil = time.Now().Add(e.opts.RunMarkerTTL)
		e.rebuildTimelineLocked()
	}
}

func (e *Engine) fetchPolicy(ctx context.Context) {
	cfg, err := e.gateway.GetConfig(ctx, e.cwd())
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		// Fail soft: keep the configured default.
		e.steerEnabled = e.opts.SteerEnabled
		return
	}
	e.steerEnabled = cfg.SteerEnabled
}

func (e *Engine) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(e.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Refresh(ctx, false)
		}
	}
}

func (e *Engine) consumeStream(ctx context.Context) {
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

// Refresh fetches the authoritative snapshot and reconciles. It fails soft:
// on error the previous snapshot is kept and only the error is surfaced.
func (e *Engine) Refresh(ctx context.Context, showLoader bool) {
	e.mu.Lock()
	if showLoader {
		e.syncing = true
	}
	e.mu.Unlock()

	snapshot, err := e.gateway.GetThread(ctx, e.opts.ThreadID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncing = false
	if err != nil {
		e.surfaceErrLocked(err)
		return
	}
	e.applySnapshotLocked(ctx, snapshot)
}

func (e *Engine) applySnapshotLocked(ctx context.Context, snapshot *types.ThreadSnapshot) {
	e.snapshot = snapshot
	e.markActivityLocked()
	e.errMsg = ""
	e.tracker.Reconcile(snapshot.Turns)
	if !snapshot.RunActive() {
		if e.interrupting && !e.interrupt.InFlight() {
			e.interrupting = false
		}
		if !e.sending && !e.steering {
			e.markerUntil = time.Time{}
			go func() { _ = e.runs.Clear(context.WithoutCancel(ctx), e.opts.ThreadID) }()
		}
	}
	e.rebuildTimelineLocked()
	e.maybeDispatchQueuedLocked()
}

// SendDraft accepts a send unless the text is empty with no attachments or
// sending is disabled by policy. The optimistic message is created before
// any network call, so the timeline reflects the action synchronously.
func (e *Engine) SendDraft(ctx context.Context, text string, attachments []types.Attachment) bool {
	if StripContextWrapper(text) == "" && len(attachments) == 0 {
		return false
	}
	if e.opts.SendDisabled {
		return false
	}

	e.mu.Lock()
	msg := e.tracker.Add(text, attachments)
	e.drafts.Enqueue(text, attachments, msg.ID)
	if e.busyLocked() || e.drafts.Len() > 1 {
		e.rebuildTimelineLocked()
		e.mu.Unlock()
		return true
	}
	head, _ := e.drafts.PopHead()
	e.sending = true
	e.markerUntil = time.Now().Add(e.opts.RunMarkerTTL)
	e.rebuildTimelineLocked()
	dispatchCtx := e.dispatchContextLocked(ctx)
	e.mu.Unlock()

	go e.dispatch(dispatchCtx, head, false)
	return true
}

// SteerQueuedDraft dispatches the head queued draft into a run that may
// still be winding down.
func (e *Engine) SteerQueuedDraft(ctx context.Context) error {
	e.mu.Lock()
	if !e.steerEnabled {
		e.mu.Unlock()
		return ErrSteerDisabled
	}
	if e.snapshot.ExternallyOwned() {
		e.mu.Unlock()
		return ErrExternalRun
	}
	if e.sending || e.steering {
		e.mu.Unlock()
		return ErrDispatchInFlight
	}
	head, ok := e.drafts.PopHead()
	if !ok {
		e.mu.Unlock()
		return ErrNoQueuedDraft
	}
	e.steering = true
	e.markerUntil = time.Now().Add(e.opts.RunMarkerTTL)
	dispatchCtx := e.dispatchContextLocked(ctx)
	e.mu.Unlock()

	go e.dispatch(dispatchCtx, head, true)
	return nil
}

// RemoveQueuedDraft drops a queued draft and its linked optimistic message.
func (e *Engine) RemoveQueuedDraft(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	draft, ok := e.drafts.Remove(id)
	if !ok {
		return
	}
	if draft.OptimisticID != "" {
		e.tracker.Remove(draft.OptimisticID)
	}
	e.rebuildTimelineLocked()
}

func (e *Engine) dispatch(ctx context.Context, draft QueuedDraft, steer bool) {
	refs := make([]types.PreparedRef, 0, len(draft.Attachments))
	for _, att := range draft.Attachments {
		ref, err := e.gateway.UploadAttachment(ctx, e.opts.ThreadID, att)
		if err != nil {
			e.dispatchFailed(draft, err)
			return
		}
		refs = append(refs, ref)
	}
	ack, err := e.gateway.SendMessage(ctx, e.opts.ThreadID, client.SendMessageRequest{
		Text:           draft.Text,
		Attachments:    refs,
		ClientActionID: draft.ClientActionID,
	})
	if err == nil && !ack.Accepted {
		err = errors.New("send was not accepted")
	}
	if err != nil {
		e.dispatchFailed(draft, err)
		return
	}

	_ = e.runs.MarkActive(ctx, e.opts.ThreadID, e.opts.RunMarkerTTL)
	e.mu.Lock()
	e.sending = false
	e.steering = false
	e.markerUntil = time.Now().Add(e.opts.RunMarkerTTL)
	e.markActivityLocked()
	e.mu.Unlock()
	if steer {
		e.log.Info("steered queued draft", logging.F("draft", draft.ID))
	}
	e.debounce.Force()
}

// dispatchFailed re-inserts the draft at the head to preserve order; the
// optimistic message stays pending so nothing the user typed is lost.
func (e *Engine) dispatchFailed(draft QueuedDraft, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sending = false
	e.steering = false
	e.markerUntil = time.Time{}
	e.drafts.PushFront(draft)
	e.surfaceErrLocked(err)
	e.rebuildTimelineLocked()
}

// maybeDispatchQueuedLocked drains the queue head once the thread is idle.
func (e *Engine) maybeDispatchQueuedLocked() {
	if e.busyLocked() || e.drafts.Len() == 0 {
		return
	}
	head, _ := e.drafts.PopHead()
	e.sending = true
	e.markerUntil = time.Now().Add(e.opts.RunMarkerTTL)
	ctx := e.dispatchContextLocked(context.Background())
	go e.dispatch(ctx, head, false)
}

// InterruptActiveTurn requests a stop and verifies it until the run settles.
// A second call supersedes the first, cancelling its verification loop.
func (e *Engine) InterruptActiveTurn(ctx context.Context) {
	e.mu.Lock()
	external := e.snapshot.ExternallyOwned()
	turnID := e.activeTurnIDLocked()
	if !external {
		e.interrupting = true
		e.rebuildTimelineLocked()
	}
	loopCtx := e.dispatchContextLocked(ctx)
	e.mu.Unlock()

	e.interrupt.Request(loopCtx, external, InterruptDeps{
		Issue: func(ctx context.Context, token string) error {
			_, err := e.gateway.Interrupt(ctx, e.opts.ThreadID, client.InterruptRequest{
				TurnID:         turnID,
				ClientActionID: token,
			})
			return err
		},
		RunActive: e.underlyingRunActive,
		Refresh: func(ctx context.Context) {
			e.Refresh(ctx, false)
		},
		OnSettled: func() {
			e.mu.Lock()
			e.interrupting = false
			e.markerUntil = time.Time{}
			e.rebuildTimelineLocked()
			e.mu.Unlock()
		},
		OnRejected: func(err error) {
			e.mu.Lock()
			e.interrupting = false
			e.surfaceErrLocked(err)
			e.rebuildTimelineLocked()
			e.mu.Unlock()
		},
	})
}

// ApplyStreamEvent is the single entry point for all inbound stream events.
func (e *Engine) ApplyStreamEvent(ctx context.Context, event types.StreamEvent) {
	if event.ThreadID != "" && event.ThreadID != e.opts.ThreadID {
		return
	}
	switch event.Kind {
	case types.StreamConnected:
		e.mu.Lock()
		e.connected = true
		e.markActivityLocked()
		e.mu.Unlock()
		// A reconnect may have missed events: resubscribe from the cursor
		// and refresh in full.
		if err := e.subs.Subscribe(ctx); err != nil {
			e.log.Warn("subscribe failed", logging.F("err", err))
		}
		e.debounce.Force()

	case types.StreamDisconnected:
		// Keep local state; periodic refresh remains the fallback path.
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()

	case types.StreamError:
		e.mu.Lock()
		e.surfaceErrLocked(errors.New(event.Message))
		e.mu.Unlock()

	case types.StreamThreadSync:
		e.mu.Lock()
		e.markActivityLocked()
		e.mu.Unlock()
		if event.LatestSeq > e.subs.LastSeq(ctx) {
			if err := e.subs.Subscribe(ctx); err != nil {
				e.log.Warn("resubscribe failed", logging.F("err", err))
			}
			e.debounce.Schedule(e.debounce.long)
		}

	case types.StreamThreadSnapshot:
		e.mu.Lock()
		e.markActivityLocked()
		if event.Snapshot != nil {
			e.applySnapshotLocked(ctx, event.Snapshot)
		}
		e.mu.Unlock()
		if event.SeqBase > 0 {
			e.subs.AdvanceTo(ctx, event.SeqBase)
		}
		e.debounce.Force()

	case types.StreamNotification:
		if event.Seq != nil {
			if e.subs.Observe(ctx, *event.Seq) != SeqApply {
				return
			}
		}
		e.mu.Lock()
		e.markActivityLocked()
		e.mu.Unlock()
		e.debounce.Notify(event.Method)

	case types.StreamRequest:
		if event.RequestID == nil {
			return
		}
		if err := e.stream.Ack(ctx, *event.RequestID, isKnownRequestMethod(event.Method)); err != nil {
			e.log.Warn("request ack failed", logging.F("method", event.Method), logging.F("err", err))
		}
	}
}

// State returns the observable snapshot of derived state.
func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := EngineState{
		ThreadID:     e.opts.ThreadID,
		Title:        e.opts.ThreadID,
		Timeline:     append([]TimelineRow(nil), e.timeline...),
		QueuedDrafts: e.drafts.List(),
		Busy:         e.busyLocked(),
		Syncing:      e.syncing,
		Connected:    e.connected,
		RunActive:    e.displayRunActiveLocked(),
		Interrupting: e.interrupting,
		Error:        e.errMsg,
		OutOfCredit:  e.creditMsg,
		Staleness:    e.staleMsg,
	}
	if e.snapshot != nil {
		if e.snapshot.Title != "" {
			state.Title = e.snapshot.Title
		}
		state.Subtitle = e.snapshot.Cwd
	}
	return state
}

func (e *Engine) busyLocked() bool {
	return e.sending || e.steering || (e.snapshot.RunActive() && !e.settledOverride)
}

func (e *Engine) displayRunActiveLocked() bool {
	if e.settledOverride || e.interrupting {
		return false
	}
	if e.snapshot.RunActive() || e.sending || e.steering {
		return true
	}
	return !e.markerUntil.IsZero() && time.Now().Before(e.markerUntil)
}

func (e *Engine) underlyingRunActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot.RunActive() && !e.settledOverride
}

func (e *Engine) watchdogActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settledOverride {
		return false
	}
	if e.snapshot.RunActive() || e.sending || e.steering || e.interrupting {
		return true
	}
	return !e.markerUntil.IsZero() && time.Now().Before(e.markerUntil)
}

func (e *Engine) lastActivityAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActivity
}

// forceSettle clears every active-run signal after prolonged silence.
func (e *Engine) forceSettle() {
	e.interrupt.Cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sending = false
	e.steering = false
	e.interrupting = false
	e.settledOverride = true
	e.markerUntil = time.Time{}
	if e.staleMsg == "" {
		e.staleMsg = StalenessMessage
	}
	go func() { _ = e.runs.Clear(context.Background(), e.opts.ThreadID) }()
	e.rebuildTimelineLocked()
}

func (e *Engine) markActivityLocked() {
	e.lastActivity = time.Now()
	e.settledOverride = false
	e.staleMsg = ""
}

func (e *Engine) rebuildTimelineLocked() {
	var turns []types.Turn
	if e.snapshot != nil {
		turns = e.snapshot.Turns
	}
	e.timeline = BuildTimeline(turns, e.tracker.Pending(), e.displayRunActiveLocked())
}

func (e *Engine) activeTurnIDLocked() string {
	if e.snapshot == nil {
		return ""
	}
	if e.snapshot.ExternalRun != nil && e.snapshot.ExternalRun.TurnID != "" {
		return e.snapshot.ExternalRun.TurnID
	}
	for i := len(e.snapshot.Turns) - 1; i >= 0; i-- {
		if types.NormalizeTurnStatus(e.snapshot.Turns[i].Status) == types.TurnPhaseRunning {
			return e.snapshot.Turns[i].ID
		}
	}
	return ""
}

func (e *Engine) surfaceErrLocked(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	if apiErr := client.AsAPIError(err); apiErr != nil {
		msg = apiErr.Message
	}
	if DetectOutOfCredit(msg) {
		// Out-of-credit outranks and suppresses the generic error field.
		e.creditMsg = TrimBanner(msg)
		return
	}
	e.errMsg = msg
}

func (e *Engine) cwd() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot != nil {
		return e.snapshot.Cwd
	}
	return ""
}

// dispatchContextLocked prefers the engine's run context so Stop cancels
// in-flight work; before Start it falls back to the caller's context.
func (e *Engine) dispatchContextLocked(ctx context.Context) context.Context {
	if e.runCtx != nil && e.runCtx.Err() == nil {
		return e.runCtx
	}
	return ctx
}
