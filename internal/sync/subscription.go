package sync

import (
	"context"
	stdsync "sync"

	"tether/internal/logging"
	"tether/internal/store"
)

type SeqDecision int

const (
	// SeqApply: the event is the next contiguous sequence and was persisted.
	SeqApply SeqDecision = iota
	// SeqDuplicate: stale redelivery, drop it.
	SeqDuplicate
	// SeqGap: events were missed; a resubscribe from the cursor was issued
	// and the event must not be applied.
	SeqGap
)

// SubscriptionManager owns one thread's stream subscription: resume-from
// cursor, duplicate suppression, and gap-triggered resubscription. Safe for
// concurrent use; stream and store calls happen outside the internal lock.
type SubscriptionManager struct {
	threadID string
	stream   Stream
	cursors  store.CursorStore
	log      logging.Logger

	mu      stdsync.Mutex
	lastSeq int64
	loaded  bool
}

func NewSubscriptionManager(threadID string, stream Stream, cursors store.CursorStore, log logging.Logger) *SubscriptionManager {
	if log == nil {
		log = logging.Nop()
	}
	return &SubscriptionManager{
		threadID: threadID,
		stream:   stream,
		cursors:  cursors,
		log:      log,
	}
}

// LastSeq returns the cursor, reading through to the store on first use.
func (m *SubscriptionManager) LastSeq(ctx context.Context) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeqLocked(ctx)
}

func (m *SubscriptionManager) lastSeqLocked(ctx context.Context) int64 {
	if !m.loaded {
		seq, err := m.cursors.Get(ctx, m.threadID)
		if err != nil {
			m.log.Warn("cursor read failed", logging.F("thread", m.threadID), logging.F("err", err))
		} else {
			m.lastSeq = seq
		}
		m.loaded = true
	}
	return m.lastSeq
}

// Subscribe (re)issues the subscription resuming from the current cursor.
func (m *SubscriptionManager) Subscribe(ctx context.Context) error {
	seq := m.LastSeq(ctx)
	return m.stream.Subscribe(ctx, m.threadID, seq > 0, seq)
}

func (m *SubscriptionManager) Unsubscribe(ctx context.Context) error {
	return m.stream.Unsubscribe(ctx, m.threadID)
}

// AdvanceTo jumps the cursor forward to seq, for snapshot events that
// supersede every event at or below their base. Regressions are ignored.
func (m *SubscriptionManager) AdvanceTo(ctx context.Context, seq int64) {
	m.mu.Lock()
	if seq <= m.lastSeqLocked(ctx) {
		m.mu.Unlock()
		return
	}
	m.lastSeq = seq
	m.mu.Unlock()
	if err := m.cursors.Set(ctx, m.threadID, seq); err != nil {
		m.log.Warn("cursor write failed", logging.F("thread", m.threadID), logging.F("err", err))
	}
}

// Observe applies the sequence rules to an inbound event's seq. The cursor
// never decreases; a gap resubscribes from the cursor and drops the event.
func (m *SubscriptionManager) Observe(ctx context.Context, seq int64) SeqDecision {
	m.mu.Lock()
	last := m.lastSeqLocked(ctx)
	switch {
	case seq <= last:
		m.mu.Unlock()
		return SeqDuplicate
	case seq > last+1:
		m.mu.Unlock()
		m.log.Info("stream gap detected",
			logging.F("thread", m.threadID),
			logging.F("have", last),
			logging.F("got", seq))
		if err := m.Subscribe(ctx); err != nil {
			m.log.Warn("resubscribe failed", logging.F("thread", m.threadID), logging.F("err", err))
		}
		return SeqGap
	default:
		m.lastSeq = seq
		m.mu.Unlock()
		if err := m.cursors.Set(ctx, m.threadID, seq); err != nil {
			m.log.Warn("cursor write failed", logging.F("thread", m.threadID), logging.F("err", err))
		}
		return SeqApply
	}
}
