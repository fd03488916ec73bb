package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tether/internal/types"
)

// optimisticIDPrefix keeps client-generated ids out of the server id space.
const optimisticIDPrefix = "local-"

// OptimisticMessage is a client-side placeholder for a send the server has
// not confirmed yet.
type OptimisticMessage struct {
	ID          string
	Text        string
	Attachments []types.Attachment
	Signature   string
	CreatedAt   time.Time
}

// MessageSignature derives the content signature used to match an optimistic
// message against a later server-confirmed one. Identical signatures for two
// pending sends collapse to first-match-in-discovery-order; that is a known
// approximation, not an identity match.
func MessageSignature(text string, attachmentCount int) string {
	normalized := strings.Join(strings.Fields(StripContextWrapper(text)), " ")
	if normalized != "" {
		return normalized
	}
	if attachmentCount > 0 {
		return fmt.Sprintf("attachments:%d", attachmentCount)
	}
	return "empty"
}

// OptimisticTracker holds locally-created messages awaiting server
// confirmation. Not safe for concurrent use; the owning engine serializes
// access.
type OptimisticTracker struct {
	pending []OptimisticMessage
	seen    map[string]struct{}
	now     func() time.Time
}

func NewOptimisticTracker() *OptimisticTracker {
	return &OptimisticTracker{seen: make(map[string]struct{}), now: time.Now}
}

// Add registers a new optimistic message and returns it.
func (t *OptimisticTracker) Add(text string, attachments []types.Attachment) OptimisticMessage {
	msg := OptimisticMessage{
		ID:          optimisticIDPrefix + uuid.NewString(),
		Text:        text,
		Attachments: append([]types.Attachment(nil), attachments...),
		Signature:   MessageSignature(text, len(attachments)),
		CreatedAt:   t.now(),
	}
	t.pending = append(t.pending, msg)
	return msg
}

// Remove drops a pending message by id. Used when its originating draft is
// deleted before dispatch.
func (t *OptimisticTracker) Remove(id string) {
	for i, msg := range t.pending {
		if msg.ID == id {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return
		}
	}
}

// Pending returns the still-unconfirmed messages in creation order.
func (t *OptimisticTracker) Pending() []OptimisticMessage {
	return append([]OptimisticMessage(nil), t.pending...)
}

// Reconcile consumes an authoritative snapshot's turns. Every user message
// item not seen in a previous snapshot is matched, by signature, against at
// most one pending optimistic message; the first match wins. Matching is
// order-insensitive within a batch on purpose: the server may confirm sends
// out of dispatch order across retries.
func (t *OptimisticTracker) Reconcile(turns []types.Turn) {
	for _, turn := range turns {
		for _, item := range turn.Items {
			if item.Kind != types.ItemKindUserMessage || item.ID == "" {
				continue
			}
			if _, ok := t.seen[item.ID]; ok {
				continue
			}
			t.seen[item.ID] = struct{}{}
			t.consume(MessageSignature(item.Text, len(item.Attachments)))
		}
	}
}

func (t *OptimisticTracker) consume(signature string) {
	for i, msg := range t.pending {
		if msg.Signature == signature {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return
		}
	}
}
