package sync

import (
	"time"

	"github.com/google/uuid"

	"tether/internal/types"
)

// QueuedDraft is a not-yet-sent user message. ClientActionID is the
// idempotency token the eventual dispatch will carry.
type QueuedDraft struct {
	ID             string
	Text           string
	Attachments    []types.Attachment
	CreatedAt      time.Time
	OptimisticID   string
	ClientActionID string
}

// DraftQueue keeps drafts in FIFO order. Steering and auto-dispatch always
// consume the head; a failed dispatch puts the draft back at the head, not
// the tail. Not safe for concurrent use; the owning engine serializes access.
type DraftQueue struct {
	drafts []QueuedDraft
	now    func() time.Time
}

func NewDraftQueue() *DraftQueue {
	return &DraftQueue{now: time.Now}
}

func (q *DraftQueue) Enqueue(text string, attachments []types.Attachment, optimisticID string) QueuedDraft {
	draft := QueuedDraft{
		ID:             uuid.NewString(),
		Text:           text,
		Attachments:    append([]types.Attachment(nil), attachments...),
		CreatedAt:      q.now(),
		OptimisticID:   optimisticID,
		ClientActionID: uuid.NewString(),
	}
	q.drafts = append(q.drafts, draft)
	return draft
}

// PopHead removes and returns the head draft.
func (q *DraftQueue) PopHead() (QueuedDraft, bool) {
	if len(q.drafts) == 0 {
		return QueuedDraft{}, false
	}
	head := q.drafts[0]
	q.drafts = append(q.drafts[:0:0], q.drafts[1:]...)
	return head, true
}

// PushFront re-inserts a draft at the head, preserving order after a failed
// dispatch.
func (q *DraftQueue) PushFront(draft QueuedDraft) {
	q.drafts = append([]QueuedDraft{draft}, q.drafts...)
}

// Remove deletes a draft by id and returns it for linked-state cleanup.
func (q *DraftQueue) Remove(id string) (QueuedDraft, bool) {
	for i, draft := range q.drafts {
		if draft.ID == id {
			q.drafts = append(q.drafts[:i], q.drafts[i+1:]...)
			return draft, true
		}
	}
	return QueuedDraft{}, false
}

func (q *DraftQueue) Len() int {
	return len(q.drafts)
}

func (q *DraftQueue) List() []QueuedDraft {
	return append([]QueuedDraft(nil), q.drafts...)
}
