package store

import (
	"context"
	"errors"
)

// ErrCursorRegression is returned when a write would move a thread's cursor
// backwards. Cursors are monotonically non-decreasing per thread.
var ErrCursorRegression = errors.New("cursor would move backwards")

// CursorStore persists the last applied stream sequence number per thread.
// Missing threads read as zero. Implementations must make per-key reads and
// writes atomic with respect to concurrent callers.
type CursorStore interface {
	Get(ctx context.Context, threadID string) (int64, error)
	Set(ctx context.Context, threadID string, seq int64) error
	Clear(ctx context.Context, threadID string) error
	Close() error
}
