package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) CursorStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cursors.db")
	s, err := NewBboltCursorStore(path)
	if err != nil {
		t.Fatalf("NewBboltCursorStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBboltCursorStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if seq, err := s.Get(ctx, "th_1"); err != nil || seq != 0 {
		t.Fatalf("Get on missing thread = %d, %v; want 0, nil", seq, err)
	}
	if err := s.Set(ctx, "th_1", 7); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if seq, err := s.Get(ctx, "th_1"); err != nil || seq != 7 {
		t.Fatalf("Get = %d, %v; want 7, nil", seq, err)
	}
}

func TestBboltCursorStoreRejectsRegression(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Set(ctx, "th_1", 10); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "th_1", 4); !errors.Is(err, ErrCursorRegression) {
		t.Fatalf("Set(4) = %v, want ErrCursorRegression", err)
	}
	if err := s.Set(ctx, "th_1", 10); err != nil {
		t.Fatalf("Set(10) again: %v", err)
	}
	if err := s.Set(ctx, "th_1", -1); !errors.Is(err, ErrCursorRegression) {
		t.Fatalf("Set(-1) = %v, want ErrCursorRegression", err)
	}
	if seq, _ := s.Get(ctx, "th_1"); seq != 10 {
		t.Fatalf("cursor = %d, want 10", seq)
	}
}

func TestBboltCursorStoreClear(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Set(ctx, "th_1", 5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Clear(ctx, "th_1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if seq, _ := s.Get(ctx, "th_1"); seq != 0 {
		t.Fatalf("cursor = %d, want 0 after Clear", seq)
	}
	// Clearing the cursor permits re-reading the history from scratch.
	if err := s.Set(ctx, "th_1", 1); err != nil {
		t.Fatalf("Set after Clear: %v", err)
	}
}

func TestBboltCursorStoreIsolatesThreads(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Set(ctx, "th_a", 3); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "th_b", 9); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if seq, _ := s.Get(ctx, "th_a"); seq != 3 {
		t.Fatalf("th_a cursor = %d, want 3", seq)
	}
	if seq, _ := s.Get(ctx, "th_b"); seq != 9 {
		t.Fatalf("th_b cursor = %d, want 9", seq)
	}
}

func TestBboltCursorStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cursors.db")

	s, err := NewBboltCursorStore(path)
	if err != nil {
		t.Fatalf("NewBboltCursorStore: %v", err)
	}
	if err := s.Set(ctx, "th_1", 21); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewBboltCursorStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if seq, _ := reopened.Get(ctx, "th_1"); seq != 21 {
		t.Fatalf("cursor after reopen = %d, want 21", seq)
	}
}
