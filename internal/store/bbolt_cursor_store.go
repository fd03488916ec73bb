package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketThreadCursors = []byte("thread_cursors")

type bboltCursorStore struct {
	db *bolt.DB
}

// NewBboltCursorStore opens (or creates) the cursor database at path.
func NewBboltCursorStore(path string) (CursorStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("cursor db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketThreadCursors)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &bboltCursorStore{db: db}, nil
}

func (s *bboltCursorStore) Get(ctx context.Context, threadID string) (int64, error) {
	var seq int64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketThreadCursors)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(threadID))
		if len(raw) == 0 {
			return nil
		}
		parsed, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return err
		}
		seq = parsed
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *bboltCursorStore) Set(ctx context.Context, threadID string, seq int64) error {
	if seq < 0 {
		return ErrCursorRegression
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketThreadCursors)
		if b == nil {
			return errors.New("thread cursors bucket missing")
		}
		key := []byte(threadID)
		if raw := b.Get(key); len(raw) > 0 {
			current, err := strconv.ParseInt(string(raw), 10, 64)
			if err == nil && seq < current {
				return ErrCursorRegression
			}
		}
		return b.Put(key, []byte(strconv.FormatInt(seq, 10)))
	})
}

func (s *bboltCursorStore) Clear(ctx context.Context, threadID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketThreadCursors)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(threadID))
	})
}

func (s *bboltCursorStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
