package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"restaurant-pos/internal/logger"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("syncer closed")

const defaultWriteTimeout = 5 * time.Second

// SyncStatus reports whether in-memory state has reached the store.
type SyncStatus struct {
	InSync       bool      `json:"in_sync"`
	Pending      int       `json:"pending"`
	FailedKeys   []string  `json:"failed_keys"`
	LastError    string    `json:"last_error,omitempty"`
	LastSyncedAt time.Time `json:"last_synced_at,omitempty"`
}

type requestKind int

const (
	kindFlush requestKind = iota
	kindSaveNow
	kindRetry
)

type syncRequest struct {
	kind    requestKind
	ctx     context.Context
	entries map[string]string
	reply   chan error
}

// Syncer serializes all writes to a Store through one goroutine. Save
// queues a write without waiting (the latest value per key wins); SaveNow
// waits for an atomic write. Queued writes always land before a later
// SaveNow, so the store never goes backwards.
type Syncer struct {
	store        Store
	logger       *logger.Logger
	writeTimeout time.Duration

	mu       sync.Mutex
	queued   map[string]string
	failed   map[string]string
	lastErr  error
	lastSync time.Time

	wake      chan struct{}
	reqs      chan syncRequest
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewSyncer starts the write loop for store.
func NewSyncer(store Store, log *logger.Logger) *Syncer {
	s := &Syncer{
		store:        store,
		logger:       log,
		writeTimeout: defaultWriteTimeout,
		queued:       make(map[string]string),
		failed:       make(map[string]string),
		wake:         make(chan struct{}, 1),
		reqs:         make(chan syncRequest),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go s.loop()
	return s
}

// Get reads straight from the store.
func (s *Syncer) Get(ctx context.Context, key string) (string, error) {
	return s.store.Get(ctx, key)
}

// Save queues value for key. Failures are recorded, not returned.
func (s *Syncer) Save(key, value string) {
	s.mu.Lock()
	s.queued[key] = value
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SaveNow writes entries atomically after any queued writes. A failure is
// returned to the caller and is not kept for Retry.
func (s *Syncer) SaveNow(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return s.submit(ctx, kindFlush, nil)
	}
	return s.submit(ctx, kindSaveNow, entries)
}

// Flush waits until every queued write has been attempted and reports the
// last error while any key remains unwritten.
func (s *Syncer) Flush(ctx context.Context) error {
	if err := s.submit(ctx, kindFlush, nil); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failed) > 0 {
		return s.lastErr
	}
	return nil
}

// Retry rewrites the keys whose last queued write failed. Queued writes go
// first, so a key they refresh is not rewritten with its older value.
func (s *Syncer) Retry(ctx context.Context) error {
	if err := s.submit(ctx, kindRetry, nil); err != nil {
		return err
	}
	return s.Flush(ctx)
}

func (s *Syncer) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SyncStatus{
		InSync:       len(s.failed) == 0,
		Pending:      len(s.queued),
		FailedKeys:   sortedKeys(s.failed),
		LastSyncedAt: s.lastSync,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Close flushes queued writes and stops the loop. The store stays open.
func (s *Syncer) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	return nil
}

func (s *Syncer) submit(ctx context.Context, kind requestKind, entries map[string]string) error {
	req := syncRequest{kind: kind, ctx: ctx, entries: entries, reply: make(chan error, 1)}

	select {
	case s.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}

	// The write honours ctx itself; waiting here keeps the caller's view of
	// the outcome identical to what reached the store.
	return <-req.reply
}

func (s *Syncer) loop() {
	defer close(s.done)

	for {
		select {
		case <-s.wake:
			s.flushQueued()
		case req := <-s.reqs:
			flushErr := s.flushQueued()
			switch req.kind {
			case kindSaveNow:
				req.reply <- s.writeNow(req.ctx, req.entries)
			case kindRetry:
				req.reply <- s.retryFailed(req.ctx)
			default:
				req.reply <- flushErr
			}
		case <-s.stop:
			s.flushQueued()
			return
		}
	}
}

func (s *Syncer) flushQueued() error {
	s.mu.Lock()
	if len(s.queued) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.queued
	s.queued = make(map[string]string)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	return s.writeTracked(ctx, batch)
}

// retryFailed runs on the loop after flushQueued, so every key still in
// s.failed has no newer value waiting.
func (s *Syncer) retryFailed(ctx context.Context) error {
	s.mu.Lock()
	batch := make(map[string]string, len(s.failed))
	for k, v := range s.failed {
		batch[k] = v
	}
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	s.logger.Info("store_retry", "Retrying failed snapshot writes", "", map[string]interface{}{
		"keys": sortedKeys(batch),
	})
	return s.writeTracked(ctx, batch)
}

// writeTracked writes a queued batch and remembers its keys on failure.
func (s *Syncer) writeTracked(ctx context.Context, entries map[string]string) error {
	err := s.store.SetMany(ctx, entries)

	s.mu.Lock()
	if err != nil {
		for k, v := range entries {
			s.failed[k] = v
		}
		s.lastErr = err
	} else {
		s.markWrittenLocked(entries)
	}
	s.mu.Unlock()

	if err != nil {
		s.logWriteFailure(err, entries)
	}
	return err
}

// writeNow writes a SaveNow batch. The caller gets the error and rolls its
// own state back, so a failed batch is never replayed.
func (s *Syncer) writeNow(ctx context.Context, entries map[string]string) error {
	err := s.store.SetMany(ctx, entries)
	if err != nil {
		s.logWriteFailure(err, entries)
		return err
	}

	s.mu.Lock()
	s.markWrittenLocked(entries)
	s.mu.Unlock()
	return nil
}

// markWrittenLocked clears entries from the failed set. Caller holds s.mu.
func (s *Syncer) markWrittenLocked(entries map[string]string) {
	for k := range entries {
		delete(s.failed, k)
	}
	if len(s.failed) == 0 {
		s.lastErr = nil
	}
	s.lastSync = time.Now().UTC()
}

func (s *Syncer) logWriteFailure(err error, entries map[string]string) {
	s.logger.Error("store_write_failed", "Failed to persist snapshot", "", err, map[string]interface{}{
		"keys": sortedKeys(entries),
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
