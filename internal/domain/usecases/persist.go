package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
	"github.com/0xcro3dile/chatcart/internal/domain/ports"
)

// LoadResult describes how a store was rehydrated.
type LoadResult struct {
	Found   bool  // a value was stored under the key
	Corrupt bool  // the stored value was unusable and was replaced by the default
	Err     error // the store itself failed; the default was used
}

// WriteStatus is the outcome of the most recent persistence write.
// Write failures never reach callers of the mutating operation; this is
// where they can be observed.
type WriteStatus struct {
	Key      string
	At       time.Time
	Err      error
	Writes   int
	Failures int
}

// snapshot saves and restores one JSON value under a fixed key.
type snapshot struct {
	store  ports.PersistentStore
	key    string
	clock  ports.Clock
	logger *zap.Logger

	mu     sync.Mutex
	status WriteStatus
}

func newSnapshot(store ports.PersistentStore, key string, clock ports.Clock, logger *zap.Logger) *snapshot {
	return &snapshot{
		store:  store,
		key:    key,
		clock:  clock,
		logger: logger,
		status: WriteStatus{Key: key},
	}
}

// load decodes the stored value into dst and runs validate over it.
// Any failure is logged and reported in the result; dst must then be discarded.
func (s *snapshot) load(ctx context.Context, dst any, validate func() error) LoadResult {
	if s.store == nil {
		return LoadResult{}
	}
	raw, found, err := s.store.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("reading persisted state failed", zap.String("key", s.key), zap.Error(err))
		return LoadResult{Err: err}
	}
	if !found {
		return LoadResult{}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logCorrupt(err)
		return LoadResult{Found: true, Corrupt: true}
	}
	if validate != nil {
		if err := validate(); err != nil {
			s.logCorrupt(err)
			return LoadResult{Found: true, Corrupt: true}
		}
	}
	return LoadResult{Found: true}
}

func (s *snapshot) logCorrupt(err error) {
	s.logger.Warn("discarding persisted state",
		zap.String("key", s.key),
		zap.Error(fmt.Errorf("%w: %v", entities.ErrPersistenceCorrupt, err)))
}

// save serializes v under the key. Failures are logged and recorded, never returned.
func (s *snapshot) save(ctx context.Context, v any) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(v)
	if err == nil {
		err = s.store.Set(ctx, s.key, data)
	}
	s.record(err)
}

// erase deletes the key.
func (s *snapshot) erase(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.record(s.store.Delete(ctx, s.key))
}

func (s *snapshot) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.At = s.clock.Now()
	s.status.Err = err
	s.status.Writes++
	if err != nil {
		s.status.Failures++
		s.logger.Error("persisting state failed", zap.String("key", s.key), zap.Error(err))
	}
}

func (s *snapshot) lastWrite() WriteStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func orSystemClock(clock ports.Clock) ports.Clock {
	if clock == nil {
		return ports.SystemClock{}
	}
	return clock
}
