package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// Default in-memory store limits.
const defaultMaxSnapshotsPerUser = 1000

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithMaxSnapshotsPerUser bounds the per-user snapshot history; oldest
// snapshots are dropped past the limit.
func WithMaxSnapshotsPerUser(n int) MemOption {
	return func(s *MemStore) {
		if n > 0 {
			s.maxSnapshots = n
		}
	}
}

// MemStore implements Store entirely in memory. It backs tests and
// default development runs.
type MemStore struct {
	mu           sync.RWMutex
	maxSnapshots int

	snapshots map[string][]model.BrainOutput
	published map[string]model.PublishedVelocityState
	baselines map[string]map[string]model.PersonalBaseline
	readings  map[string][]model.BiomarkerReading
	samples   map[string]map[string][]model.WearableSample // user -> metric -> samples
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		maxSnapshots: defaultMaxSnapshotsPerUser,
		snapshots:    make(map[string][]model.BrainOutput),
		published:    make(map[string]model.PublishedVelocityState),
		baselines:    make(map[string]map[string]model.PersonalBaseline),
		readings:     make(map[string][]model.BiomarkerReading),
		samples:      make(map[string]map[string][]model.WearableSample),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendSnapshot persists one immutable evaluation result.
func (s *MemStore) AppendSnapshot(_ context.Context, out model.BrainOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.snapshots[out.UserID], out)
	if len(list) > s.maxSnapshots {
		list = list[len(list)-s.maxSnapshots:]
	}
	s.snapshots[out.UserID] = list
	return nil
}

// LatestSnapshot returns the most recent snapshot for a user.
func (s *MemStore) LatestSnapshot(_ context.Context, userID string) (model.BrainOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.snapshots[userID]
	if len(list) == 0 {
		return model.BrainOutput{}, ErrNotFound
	}
	return list[len(list)-1], nil
}

// SnapshotCount returns the number of snapshots stored for a user.
func (s *MemStore) SnapshotCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots[userID]), nil
}

// GetPublished returns the user's current published state.
func (s *MemStore) GetPublished(_ context.Context, userID string) (model.PublishedVelocityState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.published[userID]
	if !ok {
		return model.PublishedVelocityState{}, ErrNotFound
	}
	return st, nil
}

// PutPublished writes the state under optimistic concurrency.
func (s *MemStore) PutPublished(_ context.Context, state model.PublishedVelocityState, expectedVersion int64) (model.PublishedVelocityState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.published[state.UserID]
	switch {
	case !exists && expectedVersion != 0:
		return model.PublishedVelocityState{}, ErrVersionConflict
	case exists && current.Version != expectedVersion:
		return model.PublishedVelocityState{}, ErrVersionConflict
	}

	state.Version = expectedVersion + 1
	s.published[state.UserID] = state
	return state, nil
}

// Baselines returns all baselines for a user keyed by biomarker.
func (s *MemStore) Baselines(_ context.Context, userID string) (map[string]model.PersonalBaseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.PersonalBaseline, len(s.baselines[userID]))
	for k, v := range s.baselines[userID] {
		out[k] = v
	}
	return out, nil
}

// PutBaseline supersedes the baseline for its biomarker in place.
func (s *MemStore) PutBaseline(_ context.Context, userID string, b model.PersonalBaseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baselines[userID] == nil {
		s.baselines[userID] = make(map[string]model.PersonalBaseline)
	}
	s.baselines[userID][b.BiomarkerKey] = b
	return nil
}

// AppendReadings persists a parsed lab panel.
func (s *MemStore) AppendReadings(_ context.Context, userID string, readings []model.BiomarkerReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[userID] = append(s.readings[userID], readings...)
	sort.SliceStable(s.readings[userID], func(i, j int) bool {
		return s.readings[userID][i].TestDate.Before(s.readings[userID][j].TestDate)
	})
	return nil
}

// Readings returns all readings for a user ordered by test date.
func (s *MemStore) Readings(_ context.Context, userID string) ([]model.BiomarkerReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.BiomarkerReading(nil), s.readings[userID]...), nil
}

// AppendSamples persists raw samples for one metric type.
func (s *MemStore) AppendSamples(_ context.Context, userID, metricType string, samples []model.WearableSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samples[userID] == nil {
		s.samples[userID] = make(map[string][]model.WearableSample)
	}
	s.samples[userID][metricType] = append(s.samples[userID][metricType], samples...)
	return nil
}

// Samples returns raw samples per metric type within the date range.
func (s *MemStore) Samples(_ context.Context, userID string, metricTypes []string, from, to time.Time) (map[string][]model.WearableSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]model.WearableSample)
	user := s.samples[userID]
	for _, mt := range metricTypes {
		for _, sample := range user[mt] {
			if sample.Date.Before(from) || sample.Date.After(to) {
				continue
			}
			out[mt] = append(out[mt], sample)
		}
	}
	return out, nil
}
