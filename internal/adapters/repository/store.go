// Package repository defines the persistence contracts for the
// evaluation pipeline and provides in-memory and SQLite-backed
// implementations. Snapshot writes are append-only; the published
// velocity state is a single mutable row per user guarded by optimistic
// concurrency.
package repository

import (
	"context"
	"time"

	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// SnapshotStore is the append-only evaluation snapshot log.
type SnapshotStore interface {
	// AppendSnapshot persists one immutable evaluation result.
	AppendSnapshot(ctx context.Context, out model.BrainOutput) error

	// LatestSnapshot returns the most recent snapshot for a user.
	// Returns ErrNotFound when the user has never been evaluated.
	LatestSnapshot(ctx context.Context, userID string) (model.BrainOutput, error)

	// SnapshotCount returns the number of snapshots stored for a user.
	SnapshotCount(ctx context.Context, userID string) (int, error)
}

// PublishedStore is the single mutable published-velocity row per user.
type PublishedStore interface {
	// GetPublished returns the user's current published state.
	// Returns ErrNotFound when the user has never been published.
	GetPublished(ctx context.Context, userID string) (model.PublishedVelocityState, error)

	// PutPublished writes the state if the stored version still equals
	// expectedVersion (0 means "no row may exist yet"). On success the
	// returned state carries the incremented version. Returns
	// ErrVersionConflict when another writer got there first.
	PutPublished(ctx context.Context, state model.PublishedVelocityState, expectedVersion int64) (model.PublishedVelocityState, error)
}

// BaselineStore holds personal baselines per (user, biomarker).
type BaselineStore interface {
	// Baselines returns all baselines for a user keyed by biomarker.
	Baselines(ctx context.Context, userID string) (map[string]model.PersonalBaseline, error)

	// PutBaseline supersedes the baseline for its biomarker in place.
	PutBaseline(ctx context.Context, userID string, b model.PersonalBaseline) error
}

// LabStore holds name-normalized biomarker readings per user.
type LabStore interface {
	// AppendReadings persists a parsed lab panel.
	AppendReadings(ctx context.Context, userID string, readings []model.BiomarkerReading) error

	// Readings returns all readings for a user ordered by test date.
	Readings(ctx context.Context, userID string) ([]model.BiomarkerReading, error)
}

// WearableStore holds raw per-provider wearable samples per user.
type WearableStore interface {
	// AppendSamples persists raw samples for one metric type.
	AppendSamples(ctx context.Context, userID, metricType string, samples []model.WearableSample) error

	// Samples returns raw samples per metric type within the date range.
	Samples(ctx context.Context, userID string, metricTypes []string, from, to time.Time) (map[string][]model.WearableSample, error)
}

// Store bundles every persistence contract the pipeline needs.
type Store interface {
	SnapshotStore
	PublishedStore
	BaselineStore
	LabStore
	WearableStore
}
