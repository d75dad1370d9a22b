package store

import (
	"context"
	"errors"
	"time"

	"github.com/me/cyclelaunch/pkg/model"
)

// ErrLeaseHeld is returned by Acquire when another owner holds an unexpired lease.
var ErrLeaseHeld = errors.New("lease held by another run")

// Lease is a claim on a key until ExpiresAt.
type Lease struct {
	Key        string
	Owner      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Leaser grants exclusive, expiring claims on keys.
type Leaser interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (Lease, error)
	Release(ctx context.Context, lease Lease) error
}

// RunLog is the append-only audit of finished runs.
type RunLog interface {
	RecordRun(ctx context.Context, rec model.RunRecord) error
	ListRuns(ctx context.Context, experiment string, limit int) ([]model.RunRecord, error)
}

// LeaseKey returns the lease key for an experiment and cycle date.
func LeaseKey(experiment string, cycle time.Time) string {
	return experiment + "/" + cycle.Format(model.DateLayout)
}

// NoopLeaser grants every request. It is used when no lease database is configured.
type NoopLeaser struct{}

// Acquire always succeeds.
func (NoopLeaser) Acquire(_ context.Context, key, owner string, ttl time.Duration) (Lease, error) {
	now := time.Now().UTC()
	return Lease{Key: key, Owner: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)}, nil
}

// Release does nothing.
func (NoopLeaser) Release(context.Context, Lease) error { return nil }
