// Package catalog implements per-user media catalog semantics: sequence
// number allocation, placement within tier lists, bulk reordering and the
// item lifecycle built on top of them.
package catalog

import (
	"context"
	"fmt"

	"github.com/medb/medb/internal/model"
	"github.com/medb/medb/internal/security"
)

// Counters is the atomic counter surface of the identity store.
type Counters interface {
	IncrementTotal(ctx context.Context, userID string, ref model.BucketRef) (int64, error)
	DecrementTotalIfEquals(ctx context.Context, userID string, ref model.BucketRef, expected int64) (bool, error)
}

// Allocator hands out per-(user, category) sequence numbers using the
// bucket total as a high-water mark.
type Allocator struct {
	counters Counters
}

// NewAllocator returns an Allocator backed by counters.
func NewAllocator(counters Counters) *Allocator {
	return &Allocator{counters: counters}
}

// Allocate returns the next sequence number of the bucket. The increment is
// a single atomic update on the identity store; a missing bucket starts at
// zero so the first number is 1. A number that is never persisted as an
// item is burned and must not be reused.
func (a *Allocator) Allocate(ctx context.Context, userID string, ref model.BucketRef) (int64, error) {
	n, err := a.counters.IncrementTotal(ctx, userID, ref)
	if err != nil {
		return 0, fmt.Errorf("allocate %s sequence number: %w", ref.Category, err)
	}
	security.CountAllocation()
	return n, nil
}

// ReleaseIfTail rolls the bucket total back by one when seq is the current
// total. A mismatch means a newer number was handed out and is not an error.
func (a *Allocator) ReleaseIfTail(ctx context.Context, userID string, ref model.BucketRef, seq int64) error {
	reclaimed, err := a.counters.DecrementTotalIfEquals(ctx, userID, ref, seq)
	if err != nil {
		return fmt.Errorf("release %s sequence number %d: %w", ref.Category, seq, err)
	}
	if reclaimed {
		security.CountReclaim()
	}
	return nil
}
