package catalog

import (
	"context"
	"fmt"

	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
)

// OrderIndexWriter applies a batch of orderIndex assignments as one write.
type OrderIndexWriter interface {
	SetOrderIndexes(ctx context.Context, key model.ListKey, ids []int64) error
}

// ReorderResult reports what a reorder did.
type ReorderResult struct {
	NoChanges bool
}

// Reorder sets the orderIndex of ids[i] to i within the list. An empty list
// is a no-op. Ids that no longer exist are skipped by the store, and
// applying the same list twice yields the same state.
func Reorder(ctx context.Context, items OrderIndexWriter, key model.ListKey, ids []int64) (ReorderResult, error) {
	if len(ids) == 0 {
		return ReorderResult{NoChanges: true}, nil
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return ReorderResult{}, &registrystore.ValidationError{Field: "orderedIds", Message: fmt.Sprintf("invalid id %d", id)}
		}
		if _, dup := seen[id]; dup {
			return ReorderResult{}, &registrystore.ValidationError{Field: "orderedIds", Message: fmt.Sprintf("duplicate id %d", id)}
		}
		seen[id] = struct{}{}
	}
	if err := items.SetOrderIndexes(ctx, key, ids); err != nil {
		return ReorderResult{}, fmt.Errorf("reorder %s/%s/%s: %w", key.Category, model.GroupName(key.ToDo), key.Tier, err)
	}
	return ReorderResult{}, nil
}
