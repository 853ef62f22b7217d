package catalog

import (
	"context"
	"fmt"

	"github.com/medb/medb/internal/model"
)

// OrderIndexReader finds the current tail of a list.
type OrderIndexReader interface {
	MaxOrderIndex(ctx context.Context, key model.ListKey) (float64, bool, error)
}

// PlaceAtEnd returns the orderIndex that appends a new item to the list:
// 0 for an empty list, otherwise the current maximum plus one. It is not
// atomic with the insert; equal indices are ordered by title at read time.
func PlaceAtEnd(ctx context.Context, items OrderIndexReader, key model.ListKey) (float64, error) {
	tail, found, err := items.MaxOrderIndex(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("find tail of %s/%s/%s: %w", key.Category, model.GroupName(key.ToDo), key.Tier, err)
	}
	if !found {
		return 0, nil
	}
	return tail + 1, nil
}
