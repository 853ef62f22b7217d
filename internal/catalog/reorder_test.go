package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/medb/medb/internal/catalog"
	"github.com/medb/medb/internal/model"
	"github.com/medb/medb/internal/plugin/store/memory"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/stretchr/testify/require"
)

type spyWriter struct {
	calls int
}

func (s *spyWriter) SetOrderIndexes(context.Context, model.ListKey, []int64) error {
	s.calls++
	return nil
}

func orderOf(t *testing.T, store *memory.Store, key model.ListKey) map[int64]float64 {
	t.Helper()
	toDo := key.ToDo
	items, err := store.ListItems(context.Background(), registrystore.ItemQuery{UserID: key.UserID, Category: key.Category, ToDo: &toDo})
	require.NoError(t, err)
	out := map[int64]float64{}
	for _, it := range items {
		if it.Tier == key.Tier {
			out[it.ID] = it.OrderIndex
		}
	}
	return out
}

func TestReorder_AssignsPositions(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	key := model.ListKey{UserID: "u1", Category: "anime", Tier: "A"}
	for _, id := range []int64{10, 20, 30} {
		require.NoError(t, store.InsertItem(ctx, &model.Item{UserID: "u1", Category: "anime", ID: id, Title: "t", Tier: "A", OrderIndex: float64(id)}))
	}

	res, err := catalog.Reorder(ctx, store, key, []int64{30, 10, 20})
	require.NoError(t, err)
	require.False(t, res.NoChanges)
	want := map[int64]float64{30: 0, 10: 1, 20: 2}
	require.Equal(t, want, orderOf(t, store, key))

	// Applying the same order again is idempotent.
	_, err = catalog.Reorder(ctx, store, key, []int64{30, 10, 20})
	require.NoError(t, err)
	require.Equal(t, want, orderOf(t, store, key))
}

func TestReorder_SkipsUnknownAndForeignIDs(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	key := model.ListKey{UserID: "u1", Category: "anime", Tier: "A"}
	require.NoError(t, store.InsertItem(ctx, &model.Item{UserID: "u1", Category: "anime", ID: 1, Title: "t", Tier: "A", OrderIndex: 5}))
	require.NoError(t, store.InsertItem(ctx, &model.Item{UserID: "u1", Category: "anime", ID: 2, Title: "t", Tier: "B", OrderIndex: 5}))

	_, err := catalog.Reorder(ctx, store, key, []int64{99, 2, 1})
	require.NoError(t, err)
	require.Equal(t, map[int64]float64{1: 2}, orderOf(t, store, key))

	other := orderOf(t, store, model.ListKey{UserID: "u1", Category: "anime", Tier: "B"})
	require.Equal(t, map[int64]float64{2: 5}, other)
}

func TestReorder_EmptyIsNoop(t *testing.T) {
	spy := &spyWriter{}
	res, err := catalog.Reorder(context.Background(), spy, model.ListKey{Tier: "S"}, nil)
	require.NoError(t, err)
	require.True(t, res.NoChanges)
	require.Zero(t, spy.calls)
}

func TestReorder_RejectsInvalidIDs(t *testing.T) {
	for _, ids := range [][]int64{{1, 2, 1}, {0}, {-4}} {
		spy := &spyWriter{}
		_, err := catalog.Reorder(context.Background(), spy, model.ListKey{Tier: "S"}, ids)
		var verr *registrystore.ValidationError
		require.True(t, errors.As(err, &verr), "%v", ids)
		require.Equal(t, "orderedIds", verr.Field)
		require.Zero(t, spy.calls)
	}
}
