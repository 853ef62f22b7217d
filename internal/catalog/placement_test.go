package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/medb/medb/internal/catalog"
	"github.com/medb/medb/internal/model"
	"github.com/medb/medb/internal/plugin/store/memory"
	"github.com/stretchr/testify/require"
)

func TestPlaceAtEnd_EmptyListIsZero(t *testing.T) {
	store := memory.New()
	key := model.ListKey{UserID: "u1", Category: "movies", Tier: "S"}

	idx, err := catalog.PlaceAtEnd(context.Background(), store, key)
	require.NoError(t, err)
	require.Equal(t, float64(0), idx)
}

func TestPlaceAtEnd_AfterMax(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for i, oi := range []float64{2, 7, 3} {
		require.NoError(t, store.InsertItem(ctx, &model.Item{
			UserID: "u1", Category: "movies", ID: int64(i + 1), Title: "t", Tier: "S", OrderIndex: oi,
		}))
	}
	// Items in another tier and list do not count.
	require.NoError(t, store.InsertItem(ctx, &model.Item{UserID: "u1", Category: "movies", ID: 9, Title: "t", Tier: "A", OrderIndex: 40}))
	require.NoError(t, store.InsertItem(ctx, &model.Item{UserID: "u1", Category: "movies", ID: 10, Title: "t", Tier: "S", ToDo: true, OrderIndex: 50}))

	idx, err := catalog.PlaceAtEnd(ctx, store, model.ListKey{UserID: "u1", Category: "movies", Tier: "S"})
	require.NoError(t, err)
	require.Equal(t, float64(8), idx)
}

type failingReader struct{}

func (failingReader) MaxOrderIndex(context.Context, model.ListKey) (float64, bool, error) {
	return 0, false, errors.New("boom")
}

func TestPlaceAtEnd_PropagatesError(t *testing.T) {
	_, err := catalog.PlaceAtEnd(context.Background(), failingReader{}, model.ListKey{Tier: "S"})
	require.ErrorContains(t, err, "boom")
}
