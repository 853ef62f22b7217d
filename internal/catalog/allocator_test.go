package catalog_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/medb/medb/internal/catalog"
	"github.com/medb/medb/internal/model"
	"github.com/medb/medb/internal/plugin/store/memory"
	"github.com/stretchr/testify/require"
)

var movies = model.BucketRef{Category: model.CategoryMovies}

func newUser(t *testing.T, store *memory.Store, id string) *model.User {
	t.Helper()
	u := model.NewUser(id, "Test User", id+"@example.com", "", time.Now().UTC())
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func TestAllocate_StartsAtOne(t *testing.T) {
	store := memory.New()
	newUser(t, store, "u1")
	alloc := catalog.NewAllocator(store)

	n, err := alloc.Allocate(context.Background(), "u1", movies)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestAllocate_ConcurrentIsDense(t *testing.T) {
	const n = 50
	store := memory.New()
	newUser(t, store, "u1")
	alloc := catalog.NewAllocator(store)

	var wg sync.WaitGroup
	results := make([]int64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = alloc.Allocate(context.Background(), "u1", movies)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, seq := range results {
		require.Equal(t, int64(i+1), seq)
	}
}

func TestAllocate_CustomCategoryStartsFromMissingBucket(t *testing.T) {
	store := memory.New()
	newUser(t, store, "u1")
	alloc := catalog.NewAllocator(store)
	books := model.BucketRef{Category: "books", Custom: true}

	n, err := alloc.Allocate(context.Background(), "u1", books)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	u, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, int64(1), u.Bucket(books).Total)
}

func TestAllocate_UnknownUser(t *testing.T) {
	alloc := catalog.NewAllocator(memory.New())
	_, err := alloc.Allocate(context.Background(), "ghost", movies)
	require.Error(t, err)
}

func TestReleaseIfTail_ReclaimsOnlyTail(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	newUser(t, store, "u1")
	alloc := catalog.NewAllocator(store)
	for i := 0; i < 5; i++ {
		_, err := alloc.Allocate(ctx, "u1", movies)
		require.NoError(t, err)
	}

	// Not the tail: no change.
	require.NoError(t, alloc.ReleaseIfTail(ctx, "u1", movies, 3))
	next, err := alloc.Allocate(ctx, "u1", movies)
	require.NoError(t, err)
	require.Equal(t, int64(6), next)

	// Tail: reclaimed and handed out again.
	require.NoError(t, alloc.ReleaseIfTail(ctx, "u1", movies, 6))
	next, err = alloc.Allocate(ctx, "u1", movies)
	require.NoError(t, err)
	require.Equal(t, int64(6), next)
}

func TestReleaseIfTail_StaleReleaseIsNoop(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	newUser(t, store, "u1")
	alloc := catalog.NewAllocator(store)
	for i := 0; i < 3; i++ {
		_, err := alloc.Allocate(ctx, "u1", movies)
		require.NoError(t, err)
	}
	require.NoError(t, alloc.ReleaseIfTail(ctx, "u1", movies, 3))
	require.NoError(t, alloc.ReleaseIfTail(ctx, "u1", movies, 3))

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(2), u.Movies.Total)
}
