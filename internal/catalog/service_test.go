package catalog_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medb/medb/internal/catalog"
	"github.com/medb/medb/internal/model"
	"github.com/medb/medb/internal/plugin/store/memory"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*catalog.Service, *memory.Store, *model.User) {
	t.Helper()
	store := memory.New()
	u := newUser(t, store, "u1")
	return catalog.NewService(store), store, u
}

func create(t *testing.T, svc *catalog.Service, u *model.User, title, tier string) *model.Item {
	t.Helper()
	it, err := svc.CreateItem(context.Background(), u, catalog.NewItem{Category: "movies", Title: title, Tier: tier})
	require.NoError(t, err)
	return it
}

func TestCreateItem_AllocatesAndAppends(t *testing.T) {
	svc, _, u := setupService(t)

	a := create(t, svc, u, "Alien", "S")
	b := create(t, svc, u, "Brazil", "S")
	c := create(t, svc, u, "Casablanca", "A")

	require.Equal(t, int64(1), a.ID)
	require.Equal(t, int64(2), b.ID)
	require.Equal(t, int64(3), c.ID)
	require.Equal(t, float64(0), a.OrderIndex)
	require.Equal(t, float64(1), b.OrderIndex)
	require.Equal(t, float64(0), c.OrderIndex, "first item of tier A")
}

func TestCreateItem_Validation(t *testing.T) {
	svc, _, u := setupService(t)
	ctx := context.Background()

	cases := []catalog.NewItem{
		{Category: "movies", Title: "  ", Tier: "S"},
		{Category: "movies", Title: "x", Tier: ""},
		{Category: "books", Title: "x", Tier: "S"},
	}
	for _, in := range cases {
		_, err := svc.CreateItem(ctx, u, in)
		var verr *registrystore.ValidationError
		require.True(t, errors.As(err, &verr), "%+v", in)
	}
}

func TestCreateItem_NormalizesTags(t *testing.T) {
	svc, _, u := setupService(t)
	it, err := svc.CreateItem(context.Background(), u, catalog.NewItem{
		Category: "movies", Title: "x", Tier: "S", Tags: []string{"Sci Fi", "sci fi", " Horror "},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"sci-fi", "horror"}, it.Tags)
}

type failingInsert struct {
	*memory.Store
}

func (failingInsert) InsertItem(context.Context, *model.Item) error {
	return errors.New("disk full")
}

func TestCreateItem_InsertFailureBurnsNumber(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u := newUser(t, store, "u1")

	_, err := catalog.NewService(failingInsert{store}).CreateItem(ctx, u, catalog.NewItem{Category: "movies", Title: "x", Tier: "S"})
	require.ErrorContains(t, err, "disk full")

	it, err := catalog.NewService(store).CreateItem(ctx, u, catalog.NewItem{Category: "movies", Title: "y", Tier: "S"})
	require.NoError(t, err)
	require.Equal(t, int64(2), it.ID)
}

func TestDeleteItem_TailIsReclaimed(t *testing.T) {
	ctx := context.Background()
	svc, _, u := setupService(t)
	for _, title := range []string{"a", "b", "c"} {
		create(t, svc, u, title, "S")
	}

	deleted, err := svc.DeleteItem(ctx, u, "movies", 3)
	require.NoError(t, err)
	require.Equal(t, "c", deleted.Title)

	next := create(t, svc, u, "d", "S")
	require.Equal(t, int64(3), next.ID)
}

func TestDeleteItem_MiddleIsNotReclaimed(t *testing.T) {
	ctx := context.Background()
	svc, _, u := setupService(t)
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		create(t, svc, u, title, "S")
	}

	_, err := svc.DeleteItem(ctx, u, "movies", 3)
	require.NoError(t, err)

	next := create(t, svc, u, "f", "S")
	require.Equal(t, int64(6), next.ID)
}

func TestDeleteItem_NotFound(t *testing.T) {
	svc, _, u := setupService(t)
	_, err := svc.DeleteItem(context.Background(), u, "movies", 42)
	var nf *registrystore.NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestUpdateItem_MoveAppendsToNewList(t *testing.T) {
	ctx := context.Background()
	svc, _, u := setupService(t)
	create(t, svc, u, "a", "A")
	create(t, svc, u, "b", "A")
	moving := create(t, svc, u, "c", "S")

	tier := "A"
	updated, err := svc.UpdateItem(ctx, u.ID, "movies", moving.ID, catalog.ItemPatch{Tier: &tier})
	require.NoError(t, err)
	require.Equal(t, "A", updated.Tier)
	require.Equal(t, float64(2), updated.OrderIndex)

	toDo := true
	updated, err = svc.UpdateItem(ctx, u.ID, "movies", moving.ID, catalog.ItemPatch{ToDo: &toDo})
	require.NoError(t, err)
	require.True(t, updated.ToDo)
	require.Equal(t, float64(0), updated.OrderIndex)
}

func TestUpdateItem_SameTierKeepsPosition(t *testing.T) {
	ctx := context.Background()
	svc, _, u := setupService(t)
	create(t, svc, u, "a", "S")
	b := create(t, svc, u, "b", "S")

	tier := "S"
	title := "  renamed "
	updated, err := svc.UpdateItem(ctx, u.ID, "movies", b.ID, catalog.ItemPatch{Tier: &tier, Title: &title})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Title)
	require.Equal(t, float64(1), updated.OrderIndex)
}

func TestUpdateItem_ClearYear(t *testing.T) {
	ctx := context.Background()
	svc, _, u := setupService(t)
	y := catalog.YearDate(1999)
	it, err := svc.CreateItem(ctx, u, catalog.NewItem{Category: "movies", Title: "Matrix", Tier: "S", Year: &y})
	require.NoError(t, err)
	require.Equal(t, 1999, it.Year.Year())

	updated, err := svc.UpdateItem(ctx, u.ID, "movies", it.ID, catalog.ItemPatch{ClearYear: true})
	require.NoError(t, err)
	require.Nil(t, updated.Year)
}

func TestListItems_DisplayOrderAndTags(t *testing.T) {
	ctx := context.Background()
	svc, _, u := setupService(t)
	for _, in := range []catalog.NewItem{
		{Category: "movies", Title: "b", Tier: "S", Tags: []string{"drama"}},
		{Category: "movies", Title: "a", Tier: "S", Tags: []string{"action"}},
		{Category: "movies", Title: "z", Tier: "A"},
		{Category: "movies", Title: "todo", Tier: "S", ToDo: true, Tags: []string{"later"}},
	} {
		_, err := svc.CreateItem(ctx, u, in)
		require.NoError(t, err)
	}

	items, tags, err := svc.ListItems(ctx, u.ID, "movies", false)
	require.NoError(t, err)
	var titles []string
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	require.Equal(t, []string{"z", "b", "a"}, titles)
	require.Equal(t, []string{"action", "drama"}, tags)
}

func TestReorder_ThroughService(t *testing.T) {
	ctx := context.Background()
	svc, _, u := setupService(t)
	create(t, svc, u, "a", "S")
	create(t, svc, u, "b", "S")
	create(t, svc, u, "c", "S")

	key := model.ListKey{UserID: u.ID, Category: "movies", Tier: "S"}
	_, err := svc.Reorder(ctx, key, []int64{3, 1, 2})
	require.NoError(t, err)

	items, _, err := svc.ListItems(ctx, u.ID, "movies", false)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 1, 2}, []int64{items[0].ID, items[1].ID, items[2].ID})

	res, err := svc.Reorder(ctx, key, []int64{})
	require.NoError(t, err)
	require.True(t, res.NoChanges)
}

func TestCustomCategoryLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, store, u := setupService(t)

	name, err := svc.DefineCategory(ctx, u.ID, "  Books ")
	require.NoError(t, err)
	require.Equal(t, "Books", name)

	_, err = svc.DefineCategory(ctx, u.ID, "Books")
	var conflict *registrystore.ConflictError
	require.True(t, errors.As(err, &conflict))

	_, err = svc.DefineCategory(ctx, u.ID, "movies")
	require.True(t, errors.As(err, &conflict))

	u, err = store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	it, err := svc.CreateItem(ctx, u, catalog.NewItem{Category: "Books", Title: "Dune", Tier: "S"})
	require.NoError(t, err)
	require.Equal(t, int64(1), it.ID)

	require.NoError(t, svc.RemoveCategory(ctx, u, "Books"))
	u, err = store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	_, ok := u.Ref("Books")
	require.False(t, ok)

	left, err := store.ListItems(ctx, registrystore.ItemQuery{UserID: u.ID, Category: "Books"})
	require.NoError(t, err)
	require.Empty(t, left)

	err = svc.RemoveCategory(ctx, u, "movies")
	require.Error(t, err)
}

func TestRenameTier(t *testing.T) {
	ctx := context.Background()
	svc, store, u := setupService(t)

	require.NoError(t, svc.RenameTier(ctx, u, "movies", "to-do", "S", "Must watch"))
	u, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "Must watch", u.Movies.TodoTiers["S"])
	require.Equal(t, "S Tier", u.Movies.CollectionTiers["S"])

	err = svc.RenameTier(ctx, u, "movies", "wishlist", "S", "x")
	var verr *registrystore.ValidationError
	require.True(t, errors.As(err, &verr))

	err = svc.RenameTier(ctx, u, "movies", "collection", "S", strings.Repeat("x", 51))
	require.True(t, errors.As(err, &verr))
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	svc, _, u := setupService(t)
	y := catalog.YearDate(1979)
	_, err := svc.CreateItem(ctx, u, catalog.NewItem{Category: "movies", Title: `Alien "Director's Cut"`, Tier: "S", Year: &y, Tags: []string{"sci fi", "horror"}})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, u, catalog.NewItem{Category: "anime", Title: "Akira", Tier: "A", ToDo: true, Description: "neo-tokyo"})
	require.NoError(t, err)

	csv, err := svc.Export(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		catalog.ExportHeader,
		`anime,"Akira",A,Yes,,,"neo-tokyo"`,
		`movies,"Alien ""Director's Cut""",S,No,1979-01-01,"sci-fi, horror",`,
	}, "\n"), csv)
}
