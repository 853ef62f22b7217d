package metrics

import (
	"context"
	"time"

	"github.com/medb/medb/internal/model"
	"github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
)

// Wrap returns a CatalogStore that records StoreLatency for every operation.
func Wrap(inner store.CatalogStore) store.CatalogStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.CatalogStore
}

func observe(op string, start time.Time) {
	if security.StoreLatency == nil {
		return
	}
	security.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// --- Identity ---

func (m *metricsStore) CreateUser(ctx context.Context, user *model.User) error {
	defer observe("create_user", time.Now())
	return m.inner.CreateUser(ctx, user)
}

func (m *metricsStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	defer observe("get_user", time.Now())
	return m.inner.GetUser(ctx, userID)
}

func (m *metricsStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	defer observe("find_user_by_username", time.Now())
	return m.inner.FindUserByUsername(ctx, username)
}

func (m *metricsStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	defer observe("username_exists", time.Now())
	return m.inner.UsernameExists(ctx, username)
}

func (m *metricsStore) SetUsername(ctx context.Context, userID, username string) error {
	defer observe("set_username", time.Now())
	return m.inner.SetUsername(ctx, userID, username)
}

func (m *metricsStore) UpdateProfile(ctx context.Context, userID string, update store.ProfileUpdate) (*model.User, error) {
	defer observe("update_profile", time.Now())
	return m.inner.UpdateProfile(ctx, userID, update)
}

func (m *metricsStore) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	defer observe("touch_last_active", time.Now())
	return m.inner.TouchLastActive(ctx, userID, at)
}

func (m *metricsStore) GetUsers(ctx context.Context, userIDs []string) ([]model.User, error) {
	defer observe("get_users", time.Now())
	return m.inner.GetUsers(ctx, userIDs)
}

func (m *metricsStore) IncrementTotal(ctx context.Context, userID string, ref model.BucketRef) (int64, error) {
	defer observe("increment_total", time.Now())
	return m.inner.IncrementTotal(ctx, userID, ref)
}

func (m *metricsStore) DecrementTotalIfEquals(ctx context.Context, userID string, ref model.BucketRef, expected int64) (bool, error) {
	defer observe("decrement_total", time.Now())
	return m.inner.DecrementTotalIfEquals(ctx, userID, ref, expected)
}

func (m *metricsStore) DefineCategory(ctx context.Context, userID, name string) error {
	defer observe("define_category", time.Now())
	return m.inner.DefineCategory(ctx, userID, name)
}

func (m *metricsStore) RemoveCategory(ctx context.Context, userID, name string) error {
	defer observe("remove_category", time.Now())
	return m.inner.RemoveCategory(ctx, userID, name)
}

func (m *metricsStore) SetTierLabel(ctx context.Context, userID string, ref model.BucketRef, toDo bool, tier, label string) error {
	defer observe("set_tier_label", time.Now())
	return m.inner.SetTierLabel(ctx, userID, ref, toDo, tier, label)
}

// --- Friends ---

func (m *metricsStore) AddFriendRequest(ctx context.Context, req model.FriendRequest) error {
	defer observe("add_friend_request", time.Now())
	return m.inner.AddFriendRequest(ctx, req)
}

func (m *metricsStore) ResolveFriendRequest(ctx context.Context, from, to string, status model.FriendRequestStatus) (bool, error) {
	defer observe("resolve_friend_request", time.Now())
	return m.inner.ResolveFriendRequest(ctx, from, to, status)
}

func (m *metricsStore) AddFriendship(ctx context.Context, a, b string) error {
	defer observe("add_friendship", time.Now())
	return m.inner.AddFriendship(ctx, a, b)
}

func (m *metricsStore) RemoveFriendship(ctx context.Context, a, b string) error {
	defer observe("remove_friendship", time.Now())
	return m.inner.RemoveFriendship(ctx, a, b)
}

// --- Items ---

func (m *metricsStore) InsertItem(ctx context.Context, item *model.Item) error {
	defer observe("insert_item", time.Now())
	return m.inner.InsertItem(ctx, item)
}

func (m *metricsStore) GetItem(ctx context.Context, userID, category string, id int64) (*model.Item, error) {
	defer observe("get_item", time.Now())
	return m.inner.GetItem(ctx, userID, category, id)
}

func (m *metricsStore) ListItems(ctx context.Context, q store.ItemQuery) ([]model.Item, error) {
	defer observe("list_items", time.Now())
	return m.inner.ListItems(ctx, q)
}

func (m *metricsStore) MaxOrderIndex(ctx context.Context, key model.ListKey) (float64, bool, error) {
	defer observe("max_order_index", time.Now())
	return m.inner.MaxOrderIndex(ctx, key)
}

func (m *metricsStore) UpdateItem(ctx context.Context, userID, category string, id int64, update store.ItemUpdate) (*model.Item, error) {
	defer observe("update_item", time.Now())
	return m.inner.UpdateItem(ctx, userID, category, id, update)
}

func (m *metricsStore) DeleteItem(ctx context.Context, userID, category string, id int64) (*model.Item, error) {
	defer observe("delete_item", time.Now())
	return m.inner.DeleteItem(ctx, userID, category, id)
}

func (m *metricsStore) DeleteCategoryItems(ctx context.Context, userID, category string) (int64, error) {
	defer observe("delete_category_items", time.Now())
	return m.inner.DeleteCategoryItems(ctx, userID, category)
}

func (m *metricsStore) SetOrderIndexes(ctx context.Context, key model.ListKey, ids []int64) error {
	defer observe("set_order_indexes", time.Now())
	return m.inner.SetOrderIndexes(ctx, key, ids)
}

// --- Share links ---

func (m *metricsStore) UpsertShareLink(ctx context.Context, link *model.ShareLink) (*model.ShareLink, bool, error) {
	defer observe("upsert_share_link", time.Now())
	return m.inner.UpsertShareLink(ctx, link)
}

func (m *metricsStore) GetShareLink(ctx context.Context, userID, category string) (*model.ShareLink, error) {
	defer observe("get_share_link", time.Now())
	return m.inner.GetShareLink(ctx, userID, category)
}

func (m *metricsStore) GetShareLinkByToken(ctx context.Context, token string) (*model.ShareLink, error) {
	defer observe("get_share_link_by_token", time.Now())
	return m.inner.GetShareLinkByToken(ctx, token)
}

func (m *metricsStore) DeleteShareLink(ctx context.Context, userID, category string) error {
	defer observe("delete_share_link", time.Now())
	return m.inner.DeleteShareLink(ctx, userID, category)
}

func (m *metricsStore) ListShareLinks(ctx context.Context, userID string) ([]model.ShareLink, error) {
	defer observe("list_share_links", time.Now())
	return m.inner.ListShareLinks(ctx, userID)
}

// --- Admin ---

func (m *metricsStore) CountUsers(ctx context.Context) (int64, error) {
	defer observe("count_users", time.Now())
	return m.inner.CountUsers(ctx)
}

func (m *metricsStore) CountActivity(ctx context.Context, field store.ActivityField, since time.Time, period store.Period) ([]store.PeriodCount, error) {
	defer observe("count_activity", time.Now())
	return m.inner.CountActivity(ctx, field, since, period)
}

func (m *metricsStore) ListUsersPage(ctx context.Context, q store.AdminUserQuery) ([]store.AdminUser, error) {
	defer observe("list_users_page", time.Now())
	return m.inner.ListUsersPage(ctx, q)
}

func (m *metricsStore) Ping(ctx context.Context) error {
	return m.inner.Ping(ctx)
}

func (m *metricsStore) Close(ctx context.Context) error {
	return m.inner.Close(ctx)
}
