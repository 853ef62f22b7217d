package store

import (
	"context"
	"fmt"
	"time"

	"github.com/medb/medb/internal/model"
)

// ProfileUpdate carries the optional profile fields a user may change.
type ProfileUpdate struct {
	IsPublicProfile  *bool
	SharedListsOrder []string
}

// ItemQuery filters item listings. Empty Category means all categories;
// nil ToDo means both lists.
type ItemQuery struct {
	UserID   string
	Category string
	ToDo     *bool
}

// ItemUpdate is a partial item update. Nil fields are left unchanged.
type ItemUpdate struct {
	Title       *string
	Tier        *string
	ToDo        *bool
	OrderIndex  *float64
	Year        *time.Time
	ClearYear   bool
	Tags        *[]string
	Description *string
}

// ActivityField names the user timestamp an activity histogram is built from.
type ActivityField string

const (
	ActivityLastActive ActivityField = "lastActiveAt"
	ActivityCreated    ActivityField = "createdAt"
)

// Period is the bucket width of an activity histogram.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// Layout returns the Go time layout used to label a period bucket.
func (p Period) Layout() string {
	if p == PeriodMonth {
		return "2006-01"
	}
	return "2006-01-02"
}

// PeriodCount is one histogram bucket.
type PeriodCount struct {
	Period string `json:"period"`
	Count  int64  `json:"count"`
}

// AdminUserQuery pages through users for the admin dashboard.
type AdminUserQuery struct {
	Page  int
	Limit int
	Sort  string // lastActiveAt | createdAt | totalRecords
	Asc   bool
}

// AdminUser is a user summary row for the admin dashboard.
type AdminUser struct {
	ID           string     `json:"_id"`
	DisplayName  string     `json:"displayName"`
	Email        string     `json:"email,omitempty"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	TotalRecords int64      `json:"totalRecords"`
}

// IdentityStore persists users and their per-category buckets.
type IdentityStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	SetUsername(ctx context.Context, userID, username string) error
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*model.User, error)
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
	GetUsers(ctx context.Context, userIDs []string) ([]model.User, error)

	// IncrementTotal atomically adds one to the bucket's total and returns the
	// new value. A missing standard bucket starts at zero; a missing custom
	// bucket is a NotFoundError.
	IncrementTotal(ctx context.Context, userID string, ref model.BucketRef) (int64, error)
	// DecrementTotalIfEquals atomically subtracts one from the bucket's total
	// only when it currently equals expected. Reports whether it matched.
	DecrementTotalIfEquals(ctx context.Context, userID string, ref model.BucketRef, expected int64) (bool, error)

	DefineCategory(ctx context.Context, userID, name string) error
	RemoveCategory(ctx context.Context, userID, name string) error
	SetTierLabel(ctx context.Context, userID string, ref model.BucketRef, toDo bool, tier, label string) error
}

// FriendStore persists the friends graph. Requests are mirrored on both users.
type FriendStore interface {
	AddFriendRequest(ctx context.Context, req model.FriendRequest) error
	// ResolveFriendRequest moves the pending from->to request to status on
	// both users. Reports whether a pending request was found.
	ResolveFriendRequest(ctx context.Context, from, to string, status model.FriendRequestStatus) (bool, error)
	AddFriendship(ctx context.Context, a, b string) error
	RemoveFriendship(ctx context.Context, a, b string) error
}

// ItemStore persists media items keyed by (user, category, sequence number).
type ItemStore interface {
	InsertItem(ctx context.Context, item *model.Item) error
	GetItem(ctx context.Context, userID, category string, id int64) (*model.Item, error)
	// ListItems returns matching items in display order.
	ListItems(ctx context.Context, q ItemQuery) ([]model.Item, error)
	// MaxOrderIndex returns the largest orderIndex in the list, and false when
	// the list is empty.
	MaxOrderIndex(ctx context.Context, key model.ListKey) (float64, bool, error)
	UpdateItem(ctx context.Context, userID, category string, id int64, update ItemUpdate) (*model.Item, error)
	DeleteItem(ctx context.Context, userID, category string, id int64) (*model.Item, error)
	DeleteCategoryItems(ctx context.Context, userID, category string) (int64, error)
	// SetOrderIndexes assigns orderIndex i to ids[i] within the list as one
	// batched write. Ids that do not match an item are ignored.
	SetOrderIndexes(ctx context.Context, key model.ListKey, ids []int64) error
}

// ShareStore persists share links.
type ShareStore interface {
	// UpsertShareLink creates the (user, category) link or updates the config
	// of the existing one, keeping its token. Reports whether it existed.
	UpsertShareLink(ctx context.Context, link *model.ShareLink) (*model.ShareLink, bool, error)
	GetShareLink(ctx context.Context, userID, category string) (*model.ShareLink, error)
	GetShareLinkByToken(ctx context.Context, token string) (*model.ShareLink, error)
	DeleteShareLink(ctx context.Context, userID, category string) error
	ListShareLinks(ctx context.Context, userID string) ([]model.ShareLink, error)
}

// AdminStore serves the admin dashboard aggregates.
type AdminStore interface {
	CountUsers(ctx context.Context) (int64, error)
	CountActivity(ctx context.Context, field ActivityField, since time.Time, period Period) ([]PeriodCount, error)
	ListUsersPage(ctx context.Context, q AdminUserQuery) ([]AdminUser, error)
}

// CatalogStore is the full persistence surface of the service.
type CatalogStore interface {
	IdentityStore
	FriendStore
	ItemStore
	ShareStore
	AdminStore
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Loader creates a CatalogStore from config.
type Loader func(ctx context.Context) (CatalogStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
