// Package memory is an in-process CatalogStore for development and tests.
// Each user record is guarded by its own mutex, which provides the same
// atomic counter primitives the document store offers.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "memory",
		Loader: func(ctx context.Context) (registrystore.CatalogStore, error) {
			return New(), nil
		},
	})
}

type userEntry struct {
	mu   sync.Mutex
	user *model.User
}

type itemKey struct {
	userID   string
	category string
	id       int64
}

// Store implements registrystore.CatalogStore in memory.
type Store struct {
	// mu guards the users map and every Username field.
	mu    sync.RWMutex
	users map[string]*userEntry

	itemsMu sync.RWMutex
	items   map[itemKey]*model.Item

	sharesMu sync.RWMutex
	shares   map[string]*model.ShareLink // by token
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:  map[string]*userEntry{},
		items:  map[itemKey]*model.Item{},
		shares: map[string]*model.ShareLink{},
	}
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) entry(userID string) (*userEntry, error) {
	s.mu.RLock()
	e, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, &registrystore.NotFoundError{Resource: "user", ID: userID}
	}
	return e, nil
}

// withUser runs fn with the user's lock held.
func (s *Store) withUser(userID string, fn func(u *model.User) error) error {
	e, err := s.entry(userID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.user)
}

// withPair runs fn with both users locked, in id order.
func (s *Store) withPair(a, b string, fn func(ua, ub *model.User) error) error {
	ea, err := s.entry(a)
	if err != nil {
		return err
	}
	eb, err := s.entry(b)
	if err != nil {
		return err
	}
	if a == b {
		ea.mu.Lock()
		defer ea.mu.Unlock()
		return fn(ea.user, ea.user)
	}
	first, second := ea, eb
	if b < a {
		first, second = eb, ea
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()
	return fn(ea.user, eb.user)
}

// --- Identity ---

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return &registrystore.ConflictError{Message: "user already exists", Code: "user_exists"}
	}
	if user.Username != "" && s.usernameTakenLocked(user.Username, user.ID) {
		return &registrystore.ConflictError{Message: "username already taken", Code: "username_taken"}
	}
	s.users[user.ID] = &userEntry{user: cloneUser(user)}
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (*model.User, error) {
	var out *model.User
	err := s.withUser(userID, func(u *model.User) error {
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (s *Store) usernameTakenLocked(username, exceptID string) bool {
	for id, e := range s.users {
		if id != exceptID && e.user.Username != "" && strings.EqualFold(e.user.Username, username) {
			return true
		}
	}
	return false
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	var found string
	for id, e := range s.users {
		if e.user.Username != "" && strings.EqualFold(e.user.Username, username) {
			found = id
			break
		}
	}
	s.mu.RUnlock()
	if found == "" {
		return nil, &registrystore.NotFoundError{Resource: "user", ID: username}
	}
	return s.GetUser(ctx, found)
}

func (s *Store) UsernameExists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usernameTakenLocked(username, ""), nil
}

func (s *Store) SetUsername(_ context.Context, userID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.users[userID]
	if !ok {
		return &registrystore.NotFoundError{Resource: "user", ID: userID}
	}
	if s.usernameTakenLocked(username, userID) {
		return &registrystore.ConflictError{Message: "username already taken", Code: "username_taken"}
	}
	e.mu.Lock()
	e.user.Username = username
	e.mu.Unlock()
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, userID string, update registrystore.ProfileUpdate) (*model.User, error) {
	var out *model.User
	err := s.withUser(userID, func(u *model.User) error {
		if update.IsPublicProfile != nil {
			u.IsPublicProfile = *update.IsPublicProfile
		}
		if update.SharedListsOrder != nil {
			u.SharedListsOrder = append([]string(nil), update.SharedListsOrder...)
		}
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (s *Store) TouchLastActive(_ context.Context, userID string, at time.Time) error {
	return s.withUser(userID, func(u *model.User) error {
		u.LastActiveAt = &at
		return nil
	})
}

func (s *Store) GetUsers(ctx context.Context, userIDs []string) ([]model.User, error) {
	out := make([]model.User, 0, len(userIDs))
	for _, id := range userIDs {
		u, err := s.GetUser(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (s *Store) IncrementTotal(_ context.Context, userID string, ref model.BucketRef) (int64, error) {
	var total int64
	err := s.withUser(userID, func(u *model.User) error {
		if ref.Custom && u.Bucket(ref) == nil {
			return &registrystore.NotFoundError{Resource: "category", ID: ref.Category}
		}
		b := u.EnsureBucket(ref)
		b.Total++
		total = b.Total
		return nil
	})
	return total, err
}

func (s *Store) DecrementTotalIfEquals(_ context.Context, userID string, ref model.BucketRef, expected int64) (bool, error) {
	var matched bool
	err := s.withUser(userID, func(u *model.User) error {
		b := u.Bucket(ref)
		if b != nil && b.Total == expected {
			b.Total--
			matched = true
		}
		return nil
	})
	return matched, err
}

func (s *Store) DefineCategory(_ context.Context, userID, name string) error {
	return s.withUser(userID, func(u *model.User) error {
		ref := model.BucketRef{Category: name, Custom: true}
		if u.Bucket(ref) != nil {
			return &registrystore.ConflictError{Message: "category already exists", Code: "category_exists"}
		}
		u.EnsureBucket(ref)
		return nil
	})
}

func (s *Store) RemoveCategory(_ context.Context, userID, name string) error {
	return s.withUser(userID, func(u *model.User) error {
		if _, ok := u.NewTypes[name]; !ok {
			return &registrystore.NotFoundError{Resource: "category", ID: name}
		}
		delete(u.NewTypes, name)
		return nil
	})
}

func (s *Store) SetTierLabel(_ context.Context, userID string, ref model.BucketRef, toDo bool, tier, label string) error {
	return s.withUser(userID, func(u *model.User) error {
		b := u.Bucket(ref)
		if b == nil {
			return &registrystore.NotFoundError{Resource: "category", ID: ref.Category}
		}
		if toDo {
			if b.TodoTiers == nil {
				b.TodoTiers = map[string]string{}
			}
			b.TodoTiers[tier] = label
		} else {
			if b.CollectionTiers == nil {
				b.CollectionTiers = map[string]string{}
			}
			b.CollectionTiers[tier] = label
		}
		return nil
	})
}

// --- Friends ---

func (s *Store) AddFriendRequest(_ context.Context, req model.FriendRequest) error {
	return s.withPair(req.From, req.To, func(from, to *model.User) error {
		from.FriendRequests = append(from.FriendRequests, req)
		if to != from {
			to.FriendRequests = append(to.FriendRequests, req)
		}
		return nil
	})
}

func (s *Store) ResolveFriendRequest(_ context.Context, fromID, toID string, status model.FriendRequestStatus) (bool, error) {
	var found bool
	err := s.withPair(fromID, toID, func(from, to *model.User) error {
		for _, u := range []*model.User{to, from} {
			for i := range u.FriendRequests {
				r := &u.FriendRequests[i]
				if r.From == fromID && r.To == toID && r.Status == model.FriendRequestPending {
					r.Status = status
					if u == to {
						found = true
					}
					break
				}
			}
		}
		return nil
	})
	return found, err
}

func (s *Store) AddFriendship(_ context.Context, a, b string) error {
	return s.withPair(a, b, func(ua, ub *model.User) error {
		if !ua.IsFriend(b) {
			ua.Friends = append(ua.Friends, b)
		}
		if !ub.IsFriend(a) {
			ub.Friends = append(ub.Friends, a)
		}
		return nil
	})
}

func (s *Store) RemoveFriendship(_ context.Context, a, b string) error {
	return s.withPair(a, b, func(ua, ub *model.User) error {
		ua.Friends = without(ua.Friends, b)
		ub.Friends = without(ub.Friends, a)
		return nil
	})
}

func without(list []string, v string) []string {
	out := list[:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// --- Items ---

func (s *Store) InsertItem(_ context.Context, item *model.Item) error {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	k := itemKey{item.UserID, item.Category, item.ID}
	if _, ok := s.items[k]; ok {
		return &registrystore.ConflictError{Message: "item already exists", Code: "item_exists"}
	}
	s.items[k] = cloneItem(item)
	return nil
}

func (s *Store) GetItem(_ context.Context, userID, category string, id int64) (*model.Item, error) {
	s.itemsMu.RLock()
	defer s.itemsMu.RUnlock()
	it, ok := s.items[itemKey{userID, category, id}]
	if !ok {
		return nil, itemNotFound(category, id)
	}
	return cloneItem(it), nil
}

func itemNotFound(category string, id int64) error {
	return &registrystore.NotFoundError{Resource: "media", ID: category + "/" + formatID(id)}
}

func (s *Store) ListItems(_ context.Context, q registrystore.ItemQuery) ([]model.Item, error) {
	s.itemsMu.RLock()
	out := []model.Item{}
	for _, it := range s.items {
		if it.UserID != q.UserID {
			continue
		}
		if q.Category != "" && it.Category != q.Category {
			continue
		}
		if q.ToDo != nil && it.ToDo != *q.ToDo {
			continue
		}
		out = append(out, *cloneItem(it))
	}
	s.itemsMu.RUnlock()
	model.SortForDisplay(out)
	return out, nil
}

func (s *Store) MaxOrderIndex(_ context.Context, key model.ListKey) (float64, bool, error) {
	s.itemsMu.RLock()
	defer s.itemsMu.RUnlock()
	var tail float64
	found := false
	for _, it := range s.items {
		if it.Key() != key {
			continue
		}
		if !found || it.OrderIndex > tail {
			tail = it.OrderIndex
			found = true
		}
	}
	return tail, found, nil
}

func (s *Store) UpdateItem(_ context.Context, userID, category string, id int64, u registrystore.ItemUpdate) (*model.Item, error) {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	it, ok := s.items[itemKey{userID, category, id}]
	if !ok {
		return nil, itemNotFound(category, id)
	}
	if u.Title != nil {
		it.Title = *u.Title
	}
	if u.Tier != nil {
		it.Tier = *u.Tier
	}
	if u.ToDo != nil {
		it.ToDo = *u.ToDo
	}
	if u.OrderIndex != nil {
		it.OrderIndex = *u.OrderIndex
	}
	if u.ClearYear {
		it.Year = nil
	} else if u.Year != nil {
		y := *u.Year
		it.Year = &y
	}
	if u.Tags != nil {
		it.Tags = append([]string{}, (*u.Tags)...)
	}
	if u.Description != nil {
		it.Description = *u.Description
	}
	return cloneItem(it), nil
}

func (s *Store) DeleteItem(_ context.Context, userID, category string, id int64) (*model.Item, error) {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	k := itemKey{userID, category, id}
	it, ok := s.items[k]
	if !ok {
		return nil, itemNotFound(category, id)
	}
	delete(s.items, k)
	return it, nil
}

func (s *Store) DeleteCategoryItems(_ context.Context, userID, category string) (int64, error) {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	var n int64
	for k := range s.items {
		if k.userID == userID && k.category == category {
			delete(s.items, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) SetOrderIndexes(_ context.Context, key model.ListKey, ids []int64) error {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	for i, id := range ids {
		it, ok := s.items[itemKey{key.UserID, key.Category, id}]
		if !ok || it.ToDo != key.ToDo || it.Tier != key.Tier {
			continue
		}
		it.OrderIndex = float64(i)
	}
	return nil
}

// --- Share links ---

func (s *Store) UpsertShareLink(_ context.Context, link *model.ShareLink) (*model.ShareLink, bool, error) {
	s.sharesMu.Lock()
	defer s.sharesMu.Unlock()
	for _, l := range s.shares {
		if l.UserID == link.UserID && l.Category == link.Category {
			l.ShareConfig = link.ShareConfig
			out := *l
			return &out, true, nil
		}
	}
	if _, ok := s.shares[link.Token]; ok {
		return nil, false, &registrystore.ConflictError{Message: "share token collision", Code: "token_exists"}
	}
	stored := *link
	s.shares[link.Token] = &stored
	out := stored
	return &out, false, nil
}

func (s *Store) GetShareLink(_ context.Context, userID, category string) (*model.ShareLink, error) {
	s.sharesMu.RLock()
	defer s.sharesMu.RUnlock()
	for _, l := range s.shares {
		if l.UserID == userID && l.Category == category {
			out := *l
			return &out, nil
		}
	}
	return nil, &registrystore.NotFoundError{Resource: "share link", ID: category}
}

func (s *Store) GetShareLinkByToken(_ context.Context, token string) (*model.ShareLink, error) {
	s.sharesMu.RLock()
	defer s.sharesMu.RUnlock()
	l, ok := s.shares[token]
	if !ok {
		return nil, &registrystore.NotFoundError{Resource: "share link", ID: token}
	}
	out := *l
	return &out, nil
}

func (s *Store) DeleteShareLink(_ context.Context, userID, category string) error {
	s.sharesMu.Lock()
	defer s.sharesMu.Unlock()
	for token, l := range s.shares {
		if l.UserID == userID && l.Category == category {
			delete(s.shares, token)
		}
	}
	return nil
}

func (s *Store) ListShareLinks(_ context.Context, userID string) ([]model.ShareLink, error) {
	s.sharesMu.RLock()
	defer s.sharesMu.RUnlock()
	out := []model.ShareLink{}
	for _, l := range s.shares {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
