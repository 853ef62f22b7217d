package model

import "time"

// FriendRequestStatus is the state of a friend request.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest is stored on both the sender and the recipient.
type FriendRequest struct {
	From      string              `json:"from"`
	To        string              `json:"to"`
	Status    FriendRequestStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
}

// User is the identity record. It owns the per-category buckets.
type User struct {
	ID               string             `json:"id"`
	DisplayName      string             `json:"displayName"`
	Email            string             `json:"email,omitempty"`
	ProfilePic       string             `json:"profilePic,omitempty"`
	Username         string             `json:"username,omitempty"`
	IsPublicProfile  bool               `json:"isPublicProfile"`
	SharedListsOrder []string           `json:"sharedListsOrder"`
	Movies           *Bucket            `json:"movies,omitempty"`
	TV               *Bucket            `json:"tv,omitempty"`
	Anime            *Bucket            `json:"anime,omitempty"`
	Games            *Bucket            `json:"games,omitempty"`
	NewTypes         map[string]*Bucket `json:"newTypes"`
	Friends          []string           `json:"friends"`
	FriendRequests   []FriendRequest    `json:"friendRequests"`
	CreatedAt        time.Time          `json:"createdAt"`
	LastActiveAt     *time.Time         `json:"lastActiveAt,omitempty"`
}

// NewUser returns a user with every standard bucket initialized at total 0.
func NewUser(id, displayName, email, profilePic string, now time.Time) *User {
	return &User{
		ID:           id,
		DisplayName:  displayName,
		Email:        email,
		ProfilePic:   profilePic,
		Movies:       NewBucket(),
		TV:           NewBucket(),
		Anime:        NewBucket(),
		Games:        NewBucket(),
		NewTypes:     map[string]*Bucket{},
		CreatedAt:    now,
		LastActiveAt: &now,
	}
}

// Ref resolves a category name to its bucket reference. Custom categories
// must already be defined.
func (u *User) Ref(category string) (BucketRef, bool) {
	if IsStandardCategory(category) {
		return BucketRef{Category: category}, true
	}
	if u != nil && u.NewTypes != nil {
		if _, ok := u.NewTypes[category]; ok {
			return BucketRef{Category: category, Custom: true}, true
		}
	}
	return BucketRef{}, false
}

// Bucket returns the bucket for ref, or nil if it has not been created.
func (u *User) Bucket(ref BucketRef) *Bucket {
	if u == nil {
		return nil
	}
	if ref.Custom {
		if u.NewTypes == nil {
			return nil
		}
		return u.NewTypes[ref.Category]
	}
	switch ref.Category {
	case CategoryMovies:
		return u.Movies
	case CategoryTV:
		return u.TV
	case CategoryAnime:
		return u.Anime
	case CategoryGames:
		return u.Games
	}
	return nil
}

// EnsureBucket returns the bucket for ref, creating it with defaults when missing.
func (u *User) EnsureBucket(ref BucketRef) *Bucket {
	if b := u.Bucket(ref); b != nil {
		return b
	}
	b := NewBucket()
	if ref.Custom {
		if u.NewTypes == nil {
			u.NewTypes = map[string]*Bucket{}
		}
		u.NewTypes[ref.Category] = b
		return b
	}
	switch ref.Category {
	case CategoryMovies:
		u.Movies = b
	case CategoryTV:
		u.TV = b
	case CategoryAnime:
		u.Anime = b
	case CategoryGames:
		u.Games = b
	}
	return b
}

// CustomCategories returns the names of the user's custom categories, sorted.
func (u *User) CustomCategories() []string {
	if u == nil {
		return nil
	}
	return sortedKeys(u.NewTypes)
}

// IsFriend reports whether id is in the user's friends list.
func (u *User) IsFriend(id string) bool {
	for _, f := range u.Friends {
		if f == id {
			return true
		}
	}
	return false
}

// PendingRequest returns the pending request between a and b in either
// direction, or nil.
func (u *User) PendingRequest(a, b string) *FriendRequest {
	for i := range u.FriendRequests {
		r := &u.FriendRequests[i]
		if r.Status != FriendRequestPending {
			continue
		}
		if (r.From == a && r.To == b) || (r.From == b && r.To == a) {
			return r
		}
	}
	return nil
}

// PublicUser is the projection of a user exposed to other users.
type PublicUser struct {
	ID              string `json:"ID"`
	Username        string `json:"username"`
	DisplayName     string `json:"displayName"`
	ProfilePic      string `json:"profilePic,omitempty"`
	IsPublicProfile bool   `json:"isPublicProfile"`
}

// Public returns the public projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Username:        u.Username,
		DisplayName:     u.DisplayName,
		ProfilePic:      u.ProfilePic,
		IsPublicProfile: u.IsPublicProfile,
	}
}

// TotalRecords sums the bucket totals across every category.
func (u *User) TotalRecords() int64 {
	var n int64
	for _, b := range []*Bucket{u.Movies, u.TV, u.Anime, u.Games} {
		if b != nil {
			n += b.Total
		}
	}
	for _, b := range u.NewTypes {
		if b != nil {
			n += b.Total
		}
	}
	return n
}
