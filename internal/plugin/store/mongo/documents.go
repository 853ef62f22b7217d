package mongo

import (
	"time"

	"github.com/medb/medb/internal/model"
)

type bucketDoc struct {
	Total           int64             `bson:"total"`
	CollectionTiers map[string]string `bson:"collectionTiers,omitempty"`
	TodoTiers       map[string]string `bson:"todoTiers,omitempty"`
}

type friendRequestDoc struct {
	From      string    `bson:"from"`
	To        string    `bson:"to"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"createdAt"`
}

type userDoc struct {
	ID               string                `bson:"ID"`
	DisplayName      string                `bson:"displayName"`
	Email            string                `bson:"email,omitempty"`
	ProfilePic       string                `bson:"profilePic,omitempty"`
	Username         string                `bson:"username,omitempty"`
	IsPublicProfile  bool                  `bson:"isPublicProfile"`
	SharedListsOrder []string              `bson:"sharedListsOrder,omitempty"`
	Movies           *bucketDoc            `bson:"movies,omitempty"`
	TV               *bucketDoc            `bson:"tv,omitempty"`
	Anime            *bucketDoc            `bson:"anime,omitempty"`
	Games            *bucketDoc            `bson:"games,omitempty"`
	NewTypes         map[string]*bucketDoc `bson:"newTypes,omitempty"`
	Friends          []string              `bson:"friends,omitempty"`
	FriendRequests   []friendRequestDoc    `bson:"friendRequests,omitempty"`
	CreatedAt        time.Time             `bson:"createdAt"`
	LastActiveAt     *time.Time            `bson:"lastActiveAt,omitempty"`
}

type mediaDoc struct {
	UserID      string     `bson:"userID"`
	ID          int64      `bson:"ID"`
	Category    string     `bson:"mediaType"`
	Title       string     `bson:"title"`
	Tier        string     `bson:"tier"`
	OrderIndex  float64    `bson:"orderIndex"`
	ToDo        bool       `bson:"toDo"`
	Year        *time.Time `bson:"year,omitempty"`
	Tags        []string   `bson:"tags"`
	Description string     `bson:"description,omitempty"`
}

type shareConfigDoc struct {
	Collection bool `bson:"collection"`
	Todo       bool `bson:"todo"`
}

type shareDoc struct {
	Token       string         `bson:"token"`
	UserID      string         `bson:"userID"`
	Category    string         `bson:"mediaType"`
	ShareConfig shareConfigDoc `bson:"shareConfig"`
	CreatedAt   time.Time      `bson:"createdAt"`
}

func toBucketDoc(b *model.Bucket) *bucketDoc {
	if b == nil {
		return nil
	}
	return &bucketDoc{Total: b.Total, CollectionTiers: b.CollectionTiers, TodoTiers: b.TodoTiers}
}

func (d *bucketDoc) toModel() *model.Bucket {
	if d == nil {
		return nil
	}
	b := &model.Bucket{Total: d.Total, CollectionTiers: d.CollectionTiers, TodoTiers: d.TodoTiers}
	if b.CollectionTiers == nil {
		b.CollectionTiers = map[string]string{}
	}
	if b.TodoTiers == nil {
		b.TodoTiers = map[string]string{}
	}
	return b
}

func toUserDoc(u *model.User) *userDoc {
	d := &userDoc{
		ID:               u.ID,
		DisplayName:      u.DisplayName,
		Email:            u.Email,
		ProfilePic:       u.ProfilePic,
		Username:         u.Username,
		IsPublicProfile:  u.IsPublicProfile,
		SharedListsOrder: u.SharedListsOrder,
		Movies:           toBucketDoc(u.Movies),
		TV:               toBucketDoc(u.TV),
		Anime:            toBucketDoc(u.Anime),
		Games:            toBucketDoc(u.Games),
		Friends:          u.Friends,
		CreatedAt:        u.CreatedAt,
		LastActiveAt:     u.LastActiveAt,
	}
	if len(u.NewTypes) > 0 {
		d.NewTypes = make(map[string]*bucketDoc, len(u.NewTypes))
		for k, b := range u.NewTypes {
			d.NewTypes[k] = toBucketDoc(b)
		}
	}
	for _, r := range u.FriendRequests {
		d.FriendRequests = append(d.FriendRequests, toFriendRequestDoc(r))
	}
	return d
}

func toFriendRequestDoc(r model.FriendRequest) friendRequestDoc {
	return friendRequestDoc{From: r.From, To: r.To, Status: string(r.Status), CreatedAt: r.CreatedAt}
}

func (d *userDoc) toModel() *model.User {
	u := &model.User{
		ID:               d.ID,
		DisplayName:      d.DisplayName,
		Email:            d.Email,
		ProfilePic:       d.ProfilePic,
		Username:         d.Username,
		IsPublicProfile:  d.IsPublicProfile,
		SharedListsOrder: d.SharedListsOrder,
		Movies:           d.Movies.toModel(),
		TV:               d.TV.toModel(),
		Anime:            d.Anime.toModel(),
		Games:            d.Games.toModel(),
		NewTypes:         make(map[string]*model.Bucket, len(d.NewTypes)),
		Friends:          d.Friends,
		CreatedAt:        d.CreatedAt,
		LastActiveAt:     d.LastActiveAt,
	}
	for k, b := range d.NewTypes {
		u.NewTypes[k] = b.toModel()
	}
	if u.SharedListsOrder == nil {
		u.SharedListsOrder = []string{}
	}
	if u.Friends == nil {
		u.Friends = []string{}
	}
	u.FriendRequests = make([]model.FriendRequest, 0, len(d.FriendRequests))
	for _, r := range d.FriendRequests {
		u.FriendRequests = append(u.FriendRequests, model.FriendRequest{
			From:      r.From,
			To:        r.To,
			Status:    model.FriendRequestStatus(r.Status),
			CreatedAt: r.CreatedAt,
		})
	}
	return u
}

func toMediaDoc(it *model.Item) *mediaDoc {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return &mediaDoc{
		UserID:      it.UserID,
		ID:          it.ID,
		Category:    it.Category,
		Title:       it.Title,
		Tier:        it.Tier,
		OrderIndex:  it.OrderIndex,
		ToDo:        it.ToDo,
		Year:        it.Year,
		Tags:        tags,
		Description: it.Description,
	}
}

func (d *mediaDoc) toModel() *model.Item {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return &model.Item{
		UserID:      d.UserID,
		Category:    d.Category,
		ID:          d.ID,
		Title:       d.Title,
		Tier:        d.Tier,
		ToDo:        d.ToDo,
		OrderIndex:  d.OrderIndex,
		Year:        d.Year,
		Tags:        tags,
		Description: d.Description,
	}
}

func (d *shareDoc) toModel() *model.ShareLink {
	return &model.ShareLink{
		Token:       d.Token,
		UserID:      d.UserID,
		Category:    d.Category,
		ShareConfig: model.ShareConfig{Collection: d.ShareConfig.Collection, Todo: d.ShareConfig.Todo},
		CreatedAt:   d.CreatedAt,
	}
}
