package memory

import (
	"maps"
	"strconv"

	"github.com/medb/medb/internal/model"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func cloneBucket(b *model.Bucket) *model.Bucket {
	if b == nil {
		return nil
	}
	return &model.Bucket{
		Total:           b.Total,
		CollectionTiers: maps.Clone(b.CollectionTiers),
		TodoTiers:       maps.Clone(b.TodoTiers),
	}
}

func cloneUser(u *model.User) *model.User {
	out := *u
	out.SharedListsOrder = append([]string(nil), u.SharedListsOrder...)
	out.Friends = append([]string(nil), u.Friends...)
	out.FriendRequests = append([]model.FriendRequest(nil), u.FriendRequests...)
	out.Movies = cloneBucket(u.Movies)
	out.TV = cloneBucket(u.TV)
	out.Anime = cloneBucket(u.Anime)
	out.Games = cloneBucket(u.Games)
	out.NewTypes = make(map[string]*model.Bucket, len(u.NewTypes))
	for k, b := range u.NewTypes {
		out.NewTypes[k] = cloneBucket(b)
	}
	if u.LastActiveAt != nil {
		t := *u.LastActiveAt
		out.LastActiveAt = &t
	}
	return &out
}

func cloneItem(it *model.Item) *model.Item {
	out := *it
	out.Tags = append([]string{}, it.Tags...)
	if it.Year != nil {
		y := *it.Year
		out.Year = &y
	}
	return &out
}
