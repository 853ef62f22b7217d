package model

import (
	"sort"
	"time"
)

// Item is one catalogued media entry. (UserID, Category, ID) is unique.
type Item struct {
	UserID      string     `json:"userId"`
	Category    string     `json:"category"`
	ID          int64      `json:"ID"`
	Title       string     `json:"title"`
	Tier        string     `json:"tier"`
	ToDo        bool       `json:"toDo"`
	OrderIndex  float64    `json:"orderIndex"`
	Year        *time.Time `json:"year,omitempty"`
	Tags        []string   `json:"tags"`
	Description string     `json:"description,omitempty"`
}

// ListKey identifies one ordered list: a user's items sharing category,
// group and tier.
type ListKey struct {
	UserID   string
	Category string
	ToDo     bool
	Tier     string
}

// Key returns the list the item belongs to.
func (it *Item) Key() ListKey {
	return ListKey{UserID: it.UserID, Category: it.Category, ToDo: it.ToDo, Tier: it.Tier}
}

// DisplayLess orders items by tier, orderIndex, title, then sequence number.
func DisplayLess(a, b *Item) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if a.OrderIndex != b.OrderIndex {
		return a.OrderIndex < b.OrderIndex
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.ID < b.ID
}

// SortForDisplay sorts items in place into display order.
func SortForDisplay(items []Item) {
	sort.Slice(items, func(i, j int) bool { return DisplayLess(&items[i], &items[j]) })
}

// UniqueTags returns the distinct tags across items, sorted.
func UniqueTags(items []Item) []string {
	seen := map[string]struct{}{}
	for _, it := range items {
		for _, t := range it.Tags {
			if t != "" {
				seen[t] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}
