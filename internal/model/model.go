package model

import (
	"sort"
	"strings"
)

// Standard categories are pre-initialized on every account.
const (
	CategoryMovies = "movies"
	CategoryTV     = "tv"
	CategoryAnime  = "anime"
	CategoryGames  = "games"
)

// StandardCategories lists the built-in categories in display order.
var StandardCategories = []string{CategoryAnime, CategoryTV, CategoryMovies, CategoryGames}

// IsStandardCategory reports whether name is one of the built-in categories.
func IsStandardCategory(name string) bool {
	for _, c := range StandardCategories {
		if c == name {
			return true
		}
	}
	return false
}

// Groups split a category into the collection list and the to-do list.
const (
	GroupCollection = "collection"
	GroupToDo       = "todo"
)

// ParseGroup maps a group path segment to the item toDo flag.
// Both "todo" and "to-do" are accepted for the to-do list.
func ParseGroup(raw string) (toDo bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case GroupCollection:
		return false, true
	case GroupToDo, "to-do":
		return true, true
	default:
		return false, false
	}
}

// GroupName returns the canonical group name for a toDo flag.
func GroupName(toDo bool) string {
	if toDo {
		return GroupToDo
	}
	return GroupCollection
}

// DefaultTiers are the tier keys every new bucket starts with, best first.
var DefaultTiers = []string{"S", "A", "B", "C", "D", "F"}

// DefaultTierLabels returns a fresh tier-key to label map ("S" -> "S Tier").
func DefaultTierLabels() map[string]string {
	labels := make(map[string]string, len(DefaultTiers))
	for _, t := range DefaultTiers {
		labels[t] = t + " Tier"
	}
	return labels
}

// Bucket is the per-category counter and tier label state held on a user.
type Bucket struct {
	// Total is the high-water mark of allocated sequence numbers.
	Total           int64             `json:"total"`
	CollectionTiers map[string]string `json:"collectionTiers"`
	TodoTiers       map[string]string `json:"todoTiers"`
}

// NewBucket returns an empty bucket with the default tier labels.
func NewBucket() *Bucket {
	return &Bucket{
		CollectionTiers: DefaultTierLabels(),
		TodoTiers:       DefaultTierLabels(),
	}
}

// Labels returns the tier labels of the collection or to-do list.
func (b *Bucket) Labels(toDo bool) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	var labels map[string]string
	if toDo {
		labels = b.TodoTiers
	} else {
		labels = b.CollectionTiers
	}
	if labels == nil {
		return map[string]string{}
	}
	return labels
}

// BucketRef addresses one counter bucket on a user record.
type BucketRef struct {
	Category string
	Custom   bool
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
