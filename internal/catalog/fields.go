package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
)

const (
	maxCategoryNameLen = 40
	maxTierLabelLen    = 50
)

// NormalizeTag lowercases a tag and replaces spaces with hyphens.
func NormalizeTag(tag string) string {
	return strings.ReplaceAll(strings.ToLower(tag), " ", "-")
}

// NormalizeTags normalizes, trims and de-duplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, t := range tags {
		n := NormalizeTag(strings.TrimSpace(t))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// YearDate returns January 1st UTC of the given year.
func YearDate(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// IsPlausibleYear reports whether n looks like a calendar year rather than
// an epoch timestamp.
func IsPlausibleYear(n float64) bool {
	return n > 1000 && n < 3000 && n == math.Trunc(n)
}

// ParseYear accepts a JSON-decoded year: a number such as 1999, a
// four-digit string, or an ISO date. Nil and "" mean no year.
func ParseYear(raw any) (*time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		if !IsPlausibleYear(v) {
			return nil, &registrystore.ValidationError{Field: "year", Message: fmt.Sprintf("invalid year %v", v)}
		}
		t := YearDate(int(v))
		return &t, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		if n, err := strconv.Atoi(s); err == nil && IsPlausibleYear(float64(n)) {
			t := YearDate(n)
			return &t, nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t, nil
			}
		}
		return nil, &registrystore.ValidationError{Field: "year", Message: fmt.Sprintf("invalid year %q", s)}
	default:
		return nil, &registrystore.ValidationError{Field: "year", Message: "must be a number or date string"}
	}
}

// ValidateCategoryName checks a custom category name and returns it trimmed.
// Names become document field keys, so '.' and a leading '$' are rejected.
func ValidateCategoryName(name string) (string, error) {
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return "", &registrystore.ValidationError{Field: "name", Message: "category name cannot be empty"}
	case utf8.RuneCountInString(n) > maxCategoryNameLen:
		return "", &registrystore.ValidationError{Field: "name", Message: fmt.Sprintf("category name must be %d characters or less", maxCategoryNameLen)}
	case strings.Contains(n, ".") || strings.HasPrefix(n, "$"):
		return "", &registrystore.ValidationError{Field: "name", Message: "category name cannot contain '.' or start with '$'"}
	case model.IsStandardCategory(strings.ToLower(n)):
		return "", &registrystore.ConflictError{Message: fmt.Sprintf("%q is a built-in category", n), Code: "category_exists"}
	}
	return n, nil
}

func validateTierKey(tier string) error {
	switch {
	case strings.TrimSpace(tier) == "":
		return &registrystore.ValidationError{Field: "tier", Message: "tier is required"}
	case strings.Contains(tier, ".") || strings.HasPrefix(tier, "$"):
		return &registrystore.ValidationError{Field: "tier", Message: "tier cannot contain '.' or start with '$'"}
	}
	return nil
}
