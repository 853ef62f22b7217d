package service

import (
	"strconv"

	"github.com/medb/medb/internal/model"
)

// Totals counts a user's items.
type Totals struct {
	TotalRecords    int `json:"totalRecords"`
	TotalCollection int `json:"totalCollection"`
	TotalToDo       int `json:"totalToDo"`
}

// Counts maps a label (tier, year or category) to a number of items.
type Counts map[string]int

// ByList splits counts between the collection and to-do lists.
type ByList struct {
	ToDo       Counts `json:"toDo"`
	Collection Counts `json:"collection"`
}

// YearsByFilter is the year histogram for all items and per list.
type YearsByFilter struct {
	All        Counts `json:"all"`
	ToDo       Counts `json:"toDo"`
	Collection Counts `json:"collection"`
}

// Stats is the dashboard summary of one user's catalog.
type Stats struct {
	Totals                   Totals            `json:"totals"`
	TypeDistribution         Counts            `json:"typeDistribution"`
	YearDistribution         Counts            `json:"yearDistribution"`
	TierDistribution         Counts            `json:"tierDistribution"`
	YearDistributionByFilter YearsByFilter     `json:"yearDistributionByFilter"`
	TierDistributionByGroup  ByList            `json:"tierDistributionByGroup"`
	TierByTypeToDo           map[string]Counts `json:"tierByTypeToDo"`
	TierByTypeCollection     map[string]Counts `json:"tierByTypeCollection"`
	TierByTypeDistribution   map[string]Counts `json:"tierByTypeDistribution"`
	CustomTypes              []string          `json:"customTypes"`
}

// ComputeStats summarizes items for user. Every standard and custom category
// appears in TypeDistribution, with zero when empty; per-category tier maps
// only list categories that have items. Years are keyed by calendar year.
func ComputeStats(user *model.User, items []model.Item) *Stats {
	custom := user.CustomCategories()
	if custom == nil {
		custom = []string{}
	}
	types := append(append([]string{}, model.StandardCategories...), custom...)
	known := make(map[string]bool, len(types))

	s := &Stats{
		TypeDistribution:        Counts{},
		YearDistribution:        Counts{},
		TierDistribution:        Counts{},
		TierDistributionByGroup: ByList{ToDo: Counts{}, Collection: Counts{}},
		TierByTypeToDo:          map[string]Counts{},
		TierByTypeCollection:    map[string]Counts{},
		TierByTypeDistribution:  map[string]Counts{},
		CustomTypes:             custom,
	}
	s.YearDistributionByFilter = YearsByFilter{All: s.YearDistribution, ToDo: Counts{}, Collection: Counts{}}
	for _, t := range types {
		known[t] = true
		s.TypeDistribution[t] = 0
	}

	for i := range items {
		it := &items[i]
		s.Totals.TotalRecords++
		if it.ToDo {
			s.Totals.TotalToDo++
		} else {
			s.Totals.TotalCollection++
		}

		if it.Year != nil {
			y := strconv.Itoa(it.Year.UTC().Year())
			s.YearDistribution[y]++
			if it.ToDo {
				s.YearDistributionByFilter.ToDo[y]++
			} else {
				s.YearDistributionByFilter.Collection[y]++
			}
		}

		if known[it.Category] {
			s.TypeDistribution[it.Category]++
		}
		if it.Tier == "" {
			continue
		}
		s.TierDistribution[it.Tier]++
		if it.ToDo {
			s.TierDistributionByGroup.ToDo[it.Tier]++
		} else {
			s.TierDistributionByGroup.Collection[it.Tier]++
		}
		if !known[it.Category] {
			continue
		}
		bump(s.TierByTypeDistribution, it.Category, it.Tier)
		if it.ToDo {
			bump(s.TierByTypeToDo, it.Category, it.Tier)
		} else {
			bump(s.TierByTypeCollection, it.Category, it.Tier)
		}
	}
	return s
}

func bump(m map[string]Counts, category, tier string) {
	c, ok := m[category]
	if !ok {
		c = Counts{}
		m[category] = c
	}
	c[tier]++
}
