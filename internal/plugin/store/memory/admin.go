package memory

import (
	"context"
	"sort"
	"time"

	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
)

func (s *Store) snapshot() []*model.User {
	s.mu.RLock()
	entries := make([]*userEntry, 0, len(s.users))
	for _, e := range s.users {
		entries = append(entries, e)
	}
	s.mu.RUnlock()
	out := make([]*model.User, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, cloneUser(e.user))
		e.mu.Unlock()
	}
	return out
}

func (s *Store) CountUsers(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *Store) CountActivity(_ context.Context, field registrystore.ActivityField, since time.Time, period registrystore.Period) ([]registrystore.PeriodCount, error) {
	counts := map[string]int64{}
	for _, u := range s.snapshot() {
		var at *time.Time
		switch field {
		case registrystore.ActivityCreated:
			at = &u.CreatedAt
		default:
			at = u.LastActiveAt
		}
		if at == nil || at.Before(since) {
			continue
		}
		counts[at.UTC().Format(period.Layout())]++
	}
	out := make([]registrystore.PeriodCount, 0, len(counts))
	for p, n := range counts {
		out = append(out, registrystore.PeriodCount{Period: p, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func (s *Store) ListUsersPage(_ context.Context, q registrystore.AdminUserQuery) ([]registrystore.AdminUser, error) {
	users := s.snapshot()
	rows := make([]registrystore.AdminUser, 0, len(users))
	for _, u := range users {
		rows = append(rows, registrystore.AdminUser{
			ID:           u.ID,
			DisplayName:  u.DisplayName,
			Email:        u.Email,
			LastActiveAt: u.LastActiveAt,
			CreatedAt:    u.CreatedAt,
			TotalRecords: u.TotalRecords(),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		less := adminLess(q.Sort, &rows[i], &rows[j])
		if q.Asc {
			return less
		}
		return adminLess(q.Sort, &rows[j], &rows[i])
	})
	start := (q.Page - 1) * q.Limit
	if start < 0 {
		start = 0
	}
	if start >= len(rows) {
		return []registrystore.AdminUser{}, nil
	}
	end := start + q.Limit
	if q.Limit <= 0 || end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], nil
}

func adminLess(field string, a, b *registrystore.AdminUser) bool {
	switch field {
	case "createdAt":
		return a.CreatedAt.Before(b.CreatedAt)
	case "totalRecords":
		return a.TotalRecords < b.TotalRecords
	default:
		var at, bt time.Time
		if a.LastActiveAt != nil {
			at = *a.LastActiveAt
		}
		if b.LastActiveAt != nil {
			bt = *b.LastActiveAt
		}
		return at.Before(bt)
	}
}
