package model

import "time"

// ShareConfig selects which lists of a category a share link exposes.
type ShareConfig struct {
	Collection bool `json:"collection"`
	Todo       bool `json:"todo"`
}

// Any reports whether at least one list is shared.
func (c ShareConfig) Any() bool {
	return c.Collection || c.Todo
}

// ToDoFilter returns the toDo value shared lists are restricted to, or nil
// when both lists are shared.
func (c ShareConfig) ToDoFilter() *bool {
	switch {
	case c.Collection && !c.Todo:
		v := false
		return &v
	case !c.Collection && c.Todo:
		v := true
		return &v
	default:
		return nil
	}
}

// ShareLink is a tokenized read-only view of one category. There is at most
// one link per (user, category).
type ShareLink struct {
	Token       string      `json:"token"`
	UserID      string      `json:"userId"`
	Category    string      `json:"category"`
	ShareConfig ShareConfig `json:"shareConfig"`
	CreatedAt   time.Time   `json:"createdAt"`
}
