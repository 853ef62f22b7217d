package route

import (
	"cmp"
	"slices"
	"sync"

	"github.com/gin-gonic/gin"
)

// RouterLoader mounts a plugin's routes on an engine.
type RouterLoader func(r *gin.Engine) error

// RouteType selects the engine a plugin is mounted on.
type RouteType int

const (
	// RouteTypeMain routes are served on the public API port.
	RouteTypeMain RouteType = iota
	// RouteTypeManagement routes (probes, metrics) are served on the
	// management port, or on the main port when none is configured.
	RouteTypeManagement
)

// Plugin is a set of routes registered from a package init().
type Plugin struct {
	Name   string
	Order  int
	Type   RouteType
	Loader RouterLoader
}

var (
	mu      sync.Mutex
	plugins []Plugin
)

// Register adds a route plugin.
func Register(p Plugin) {
	mu.Lock()
	defer mu.Unlock()
	plugins = append(plugins, p)
}

// Loaders returns the loaders of type t, lowest Order first. Plugins with
// the same Order mount in name order.
func Loaders(t RouteType) []RouterLoader {
	mu.Lock()
	matched := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		if p.Type == t {
			matched = append(matched, p)
		}
	}
	mu.Unlock()

	slices.SortStableFunc(matched, func(a, b Plugin) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	loaders := make([]RouterLoader, len(matched))
	for i, p := range matched {
		loaders[i] = p.Loader
	}
	return loaders
}

// MainRouteLoaders returns the loaders for the main API engine.
func MainRouteLoaders() []RouterLoader {
	return Loaders(RouteTypeMain)
}

// ManagementRouteLoaders returns the loaders for the management engine.
func ManagementRouteLoaders() []RouterLoader {
	return Loaders(RouteTypeManagement)
}
