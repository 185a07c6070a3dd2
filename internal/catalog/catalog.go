// Package catalog holds the fixed list of protected portal areas and the
// actions that can be granted on them.
package catalog

import (
	"fmt"
	"strings"
)

// ResourceID identifies one protected area of the portal.
type ResourceID string

// Known resources.
const (
	Dashboard           ResourceID = "dashboard"
	Tickets             ResourceID = "tickets"
	Expenses            ResourceID = "expenses"
	Stations            ResourceID = "stations"
	Equipment           ResourceID = "equipment"
	InternetConnections ResourceID = "internet-connections"
	Users               ResourceID = "users"
	Settings            ResourceID = "settings"
	Messaging           ResourceID = "messaging"
	EquipmentRequests   ResourceID = "equipment-requests"
	RequestManagement   ResourceID = "request-management"
	StationTasks        ResourceID = "station-tasks"
)

// RootPath is the dashboard landing path.
const RootPath = "/dashboard"

// Action is the unit of granularity for a grant.
type Action string

// Supported actions.
const (
	ActionView   Action = "view"
	ActionAdd    Action = "add"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

var actionOrder = map[Action]int{
	ActionView:   0,
	ActionAdd:    1,
	ActionEdit:   2,
	ActionDelete: 3,
}

// AllActions returns every action in canonical order.
func AllActions() []Action {
	return []Action{ActionView, ActionAdd, ActionEdit, ActionDelete}
}

// Valid reports whether a is one of the supported actions.
func (a Action) Valid() bool {
	_, ok := actionOrder[a]
	return ok
}

// Rank returns the canonical position of the action, or -1 when unknown.
func (a Action) Rank() int {
	if rank, ok := actionOrder[a]; ok {
		return rank
	}
	return -1
}

// Resource is a single catalog entry.
type Resource struct {
	ID          ResourceID `json:"resourceId"`
	DisplayName string     `json:"displayName"`
	Path        string     `json:"path"`
}

// Catalog is an immutable, ordered set of resources.
type Catalog struct {
	resources []Resource
	byID      map[ResourceID]Resource
	byPath    map[string]Resource
}

// New builds a catalog, rejecting duplicate ids or paths.
func New(resources ...Resource) (*Catalog, error) {
	c := &Catalog{
		resources: make([]Resource, 0, len(resources)),
		byID:      make(map[ResourceID]Resource, len(resources)),
		byPath:    make(map[string]Resource, len(resources)),
	}
	for _, res := range resources {
		if res.ID == "" || res.Path == "" {
			return nil, fmt.Errorf("catalog: resource id and path required")
		}
		if !strings.HasPrefix(res.Path, "/") || (len(res.Path) > 1 && strings.HasSuffix(res.Path, "/")) {
			return nil, fmt.Errorf("catalog: path %q must start with / and have no trailing slash", res.Path)
		}
		if _, dup := c.byID[res.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate resource %q", res.ID)
		}
		if _, dup := c.byPath[res.Path]; dup {
			return nil, fmt.Errorf("catalog: duplicate path %q", res.Path)
		}
		c.resources = append(c.resources, res)
		c.byID[res.ID] = res
		c.byPath[res.Path] = res
	}
	return c, nil
}

// Default returns the portal's built-in catalog.
func Default() *Catalog {
	c, err := New(
		Resource{ID: Dashboard, DisplayName: "Dashboard", Path: RootPath},
		Resource{ID: Tickets, DisplayName: "Tickets", Path: RootPath + "/tickets"},
		Resource{ID: Expenses, DisplayName: "Expenses", Path: RootPath + "/expenses"},
		Resource{ID: Stations, DisplayName: "Stations", Path: RootPath + "/stations"},
		Resource{ID: Equipment, DisplayName: "Equipment", Path: RootPath + "/equipment"},
		Resource{ID: InternetConnections, DisplayName: "Internet Connections", Path: RootPath + "/internet-connections"},
		Resource{ID: Users, DisplayName: "Users", Path: RootPath + "/users"},
		Resource{ID: Settings, DisplayName: "Settings", Path: RootPath + "/settings"},
		Resource{ID: Messaging, DisplayName: "Messaging", Path: RootPath + "/messaging"},
		Resource{ID: EquipmentRequests, DisplayName: "Equipment Requests", Path: RootPath + "/equipment-requests"},
		Resource{ID: RequestManagement, DisplayName: "Request Management", Path: RootPath + "/request-management"},
		Resource{ID: StationTasks, DisplayName: "Station Tasks", Path: RootPath + "/station-tasks"},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Resources returns a copy of the catalog entries in declaration order.
func (c *Catalog) Resources() []Resource {
	out := make([]Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

// Lookup finds a resource by id.
func (c *Catalog) Lookup(id ResourceID) (Resource, bool) {
	res, ok := c.byID[id]
	return res, ok
}

// Match resolves a request path to a resource. Only the exact path or the
// path followed by a single trailing slash match.
func (c *Catalog) Match(path string) (Resource, bool) {
	if res, ok := c.byPath[path]; ok {
		return res, true
	}
	trimmed, found := strings.CutSuffix(path, "/")
	if !found || strings.HasSuffix(trimmed, "/") {
		return Resource{}, false
	}
	res, ok := c.byPath[trimmed]
	return res, ok
}
