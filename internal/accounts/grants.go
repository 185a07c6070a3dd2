package accounts

import (
	"fmt"
	"slices"

	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/shared"
)

// Grant lists the actions allowed on one resource.
type Grant struct {
	Resource catalog.ResourceID `json:"resourceId"`
	Actions  []catalog.Action   `json:"allowedActions"`
}

// Allows reports whether the grant includes action.
func (g Grant) Allows(action catalog.Action) bool {
	return slices.Contains(g.Actions, action)
}

// Grants is an ordered set of grants with at most one entry per resource.
type Grants []Grant

// Lookup returns the grant for id.
func (gs Grants) Lookup(id catalog.ResourceID) (Grant, bool) {
	for _, g := range gs {
		if g.Resource == id {
			return g, true
		}
	}
	return Grant{}, false
}

// HasAnyAction reports whether at least one grant carries an action.
func (gs Grants) HasAnyAction() bool {
	for _, g := range gs {
		if len(g.Actions) > 0 {
			return true
		}
	}
	return false
}

// Clone deep-copies the grants.
func (gs Grants) Clone() Grants {
	if gs == nil {
		return nil
	}
	out := make(Grants, len(gs))
	for i, g := range gs {
		out[i] = Grant{Resource: g.Resource, Actions: slices.Clone(g.Actions)}
	}
	return out
}

// Normalize collapses duplicate resources (the last entry wins but keeps the
// position of the first) and sorts each action set into canonical order.
func (gs Grants) Normalize() Grants {
	out := make(Grants, 0, len(gs))
	index := make(map[catalog.ResourceID]int, len(gs))
	for _, g := range gs {
		g = Grant{Resource: g.Resource, Actions: normalizeActions(g.Actions)}
		if i, seen := index[g.Resource]; seen {
			out[i] = g
			continue
		}
		index[g.Resource] = len(out)
		out = append(out, g)
	}
	return out
}

// Validate rejects grants naming resources or actions outside the catalog.
func (gs Grants) Validate(cat *catalog.Catalog) error {
	for _, g := range gs {
		if _, ok := cat.Lookup(g.Resource); !ok {
			return fmt.Errorf("%w: unknown resource %q", shared.ErrValidation, g.Resource)
		}
		for _, a := range g.Actions {
			if !a.Valid() {
				return fmt.Errorf("%w: unknown action %q on %s", shared.ErrValidation, a, g.Resource)
			}
		}
	}
	return nil
}

// Sanitize drops anything the catalog does not know about so that stale
// stored data never grants access.
func (gs Grants) Sanitize(cat *catalog.Catalog) Grants {
	out := make(Grants, 0, len(gs))
	for _, g := range gs {
		if _, ok := cat.Lookup(g.Resource); !ok {
			continue
		}
		actions := make([]catalog.Action, 0, len(g.Actions))
		for _, a := range g.Actions {
			if a.Valid() {
				actions = append(actions, a)
			}
		}
		out = append(out, Grant{Resource: g.Resource, Actions: actions})
	}
	return out.Normalize()
}

// FullGrants returns every action on every catalog resource.
func FullGrants(cat *catalog.Catalog) Grants {
	resources := cat.Resources()
	out := make(Grants, 0, len(resources))
	for _, res := range resources {
		out = append(out, Grant{Resource: res.ID, Actions: catalog.AllActions()})
	}
	return out
}

func normalizeActions(actions []catalog.Action) []catalog.Action {
	out := make([]catalog.Action, 0, len(actions))
	for _, a := range actions {
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b catalog.Action) int {
		return a.Rank() - b.Rank()
	})
	return out
}
