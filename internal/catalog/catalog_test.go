package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogCoversPortalSections(t *testing.T) {
	c := Default()
	ids := make([]ResourceID, 0)
	for _, res := range c.Resources() {
		ids = append(ids, res.ID)
	}
	assert.ElementsMatch(t, []ResourceID{
		Dashboard, Tickets, Expenses, Stations, Equipment, InternetConnections,
		Users, Settings, Messaging, EquipmentRequests, RequestManagement, StationTasks,
	}, ids)

	dash, ok := c.Lookup(Dashboard)
	require.True(t, ok)
	assert.Equal(t, RootPath, dash.Path)
}

func TestMatch(t *testing.T) {
	c := Default()
	cases := []struct {
		path string
		want ResourceID
		ok   bool
	}{
		{"/dashboard", Dashboard, true},
		{"/dashboard/", Dashboard, true},
		{"/dashboard/tickets", Tickets, true},
		{"/dashboard/tickets/", Tickets, true},
		{"/dashboard/tickets//", "", false},
		{"/dashboard/tickets/42", "", false},
		{"/Dashboard/tickets", "", false},
		{"/", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			res, ok := c.Match(tc.path)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, res.ID)
		})
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(
		Resource{ID: Tickets, Path: "/a"},
		Resource{ID: Tickets, Path: "/b"},
	)
	require.Error(t, err)

	_, err = New(
		Resource{ID: Tickets, Path: "/a"},
		Resource{ID: Expenses, Path: "/a"},
	)
	require.Error(t, err)

	_, err = New(Resource{ID: Tickets, Path: "/a/"})
	require.Error(t, err)
}

func TestActionRank(t *testing.T) {
	assert.True(t, ActionEdit.Valid())
	assert.False(t, Action("approve").Valid())
	assert.Equal(t, -1, Action("approve").Rank())
	assert.Equal(t, 3, ActionDelete.Rank())
}
