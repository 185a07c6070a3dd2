package accounts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linkwave/portal/internal/catalog"
)

func sampleAccount() Account {
	now := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	return Account{
		ID:          "acct-1",
		Email:       "tech@isp.test",
		DisplayName: "Field Tech",
		Phone:       "+628111000",
		Role:        RoleAdmin,
		Approved:    true,
		Grants: Grants{
			{Resource: catalog.Tickets, Actions: []catalog.Action{catalog.ActionView, catalog.ActionEdit}},
			{Resource: catalog.Stations, Actions: []catalog.Action{catalog.ActionView}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAccountDocumentBSONRoundTrip(t *testing.T) {
	acct := sampleAccount()

	raw, err := bson.Marshal(toDocument(acct))
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "tech@isp.test", fields["_id"])
	assert.Contains(t, fields, "permissionGrants")

	var doc accountDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := doc.toDomain(catalog.Default())

	assert.Equal(t, acct.ID, got.ID)
	assert.Equal(t, acct.Email, got.Email)
	assert.Equal(t, acct.Phone, got.Phone)
	assert.Equal(t, acct.Role, got.Role)
	assert.True(t, got.Approved)
	assert.Equal(t, acct.Grants, got.Grants)
	assert.True(t, acct.CreatedAt.Equal(got.CreatedAt))
}

func TestAccountDocumentDropsStaleData(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":       "old@isp.test",
		"accountId": "acct-2",
		"role":      "owner",
		"approved":  true,
		"permissionGrants": bson.A{
			bson.M{"resourceId": "billing", "allowedActions": bson.A{"view"}},
			bson.M{"resourceId": "tickets", "allowedActions": bson.A{"approve", "view"}},
		},
	})
	require.NoError(t, err)

	var doc accountDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := doc.toDomain(catalog.Default())

	assert.Equal(t, RoleUser, got.Role)
	assert.Equal(t, Grants{{Resource: catalog.Tickets, Actions: []catalog.Action{catalog.ActionView}}}, got.Grants)
}

func TestGrantsJSONRoundTrip(t *testing.T) {
	cat := catalog.Default()
	acct := sampleAccount()

	raw, err := marshalGrants(acct.Grants)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"resourceId":"tickets"`)
	assert.Contains(t, string(raw), `"allowedActions":["view","edit"]`)

	docs, err := unmarshalGrants(raw)
	require.NoError(t, err)
	assert.Equal(t, acct.Grants, fromGrantDocuments(docs, cat))

	stale := []byte(`[{"resourceId":"billing","allowedActions":["view"]},{"resourceId":"tickets","allowedActions":["delete","view","approve"]}]`)
	docs, err = unmarshalGrants(stale)
	require.NoError(t, err)
	assert.Equal(t,
		Grants{{Resource: catalog.Tickets, Actions: []catalog.Action{catalog.ActionView, catalog.ActionDelete}}},
		fromGrantDocuments(docs, cat))

	docs, err = unmarshalGrants(nil)
	require.NoError(t, err)
	assert.Empty(t, fromGrantDocuments(docs, cat))

	_, err = unmarshalGrants([]byte(`{"not":"a list"}`))
	assert.Error(t, err)
}
