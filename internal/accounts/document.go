package accounts

import (
	"time"

	"github.com/linkwave/portal/internal/catalog"
)

// accountDocument is the stored shape of an Account.
type accountDocument struct {
	Email       string          `bson:"_id"`
	AccountID   string          `bson:"accountId"`
	DisplayName string          `bson:"displayName,omitempty"`
	AvatarURL   string          `bson:"avatarUrl,omitempty"`
	Phone       string          `bson:"phone,omitempty"`
	Role        string          `bson:"role"`
	Approved    bool            `bson:"approved"`
	Grants      []grantDocument `bson:"permissionGrants"`
	CreatedAt   time.Time       `bson:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt"`
}

type grantDocument struct {
	ResourceID string   `bson:"resourceId" json:"resourceId"`
	Actions    []string `bson:"allowedActions" json:"allowedActions"`
}

func toGrantDocuments(gs Grants) []grantDocument {
	out := make([]grantDocument, 0, len(gs))
	for _, g := range gs {
		actions := make([]string, 0, len(g.Actions))
		for _, a := range g.Actions {
			actions = append(actions, string(a))
		}
		out = append(out, grantDocument{ResourceID: string(g.Resource), Actions: actions})
	}
	return out
}

// fromGrantDocuments decodes stored grants, dropping entries the catalog does
// not recognise.
func fromGrantDocuments(docs []grantDocument, cat *catalog.Catalog) Grants {
	gs := make(Grants, 0, len(docs))
	for _, d := range docs {
		actions := make([]catalog.Action, 0, len(d.Actions))
		for _, a := range d.Actions {
			actions = append(actions, catalog.Action(a))
		}
		gs = append(gs, Grant{Resource: catalog.ResourceID(d.ResourceID), Actions: actions})
	}
	return gs.Sanitize(cat)
}

func toDocument(a Account) accountDocument {
	return accountDocument{
		Email:       a.Email,
		AccountID:   a.ID,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
		Phone:       a.Phone,
		Role:        string(a.Role),
		Approved:    a.Approved,
		Grants:      toGrantDocuments(a.Grants),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (d accountDocument) toDomain(cat *catalog.Catalog) Account {
	role := Role(d.Role)
	if !role.Valid() {
		// Unknown stored roles get the least privilege.
		role = RoleUser
	}
	return Account{
		ID:          d.AccountID,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		AvatarURL:   d.AvatarURL,
		Phone:       d.Phone,
		Role:        role,
		Approved:    d.Approved,
		Grants:      fromGrantDocuments(d.Grants, cat),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
