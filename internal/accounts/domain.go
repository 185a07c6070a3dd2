package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/shared"
)

// Role is the coarse privilege level of an account.
type Role string

// Supported roles.
const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", shared.ErrValidation, raw)
	}
	return role, nil
}

// Account represents one authenticated user of the portal.
type Account struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Role        Role      `json:"role"`
	Approved    bool      `json:"approved"`
	Grants      Grants    `json:"permissionGrants"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsSuperAdmin reports whether the account bypasses grant checks.
func (a Account) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}

// IsActive reports whether the account may use the portal at all.
// Superadmins are implicitly approved.
func (a Account) IsActive() bool {
	return a.IsSuperAdmin() || a.Approved
}

// Identity is the verified identity supplied by the identity provider.
type Identity struct {
	Email       string
	DisplayName string
	AvatarURL   string
}

// NormalizeEmail lowercases and trims an email for use as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Patch is a partial account update. Nil fields are left untouched.
type Patch struct {
	DisplayName *string
	AvatarURL   *string
	Phone       *string
	Role        *Role
	Approved    *bool
	Grants      *Grants
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.DisplayName == nil && p.AvatarURL == nil && p.Phone == nil &&
		p.Role == nil && p.Approved == nil && p.Grants == nil
}

// Apply returns a copy of a with the patch applied.
func (p Patch) Apply(a Account) Account {
	if p.DisplayName != nil {
		a.DisplayName = *p.DisplayName
	}
	if p.AvatarURL != nil {
		a.AvatarURL = *p.AvatarURL
	}
	if p.Phone != nil {
		a.Phone = *p.Phone
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	if p.Approved != nil {
		a.Approved = *p.Approved
	}
	if p.Grants != nil {
		a.Grants = p.Grants.Clone()
	} else {
		a.Grants = a.Grants.Clone()
	}
	return a
}

// checkAdminGrants enforces that admins carry at least one usable grant.
func checkAdminGrants(a Account) error {
	if a.Role == RoleAdmin && !a.Grants.HasAnyAction() {
		return fmt.Errorf("%w: admin accounts need at least one permission grant", shared.ErrValidation)
	}
	return nil
}

func bootstrapAccount(id, email string, cat *catalog.Catalog) Account {
	return Account{
		ID:       id,
		Email:    email,
		Role:     RoleSuperAdmin,
		Approved: true,
		Grants:   FullGrants(cat),
	}
}
