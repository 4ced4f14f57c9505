package auth

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Role is the coarse access tier of a principal.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleTrader Role = "trader"
	RoleUser   Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTrader, RoleUser:
		return true
	}
	return false
}

// ParseRole normalises and validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Principal is an authenticated identity. It carries no secret material and is
// immutable once constructed.
type Principal struct {
	ID             string
	Email          string
	DisplayName    string
	Role           Role
	OrganizationID string

	permissions map[string]struct{}
}

// NewPrincipal builds a principal with the given permission set. Duplicate and
// blank permissions are dropped.
func NewPrincipal(id, email, displayName string, role Role, orgID string, perms []string) Principal {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return Principal{
		ID:             id,
		Email:          email,
		DisplayName:    displayName,
		Role:           role,
		OrganizationID: orgID,
		permissions:    set,
	}
}

// HasPermission reports whether the principal holds the permission key.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.permissions[key]
	return ok
}

// Permissions returns the permission set sorted lexicographically.
func (p Principal) Permissions() []string {
	out := make([]string, 0, len(p.permissions))
	for k := range p.permissions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type principalJSON struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	Name           string   `json:"name"`
	Role           Role     `json:"role"`
	OrganizationID string   `json:"organization_id"`
	Permissions    []string `json:"permissions"`
}

func (p Principal) MarshalJSON() ([]byte, error) {
	return json.Marshal(principalJSON{
		ID:             p.ID,
		Email:          p.Email,
		Name:           p.DisplayName,
		Role:           p.Role,
		OrganizationID: p.OrganizationID,
		Permissions:    p.Permissions(),
	})
}

func (p *Principal) UnmarshalJSON(data []byte) error {
	var raw principalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NewPrincipal(raw.ID, raw.Email, raw.Name, raw.Role, raw.OrganizationID, raw.Permissions)
	return nil
}

// Credential pairs a principal with its password hash. It is only handed to the
// login path and is never serialised.
type Credential struct {
	Principal    Principal
	PasswordHash string `json:"-"`
}
