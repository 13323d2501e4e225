// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"strings"
)

// Role is an account privilege level. Roles are totally ordered.
type Role int

// Known roles in ascending privilege.
const (
	RoleClient Role = iota + 1
	RoleWorker
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleClient: "CLIENT",
	RoleWorker: "WORKER",
	RoleAdmin:  "ADMIN",
}

// ParseRole converts a role name (case-insensitive) into a Role.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// String returns the wire name of the role.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Satisfies reports whether r grants at least the privileges of required.
func (r Role) Satisfies(required Role) bool { return r.Valid() && r >= required }

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
