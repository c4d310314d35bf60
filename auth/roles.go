package auth

import (
	"fmt"
	"sort"
	"strings"
)

// UserRole is the account role. The set of roles is closed.
type UserRole string

const (
	// RoleUser can read and comment
	RoleUser UserRole = "user"
	// RoleAuthor can also write and manage own articles
	RoleAuthor UserRole = "author"
	// RoleEditor can manage any article or comment
	RoleEditor UserRole = "editor"
	// RoleAdmin can manage everything, including accounts and taxonomy
	RoleAdmin UserRole = "admin"
)

var roleHierarchy = map[UserRole]int{
	RoleUser:   0,
	RoleAuthor: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
}

// IsValid checks if the role is one of the predefined roles
func (r UserRole) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level.
// Unknown roles never satisfy a requirement.
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

func (r UserRole) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleAuthor,
		RoleEditor,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// RoleSet is an immutable set of allowed roles for an operation
type RoleSet struct {
	roles map[UserRole]struct{}
}

// NewRoleSet builds a set, failing on an empty list or unknown roles.
func NewRoleSet(roles ...UserRole) (RoleSet, error) {
	if len(roles) == 0 {
		return RoleSet{}, fmt.Errorf("role set must not be empty")
	}
	set := RoleSet{roles: make(map[UserRole]struct{}, len(roles))}
	for _, r := range roles {
		if !r.IsValid() {
			return RoleSet{}, fmt.Errorf("unknown role %q in role set", r)
		}
		set.roles[r] = struct{}{}
	}
	return set, nil
}

// MustRoleSet is like NewRoleSet but panics on error. Use it for
// package level policy declarations.
func MustRoleSet(roles ...UserRole) RoleSet {
	set, err := NewRoleSet(roles...)
	if err != nil {
		panic(err)
	}
	return set
}

// RolesAtLeast returns every role whose level is at least min
func RolesAtLeast(min UserRole) RoleSet {
	var roles []UserRole
	for _, r := range GetAllRoles() {
		if r.IsAtLeast(min) {
			roles = append(roles, r)
		}
	}
	return MustRoleSet(roles...)
}

// Contains reports whether role is in the set
func (s RoleSet) Contains(role UserRole) bool {
	_, ok := s.roles[role]
	return ok
}

// IsEmpty is true for the zero value
func (s RoleSet) IsEmpty() bool {
	return len(s.roles) == 0
}

// Roles returns the members in hierarchical order
func (s RoleSet) Roles() []UserRole {
	out := make([]UserRole, 0, len(s.roles))
	for r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return roleHierarchy[out[i]] < roleHierarchy[out[j]]
	})
	return out
}

func (s RoleSet) String() string {
	names := make([]string, 0, len(s.roles))
	for _, r := range s.Roles() {
		names = append(names, string(r))
	}
	return "{" + strings.Join(names, ",") + "}"
}

var (
	// AuthorRoles may create articles
	AuthorRoles = RolesAtLeast(RoleAuthor)
	// ElevatedRoles may act on content owned by others
	ElevatedRoles = MustRoleSet(RoleEditor, RoleAdmin)
	// AdminRoles manage accounts and taxonomy
	AdminRoles = MustRoleSet(RoleAdmin)
)
