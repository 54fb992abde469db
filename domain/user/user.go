// Package user provides user and group value types and pure permission
// checks. Persistence and authentication live in core/users.
package user

import "strings"

// Built-in groups seeded at startup. They cannot be deleted.
const (
	GroupAdmins = "admins"
	GroupUsers  = "users"
)

// BuiltinGroups lists the protected group names.
var BuiltinGroups = []string{GroupAdmins, GroupUsers}

// AdminGroups lists the groups that grant unrestricted access.
var AdminGroups = []string{GroupAdmins}

// Wildcard is the permission key applying to every resource.
const Wildcard = "*"

// Permissions maps a resource name (or the wildcard) to allowed actions.
type Permissions map[string][]string

// ReadOnly grants read access to every resource.
func ReadOnly() Permissions {
	return Permissions{Wildcard: {"read"}}
}

// AllAccess grants every action on every resource.
func AllAccess() Permissions {
	return Permissions{Wildcard: {"read", "create", "update", "remove"}}
}

// User is an authenticated principal. Hash is the password digest and is
// never serialized to clients.
type User struct {
	ID          string      `json:"_id"`
	Username    string      `json:"username"`
	Hash        string      `json:"-"`
	Groups      []string    `json:"groups"`
	Permissions Permissions `json:"permissions"`
}

// IsAdmin reports whether the user belongs to an admin group.
func (u *User) IsAdmin() bool {
	for _, g := range u.Groups {
		if IsAdminGroup(g) {
			return true
		}
	}
	return false
}

// Allowed reports whether the user's own permission map grants the action
// on the resource, checking the specific name and the wildcard key.
func (u *User) Allowed(action, resourceName string) bool {
	action = strings.ToLower(action)
	for _, key := range []string{Wildcard, resourceName} {
		for _, granted := range u.Permissions[key] {
			if strings.EqualFold(granted, action) {
				return true
			}
		}
	}
	return false
}

// InGroup reports whether the user belongs to the named group.
func (u *User) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// IsAdminGroup reports whether the named group grants admin rights.
func IsAdminGroup(name string) bool {
	for _, g := range AdminGroups {
		if g == name {
			return true
		}
	}
	return false
}

// Group is a named permission set.
type Group struct {
	Name        string      `json:"name"`
	Permissions Permissions `json:"permissions"`
}

// IsBuiltinGroup reports whether the named group is seeded at startup and
// protected from deletion.
func IsBuiltinGroup(name string) bool {
	for _, g := range BuiltinGroups {
		if g == name {
			return true
		}
	}
	return false
}
