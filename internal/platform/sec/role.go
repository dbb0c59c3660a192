// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "strings"

// # User Roles

// UserRole is the authorization level carried in an access token.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleModerator UserRole = "moderator" // May manage any story's translation group
	RoleAuthor    UserRole = "author"    // May manage the groups of their own stories
	RoleMember    UserRole = "member"
)

// roleLevels orders the known roles. Unknown roles rank below member.
var roleLevels = map[UserRole]int{
	RoleMember:    10,
	RoleAuthor:    20,
	RoleModerator: 30,
	RoleAdmin:     40,
}

/*
ParseRole normalises the role claim issued by the identity service.

Returns:
  - UserRole: The known role, or the trimmed lowercase input when unknown
*/
func ParseRole(raw string) UserRole {
	return UserRole(strings.ToLower(strings.TrimSpace(raw)))
}

// Known reports whether the role is one this service recognises.
func (r UserRole) Known() bool {
	_, ok := roleLevels[r]
	return ok
}

// AtLeast reports whether r meets or exceeds target.
func (r UserRole) AtLeast(target UserRole) bool {
	return roleLevels[r] >= roleLevels[target]
}
