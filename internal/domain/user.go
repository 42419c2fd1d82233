package domain

import (
	"slices"
	"time"
)

// User represents an account on the server. Authorization is entirely
// group-driven: a user's effective capabilities are the union of the
// capabilities of the groups listed in Groups. Root users bypass the
// capability checks altogether.
type User struct {
	Record
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"password_hash,omitempty"` // Stored hashed, filter from API responses
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	ProfilePhoto string     `json:"profile_photo,omitempty"`
	AvatarColor  string     `json:"avatar_color,omitempty"`
	IsRoot       bool       `json:"is_root"`
	LastLoginAt  time.Time  `json:"last_login_at"`
	Groups       []string   `json:"groups"` // group slugs
}

// IsMember returns true if the user belongs to the group with the
// given slug.
func (u *User) IsMember(groupSlug string) bool {
	return slices.Contains(u.Groups, groupSlug)
}

// AddGroup adds the user to a group. Returns false if the user was
// already a member.
func (u *User) AddGroup(groupSlug string) bool {
	if u.IsMember(groupSlug) {
		return false
	}
	u.Groups = append(u.Groups, groupSlug)
	return true
}

// RemoveGroup removes the user from a group. Returns false if the user
// was not a member.
func (u *User) RemoveGroup(groupSlug string) bool {
	before := len(u.Groups)
	u.Groups = slices.DeleteFunc(u.Groups, func(existing string) bool {
		return existing == groupSlug
	})
	return len(u.Groups) != before
}

// Name returns the best available name to display for the user.
func (u *User) Name() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
