package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_IsMember(t *testing.T) {
	tests := []struct {
		name   string
		groups []string
		lookup string
		want   bool
	}{
		{"member", []string{"viewers", "editors"}, "editors", true},
		{"not a member", []string{"viewers"}, "admins", false},
		{"no groups", nil, "viewers", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &User{Groups: tt.groups}
			assert.Equal(t, tt.want, user.IsMember(tt.lookup))
		})
	}
}

func TestUser_AddGroup(t *testing.T) {
	user := &User{}

	assert.True(t, user.AddGroup("viewers"))
	assert.False(t, user.AddGroup("viewers"), "re-adding is a no-op")
	assert.Equal(t, []string{"viewers"}, user.Groups)
}

func TestUser_RemoveGroup(t *testing.T) {
	user := &User{Groups: []string{"viewers", "editors"}}

	assert.True(t, user.RemoveGroup("viewers"))
	assert.False(t, user.RemoveGroup("viewers"))
	assert.Equal(t, []string{"editors"}, user.Groups)
}

func TestUser_Name(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"prefers username", User{Username: "marguerite", Email: "m@example.com"}, "marguerite"},
		{"falls back to email", User{Email: "m@example.com"}, "m@example.com"},
		{"empty user", User{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.Name())
		})
	}
}
