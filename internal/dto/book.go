// Package dto provides denormalized response shapes for the Stacks API.
// Domain entities reference related records by ID; these types carry the
// display fields clients actually render.
package dto

import "github.com/stacksapp/stacks-server/internal/domain"

// Book is a catalog book with its author's name denormalized in.
type Book struct {
	*domain.Book
	Author   string `json:"author"`
	CoverURL string `json:"cover_url,omitempty"`
}

// Author is an author with their catalog footprint embedded: the
// non-deleted books, how many there are, and the most recent
// publication year (null when the author has no books yet).
type Author struct {
	*domain.Author
	Books                 []*Book `json:"books"`
	BookCount             int     `json:"book_count"`
	LatestPublicationYear *int    `json:"latest_publication_year"`
}

// Library is a library with its member books resolved.
type Library struct {
	*domain.Library
	Books     []*Book `json:"books"`
	BookCount int     `json:"book_count"`
}

// User is an account shape safe to return from the API: the password
// hash is stripped and the effective capabilities are resolved.
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email,omitempty"`
	DateOfBirth  string   `json:"date_of_birth,omitempty"`
	ProfilePhoto string   `json:"profile_photo,omitempty"`
	AvatarColor  string   `json:"avatar_color,omitempty"`
	IsRoot       bool     `json:"is_root"`
	Groups       []string `json:"groups"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// NewUser builds the API shape for a user. Capabilities may be nil when
// the caller hasn't resolved them (list views).
func NewUser(u *domain.User, caps domain.CapabilitySet) *User {
	out := &User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		ProfilePhoto: u.ProfilePhoto,
		AvatarColor:  u.AvatarColor,
		IsRoot:       u.IsRoot,
		Groups:       u.Groups,
	}
	if out.Groups == nil {
		out.Groups = []string{}
	}
	if u.DateOfBirth != nil {
		out.DateOfBirth = u.DateOfBirth.Format("2006-01-02")
	}
	if caps != nil {
		out.Capabilities = make([]string, 0, len(caps))
		for _, c := range caps.List() {
			out.Capabilities = append(out.Capabilities, string(c))
		}
	}
	return out
}
