package domain

import "slices"

// Capability names a single action a user can be granted on the catalog.
// Capabilities are never assigned to users directly; they flow through
// group membership and are unioned per request.
type Capability string

const (
	// CapabilityView allows reading books, authors and libraries.
	CapabilityView Capability = "can_view"
	// CapabilityCreate allows creating books and authors.
	CapabilityCreate Capability = "can_create"
	// CapabilityEdit allows updating existing books and authors.
	CapabilityEdit Capability = "can_edit"
	// CapabilityDelete allows deleting books and authors.
	CapabilityDelete Capability = "can_delete"
	// CapabilityAddBook allows shelving books into libraries.
	CapabilityAddBook Capability = "can_add_book"
	// CapabilityRemoveBook allows unshelving books from libraries.
	CapabilityRemoveBook Capability = "can_remove_book"
)

// AllCapabilities returns every known capability in stable order.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityView,
		CapabilityCreate,
		CapabilityEdit,
		CapabilityDelete,
		CapabilityAddBook,
		CapabilityRemoveBook,
	}
}

// ParseCapability converts a string to a Capability, reporting whether
// the name is known.
func ParseCapability(s string) (Capability, bool) {
	c := Capability(s)
	return c, c.Valid()
}

// Valid returns true if the capability is one of the known names.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityView, CapabilityCreate, CapabilityEdit,
		CapabilityDelete, CapabilityAddBook, CapabilityRemoveBook:
		return true
	}
	return false
}

// CapabilitySet is a membership set of capabilities, typically the
// union of a user's groups resolved for one request.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set.Add(c)
	}
	return set
}

// Add inserts a capability into the set.
func (s CapabilitySet) Add(c Capability) {
	s[c] = struct{}{}
}

// Has returns true if the capability is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List returns the set's capabilities sorted by name, for stable
// serialization in API responses.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
