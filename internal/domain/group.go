package domain

import "slices"

// Group is a named bundle of capabilities. Users gain capabilities only
// through the groups they belong to. The built-in groups (viewers,
// editors, admins) come from the access policy and are re-seedable; the
// seeding is idempotent so re-applying a policy never duplicates them.
type Group struct {
	Record
	Name         string       `json:"name"`
	Slug         string       `json:"slug"`
	Capabilities []Capability `json:"capabilities"`
}

// HasCapability returns true if the group grants the given capability.
func (g *Group) HasCapability(c Capability) bool {
	return slices.Contains(g.Capabilities, c)
}

// CapabilitySet returns the group's capabilities as a set.
func (g *Group) CapabilitySet() CapabilitySet {
	return NewCapabilitySet(g.Capabilities...)
}
