// Package policy defines the versioned document that maps groups to
// capabilities and applies it to the catalog store. The assignment is
// configuration, not code: a default document ships in the binary and a
// JSON file can override it.
package policy

import (
	"encoding/json/v2"
	"fmt"
	"os"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/normalize"
)

// Built-in group slugs. The default document defines all three; custom
// documents may define more.
const (
	SlugViewers = "viewers"
	SlugEditors = "editors"
	SlugAdmins  = "admins"
)

// Document is one complete group-capability assignment. Applying it
// replaces each named group's capability set and strips capabilities from
// groups it no longer names; memberships are never touched.
type Document struct {
	Version int          `json:"version"`
	Groups  []GroupGrant `json:"groups"`
}

// GroupGrant assigns a capability set to one group, creating the group if
// it doesn't exist yet.
type GroupGrant struct {
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// Default returns the document every fresh install starts from: read-only
// viewers, editors who manage the catalog but cannot delete, and admins
// who can do everything.
func Default() Document {
	return Document{
		Version: 1,
		Groups: []GroupGrant{
			{
				Slug:         SlugViewers,
				Name:         "Viewers",
				Capabilities: []string{"can_view"},
			},
			{
				Slug:         SlugEditors,
				Name:         "Editors",
				Capabilities: []string{"can_view", "can_create", "can_edit", "can_add_book", "can_remove_book"},
			},
			{
				Slug:         SlugAdmins,
				Name:         "Admins",
				Capabilities: []string{"can_view", "can_create", "can_edit", "can_delete", "can_add_book", "can_remove_book"},
			},
		},
	}
}

// Load reads and validates a policy document from a JSON file.
func Load(path string) (Document, error) {
	raw, err := os.ReadFile(path) //#nosec G304 -- path comes from server config
	if err != nil {
		return Document{}, fmt.Errorf("read policy file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("parse policy file: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, fmt.Errorf("invalid policy file %s: %w", path, err)
	}

	return doc, nil
}

// Validate checks the document shape before it touches the store. An
// empty group list is allowed; applying it revokes every capability.
func (d Document) Validate() error {
	if d.Version < 1 {
		return fmt.Errorf("policy version must be at least 1, got %d", d.Version)
	}

	seen := make(map[string]bool, len(d.Groups))
	for i, g := range d.Groups {
		if g.Slug == "" {
			return fmt.Errorf("group %d: slug is required", i)
		}
		if g.Slug != normalize.Slug(g.Slug) {
			return fmt.Errorf("group %q: slug must be lowercase letters, digits and dashes", g.Slug)
		}
		if seen[g.Slug] {
			return fmt.Errorf("group %q: duplicate slug", g.Slug)
		}
		seen[g.Slug] = true

		if g.Name == "" {
			return fmt.Errorf("group %q: name is required", g.Slug)
		}
		for _, raw := range g.Capabilities {
			if _, ok := domain.ParseCapability(raw); !ok {
				return fmt.Errorf("group %q: unknown capability %q", g.Slug, raw)
			}
		}
	}

	return nil
}

// ToGroups converts the grants into store-ready groups. Capabilities are
// deduplicated; document order is preserved.
func (d Document) ToGroups() []domain.Group {
	groups := make([]domain.Group, 0, len(d.Groups))
	for _, grant := range d.Groups {
		caps := make([]domain.Capability, 0, len(grant.Capabilities))
		seen := domain.CapabilitySet{}
		for _, raw := range grant.Capabilities {
			c, ok := domain.ParseCapability(raw)
			if !ok || seen.Has(c) {
				continue
			}
			seen.Add(c)
			caps = append(caps, c)
		}
		groups = append(groups, domain.Group{
			Slug:         grant.Slug,
			Name:         grant.Name,
			Capabilities: caps,
		})
	}
	return groups
}
