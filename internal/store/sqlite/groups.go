package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/id"
	"github.com/stacksapp/stacks-server/internal/store"
)

const groupColumns = `id, created_at, updated_at, deleted_at, name, slug`

func scanGroup(scanner interface{ Scan(dest ...any) error }) (*domain.Group, error) {
	var g domain.Group

	var (
		createdAt string
		updatedAt string
		deletedAt sql.NullString
	)

	err := scanner.Scan(
		&g.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&g.Name,
		&g.Slug,
	)
	if err != nil {
		return nil, err
	}

	g.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	g.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	g.DeletedAt, err = parseNullableTime(deletedAt)
	if err != nil {
		return nil, err
	}

	g.Capabilities = []domain.Capability{}
	return &g, nil
}

// GetGroup retrieves a group by ID with its capabilities.
// Returns store.ErrNotFound if the group does not exist.
func (s *Store) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = ? AND deleted_at IS NULL`, id)

	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	g.Capabilities, err = s.groupCapabilities(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetGroupBySlug retrieves a group by its slug with its capabilities.
// Returns store.ErrNotFound if the group does not exist.
func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE slug = ? AND deleted_at IS NULL`, slug)

	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	g.Capabilities, err = s.groupCapabilities(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListGroups returns all non-deleted groups with their capabilities,
// ordered by name.
func (s *Store) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM groups
		WHERE deleted_at IS NULL
		ORDER BY name COLLATE NOCASE ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, g := range groups {
		g.Capabilities, err = s.groupCapabilities(ctx, g.ID)
		if err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// groupCapabilities returns a group's capabilities in stable order.
func (s *Store) groupCapabilities(ctx context.Context, groupID string) ([]domain.Capability, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT capability FROM group_capabilities
		WHERE group_id = ? ORDER BY capability ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	caps := []domain.Capability{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		caps = append(caps, domain.Capability(c))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return caps, nil
}

// userGroupSlugs returns the slugs of the live groups a user belongs
// to, oldest membership first.
func (s *Store) userGroupSlugs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.slug FROM user_groups ug
		JOIN groups g ON g.id = ug.group_id
		WHERE ug.user_id = ? AND g.deleted_at IS NULL
		ORDER BY ug.added_at ASC, g.slug ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slugs := []string{}
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slugs, nil
}

// replaceUserGroupsTx swaps a user's memberships for the given slugs
// inside an open transaction. Every slug must name a live group.
func (s *Store) replaceUserGroupsTx(ctx context.Context, tx *sql.Tx, userID string, groupSlugs []string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_groups WHERE user_id = ?`, userID); err != nil {
		return err
	}

	now := formatTime(time.Now())
	for _, slug := range groupSlugs {
		var groupID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM groups WHERE slug = ? AND deleted_at IS NULL`, slug).Scan(&groupID)
		if err == sql.ErrNoRows {
			return store.ErrInvalidInput.WithMessagef("group %q does not exist", slug)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO user_groups (user_id, group_id, added_at)
			VALUES (?, ?, ?)`, userID, groupID, now); err != nil {
			return err
		}
	}
	return nil
}

// AddUserToGroup adds a user to the group with the given slug. Adding a
// member twice is a no-op. Returns store.ErrNotFound if either the user
// or the group does not exist.
func (s *Store) AddUserToGroup(ctx context.Context, userID, groupSlug string) error {
	exists, err := s.userExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound.WithMessage("user not found")
	}

	var groupID string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM groups WHERE slug = ? AND deleted_at IS NULL`, groupSlug).Scan(&groupID)
	if err == sql.ErrNoRows {
		return store.ErrNotFound.WithMessage("group not found")
	}
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_groups (user_id, group_id, added_at)
		VALUES (?, ?, ?)`, userID, groupID, formatTime(time.Now()))
	return err
}

// SetUserGroups replaces a user's group memberships with the given
// slugs. Returns store.ErrNotFound if the user does not exist,
// store.ErrInvalidInput if a slug names no live group.
func (s *Store) SetUserGroups(ctx context.Context, userID string, groupSlugs []string) error {
	exists, err := s.userExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound.WithMessage("user not found")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.replaceUserGroupsTx(ctx, tx, userID, groupSlugs); err != nil {
		return err
	}
	return tx.Commit()
}

// GetUserCapabilities returns the union of capabilities granted by the
// user's groups. A user with no groups gets an empty set, not an error.
func (s *Store) GetUserCapabilities(ctx context.Context, userID string) (domain.CapabilitySet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT gc.capability FROM user_groups ug
		JOIN groups g ON g.id = ug.group_id
		JOIN group_capabilities gc ON gc.group_id = g.id
		WHERE ug.user_id = ? AND g.deleted_at IS NULL`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	caps := domain.CapabilitySet{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		caps.Add(domain.Capability(c))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return caps, nil
}

// ApplyPolicy makes the stored groups match a policy document in one
// transaction. Groups named by the document are created if missing and
// have their capability sets replaced outright. Live groups the
// document no longer names keep their members but lose every
// capability; the document is the single source of grants. The applied
// version is recorded so startup can skip re-applying an unchanged
// policy.
func (s *Store) ApplyPolicy(ctx context.Context, version int, groups []domain.Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	slugs := make([]string, 0, len(groups))

	for i := range groups {
		g := &groups[i]
		slugs = append(slugs, g.Slug)

		var groupID, name string
		err := tx.QueryRowContext(ctx,
			`SELECT id, name FROM groups WHERE slug = ? AND deleted_at IS NULL`, g.Slug).
			Scan(&groupID, &name)
		switch {
		case err == sql.ErrNoRows:
			groupID, err = id.Generate("group")
			if err != nil {
				return fmt.Errorf("generate group ID: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO groups (id, created_at, updated_at, deleted_at, name, slug)
				VALUES (?, ?, ?, NULL, ?, ?)`,
				groupID, now, now, g.Name, g.Slug); err != nil {
				return fmt.Errorf("create group %q: %w", g.Slug, err)
			}
		case err != nil:
			return err
		default:
			if name != g.Name {
				if _, err := tx.ExecContext(ctx,
					`UPDATE groups SET name = ?, updated_at = ? WHERE id = ?`,
					g.Name, now, groupID); err != nil {
					return fmt.Errorf("rename group %q: %w", g.Slug, err)
				}
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM group_capabilities WHERE group_id = ?`, groupID); err != nil {
			return err
		}
		for _, c := range g.Capabilities {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO group_capabilities (group_id, capability)
				VALUES (?, ?)`, groupID, string(c)); err != nil {
				return err
			}
		}
	}

	if len(slugs) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM group_capabilities`); err != nil {
			return err
		}
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(slugs)), ",")
		args := make([]any, len(slugs))
		for i, slug := range slugs {
			args[i] = slug
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM group_capabilities WHERE group_id IN (
				SELECT id FROM groups
				WHERE deleted_at IS NULL AND slug NOT IN (`+placeholders+`)
			)`, args...); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO instance (key, value) VALUES (?, ?)`,
		instanceKeyPolicyVersion, strconv.Itoa(version)); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) userExists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE id = ? AND deleted_at IS NULL`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
