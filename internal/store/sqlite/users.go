package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/store"
)

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, created_at, updated_at, deleted_at, username, username_lower,
	email, password_hash, date_of_birth, profile_photo, avatar_color, is_root, last_login_at`

// scanUser scans a sql.Row (or sql.Rows via its Scan method) into a domain.User.
// Group memberships are loaded separately.
func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User

	var (
		createdAt     string
		updatedAt     string
		deletedAt     sql.NullString
		usernameLower string
		email         sql.NullString
		dateOfBirth   sql.NullString
		profilePhoto  sql.NullString
		avatarColor   sql.NullString
		isRoot        int
		lastLoginAt   sql.NullString
	)

	err := scanner.Scan(
		&u.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&u.Username,
		&usernameLower, // throwaway - lookup column only
		&email,
		&u.PasswordHash,
		&dateOfBirth,
		&profilePhoto,
		&avatarColor,
		&isRoot,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	u.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	u.DeletedAt, err = parseNullableTime(deletedAt)
	if err != nil {
		return nil, err
	}

	if email.Valid {
		u.Email = email.String
	}
	if profilePhoto.Valid {
		u.ProfilePhoto = profilePhoto.String
	}
	if avatarColor.Valid {
		u.AvatarColor = avatarColor.String
	}

	u.IsRoot = isRoot != 0

	dob, err := parseNullableTime(dateOfBirth)
	if err != nil {
		return nil, err
	}
	u.DateOfBirth = dob

	// LastLoginAt: time.Time zero value means never logged in.
	if lastLoginAt.Valid && lastLoginAt.String != "" {
		u.LastLoginAt, err = parseTime(lastLoginAt.String)
		if err != nil {
			return nil, err
		}
	}

	u.Groups = []string{}
	return &u, nil
}

// CreateUser inserts a new user along with their group memberships.
// Returns store.ErrAlreadyExists if the user ID or username is taken,
// store.ErrInvalidInput if a listed group does not exist.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	usernameLower := strings.ToLower(strings.TrimSpace(user.Username))

	// LastLoginAt: store as NULL if zero value.
	var lastLoginVal sql.NullString
	if !user.LastLoginAt.IsZero() {
		lastLoginVal = sql.NullString{String: formatTime(user.LastLoginAt), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (
			id, created_at, updated_at, deleted_at, username, username_lower,
			email, password_hash, date_of_birth, profile_photo, avatar_color,
			is_root, last_login_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		nullTimeString(user.DeletedAt),
		user.Username,
		usernameLower,
		nullString(user.Email),
		user.PasswordHash,
		nullTimeString(user.DateOfBirth),
		nullString(user.ProfilePhoto),
		nullString(user.AvatarColor),
		boolToInt(user.IsRoot),
		lastLoginVal,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists.WithMessage("username is already taken")
		}
		return err
	}

	if err := s.replaceUserGroupsTx(ctx, tx, user.ID, user.Groups); err != nil {
		return err
	}

	return tx.Commit()
}

// GetUser retrieves a user by ID, excluding soft-deleted records.
// Returns store.ErrNotFound if the user does not exist.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? AND deleted_at IS NULL`, id)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.Groups, err = s.userGroupSlugs(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByUsername retrieves a user by case-insensitive username,
// excluding soft-deleted records. Returns store.ErrNotFound if the user
// does not exist.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	lower := strings.ToLower(strings.TrimSpace(username))
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username_lower = ? AND deleted_at IS NULL`, lower)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.Groups, err = s.userGroupSlugs(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser performs a full row update on an existing user, replacing
// their group memberships with the set on the struct.
// Returns store.ErrNotFound if the user does not exist or is soft-deleted.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	usernameLower := strings.ToLower(strings.TrimSpace(user.Username))

	var lastLoginVal sql.NullString
	if !user.LastLoginAt.IsZero() {
		lastLoginVal = sql.NullString{String: formatTime(user.LastLoginAt), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE users SET
			created_at = ?,
			updated_at = ?,
			username = ?,
			username_lower = ?,
			email = ?,
			password_hash = ?,
			date_of_birth = ?,
			profile_photo = ?,
			avatar_color = ?,
			is_root = ?,
			last_login_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		user.Username,
		usernameLower,
		nullString(user.Email),
		user.PasswordHash,
		nullTimeString(user.DateOfBirth),
		nullString(user.ProfilePhoto),
		nullString(user.AvatarColor),
		boolToInt(user.IsRoot),
		lastLoginVal,
		user.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists.WithMessage("username is already taken")
		}
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}

	if err := s.replaceUserGroupsTx(ctx, tx, user.ID, user.Groups); err != nil {
		return err
	}

	return tx.Commit()
}

// ListUsers returns all non-deleted users with their group memberships,
// oldest account first.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, u := range users {
		u.Groups, err = s.userGroupSlugs(ctx, u.ID)
		if err != nil {
			return nil, err
		}
	}
	return users, nil
}

// CountUsers returns the number of non-deleted users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
