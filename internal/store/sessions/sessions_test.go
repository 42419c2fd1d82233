package sessions

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary session store for testing
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "stacks-sessions-test-*")
	require.NoError(t, err)

	store, err := Open(filepath.Join(tmpDir, "sessions"), nil)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func TestCreateSession(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	session := &domain.Session{
		ID:               "session-test123",
		UserID:           "user-test123",
		RefreshTokenHash: "hashed_token",
		ExpiresAt:        time.Now().Add(24 * time.Hour),
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
		ClientName:       "Stacks Web",
		ClientVersion:    "1.0.0",
		DeviceName:       "Living Room PC",
	}

	err := store.CreateSession(ctx, session)
	require.NoError(t, err)

	// Verify session can be retrieved
	retrieved, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, retrieved.ID)
	assert.Equal(t, session.UserID, retrieved.UserID)
	assert.Equal(t, session.RefreshTokenHash, retrieved.RefreshTokenHash)
	assert.Equal(t, session.ClientName, retrieved.ClientName)
	assert.Equal(t, session.DeviceName, retrieved.DeviceName)
}

func TestCreateSession_DuplicateID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	session := &domain.Session{
		ID:               "session-test123",
		UserID:           "user-test123",
		RefreshTokenHash: "hashed_token",
		ExpiresAt:        time.Now().Add(24 * time.Hour),
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
	}

	// First creation succeeds
	err := store.CreateSession(ctx, session)
	require.NoError(t, err)

	// Second creation with same ID fails
	session2 := &domain.Session{
		ID:               "session-test123",
		UserID:           "user-test123",
		RefreshTokenHash: "different_token",
		ExpiresAt:        time.Now().Add(24 * time.Hour),
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
	}

	err = store.CreateSession(ctx, session2)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestGetSession_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	_, err := store.GetSession(ctx, "session-nonexistent")
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetSession_Expired(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	session := &domain.Session{
		ID:               "session-test123",
		UserID:           "user-test123",
		RefreshTokenHash: "hashed_token",
		ExpiresAt:        time.Now().Add(-1 * time.Hour), // Expired 1 hour ago
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
	}

	err := store.CreateSession(ctx, session)
	require.NoError(t, err)

	// Getting expired session should return error
	_, err = store.GetSession(ctx, session.ID)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestGetSessionByRefreshToken_Success(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	tokenHash := "unique_token_hash_123"
	session := &domain.Session{
		ID:               "session-test123",
		UserID:           "user-test123",
		RefreshTokenHash: tokenHash,
		ExpiresAt:        time.Now().Add(24 * time.Hour),
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
	}

	err := store.CreateSession(ctx, session)
	require.NoError(t, err)

	// Retrieve by token
	retrieved, err := store.GetSessionByRefreshToken(ctx, tokenHash)
	require.NoError(t, err)
	assert.Equal(t, session.ID, retrieved.ID)
	assert.Equal(t, session.RefreshTokenHash, retrieved.RefreshTokenHash)
}

func TestGetSessionByRefreshToken_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	_, err := store.GetSessionByRefreshToken(ctx, "nonexistent_token")
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUpdateSession_Success(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	session := &domain.Session{
		ID:               "session-test123",
		UserID:           "user-test123",
		RefreshTokenHash: "original_token",
		ExpiresAt:        time.Now().Add(24 * time.Hour),
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
		IPAddress:        "192.168.1.1",
	}

	err := store.CreateSession(ctx, session)
	require.NoError(t, err)

	// Wait a moment
	time.Sleep(10 * time.Millisecond)

	// Update session
	session.IPAddress = "192.168.1.2"
	session.Touch()
	err = store.UpdateSession(ctx, session)
	require.NoError(t, err)

	// Verify update
	updated, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.2", updated.IPAddress)
	assert.True(t, updated.LastSeenAt.After(session.CreatedAt))
}

func TestUpdateSession_TokenRotation(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	oldTokenHash := "old_token_hash"
	session := &domain.Session{
		ID:               "session-test123",
		UserID:           "user-test123",
		RefreshTokenHash: oldTokenHash,
		ExpiresAt:        time.Now().Add(24 * time.Hour),
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
	}

	err := store.CreateSession(ctx, session)
	require.NoError(t, err)

	// Rotate token
	newTokenHash := "new_token_hash"
	session.RefreshTokenHash = newTokenHash
	err = store.UpdateSession(ctx, session)
	require.NoError(t, err)

	// Old token should not work
	_, err = store.GetSessionByRefreshToken(ctx, oldTokenHash)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// New token should work
	retrieved, err := store.GetSessionByRefreshToken(ctx, newTokenHash)
	require.NoError(t, err)
	assert.Equal(t, session.ID, retrieved.ID)
}

func TestDeleteSession_Success(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	session := &domain.Session{
		ID:               "session-test123",
		UserID:           "user-test123",
		RefreshTokenHash: "hashed_token",
		ExpiresAt:        time.Now().Add(24 * time.Hour),
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
	}

	err := store.CreateSession(ctx, session)
	require.NoError(t, err)

	// Delete session
	err = store.DeleteSession(ctx, session.ID)
	assert.NoError(t, err)

	// Session should not be found
	_, err = store.GetSession(ctx, session.ID)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Token should not work
	_, err = store.GetSessionByRefreshToken(ctx, session.RefreshTokenHash)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteSession_NonExistent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	// Deleting non-existent session should not error
	err := store.DeleteSession(ctx, "session-nonexistent")
	assert.NoError(t, err)
}

func TestListUserSessions(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	userID := "user-test123"

	// Create multiple sessions for the same user
	sessions := []*domain.Session{
		{
			ID:               "session-test1",
			UserID:           userID,
			RefreshTokenHash: "token1",
			ExpiresAt:        time.Now().Add(24 * time.Hour),
			CreatedAt:        time.Now(),
			LastSeenAt:       time.Now(),
			ClientName:       "Stacks Web",
			DeviceName:       "Desk Laptop",
		},
		{
			ID:               "session-test2",
			UserID:           userID,
			RefreshTokenHash: "token2",
			ExpiresAt:        time.Now().Add(24 * time.Hour),
			CreatedAt:        time.Now(),
			LastSeenAt:       time.Now(),
			ClientName:       "Stacks Mobile",
			DeviceName:       "Pixel 9",
		},
		{
			ID:               "session-test3",
			UserID:           userID,
			RefreshTokenHash: "token3",
			ExpiresAt:        time.Now().Add(24 * time.Hour),
			CreatedAt:        time.Now(),
			LastSeenAt:       time.Now(),
			ClientName:       "stacksctl",
		},
	}

	for _, session := range sessions {
		err := store.CreateSession(ctx, session)
		require.NoError(t, err)
	}

	// List sessions
	retrieved, err := store.ListUserSessions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, retrieved, 3)

	// Verify all sessions are present
	ids := make(map[string]bool)
	for _, session := range retrieved {
		ids[session.ID] = true
		assert.Equal(t, userID, session.UserID)
	}

	assert.True(t, ids["session-test1"])
	assert.True(t, ids["session-test2"])
	assert.True(t, ids["session-test3"])
}

func TestListUserSessions_SkipsExpired(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	userID := "user-test123"

	// Create active session
	activeSession := &domain.Session{
		ID:               "session-active",
		UserID:           userID,
		RefreshTokenHash: "token_active",
		ExpiresAt:        time.Now().Add(24 * time.Hour),
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
	}
	err := store.CreateSession(ctx, activeSession)
	require.NoError(t, err)

	// Create expired session
	expiredSession := &domain.Session{
		ID:               "session-expired",
		UserID:           userID,
		RefreshTokenHash: "token_expired",
		ExpiresAt:        time.Now().Add(-1 * time.Hour),
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
	}
	err = store.CreateSession(ctx, expiredSession)
	require.NoError(t, err)

	// List sessions should only return active
	retrieved, err := store.ListUserSessions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, retrieved, 1)
	assert.Equal(t, "session-active", retrieved[0].ID)
}

func TestListUserSessions_Empty(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	// List sessions for user with no sessions
	sessions, err := store.ListUserSessions(ctx, "user-nosessions")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestDeleteAllUserSessions(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	// Two sessions for the target user, one for somebody else
	for i, userID := range []string{"user-target", "user-target", "user-other"} {
		session := &domain.Session{
			ID:               "session-" + string(rune('a'+i)),
			UserID:           userID,
			RefreshTokenHash: "token_" + string(rune('a'+i)),
			ExpiresAt:        time.Now().Add(24 * time.Hour),
			CreatedAt:        time.Now(),
			LastSeenAt:       time.Now(),
		}
		err := store.CreateSession(ctx, session)
		require.NoError(t, err)
	}

	err := store.DeleteAllUserSessions(ctx, "user-target")
	require.NoError(t, err)

	// Target user has no sessions left
	remaining, err := store.ListUserSessions(ctx, "user-target")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// Other user is untouched
	others, err := store.ListUserSessions(ctx, "user-other")
	require.NoError(t, err)
	assert.Len(t, others, 1)

	// Deleted tokens no longer resolve
	_, err = store.GetSessionByRefreshToken(ctx, "token_a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteExpiredSessions(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	// Create mix of active and expired sessions
	activeSessions := []*domain.Session{
		{
			ID:               "session-active1",
			UserID:           "user1",
			RefreshTokenHash: "token_active1",
			ExpiresAt:        time.Now().Add(24 * time.Hour),
			CreatedAt:        time.Now(),
			LastSeenAt:       time.Now(),
		},
		{
			ID:               "session-active2",
			UserID:           "user2",
			RefreshTokenHash: "token_active2",
			ExpiresAt:        time.Now().Add(24 * time.Hour),
			CreatedAt:        time.Now(),
			LastSeenAt:       time.Now(),
		},
	}

	expiredSessions := []*domain.Session{
		{
			ID:               "session-expired1",
			UserID:           "user1",
			RefreshTokenHash: "token_expired1",
			ExpiresAt:        time.Now().Add(-1 * time.Hour),
			CreatedAt:        time.Now(),
			LastSeenAt:       time.Now(),
		},
		{
			ID:               "session-expired2",
			UserID:           "user2",
			RefreshTokenHash: "token_expired2",
			ExpiresAt:        time.Now().Add(-2 * time.Hour),
			CreatedAt:        time.Now(),
			LastSeenAt:       time.Now(),
		},
	}

	for _, session := range activeSessions {
		err := store.CreateSession(ctx, session)
		require.NoError(t, err)
	}

	for _, session := range expiredSessions {
		err := store.CreateSession(ctx, session)
		require.NoError(t, err)
	}

	// Delete expired sessions
	count, err := store.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Verify active sessions still exist
	for _, session := range activeSessions {
		_, err := store.GetSession(ctx, session.ID)
		assert.NoError(t, err)
	}

	// Verify expired sessions are gone
	for _, session := range expiredSessions {
		_, err := store.GetSession(ctx, session.ID)
		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	}
}
