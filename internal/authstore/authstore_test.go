package authstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	return s
}

func TestEnsureAdminUser_CreatesOnceAndIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	u1, err := s.EnsureAdminUser("admin", "hashed-a")
	require.NoError(t, err)
	assert.Equal(t, "admin", u1.Username)

	u2, err := s.EnsureAdminUser("someone-else", "hashed-b")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, "admin", u2.Username)
}

func TestFindUserByUsername_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindUserByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePassword(t *testing.T) {
	s := newTestStore(t)
	u, err := s.EnsureAdminUser("admin", "old-hash")
	require.NoError(t, err)

	require.NoError(t, s.UpdatePassword(u.ID, "new-hash"))

	got, err := s.FindUserByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.Password)
}

func TestAPIKeyLifecycle(t *testing.T) {
	s := newTestStore(t)

	k, err := s.CreateAPIKey("ci", "used by the nightly build")
	require.NoError(t, err)
	assert.NotEmpty(t, k.Key)
	assert.True(t, k.IsActive)

	assert.True(t, s.ValidateAPIKey(k.Key))
	assert.False(t, s.ValidateAPIKey("not-a-real-key"))

	keys, err := s.ListAPIKeys()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsed)

	require.NoError(t, s.DeleteAPIKey(k.ID))
	keys, err = s.ListAPIKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
