package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() Session {
	return Session{
		Token:       "tok",
		AccessToken: "a.b.c",
		User:        User{ID: "6b0f3c1e-1111-4c33-9d7e-000000000001", Mobile: "9876543210", Name: "User", BusinessName: "My Business"},
		SavedAt:     time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "otpctl"))
	assert.Nil(t, store.Load(), "empty store")

	require.NoError(t, store.Save(sampleSession()))
	got := store.Load()
	require.NotNil(t, got)
	assert.Equal(t, sampleSession(), *got)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, "userSession.json", filepath.Base(store.Path()))

	require.NoError(t, store.Clear())
	assert.Nil(t, store.Load())
	assert.NoError(t, store.Clear(), "clearing twice is fine")
}

func TestFileStore_SaveReplaces(t *testing.T) {
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Save(sampleSession()))
	s := sampleSession()
	s.Token = "tok-2"
	require.NoError(t, store.Save(s))
	assert.Equal(t, "tok-2", store.Load().Token)

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_MalformedIsAbsent(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	for _, content := range []string{
		"{not json",
		`{"token":"","user":{"id":"x"}}`,
		`{"token":"t","user":{"id":""}}`,
		`[]`,
	} {
		require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o600))
		assert.Nil(t, store.Load(), content)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	assert.Nil(t, store.Load())
	require.NoError(t, store.Save(sampleSession()))
	assert.Equal(t, "tok", store.Load().Token)
	require.NoError(t, store.Clear())
	assert.Nil(t, store.Load())
}
