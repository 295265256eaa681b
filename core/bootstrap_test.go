package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatedConfig(t *testing.T) Config {
	cfg := testConfig()
	cfg.RegisterRequiresLogin = true
	cfg.BootstrapAuthorEnabled = true
	cfg.InitialPasswordPath = filepath.Join(t.TempDir(), "initial_password")
	return cfg
}

func TestBootstrapAuthorCreatesAccount(t *testing.T) {
	creds, store := newTestCredentials(t)
	ctx := context.Background()
	cfg := gatedConfig(t)

	require.NoError(t, BootstrapAuthor(ctx, cfg, store.Users, creds, nil))

	raw, err := os.ReadFile(cfg.InitialPasswordPath)
	require.NoError(t, err)
	password := strings.TrimSpace(string(raw))
	assert.Len(t, password, 20)

	info, err := os.Stat(cfg.InitialPasswordPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	u, err := creds.Verify(ctx, "admin", password)
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)

	// a second run finds a user and does nothing
	require.NoError(t, BootstrapAuthor(ctx, cfg, store.Users, creds, nil))
	n, err := store.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBootstrapAuthorSkipped(t *testing.T) {
	ctx := context.Background()

	t.Run("open registration", func(t *testing.T) {
		creds, store := newTestCredentials(t)
		cfg := gatedConfig(t)
		cfg.RegisterRequiresLogin = false
		require.NoError(t, BootstrapAuthor(ctx, cfg, store.Users, creds, nil))
		n, err := store.Users.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("disabled", func(t *testing.T) {
		creds, store := newTestCredentials(t)
		cfg := gatedConfig(t)
		cfg.BootstrapAuthorEnabled = false
		require.NoError(t, BootstrapAuthor(ctx, cfg, store.Users, creds, nil))
		n, err := store.Users.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("users exist", func(t *testing.T) {
		creds, store := newTestCredentials(t)
		_, err := creds.Register(ctx, "alice", "pass1")
		require.NoError(t, err)
		cfg := gatedConfig(t)
		require.NoError(t, BootstrapAuthor(ctx, cfg, store.Users, creds, nil))
		_, err = os.Stat(cfg.InitialPasswordPath)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestGeneratePassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		p, err := generatePassword(20)
		require.NoError(t, err)
		assert.Len(t, p, 20)
		assert.Regexp(t, `^[A-Za-z0-9]+$`, p)
		assert.False(t, seen[p])
		seen[p] = true
	}
	_, err := generatePassword(0)
	assert.Error(t, err)
}
