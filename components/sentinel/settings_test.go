package sentinel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store SettingsStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "a", KeyAdminToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "a", KeyAdminToken, "first"))
	require.NoError(t, store.Set(ctx, "a", KeyAdminToken, "second"))
	require.NoError(t, store.Set(ctx, "b", KeyAdminToken, "other"))

	value, ok, err := store.Get(ctx, "a", KeyAdminToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", value, "last writer wins")

	value, _, err = store.Get(ctx, "b", KeyAdminToken)
	require.NoError(t, err)
	assert.Equal(t, "other", value, "scopes are isolated")

	require.NoError(t, store.Delete(ctx, "a", KeyAdminToken))
	require.NoError(t, store.Delete(ctx, "a", "missing"))
	_, ok, err = store.Get(ctx, "a", KeyAdminToken)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, store.Set(ctx, "", KeyAdminToken, "x"), errMissingScope)
}

func TestInMemorySettingsStore(t *testing.T) {
	exerciseStore(t, NewInMemorySettingsStore())
}

func TestRedisSettingsStore(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisSettingsStore(client, time.Hour)
	exerciseStore(t, store)

	require.NoError(t, store.Set(context.Background(), "ttl", KeySidebar, "open"))
	assert.True(t, server.Exists("sentinel:settings:ttl:nexus_sidebar"))
	server.FastForward(2 * time.Hour)
	_, ok, err := store.Get(context.Background(), "ttl", KeySidebar)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileSettingsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	exerciseStore(t, NewFileSettingsStore(path))

	ctx := context.Background()
	require.NoError(t, NewFileSettingsStore(path).Set(ctx, "cli", KeySidebar, "collapsed"))
	value, ok, err := NewFileSettingsStore(path).Get(ctx, "cli", KeySidebar)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "collapsed", value)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileSettingsStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("[unclosed"), 0o600))
	_, _, err := NewFileSettingsStore(path).Get(context.Background(), "cli", KeyAdminToken)
	assert.Error(t, err)
}

func TestSettingsSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySettingsStore()
	settings := NewSettings(store, " viewer ")
	assert.Equal(t, "viewer", settings.Scope())

	require.NoError(t, store.Set(ctx, "viewer", KeyLegacyToken, "legacy"))
	require.NoError(t, settings.SaveSession(ctx, Session{Token: "tok", User: SessionUser{ID: "9", Role: RoleSuperAdmin}}))

	token, err := settings.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	raw, ok, err := settings.RawUser(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"9","role":"super_admin"}`, raw)

	session, ok, err := settings.Session(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok", session.Token)
	assert.Equal(t, RoleSuperAdmin, session.User.Role)

	require.NoError(t, store.Set(ctx, "viewer", KeyAdminUser, `"not an object"`))
	_, ok, err = settings.Session(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, settings.ClearSession(ctx))
	_, ok, err = settings.Session(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	for _, key := range []string{KeyAdminToken, KeyAdminUser, KeyLegacyToken} {
		_, ok, err := store.Get(ctx, "viewer", key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}
