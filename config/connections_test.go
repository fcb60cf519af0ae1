package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStoreRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	store, err := NewConnectionStore()
	require.NoError(t, err)
	require.Empty(t, store.Connections)

	conn := DefaultConnection()
	conn.Name = "prod"
	conn.Host = "db.internal"
	store.Add(conn)
	require.NoError(t, store.Save())

	reloaded, err := NewConnectionStore()
	require.NoError(t, err)
	got, ok := reloaded.Get("prod")
	require.True(t, ok)
	assert.Equal(t, "db.internal", got.Host)
	assert.Equal(t, "5432", got.Port)

	reloaded.Delete("prod")
	require.NoError(t, reloaded.Save())

	again, err := NewConnectionStore()
	require.NoError(t, err)
	_, ok = again.Get("prod")
	assert.False(t, ok)
}

func TestConnectionStoreAddUpdatesByName(t *testing.T) {
	store := &ConnectionStore{}

	conn := DefaultConnection()
	conn.Name = "dev"
	conn.Host = "one"
	store.Add(conn)

	conn.Host = "two"
	store.Add(conn)

	require.Len(t, store.Connections, 1)
	assert.Equal(t, "two", store.Connections[0].Host)
}

func TestConnectionStoreDeleteMissingIsNoOp(t *testing.T) {
	store := &ConnectionStore{}
	conn := DefaultConnection()
	conn.Name = "keep"
	store.Add(conn)

	store.Delete("other")
	assert.Len(t, store.Connections, 1)
}
