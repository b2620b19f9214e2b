package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/latchkey/storage"
)

func TestStore_LoadEmpty(t *testing.T) {
	s := NewStore()
	_, err := s.Load(t.Context())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := t.Context()
	s := NewStore()

	require.NoError(t, s.Save(ctx, []byte("record-v1")))
	data, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("record-v1"), data)

	// Save replaces the previous version.
	require.NoError(t, s.Save(ctx, []byte("record-v2")))
	data, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("record-v2"), data)
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	ctx := t.Context()
	s := NewStore()
	require.NoError(t, s.Save(ctx, []byte("record")))

	data, err := s.Load(ctx)
	require.NoError(t, err)
	data[0] = 'X'

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("record"), again)
}

func TestStore_Clear(t *testing.T) {
	ctx := t.Context()
	s := NewStore()

	// Clearing an empty store is not an error.
	require.NoError(t, s.Clear(ctx))

	require.NoError(t, s.Save(ctx, []byte("record")))
	require.NoError(t, s.Clear(ctx))

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
