package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/gostt-slider/internal/config"
)

// backends returns one fresh Store per backend, all cleaned up with t.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	b, err := NewBadger(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	mr := miniredis.RunT(t)
	r, err := NewRedis(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"badger": b,
		"redis":  r,
	}
}

func TestStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "activations", `[{"shape":[1,2],"values":[1,2]}]`))
			got, err := s.Get(ctx, "activations")
			require.NoError(t, err)
			assert.Equal(t, `[{"shape":[1,2],"values":[1,2]}]`, got)

			require.NoError(t, s.Set(ctx, "activations", "[]"))
			got, err = s.Get(ctx, "activations")
			require.NoError(t, err)
			assert.Equal(t, "[]", got)

			require.NoError(t, s.Delete(ctx, "activations"))
			_, err = s.Get(ctx, "activations")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing key is not an error.
			assert.NoError(t, s.Delete(ctx, "activations"))
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "labels", Key("", "labels"))
	assert.Equal(t, "slider:labels", Key("slider", "labels"))
}

func TestNew(t *testing.T) {
	s, err := New(&config.StorageConfig{Backend: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	dir := t.TempDir()
	s, err = New(&config.StorageConfig{Backend: "badger", Dir: dir}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Badger{}, s)
	require.NoError(t, s.Close())

	_, err = New(&config.StorageConfig{Backend: "sqlite"}, nil)
	assert.Error(t, err)
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := NewBadger(BadgerOptions{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "labels", "[0,1,2]"))
	require.NoError(t, b.Close())

	b, err = NewBadger(BadgerOptions{Dir: dir})
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Get(ctx, "labels")
	require.NoError(t, err)
	assert.Equal(t, "[0,1,2]", got)
}

func TestBadgerRequiresDir(t *testing.T) {
	_, err := NewBadger(BadgerOptions{})
	assert.Error(t, err)
}

func TestRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(addr, "")
	assert.Error(t, err)
}
