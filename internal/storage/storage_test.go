package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFileLoadsNothing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "parking_data.json"))

	data, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFileStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "parking_data.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(ctx, []byte(`{"history": []}`)))
	require.NoError(t, store.Save(ctx, []byte(`{"reserved_spots": [4]}`)))

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reserved_spots": [4]}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestFileStoreSaveFailsWhenDirectoryIsAFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	store := NewFileStore(filepath.Join(blocker, "parking_data.json"))
	err := store.Save(context.Background(), []byte(`{}`))
	assert.Error(t, err)
}

func TestBadgerStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, store.Save(ctx, []byte(`{"reserved_spots": [1, 2]}`)))

	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reserved_spots": [1, 2]}`, string(data))
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, []byte(`{"history": []}`)))
	require.NoError(t, store.Close())

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	reopened, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"history": []}`, string(data))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(Options{Driver: "json", Path: filepath.Join(dir, "state.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	require.NoError(t, store.Close())

	store, err = Open(Options{Driver: "badger", BadgerDir: filepath.Join(dir, "badger")})
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(Options{Driver: "redis"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
