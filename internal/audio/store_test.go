package audio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "audio"))

	path, err := store.Save("job-1", []byte("mp3 bytes"))
	require.NoError(t, err)
	assert.True(t, store.Exists("job-1"))

	data, err := store.Load("job-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3 bytes"), data)
	assert.Equal(t, store.Path("job-1"), path)
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Load("missing")
	require.ErrorIs(t, err, ErrAudioNotFound)
}

func TestStore_SweepRemovesUnkept(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Save("keep-me", []byte("a"))
	require.NoError(t, err)
	_, err = store.Save("drop-me", []byte("b"))
	require.NoError(t, err)

	removed, err := store.Sweep(map[string]struct{}{"keep-me": {}})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, store.Exists("keep-me"))
	assert.False(t, store.Exists("drop-me"))
}
