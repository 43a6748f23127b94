package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-pipeline/internal/core"
)

func TestStore_CreateGetUpdate(t *testing.T) {
	store := NewStore()

	store.Create(core.Job{ID: "job-1", Status: core.JobPending})

	got, err := store.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobPending, got.Status)

	updated, err := store.Update("job-1", func(j *core.Job) {
		j.Status = core.JobInProgress
		j.CompletedChunks = 2
	})
	require.NoError(t, err)
	assert.Equal(t, core.JobInProgress, updated.Status)
	assert.Equal(t, 2, updated.CompletedChunks)

	reread, err := store.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobInProgress, reread.Status)
}

func TestStore_Get_UnknownID(t *testing.T) {
	store := NewStore()

	_, err := store.Get("missing")
	require.Error(t, err)
}

func TestStore_Update_UnknownID(t *testing.T) {
	store := NewStore()

	_, err := store.Update("missing", func(*core.Job) {})
	require.Error(t, err)
}

func TestStore_List(t *testing.T) {
	store := NewStore()
	store.Create(core.Job{ID: "a"})
	store.Create(core.Job{ID: "b"})

	all := store.List()
	assert.Len(t, all, 2)
}
