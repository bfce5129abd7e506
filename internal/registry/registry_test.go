package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joborchestrator/internal/jobmodel"
	"joborchestrator/internal/sse"
	"joborchestrator/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return New(st, sse.NewHub(16)), st
}

func TestCreate_PersistsAndIsRetrievable(t *testing.T) {
	r, st := newTestRegistry(t)
	inputPath := st.InputDir() + "/a.mp3"

	j, err := r.Create("a.mp3", inputPath)
	require.NoError(t, err)
	assert.Equal(t, jobmodel.StatusCreated, j.Status)
	assert.NotEmpty(t, j.ID)

	got, err := r.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)

	onDisk, err := st.LoadJobState(j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID, onDisk.ID)
}

func TestGet_UnknownID_ReturnsErrNotFound(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Get("nope")
	require.Error(t, err)
	var notFound *ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestList_SortedByCreatedAtAscending(t *testing.T) {
	r, _ := newTestRegistry(t)
	first, err := r.Create("first.mp3", "/input/first.mp3")
	require.NoError(t, err)
	second, err := r.Create("second.mp3", "/input/second.mp3")
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestUpdatePhaseProgress_ClampsPercent(t *testing.T) {
	r, _ := newTestRegistry(t)
	j, err := r.Create("a.mp3", "/input/a.mp3")
	require.NoError(t, err)

	got, err := r.UpdatePhaseProgress(j.ID, jobmodel.PhaseTranscribe, 50, 150, "overshoot")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Percent)

	got, err = r.UpdatePhaseProgress(j.ID, jobmodel.PhaseTranscribe, 50, -10, "undershoot")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Percent)
}

func TestMarkTerminal_FinishedForcesCompletePercentAndPhase(t *testing.T) {
	r, _ := newTestRegistry(t)
	j, err := r.Create("a.mp3", "/input/a.mp3")
	require.NoError(t, err)

	got, err := r.MarkTerminal(j.ID, jobmodel.StatusFinished, "")
	require.NoError(t, err)
	assert.Equal(t, jobmodel.StatusFinished, got.Status)
	assert.Equal(t, 100, got.Percent)
	assert.Equal(t, jobmodel.PhaseComplete, got.Phase)
}

func TestMarkTerminal_FailedRecordsLastError(t *testing.T) {
	r, _ := newTestRegistry(t)
	j, err := r.Create("a.mp3", "/input/a.mp3")
	require.NoError(t, err)

	got, err := r.MarkTerminal(j.ID, jobmodel.StatusFailed, "tool exited nonzero")
	require.NoError(t, err)
	assert.Equal(t, jobmodel.StatusFailed, got.Status)
	assert.Equal(t, "tool exited nonzero", got.LastError)
}

func TestDelete_RemovesFromMemoryAndOptionallyDisk(t *testing.T) {
	r, st := newTestRegistry(t)
	j, err := r.Create("a.mp3", "/input/a.mp3")
	require.NoError(t, err)

	require.NoError(t, r.Delete(j.ID, true))
	_, err = r.Get(j.ID)
	assert.Error(t, err)

	_, err = st.LoadJobState(j.ID)
	assert.Error(t, err, "job directory should have been removed with delete_data=true")
}

func TestLoadFromDisk_ReclassifiesProcessingAsInterrupted(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	stuck := jobmodel.Job{ID: "stuck", Status: jobmodel.StatusProcessing}
	require.NoError(t, st.SaveJobState(stuck))
	done := jobmodel.Job{ID: "done", Status: jobmodel.StatusFinished}
	require.NoError(t, st.SaveJobState(done))

	r := New(st, sse.NewHub(16))
	interrupted, err := r.LoadFromDisk()
	require.NoError(t, err)
	assert.Equal(t, []string{"stuck"}, interrupted)

	got, err := r.Get("stuck")
	require.NoError(t, err)
	assert.Equal(t, jobmodel.StatusInterrupted, got.Status)

	onDisk, err := st.LoadJobState("stuck")
	require.NoError(t, err)
	assert.Equal(t, jobmodel.StatusInterrupted, onDisk.Status)
}
