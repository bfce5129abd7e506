package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joborchestrator/internal/jobmodel"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNew_CreatesJobsAndInputDirs(t *testing.T) {
	s := newTestStore(t)
	_, err := os.Stat(s.JobsDir())
	assert.NoError(t, err)
	_, err = os.Stat(s.InputDir())
	assert.NoError(t, err)
}

func TestSaveLoadJobState_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	j := jobmodel.Job{ID: "job-1", Filename: "a.mp3", Status: jobmodel.StatusCreated, CreatedAt: time.Now()}

	require.NoError(t, s.SaveJobState(j))
	got, err := s.LoadJobState("job-1")
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, j.Filename, got.Filename)
}

func TestSaveJobState_WritesAtomically(t *testing.T) {
	s := newTestStore(t)
	j := jobmodel.Job{ID: "job-2", CreatedAt: time.Now()}
	require.NoError(t, s.SaveJobState(j))

	tmp := s.path("job-2", stateFileName) + ".tmp"
	_, err := os.Stat(tmp)
	assert.True(t, os.IsNotExist(err), "tmp file must not survive a successful write")
}

func TestLoadAllJobStates_SortedByCreatedAtAndSkipsCorrupt(t *testing.T) {
	s := newTestStore(t)
	older := jobmodel.Job{ID: "older", CreatedAt: time.Now().Add(-time.Hour)}
	newer := jobmodel.Job{ID: "newer", CreatedAt: time.Now()}
	require.NoError(t, s.SaveJobState(newer))
	require.NoError(t, s.SaveJobState(older))

	require.NoError(t, s.EnsureJobDir("corrupt"))
	require.NoError(t, os.WriteFile(s.path("corrupt", stateFileName), []byte("{not json"), 0o644))

	jobs, err := s.LoadAllJobStates()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "older", jobs[0].ID)
	assert.Equal(t, "newer", jobs[1].ID)
}

func TestLoadAllJobStates_NoJobsDirReturnsEmpty(t *testing.T) {
	s := &Store{RootDir: filepath.Join(os.TempDir(), "does-not-exist-"+t.Name())}
	jobs, err := s.LoadAllJobStates()
	assert.NoError(t, err)
	assert.Nil(t, jobs)
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	cp := jobmodel.Checkpoint{Phase: jobmodel.PhaseTranscribe}
	require.NoError(t, s.SaveCheckpoint("job-3", cp))

	got, err := s.LoadCheckpoint("job-3")
	require.NoError(t, err)
	assert.Equal(t, cp.Phase, got.Phase)
}

func TestLoadCheckpoint_MissingReturnsNotExist(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadCheckpoint("no-such-job")
	assert.True(t, os.IsNotExist(err))
}

func TestJobIndex_SetAndRemove(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetJobIndexEntry("job-4", "/input/a.mp3"))

	idx, err := s.loadJobIndexLocked()
	require.NoError(t, err)
	assert.Equal(t, "/input/a.mp3", idx["job-4"])

	require.NoError(t, s.RemoveJobIndexEntry("job-4"))
	idx, err = s.loadJobIndexLocked()
	require.NoError(t, err)
	_, ok := idx["job-4"]
	assert.False(t, ok)
}

func TestIntegritySweep_DropsMissingInputAndOrphanDirs(t *testing.T) {
	s := newTestStore(t)

	inputPath := filepath.Join(s.InputDir(), "present.mp3")
	require.NoError(t, os.WriteFile(inputPath, []byte("data"), 0o644))
	require.NoError(t, s.EnsureJobDir("valid"))
	require.NoError(t, s.SetJobIndexEntry("valid", inputPath))

	require.NoError(t, s.EnsureJobDir("missing-input"))
	require.NoError(t, s.SetJobIndexEntry("missing-input", filepath.Join(s.InputDir(), "gone.mp3")))

	require.NoError(t, s.EnsureJobDir("orphan"))

	require.NoError(t, s.IntegritySweep())

	idx, err := s.loadJobIndexLocked()
	require.NoError(t, err)
	assert.Contains(t, idx, "valid")
	assert.NotContains(t, idx, "missing-input")

	_, err = os.Stat(s.JobDir("orphan"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(s.JobDir("valid"))
	assert.NoError(t, err)
}

func TestProfiles_RoundTripAndEmptyDefault(t *testing.T) {
	s := newTestStore(t)

	profiles, err := s.LoadProfiles()
	require.NoError(t, err)
	assert.Nil(t, profiles)

	want := []jobmodel.Profile{{Name: "fast", Settings: jobmodel.DefaultSettings(), CreatedAt: time.Now()}}
	require.NoError(t, s.SaveProfiles(want))

	got, err := s.LoadProfiles()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fast", got[0].Name)
}
