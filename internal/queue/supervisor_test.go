package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joborchestrator/internal/jobmodel"
	"joborchestrator/internal/mediaops"
	"joborchestrator/internal/pipeline"
	"joborchestrator/internal/registry"
	"joborchestrator/internal/sse"
	"joborchestrator/internal/store"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *registry.Registry, *store.Store) {
	t.Helper()
	root := t.TempDir()
	st, err := store.New(root)
	require.NoError(t, err)
	hub := sse.NewHub(32)
	reg := registry.New(st, hub)

	exec := &pipeline.Executor{
		Store:       st,
		Registry:    reg,
		Hub:         hub,
		Extractor:   &mediaops.FakeExtractor{DurationSec: 3},
		Separator:   &mediaops.FakeVocalSeparator{Default: mediaops.RMSResult{OriginalRMS: 1, VocalsRMS: 0.9}},
		VAD:         &mediaops.FakeVADSegmenter{Spans: []mediaops.VADSpan{{StartSec: 0, EndSec: 3}}},
		Transcriber: &mediaops.FakeTranscriber{},
		Aligner:     &mediaops.FakeAligner{},
	}
	exec.ClipAudio = func(ctx context.Context, src, workDir, name string, start, end float64) (string, error) {
		return filepath.Join(workDir, name), nil
	}

	sup := New(exec, reg, hub, false)
	sup.Start(context.Background(), nil)
	t.Cleanup(sup.Stop)
	return sup, reg, st
}

func newTestJob(t *testing.T, st *store.Store, reg *registry.Registry, name string) jobmodel.Job {
	t.Helper()
	inputPath := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(inputPath, []byte("fake media"), 0o644))
	job, err := reg.Create(name, inputPath)
	require.NoError(t, err)
	return job
}

func TestSupervisor_RunsJobToCompletion(t *testing.T) {
	sup, reg, st := newTestSupervisor(t)
	job := newTestJob(t, st, reg, "a.mp4")

	require.NoError(t, sup.StartJob(job.ID, jobmodel.DefaultSettings()))

	assert.Eventually(t, func() bool {
		j, err := reg.Get(job.ID)
		return err == nil && j.Status == jobmodel.StatusFinished
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSupervisor_SingleRunnerProcessesFIFO(t *testing.T) {
	sup, reg, st := newTestSupervisor(t)
	jobA := newTestJob(t, st, reg, "a.mp4")
	jobB := newTestJob(t, st, reg, "b.mp4")

	require.NoError(t, sup.StartJob(jobA.ID, jobmodel.DefaultSettings()))
	require.NoError(t, sup.StartJob(jobB.ID, jobmodel.DefaultSettings()))

	assert.Eventually(t, func() bool {
		a, errA := reg.Get(jobA.ID)
		b, errB := reg.Get(jobB.ID)
		return errA == nil && errB == nil && a.Status == jobmodel.StatusFinished && b.Status == jobmodel.StatusFinished
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSupervisor_ReorderRejectsNonPermutation(t *testing.T) {
	sup, reg, st := newTestSupervisor(t)
	jobA := newTestJob(t, st, reg, "a.mp4")
	jobB := newTestJob(t, st, reg, "b.mp4")
	_ = jobB

	// Block the runner with a never-finishing job so a stays queued (b is
	// never started).
	blocker := newTestJob(t, st, reg, "blocker.mp4")
	sup.executor.Transcriber = blockingTranscriber{}
	require.NoError(t, sup.StartJob(blocker.ID, jobmodel.DefaultSettings()))
	require.NoError(t, sup.StartJob(jobA.ID, jobmodel.DefaultSettings()))

	assert.Eventually(t, func() bool {
		snap := sup.Status()
		return len(snap.Queue) == 1
	}, 2*time.Second, 10*time.Millisecond)

	err := sup.Reorder([]string{"does-not-exist"})
	assert.Error(t, err)
	var invalidErr *InvalidQueueOrder
	assert.ErrorAs(t, err, &invalidErr)
}

func TestSupervisor_CancelQueuedJobMarksCanceled(t *testing.T) {
	sup, reg, st := newTestSupervisor(t)
	blocker := newTestJob(t, st, reg, "blocker.mp4")
	sup.executor.Transcriber = blockingTranscriber{}
	require.NoError(t, sup.StartJob(blocker.ID, jobmodel.DefaultSettings()))

	queued := newTestJob(t, st, reg, "queued.mp4")
	require.NoError(t, sup.StartJob(queued.ID, jobmodel.DefaultSettings()))

	assert.Eventually(t, func() bool {
		snap := sup.Status()
		return len(snap.Queue) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sup.Cancel(queued.ID, false))

	j, err := reg.Get(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, jobmodel.StatusCanceled, j.Status)
}

// blockingTranscriber never returns until its context is canceled,
// simulating a long-running job that keeps the single runner occupied.
type blockingTranscriber struct{}

func (blockingTranscriber) Transcribe(ctx context.Context, audioPath string, startSec, endSec float64, params mediaops.TranscribeParams) (mediaops.TranscribeResult, error) {
	<-ctx.Done()
	return mediaops.TranscribeResult{}, ctx.Err()
}
