package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joborchestrator/internal/jobmodel"
	"joborchestrator/internal/mediaops"
	"joborchestrator/internal/registry"
	"joborchestrator/internal/sse"
	"joborchestrator/internal/store"
)

// noopClip stubs ClipAudio so tests never shell out to a real ffmpeg
// binary; it returns a path that doesn't exist, which is harmless since
// callers only ever os.Remove it afterward.
func noopClip(ctx context.Context, src, workDir, name string, start, end float64) (string, error) {
	return filepath.Join(workDir, name), nil
}

func newTestExecutor(t *testing.T) (*Executor, *registry.Registry, *store.Store, string) {
	t.Helper()
	root := t.TempDir()
	st, err := store.New(root)
	require.NoError(t, err)
	hub := sse.NewHub(32)
	reg := registry.New(st, hub)

	e := &Executor{
		Store:       st,
		Registry:    reg,
		Hub:         hub,
		Extractor:   &mediaops.FakeExtractor{DurationSec: 9},
		Separator:   &mediaops.FakeVocalSeparator{Default: mediaops.RMSResult{OriginalRMS: 1, VocalsRMS: 0.9}},
		VAD: &mediaops.FakeVADSegmenter{Spans: []mediaops.VADSpan{
			{StartSec: 0, EndSec: 3}, {StartSec: 3, EndSec: 6}, {StartSec: 6, EndSec: 9},
		}},
		Transcriber: &mediaops.FakeTranscriber{},
		Aligner:     &mediaops.FakeAligner{},
	}
	e.ClipAudio = noopClip

	inputDir := filepath.Join(root, "input")
	inputPath := filepath.Join(inputDir, "clip.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("fake media"), 0o644))

	job, err := reg.Create("clip.mp4", inputPath)
	require.NoError(t, err)
	return e, reg, st, job.ID
}

func TestExecutor_HappyPath(t *testing.T) {
	e, reg, st, jobID := newTestExecutor(t)

	result := e.Run(context.Background(), jobID, NewControl())
	assert.Equal(t, jobmodel.StatusFinished, result.Status)

	job, err := reg.Get(jobID)
	require.NoError(t, err)
	assert.Equal(t, 100, job.Percent)
	assert.Equal(t, jobmodel.PhaseComplete, job.Phase)

	data, err := os.ReadFile(job.Paths.OutputSRTPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "-->")

	cp, err := st.LoadCheckpoint(jobID)
	require.NoError(t, err)
	assert.Len(t, cp.ProcessedIndices, 3)
}

func TestExecutor_PauseMidTranscribe(t *testing.T) {
	e, reg, st, jobID := newTestExecutor(t)
	ctrl := NewControl()

	pauseAfterFirst := &pausingTranscriber{inner: e.Transcriber, ctrl: ctrl, pauseAfterCalls: 1}
	e.Transcriber = pauseAfterFirst

	result := e.Run(context.Background(), jobID, ctrl)
	assert.Equal(t, jobmodel.StatusPaused, result.Status)

	job, err := reg.Get(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobmodel.StatusPaused, job.Status)

	cp, err := st.LoadCheckpoint(jobID)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, cp.ProcessedIndices)
}

func TestExecutor_ResumeSkipsProcessedSegments(t *testing.T) {
	e, reg, st, jobID := newTestExecutor(t)
	ctrl := NewControl()
	pauseAfterFirst := &pausingTranscriber{inner: e.Transcriber, ctrl: ctrl, pauseAfterCalls: 1}
	e.Transcriber = pauseAfterFirst

	result := e.Run(context.Background(), jobID, ctrl)
	require.Equal(t, jobmodel.StatusPaused, result.Status)

	ctrl2 := NewControl()
	e.Transcriber = &mediaops.FakeTranscriber{}
	result2 := e.Run(context.Background(), jobID, ctrl2)
	assert.Equal(t, jobmodel.StatusFinished, result2.Status)

	cp, err := st.LoadCheckpoint(jobID)
	require.NoError(t, err)
	assert.Len(t, cp.ProcessedIndices, 3)

	job, err := reg.Get(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobmodel.StatusFinished, job.Status)
}

func TestExecutor_CancelWithDeleteRemovesJobDir(t *testing.T) {
	e, reg, st, jobID := newTestExecutor(t)
	ctrl := NewControl()
	cancelAfterFirst := &cancelingTranscriber{inner: e.Transcriber, ctrl: ctrl, cancelAfterCalls: 1}
	e.Transcriber = cancelAfterFirst

	workingDir := st.JobDir(jobID)

	result := e.Run(context.Background(), jobID, ctrl)
	assert.Equal(t, jobmodel.StatusCanceled, result.Status)

	_, err := reg.Get(jobID)
	assert.Error(t, err)

	_, statErr := os.Stat(workingDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecutor_CircuitBreakerEscalatesAfterConsecutiveLowQuality(t *testing.T) {
	e, reg, st, jobID := newTestExecutor(t)
	e.VAD = &mediaops.FakeVADSegmenter{Spans: []mediaops.VADSpan{
		{StartSec: 0, EndSec: 1}, {StartSec: 1, EndSec: 2}, {StartSec: 2, EndSec: 3}, {StartSec: 3, EndSec: 4},
	}}
	e.Transcriber = &scriptedTranscriber{lowQuality: map[int]bool{0: true, 1: true, 2: true}}

	_, err := reg.Update(jobID, func(j *jobmodel.Job) {
		j.Settings.Demucs.Enabled = true
		j.Settings.Demucs.AutoEscalation = true
		j.Settings.Demucs.MaxEscalations = 1
	})
	require.NoError(t, err)

	result := e.Run(context.Background(), jobID, NewControl())
	assert.Equal(t, jobmodel.StatusFinished, result.Status)

	cp, err := st.LoadCheckpoint(jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, cp.CircuitBreakerState.EscalationCount)
}

// pausingTranscriber requests a pause after a configured number of calls,
// simulating a pause arriving mid-transcribe.
type pausingTranscriber struct {
	inner           mediaops.Transcriber
	ctrl            *Control
	pauseAfterCalls int
	calls           int
}

func (p *pausingTranscriber) Transcribe(ctx context.Context, audioPath string, startSec, endSec float64, params mediaops.TranscribeParams) (mediaops.TranscribeResult, error) {
	p.calls++
	if p.calls == p.pauseAfterCalls {
		p.ctrl.RequestPause()
	}
	return p.inner.Transcribe(ctx, audioPath, startSec, endSec, params)
}

type cancelingTranscriber struct {
	inner            mediaops.Transcriber
	ctrl             *Control
	cancelAfterCalls int
	calls            int
}

func (c *cancelingTranscriber) Transcribe(ctx context.Context, audioPath string, startSec, endSec float64, params mediaops.TranscribeParams) (mediaops.TranscribeResult, error) {
	c.calls++
	if c.calls == c.cancelAfterCalls {
		c.ctrl.RequestCancel(true)
	}
	return c.inner.Transcribe(ctx, audioPath, startSec, endSec, params)
}

// scriptedTranscriber returns low-quality results for initial (non-retry)
// calls whose segment start second is in lowQuality, and never lets a
// retry call (identified by the "retry_" clip name the Executor's
// per-segment separation path uses) improve enough to flip the decision
// already made — keeping the circuit-breaker scenario deterministic
// regardless of how many extra Transcribe calls retries add.
type scriptedTranscriber struct {
	lowQuality map[int]bool
}

func (s *scriptedTranscriber) Transcribe(ctx context.Context, audioPath string, startSec, endSec float64, params mediaops.TranscribeParams) (mediaops.TranscribeResult, error) {
	text := fmt.Sprintf("seg@%d", int(startSec))
	res := mediaops.TranscribeResult{
		Text: text, Language: "en", AvgLogprob: -0.2, NoSpeechProb: 0.05,
		Words: []mediaops.TranscribeWord{{Start: startSec, End: endSec, Text: text}},
	}
	if strings.Contains(audioPath, "retry_") {
		res.AvgLogprob = -1.6
		return res, nil
	}
	if s.lowQuality[int(startSec)] {
		res.AvgLogprob = -1.5
		res.NoSpeechProb = 0.9
	}
	return res, nil
}
