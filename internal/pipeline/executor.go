package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"joborchestrator/internal/circuitbreaker"
	"joborchestrator/internal/jobmodel"
	"joborchestrator/internal/mediaops"
	"joborchestrator/internal/registry"
	"joborchestrator/internal/srtfmt"
	"joborchestrator/internal/sse"
	"joborchestrator/internal/store"
	"joborchestrator/pkg/logger"
)

// Executor drives one Job through the phase pipeline of spec.md §4.D. It
// holds no per-job state itself — everything needed to resume lives in the
// Checkpoint — so one Executor value is reused across every job the
// Supervisor hands it.
type Executor struct {
	Store    *store.Store
	Registry *registry.Registry
	Hub      *sse.Hub

	Extractor   mediaops.Extractor
	Separator   mediaops.VocalSeparator
	VAD         mediaops.VADSegmenter
	Transcriber mediaops.Transcriber
	Aligner     mediaops.Aligner

	// FFmpegPath is used only by the default ClipAudio implementation; the
	// Extractor/VocalSeparator interfaces have no "cut a sub-range"
	// operation of their own.
	FFmpegPath string

	// ClipAudio cuts [start,end) out of src into a new file under workDir.
	// Defaults to shelling out to ffmpeg (defaultClipAudio); tests override
	// it to avoid depending on a real ffmpeg binary.
	ClipAudio func(ctx context.Context, src, workDir, name string, start, end float64) (string, error)

	// Weights overrides jobmodel.PhaseWeights (spec.md §6.4 phase_weights).
	Weights map[jobmodel.Phase]int
}

// NewExecutor wires an Executor with its default (ffmpeg-backed) clip
// helper; fields may still be overridden afterward (tests do this freely).
func NewExecutor(st *store.Store, reg *registry.Registry, hub *sse.Hub, extractor mediaops.Extractor, separator mediaops.VocalSeparator, vad mediaops.VADSegmenter, transcriber mediaops.Transcriber, aligner mediaops.Aligner) *Executor {
	e := &Executor{
		Store:       st,
		Registry:    reg,
		Hub:         hub,
		Extractor:   extractor,
		Separator:   separator,
		VAD:         vad,
		Transcriber: transcriber,
		Aligner:     aligner,
	}
	e.ClipAudio = e.defaultClipAudio
	return e
}

// RunResult is what the Supervisor inspects after Run returns.
type RunResult struct {
	Status    jobmodel.Status
	LastError string
}

func phaseIndex(p jobmodel.Phase) int {
	for i, rp := range runPhases {
		if rp == p {
			return i
		}
	}
	return 0
}

// Run executes jobID from wherever its checkpoint leaves off, until it
// reaches a terminal state, a pause, or a cancellation.
func (e *Executor) Run(ctx context.Context, jobID string, ctrl *Control) RunResult {
	e.registerControl(ctrl)
	startedAt := time.Now()

	job, err := e.Registry.Get(jobID)
	if err != nil {
		return RunResult{Status: jobmodel.StatusFailed, LastError: err.Error()}
	}
	logger.JobStarted(jobID, job.Filename, job.Settings.Model, map[string]any{"demucs_mode": job.Settings.Demucs.Mode})

	cp, err := e.Store.LoadCheckpoint(jobID)
	if err != nil {
		if os.IsNotExist(err) {
			cp = jobmodel.Checkpoint{Phase: jobmodel.PhaseExtract}
		} else {
			logger.Warn("pipeline: checkpoint corrupt, starting from scratch", "job_id", jobID, "error", err)
			cp = jobmodel.Checkpoint{Phase: jobmodel.PhaseExtract}
		}
	}
	if cp.Phase == "" || cp.Phase == jobmodel.PhasePending {
		cp.Phase = jobmodel.PhaseExtract
	}
	cp.DemucsState.Mode = job.Settings.Demucs.Mode

	breaker := circuitbreaker.New(job.Settings.Demucs, cp.CircuitBreakerState)
	tracker := NewPercentTracker(e.effectiveWeights())
	tracker.ResumeFrom(cp.Phase)

	if _, err := e.Registry.UpdateStatus(jobID, jobmodel.StatusProcessing); err != nil {
		logger.Error("pipeline: failed to mark job processing", "job_id", jobID, "error", err)
	}

	startIdx := phaseIndex(cp.Phase)
	for i := startIdx; i < len(runPhases); i++ {
		phase := runPhases[i]
		cp.Phase = phase

		if res, handled := e.checkControl(jobID, &job, &cp, ctrl); handled {
			return res
		}

		skip := false
		var perr error
		switch phase {
		case jobmodel.PhaseExtract:
			perr = e.runExtract(ctx, &job, &cp)
		case jobmodel.PhaseBGMDetect:
			skip, perr = e.runBGMDetect(ctx, &job, &cp)
		case jobmodel.PhaseDemucsGlobal:
			skip, perr = e.runDemucsGlobal(ctx, &job, &cp)
		case jobmodel.PhaseSplit:
			perr = e.runSplit(ctx, &job, &cp)
		case jobmodel.PhaseTranscribe:
			perr = e.runTranscribe(ctx, jobID, &job, &cp, breaker, ctrl, tracker)
			if sig, ok := perr.(*controlSignal); ok {
				return e.handleControlSignal(jobID, &cp, sig)
			}
		case jobmodel.PhaseAlign:
			perr = e.runAlign(ctx, &job, &cp)
		case jobmodel.PhaseSRT:
			perr = e.runSRT(ctx, &job, &cp)
		}

		if perr != nil {
			return e.fail(jobID, &job, &cp, perr, startedAt)
		}

		if skip {
			tracker.Skip(phase)
		} else {
			tracker.Complete(phase)
		}
		cp.CircuitBreakerState = breaker.State()
		if err := e.Store.SaveCheckpoint(jobID, cp); err != nil {
			logger.Error("pipeline: checkpoint write failed", "job_id", jobID, "error", err)
		}
		percent := tracker.Percent(phase, 100)
		if _, err := e.Registry.UpdatePhaseProgress(jobID, phase, 100, percent, ""); err != nil {
			logger.Error("pipeline: progress update failed", "job_id", jobID, "error", err)
		}
		e.Hub.PublishJob(jobID, sse.EventProgress, map[string]interface{}{
			"phase": phase, "phase_percent": 100, "percent": percent,
		})
	}

	cp.Phase = jobmodel.PhaseComplete
	_ = e.Store.SaveCheckpoint(jobID, cp)
	if _, err := e.Registry.MarkTerminal(jobID, jobmodel.StatusFinished, ""); err != nil {
		logger.Error("pipeline: failed to mark job finished", "job_id", jobID, "error", err)
	}
	e.Hub.PublishSignal(jobID, sse.SignalJobComplete)
	logger.JobCompleted(jobID, time.Since(startedAt), map[string]any{"segments": len(cp.Segments)})
	return RunResult{Status: jobmodel.StatusFinished}
}

// registerControl hands ctrl to every adapter that supports hard-kill
// registration (mediaops.RegistrarAware), so a hard-cancel during this run
// can kill whatever tool process is currently in flight. Safe because the
// single-runner Supervisor only ever has one job's phase active per
// adapter at a time.
func (e *Executor) registerControl(ctrl *Control) {
	for _, adapter := range []interface{}{e.Extractor, e.Separator, e.VAD, e.Transcriber, e.Aligner} {
		if ra, ok := adapter.(mediaops.RegistrarAware); ok {
			ra.SetRegistrar(ctrl)
		}
	}
}

func (e *Executor) effectiveWeights() map[jobmodel.Phase]int {
	if e.Weights != nil {
		return e.Weights
	}
	return jobmodel.PhaseWeights
}

// checkControl observes pause/cancel at a phase boundary (spec.md §4.D.4).
func (e *Executor) checkControl(jobID string, job *jobmodel.Job, cp *jobmodel.Checkpoint, ctrl *Control) (RunResult, bool) {
	if ctrl.ShouldCancel() {
		return e.handleControlSignal(jobID, cp, &controlSignal{kind: KindCanceled, deleteData: ctrl.DeleteOnCancel()}), true
	}
	if ctrl.ShouldPause() {
		return e.handleControlSignal(jobID, cp, &controlSignal{kind: KindPaused}), true
	}
	return RunResult{}, false
}

// controlSignal is returned (never wrapped as a job failure) when a
// cooperative interruption is observed mid-phase, e.g. inside the
// transcribe per-segment loop.
type controlSignal struct {
	kind       Kind
	deleteData bool
}

func (c *controlSignal) Error() string { return string(c.kind) }

func (e *Executor) handleControlSignal(jobID string, cp *jobmodel.Checkpoint, sig *controlSignal) RunResult {
	_ = e.Store.SaveCheckpoint(jobID, *cp)
	switch sig.kind {
	case KindCanceled:
		if _, err := e.Registry.MarkTerminal(jobID, jobmodel.StatusCanceled, ""); err != nil {
			logger.Error("pipeline: failed to mark job canceled", "job_id", jobID, "error", err)
		}
		e.Hub.PublishSignal(jobID, sse.SignalJobCanceled)
		if sig.deleteData {
			if err := e.Registry.Delete(jobID, true); err != nil {
				logger.Error("pipeline: failed to delete canceled job data", "job_id", jobID, "error", err)
			}
		}
		return RunResult{Status: jobmodel.StatusCanceled}
	case KindPaused:
		if _, err := e.Registry.UpdateStatus(jobID, jobmodel.StatusPaused); err != nil {
			logger.Error("pipeline: failed to mark job paused", "job_id", jobID, "error", err)
		}
		e.Hub.PublishSignal(jobID, sse.SignalJobPaused)
		return RunResult{Status: jobmodel.StatusPaused}
	default:
		return RunResult{Status: jobmodel.StatusFailed}
	}
}

// fail classifies perr, persists last_error, and transitions the job
// terminal, per spec.md §7's propagation rule.
func (e *Executor) fail(jobID string, job *jobmodel.Job, cp *jobmodel.Checkpoint, perr error, startedAt time.Time) RunResult {
	kind := Classify(perr)
	_ = e.Store.SaveCheckpoint(jobID, *cp)

	if kind == KindPaused {
		return e.handleControlSignal(jobID, cp, &controlSignal{kind: KindPaused})
	}
	if kind == KindCanceled {
		return e.handleControlSignal(jobID, cp, &controlSignal{kind: KindCanceled})
	}

	msg := perr.Error()
	logger.Error("pipeline: job failed", "job_id", jobID, "kind", kind, "error", msg)
	if _, err := e.Registry.MarkTerminal(jobID, jobmodel.StatusFailed, msg); err != nil {
		logger.Error("pipeline: failed to mark job failed", "job_id", jobID, "error", err)
	}
	e.Hub.PublishSignal(jobID, sse.SignalJobFailed)
	logger.JobFailed(jobID, time.Since(startedAt), perr)
	return RunResult{Status: jobmodel.StatusFailed, LastError: msg}
}

// currentAudioSource picks vocals.wav over audio.wav once global
// separation has completed (spec.md §4.D.3).
func (e *Executor) currentAudioSource(job *jobmodel.Job, cp *jobmodel.Checkpoint) string {
	if cp.DemucsState.GlobalSeparationDone {
		return job.Paths.VocalsPath
	}
	return job.Paths.AudioPath
}

// --- extract ---

func (e *Executor) runExtract(ctx context.Context, job *jobmodel.Job, cp *jobmodel.Checkpoint) error {
	if _, err := os.Stat(job.Paths.InputPath); err != nil {
		return newError(KindInputMissing, "input file missing", err)
	}
	result, err := e.Extractor.Extract(ctx, job.Paths.InputPath, job.Paths.AudioPath, job.Paths.ThumbnailPath)
	if err != nil {
		return err
	}
	cp.DurationSec = result.DurationSec
	return nil
}

// --- bgm_detect ---

const bgmSampleWindowSec = 10.0

func (e *Executor) runBGMDetect(ctx context.Context, job *jobmodel.Job, cp *jobmodel.Checkpoint) (skip bool, err error) {
	ds := job.Settings.Demucs
	if !ds.Enabled || ds.Mode != jobmodel.DemucsAuto {
		return true, nil
	}

	audioPath := e.currentAudioSource(job, cp)
	positions := [3]float64{cp.DurationSec * 0.15, cp.DurationSec * 0.5, cp.DurationSec * 0.85}
	ratios := [3]float64{}

	g, gctx := errgroup.WithContext(ctx)
	for i, pos := range positions {
		i, pos := i, pos
		g.Go(func() error {
			start := pos
			end := math.Min(cp.DurationSec, pos+bgmSampleWindowSec)
			clip, cerr := e.ClipAudio(gctx, audioPath, job.Paths.WorkingDir, fmt.Sprintf("bgm_sample_%d.wav", i), start, end)
			if cerr != nil {
				return cerr
			}
			defer os.Remove(clip)

			vocalsOut := filepath.Join(job.Paths.WorkingDir, fmt.Sprintf("bgm_sample_%d_vocals.wav", i))
			defer os.Remove(vocalsOut)
			rms, serr := e.Separator.Separate(gctx, clip, vocalsOut, ds.WeakModel)
			if serr != nil {
				return serr
			}
			ratios[i] = rms.BGMRatio()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	maxRatio := math.Max(ratios[0], math.Max(ratios[1], ratios[2]))
	level := jobmodel.BGMNone
	switch {
	case maxRatio > ds.BGMHeavyThreshold:
		level = jobmodel.BGMHeavy
	case maxRatio > ds.BGMLightThreshold:
		level = jobmodel.BGMLight
	}

	cp.DemucsState.BGMRatios = ratios
	cp.DemucsState.BGMLevel = level
	e.Hub.PublishJob(job.ID, sse.EventSeparationStrategy, map[string]interface{}{
		"bgm_level": level, "ratios": ratios,
	})
	return false, nil
}

// --- demucs_global ---

func (e *Executor) runDemucsGlobal(ctx context.Context, job *jobmodel.Job, cp *jobmodel.Checkpoint) (skip bool, err error) {
	ds := job.Settings.Demucs
	shouldRun := ds.Mode == jobmodel.DemucsAlways || (ds.Mode == jobmodel.DemucsAuto && cp.DemucsState.BGMLevel == jobmodel.BGMHeavy)
	if !shouldRun {
		return true, nil
	}

	rms, err := e.Separator.Separate(ctx, job.Paths.AudioPath, job.Paths.VocalsPath, ds.WeakModel)
	if err != nil {
		return false, err
	}
	_ = rms
	cp.DemucsState.GlobalSeparationDone = true
	cp.DemucsState.VocalsPath = job.Paths.VocalsPath
	cp.DemucsState.CurrentModel = ds.WeakModel
	return false, nil
}

// --- split ---

func (e *Executor) runSplit(ctx context.Context, job *jobmodel.Job, cp *jobmodel.Checkpoint) error {
	audioPath := e.currentAudioSource(job, cp)
	vadCfg := mediaops.VADConfig{
		Onset:        job.Settings.VAD.Onset,
		Offset:       job.Settings.VAD.Offset,
		MinSpeechMs:  job.Settings.VAD.MinSpeechMs,
		MinSilenceMs: job.Settings.VAD.MinSilenceMs,
	}
	spans, err := e.VAD.Segment(ctx, audioPath, vadCfg)
	if err != nil {
		return err
	}

	cp.Segments = make([]jobmodel.Segment, len(spans))
	for i, s := range spans {
		cp.Segments[i] = jobmodel.Segment{Index: i, StartSec: s.StartSec, EndSec: s.EndSec}
	}
	cp.TotalSegments = len(spans)
	cp.ProcessedIndices = nil
	return nil
}

// --- transcribe ---

func (e *Executor) runTranscribe(ctx context.Context, jobID string, job *jobmodel.Job, cp *jobmodel.Checkpoint, breaker *circuitbreaker.Breaker, ctrl *Control, tracker *PercentTracker) error {
	ds := job.Settings.Demucs
	total := len(cp.Segments)

	for idx := range cp.Segments {
		if cp.IsProcessed(idx) {
			continue
		}
		if ctrl.ShouldCancel() {
			return &controlSignal{kind: KindCanceled, deleteData: ctrl.DeleteOnCancel()}
		}
		if ctrl.ShouldPause() {
			return &controlSignal{kind: KindPaused}
		}

		seg := cp.Segments[idx]
		audioPath := e.currentAudioSource(job, cp)
		if breaker.FallbackActive() {
			audioPath = job.Paths.AudioPath
		}

		params := mediaops.TranscribeParams{
			Model:          job.Settings.Model,
			ComputeType:    job.Settings.ComputeType,
			Device:         job.Settings.Device,
			Language:       job.Language,
			WordTimestamps: job.Settings.WordTimestamps,
		}
		result, err := e.Transcriber.Transcribe(ctx, audioPath, seg.StartSec, seg.EndSec, params)
		if err != nil {
			return err
		}

		lowQuality := result.AvgLogprob < ds.RetryThresholdLogprob || result.NoSpeechProb > ds.RetryThresholdNoSpeech
		demucsAlreadyApplied := cp.DemucsState.GlobalSeparationDone || breaker.FallbackActive()
		lowQualityMarked := false

		if lowQuality && !demucsAlreadyApplied {
			if retryResult, rerr := e.retryWithSeparation(ctx, job, cp, seg, params, breaker.CurrentModel()); rerr == nil && retryResult.AvgLogprob > result.AvgLogprob {
				result = retryResult
			}

			switch breaker.Evaluate() {
			case circuitbreaker.OutcomeEscalate:
				newModel := breaker.ApplyEscalation()
				e.Hub.PublishJob(jobID, sse.EventModelEscalated, map[string]interface{}{
					"segment_index": idx, "new_model": newModel, "escalation_count": breaker.State().EscalationCount,
				})
			case circuitbreaker.OutcomeBreak:
				switch ds.OnBreak {
				case jobmodel.BreakContinue:
					lowQualityMarked = true
					e.Hub.PublishJob(jobID, sse.EventCircuitBreakerHandled, map[string]interface{}{
						"action": "continue", "segment_index": idx,
					})
				case jobmodel.BreakFallback:
					breaker.ApplyFallback()
					e.Hub.PublishJob(jobID, sse.EventCircuitBreakerHandled, map[string]interface{}{
						"action": "fallback", "segment_index": idx,
					})
				case jobmodel.BreakFail:
					return newError(KindCircuitBreakerOpen, "circuit breaker open: on_break=fail", nil)
				case jobmodel.BreakPause:
					e.Hub.PublishJob(jobID, sse.EventCircuitBreakerHandled, map[string]interface{}{
						"action": "pause", "segment_index": idx,
					})
					return &controlSignal{kind: KindPaused}
				}
			}
		} else {
			breaker.RecordSuccess()
		}

		seg.Text = result.Text
		seg.AvgLogprob = result.AvgLogprob
		seg.NoSpeechProb = result.NoSpeechProb
		seg.LowQualityMarked = lowQualityMarked
		cp.Segments[idx] = seg
		cp.MarkProcessed(idx)
		cp.CircuitBreakerState = breaker.State()

		if job.Language == "" && result.Language != "" {
			job.Language = result.Language
			if _, err := e.Registry.Update(jobID, func(j *jobmodel.Job) { j.Language = result.Language }); err != nil {
				logger.Error("pipeline: failed to persist detected language", "job_id", jobID, "error", err)
			}
		}

		if err := e.Store.SaveCheckpoint(jobID, *cp); err != nil {
			logger.Error("pipeline: checkpoint write failed mid-transcribe", "job_id", jobID, "error", err)
		}
		e.Hub.PublishJob(jobID, sse.EventSegment, map[string]interface{}{"segment": seg})

		phasePercent := 0
		if total > 0 {
			phasePercent = (len(cp.ProcessedIndices) * 100) / total
		}
		percent := tracker.Percent(jobmodel.PhaseTranscribe, phasePercent)
		if _, err := e.Registry.UpdatePhaseProgress(jobID, jobmodel.PhaseTranscribe, phasePercent, percent, ""); err != nil {
			logger.Error("pipeline: progress update failed", "job_id", jobID, "error", err)
		}
	}
	return nil
}

// retryWithSeparation runs per-segment vocal separation with a 2s pre/post
// buffer and re-transcribes (spec.md §4.D.1 transcribe step 2). separatorModel
// is the breaker's live (possibly escalated) Demucs model, not the ASR model
// in params.
func (e *Executor) retryWithSeparation(ctx context.Context, job *jobmodel.Job, cp *jobmodel.Checkpoint, seg jobmodel.Segment, params mediaops.TranscribeParams, separatorModel string) (mediaops.TranscribeResult, error) {
	const buffer = 2.0
	start := math.Max(0, seg.StartSec-buffer)
	end := math.Min(cp.DurationSec, seg.EndSec+buffer)

	clip, err := e.ClipAudio(ctx, job.Paths.AudioPath, job.Paths.WorkingDir, fmt.Sprintf("retry_%d.wav", seg.Index), start, end)
	if err != nil {
		return mediaops.TranscribeResult{}, err
	}
	defer os.Remove(clip)

	vocalsOut := filepath.Join(job.Paths.WorkingDir, fmt.Sprintf("retry_%d_vocals.wav", seg.Index))
	defer os.Remove(vocalsOut)
	if _, err := e.Separator.Separate(ctx, clip, vocalsOut, separatorModel); err != nil {
		return mediaops.TranscribeResult{}, err
	}

	return e.Transcriber.Transcribe(ctx, vocalsOut, 0, end-start, params)
}

// defaultClipAudio cuts [start,end) out of src into a new WAV under workDir,
// shelling out to ffmpeg exactly as the Extractor does.
func (e *Executor) defaultClipAudio(ctx context.Context, src, workDir, name string, start, end float64) (string, error) {
	ffmpegPath := e.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	out := filepath.Join(workDir, name)
	args := []string{
		"-i", src,
		"-ss", fmt.Sprintf("%f", start),
		"-to", fmt.Sprintf("%f", end),
		"-c", "copy",
		"-y",
		out,
	}
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", &mediaops.MediaDecodeError{Cause: err, Output: string(output)}
	}
	return out, nil
}

// --- align ---

func (e *Executor) runAlign(ctx context.Context, job *jobmodel.Job, cp *jobmodel.Checkpoint) error {
	audioPath := e.currentAudioSource(job, cp)

	inputs := make([]mediaops.AlignInput, len(cp.Segments))
	unaligned := make([]jobmodel.Segment, len(cp.Segments))
	for i, s := range cp.Segments {
		inputs[i] = mediaops.AlignInput{Index: s.Index, StartSec: s.StartSec, EndSec: s.EndSec, Text: s.Text}
		unaligned[i] = s
	}
	cp.UnalignedResults = unaligned

	words, err := e.Aligner.Align(ctx, audioPath, inputs)
	if err != nil {
		return err
	}

	bySegment := make(map[int][]jobmodel.Word)
	for _, w := range words {
		bySegment[w.SegmentIndex] = append(bySegment[w.SegmentIndex], jobmodel.Word{Start: w.Start, End: w.End, Text: w.Text})
	}
	for i := range cp.Segments {
		cp.Segments[i].Words = bySegment[cp.Segments[i].Index]
	}
	cp.UnalignedResults = nil

	e.Hub.PublishJob(job.ID, sse.EventAligned, map[string]interface{}{"segment_count": len(cp.Segments)})
	return nil
}

// --- srt ---

func (e *Executor) runSRT(ctx context.Context, job *jobmodel.Job, cp *jobmodel.Checkpoint) error {
	cues := make([]srtfmt.Cue, len(cp.Segments))
	sorted := append([]jobmodel.Segment(nil), cp.Segments...)
	sort.Slice(sorted, func(i, k int) bool { return sorted[i].Index < sorted[k].Index })
	for i, s := range sorted {
		cues[i] = srtfmt.Cue{Index: s.Index + 1, StartSec: s.StartSec, EndSec: s.EndSec, Text: s.Text, LowQuality: s.LowQualityMarked}
	}
	content := srtfmt.Serialize(cues)

	if err := withIORetry(ctx, func() error {
		return writeFileAtomic(job.Paths.OutputSRTPath, []byte(content))
	}); err != nil {
		return err
	}

	// Orphan cleanup: bgm sampling/retry clips are removed as they're
	// created, so the only remaining transient file is the un-separated
	// vocals clip when fallback was never needed.
	if !cp.DemucsState.GlobalSeparationDone {
		_ = os.Remove(job.Paths.VocalsPath)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	return store.WriteFileAtomic(path, data)
}
