// Package mediaops models the ML/media primitives spec.md §1 places
// outside the core's specified boundary ("treated as pure functions with
// defined I/O shapes; their internals are not specified"). Each primitive
// is an interface so the Phase Executor can be tested against fakes; the
// default implementations shell out to external tools the way the
// teacher's internal/transcription/pipeline.AudioFormatPreprocessor and
// whisperx.go shell out to ffmpeg/uv.
package mediaops

import (
	"context"
	"time"
)

// ExtractResult is the extract phase's output (spec.md §4.D.1).
type ExtractResult struct {
	AudioPath     string
	ThumbnailPath string
	DurationSec   float64
}

// Extractor decodes a source media file into 16kHz mono PCM WAV plus a
// thumbnail JPEG.
type Extractor interface {
	Extract(ctx context.Context, inputPath, audioOutPath, thumbnailOutPath string) (ExtractResult, error)
}

// VocalSeparator isolates vocals from a mixed audio signal (the Demucs
// primitive of spec.md §4.D.1's demucs_global phase and the per-segment
// retry path of the transcribe phase).
type VocalSeparator interface {
	// Separate writes an isolated-vocals WAV to outPath and returns the
	// RMS energy ratio needed for BGM-level decisions; model selects which
	// tier (weak/strong/fallback) to run.
	Separate(ctx context.Context, inputPath, outPath, model string) (rms RMSResult, err error)
}

// RMSResult carries the root-mean-square energies needed to compute
// bgm_ratio = 1 - rms(vocals)/rms(original) (spec.md §4.D.1).
type RMSResult struct {
	OriginalRMS float64
	VocalsRMS   float64
}

// BGMRatio computes the clamped-to-[0,1] bgm_ratio from an RMSResult.
func (r RMSResult) BGMRatio() float64 {
	if r.OriginalRMS <= 0 {
		return 0
	}
	ratio := 1 - (r.VocalsRMS / r.OriginalRMS)
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// VADSpan is one voice-activity span produced by the split phase, before
// it's assigned a Segment index.
type VADSpan struct {
	StartSec float64
	EndSec   float64
}

// VADConfig mirrors jobmodel.VADConfig to keep this package decoupled from
// jobmodel's import graph; internal/pipeline adapts between the two.
type VADConfig struct {
	Onset        float64
	Offset       float64
	MinSpeechMs  int
	MinSilenceMs int
}

// VADSegmenter produces voice-activity spans from an audio file.
type VADSegmenter interface {
	Segment(ctx context.Context, audioPath string, cfg VADConfig) ([]VADSpan, error)
}

// TranscribeParams configures one ASR invocation.
type TranscribeParams struct {
	Model          string
	ComputeType    string
	Device         string
	Language       string // empty means auto-detect
	WordTimestamps bool
}

// TranscribeWord is one word-level timing result.
type TranscribeWord struct {
	Start float64
	End   float64
	Text  string
}

// TranscribeResult is the ASR primitive's output for a single segment
// (spec.md §4.D.1 transcribe phase contract).
type TranscribeResult struct {
	Text         string
	Language     string
	AvgLogprob   float64
	NoSpeechProb float64
	Words        []TranscribeWord
}

// Transcriber runs ASR over one audio span.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, startSec, endSec float64, params TranscribeParams) (TranscribeResult, error)
}

// AlignedWord is one word-level timestamp from forced alignment.
type AlignedWord struct {
	SegmentIndex int
	Start        float64
	End          float64
	Text         string
}

// Aligner runs forced alignment over a full segment list, atomically
// (spec.md §4.D.1: "on failure it re-runs, it is not partially resumable").
type Aligner interface {
	Align(ctx context.Context, audioPath string, texts []AlignInput) ([]AlignedWord, error)
}

// AlignInput is one segment's text plus its rough timing, as input to the
// aligner.
type AlignInput struct {
	Index    int
	StartSec float64
	EndSec   float64
	Text     string
}

// nativeCallSafetyTimeout is a 6-hour ceiling for hung native calls.
// Nothing in this package applies it: tool invocations run until they exit
// or their context is canceled, and spec.md §5 leaves phase-level
// timeouts unenforced.
const nativeCallSafetyTimeout = 6 * time.Hour
