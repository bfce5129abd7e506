package mediaops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sync"

	"joborchestrator/pkg/logger"
)

// ProcessRegistrar receives the OS process backing a running tool
// invocation, so a caller holding pause/cancel control (internal/pipeline's
// Control) can hard-kill it instead of waiting for cooperative interruption
// at the next checkpoint poll. Mirrors the teacher's registerProcess
// callback in internal/queue.TaskQueue.
type ProcessRegistrar interface {
	RegisterProcess(p *os.Process)
	ClearProcess()
}

// RegistrarAware is implemented by the default tool adapters so an Executor
// can hand them the active job's Control before running a phase.
type RegistrarAware interface {
	SetRegistrar(r ProcessRegistrar)
}

// ToolBinaries configures the external command-line tools the default
// mediaops implementations shell out to. Every path is overridable via
// config (spec.md §6.4's "model paths / cache dirs") and defaults to a
// bare command name resolved from PATH, mirroring the teacher's
// config.findUVPath pattern.
type ToolBinaries struct {
	VADBin     string // invoked: <bin> --audio <path> --onset <f> --offset <f> --min-speech-ms <i> --min-silence-ms <i>
	DemucsBin  string // invoked: <bin> --input <path> --output <path> --model <name>
	WhisperBin string // invoked: <bin> --audio <path> --start <f> --end <f> --model <name> --compute-type <t> --device <d> [--language <l>] [--word-timestamps]
	AlignBin   string // invoked: <bin> --audio <path> --segments <json-file>
}

func defaultBin(bin, fallback string) string {
	if bin != "" {
		return bin
	}
	return fallback
}

// runJSON execs name with args and unmarshals its stdout as JSON into out.
// On non-zero exit it logs combined output and returns a wrapped error, the
// same diagnostic idiom as FFmpegExtractor. If registrar is non-nil, the
// child's process is registered right after Start and cleared once the
// command returns, so a hard-cancel can kill it mid-flight.
func runJSON(ctx context.Context, name string, args []string, out interface{}, registrar ProcessRegistrar) error {
	cmd := exec.CommandContext(ctx, name, args...)
	configureCmdSysProcAttr(cmd)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: start: %w", name, err)
	}
	if registrar != nil {
		registrar.RegisterProcess(cmd.Process)
		defer registrar.ClearProcess()
	}

	if err := cmd.Wait(); err != nil {
		logger.Error("external tool invocation failed", "tool", name, "stderr", stderr.String(), "error", err)
		return fmt.Errorf("%s: %w: %s", name, err, stderr.String())
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(stdout.Bytes(), out)
}

// registrarHolder is embedded by every default tool adapter to implement
// RegistrarAware with a mutex-guarded field; safe to share across calls
// because the single-runner Supervisor only ever has one job's phase
// active on a given adapter at a time.
type registrarHolder struct {
	mu        sync.Mutex
	registrar ProcessRegistrar
}

func (h *registrarHolder) SetRegistrar(r ProcessRegistrar) {
	h.mu.Lock()
	h.registrar = r
	h.mu.Unlock()
}

func (h *registrarHolder) current() ProcessRegistrar {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registrar
}

// --- VAD ---

// ToolVADSegmenter is the default VADSegmenter, shelling out to a
// configurable external VAD binary that prints a JSON array of spans.
type ToolVADSegmenter struct {
	registrarHolder
	Bin string
}

func NewToolVADSegmenter(bin string) *ToolVADSegmenter {
	return &ToolVADSegmenter{Bin: defaultBin(bin, "orchestrator-vad")}
}

type vadSpanJSON struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (v *ToolVADSegmenter) Segment(ctx context.Context, audioPath string, cfg VADConfig) ([]VADSpan, error) {
	args := []string{
		"--audio", audioPath,
		"--onset", fmt.Sprintf("%g", cfg.Onset),
		"--offset", fmt.Sprintf("%g", cfg.Offset),
		"--min-speech-ms", fmt.Sprintf("%d", cfg.MinSpeechMs),
		"--min-silence-ms", fmt.Sprintf("%d", cfg.MinSilenceMs),
	}
	var spans []vadSpanJSON
	if err := runJSON(ctx, v.Bin, args, &spans, v.current()); err != nil {
		return nil, err
	}
	out := make([]VADSpan, len(spans))
	for i, s := range spans {
		out[i] = VADSpan{StartSec: s.Start, EndSec: s.End}
	}
	return out, nil
}

// --- Demucs vocal separation ---

// ToolVocalSeparator is the default VocalSeparator.
type ToolVocalSeparator struct {
	registrarHolder
	Bin string
}

func NewToolVocalSeparator(bin string) *ToolVocalSeparator {
	return &ToolVocalSeparator{Bin: defaultBin(bin, "orchestrator-demucs")}
}

type rmsResultJSON struct {
	OriginalRMS float64 `json:"original_rms"`
	VocalsRMS   float64 `json:"vocals_rms"`
}

func (d *ToolVocalSeparator) Separate(ctx context.Context, inputPath, outPath, model string) (RMSResult, error) {
	args := []string{"--input", inputPath, "--output", outPath, "--model", model}
	var r rmsResultJSON
	if err := runJSON(ctx, d.Bin, args, &r, d.current()); err != nil {
		return RMSResult{}, err
	}
	return RMSResult{OriginalRMS: r.OriginalRMS, VocalsRMS: r.VocalsRMS}, nil
}

// --- ASR transcription ---

// ToolTranscriber is the default Transcriber.
type ToolTranscriber struct {
	registrarHolder
	Bin string
}

func NewToolTranscriber(bin string) *ToolTranscriber {
	return &ToolTranscriber{Bin: defaultBin(bin, "orchestrator-asr")}
}

type transcribeResultJSON struct {
	Text         string `json:"text"`
	Language     string `json:"language"`
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
	Words        []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"words"`
}

func (t *ToolTranscriber) Transcribe(ctx context.Context, audioPath string, startSec, endSec float64, params TranscribeParams) (TranscribeResult, error) {
	args := []string{
		"--audio", audioPath,
		"--start", fmt.Sprintf("%g", startSec),
		"--end", fmt.Sprintf("%g", endSec),
		"--model", params.Model,
		"--compute-type", params.ComputeType,
		"--device", params.Device,
	}
	if params.Language != "" {
		args = append(args, "--language", params.Language)
	}
	if params.WordTimestamps {
		args = append(args, "--word-timestamps")
	}

	var r transcribeResultJSON
	if err := runJSON(ctx, t.Bin, args, &r, t.current()); err != nil {
		return TranscribeResult{}, err
	}
	words := make([]TranscribeWord, len(r.Words))
	for i, w := range r.Words {
		words[i] = TranscribeWord{Start: w.Start, End: w.End, Text: w.Text}
	}
	return TranscribeResult{
		Text:         r.Text,
		Language:     r.Language,
		AvgLogprob:   r.AvgLogprob,
		NoSpeechProb: r.NoSpeechProb,
		Words:        words,
	}, nil
}

// --- Forced alignment ---

// ToolAligner is the default Aligner. It writes the segment list to a
// temp JSON file (simpler and more robust than passing a large argv) and
// invokes the aligner binary with a pointer to it.
type ToolAligner struct {
	registrarHolder
	Bin string
}

func NewToolAligner(bin string) *ToolAligner {
	return &ToolAligner{Bin: defaultBin(bin, "orchestrator-align")}
}

type alignInputJSON struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type alignedWordJSON struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (a *ToolAligner) Align(ctx context.Context, audioPath string, texts []AlignInput) ([]AlignedWord, error) {
	in := make([]alignInputJSON, len(texts))
	for i, t := range texts {
		in[i] = alignInputJSON{Index: t.Index, Start: t.StartSec, End: t.EndSec, Text: t.Text}
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("mediaops: marshal align input: %w", err)
	}

	tmp, err := os.CreateTemp("", "align-input-*.json")
	if err != nil {
		return nil, fmt.Errorf("mediaops: create align input temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("mediaops: write align input temp file: %w", err)
	}
	tmp.Close()

	args := []string{"--audio", audioPath, "--segments", tmp.Name()}
	var out []alignedWordJSON
	if err := runJSON(ctx, a.Bin, args, &out, a.current()); err != nil {
		return nil, err
	}
	words := make([]AlignedWord, len(out))
	for i, w := range out {
		words[i] = AlignedWord{SegmentIndex: w.Index, Start: w.Start, End: w.End, Text: w.Text}
	}
	return words, nil
}

// rmsFromPCM16 computes the RMS energy of signed 16-bit little-endian PCM
// samples. Nothing in this module calls it; the fakes return canned
// RMSResult values instead.
func rmsFromPCM16(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		v := float64(s)
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}
