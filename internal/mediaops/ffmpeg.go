package mediaops

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"joborchestrator/pkg/logger"
)

// FFmpegExtractor is the default Extractor, shelling out to ffmpeg/ffprobe
// exactly as the teacher's AudioFormatPreprocessor.Process does (build args,
// exec.CommandContext, log combined output on failure).
type FFmpegExtractor struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpegExtractor returns an Extractor using "ffmpeg"/"ffprobe" from
// PATH unless overridden.
func NewFFmpegExtractor(ffmpegPath, ffprobePath string) *FFmpegExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegExtractor{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// MediaDecodeError wraps a decode failure so the Executor can classify it
// per spec.md §7.
type MediaDecodeError struct {
	Cause  error
	Output string
}

func (e *MediaDecodeError) Error() string {
	return fmt.Sprintf("media decode failed: %v: %s", e.Cause, e.Output)
}
func (e *MediaDecodeError) Unwrap() error { return e.Cause }

func (f *FFmpegExtractor) Extract(ctx context.Context, inputPath, audioOutPath, thumbnailOutPath string) (ExtractResult, error) {
	duration, err := f.probeDuration(ctx, inputPath)
	if err != nil {
		return ExtractResult{}, &MediaDecodeError{Cause: err}
	}

	audioArgs := []string{
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		audioOutPath,
	}
	cmd := exec.CommandContext(ctx, f.FFmpegPath, audioArgs...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		logger.Error("ffmpeg audio extraction failed", "output", string(out), "error", err)
		return ExtractResult{}, &MediaDecodeError{Cause: err, Output: string(out)}
	}

	thumbArgs := []string{
		"-i", inputPath,
		"-ss", "00:00:00.5",
		"-frames:v", "1",
		"-y",
		thumbnailOutPath,
	}
	cmd = exec.CommandContext(ctx, f.FFmpegPath, thumbArgs...)
	if out, err := cmd.CombinedOutput(); err != nil {
		// Thumbnail extraction failing (e.g. audio-only input) is not a
		// MediaDecodeError — the audio was already decoded successfully.
		logger.Warn("ffmpeg thumbnail extraction failed, continuing without one", "output", string(out), "error", err)
	}

	return ExtractResult{AudioPath: audioOutPath, ThumbnailPath: thumbnailOutPath, DurationSec: duration}, nil
}

func (f *FFmpegExtractor) probeDuration(ctx context.Context, inputPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	}
	cmd := exec.CommandContext(ctx, f.FFprobePath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(out)))
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: parse duration %q: %w", string(out), err)
	}
	return d, nil
}
