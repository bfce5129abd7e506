package mediaops

import (
	"context"
	"fmt"
)

// FakeExtractor is an in-memory Extractor for tests; it never shells out.
type FakeExtractor struct {
	DurationSec float64
	Err         error
}

func (f *FakeExtractor) Extract(ctx context.Context, inputPath, audioOutPath, thumbnailOutPath string) (ExtractResult, error) {
	if f.Err != nil {
		return ExtractResult{}, f.Err
	}
	return ExtractResult{AudioPath: audioOutPath, ThumbnailPath: thumbnailOutPath, DurationSec: f.DurationSec}, nil
}

// FakeVocalSeparator returns a canned RMSResult, or one looked up by model
// name via Results, so a test can simulate different BGM ratios per tier.
type FakeVocalSeparator struct {
	Results map[string]RMSResult
	Default RMSResult
	Err     error
}

func (f *FakeVocalSeparator) Separate(ctx context.Context, inputPath, outPath, model string) (RMSResult, error) {
	if f.Err != nil {
		return RMSResult{}, f.Err
	}
	if r, ok := f.Results[model]; ok {
		return r, nil
	}
	return f.Default, nil
}

// FakeVADSegmenter returns a fixed span list regardless of input.
type FakeVADSegmenter struct {
	Spans []VADSpan
	Err   error
}

func (f *FakeVADSegmenter) Segment(ctx context.Context, audioPath string, cfg VADConfig) ([]VADSpan, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Spans, nil
}

// FakeTranscriber returns scripted results keyed by call order, or
// generates a placeholder transcript from the span bounds.
type FakeTranscriber struct {
	// LowQualityAt, if set, is consulted by index (0-based call count) to decide
	// NoSpeechProb / AvgLogprob so tests can force retry/escalate/break paths.
	LowQualityAt map[int]bool
	calls        int
	Err          error
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, audioPath string, startSec, endSec float64, params TranscribeParams) (TranscribeResult, error) {
	if f.Err != nil {
		return TranscribeResult{}, f.Err
	}
	idx := f.calls
	f.calls++
	text := fmt.Sprintf("segment %d text", idx)
	res := TranscribeResult{
		Text:         text,
		Language:     "en",
		AvgLogprob:   -0.2,
		NoSpeechProb: 0.05,
		Words: []TranscribeWord{
			{Start: startSec, End: endSec, Text: text},
		},
	}
	if f.LowQualityAt != nil && f.LowQualityAt[idx] {
		res.AvgLogprob = -1.5
		res.NoSpeechProb = 0.9
	}
	return res, nil
}

// FakeAligner aligns by assigning each input's own bounds to a single word.
type FakeAligner struct {
	Err error
}

func (f *FakeAligner) Align(ctx context.Context, audioPath string, texts []AlignInput) ([]AlignedWord, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]AlignedWord, 0, len(texts))
	for _, t := range texts {
		out = append(out, AlignedWord{SegmentIndex: t.Index, Start: t.StartSec, End: t.EndSec, Text: t.Text})
	}
	return out, nil
}
