package jobmodel

import "time"

// Segment is one VAD-delimited span of audio (spec.md §3.1).
type Segment struct {
	Index    int     `json:"index"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`

	Text          string  `json:"text,omitempty"`
	Words         []Word  `json:"words,omitempty"`
	AvgLogprob    float64 `json:"avg_logprob,omitempty"`
	NoSpeechProb  float64 `json:"no_speech_prob,omitempty"`

	// LowQualityMarked is set when the circuit breaker's on_break=continue
	// action marked this segment with the visible [?] suffix (spec.md §6.3).
	LowQualityMarked bool `json:"low_quality_marked,omitempty"`
}

// Word is word-level timing, populated during the align phase when
// WordTimestamps is enabled.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// BGMLevel is the bgm_detect phase's decision (spec.md §4.D.1).
type BGMLevel string

const (
	BGMNone  BGMLevel = "none"
	BGMLight BGMLevel = "light"
	BGMHeavy BGMLevel = "heavy"
)

// DemucsState is the Demucs sub-state persisted inside the checkpoint
// (spec.md §3.3).
type DemucsState struct {
	Mode                  DemucsMode `json:"mode"`
	BGMLevel              BGMLevel   `json:"bgm_level"`
	BGMRatios             [3]float64 `json:"bgm_ratios"`
	GlobalSeparationDone  bool       `json:"global_separation_done"`
	VocalsPath            string     `json:"vocals_path,omitempty"`
	CurrentModel          string     `json:"current_model,omitempty"`
	EscalationCount       int        `json:"escalation_count"`
	RetryTriggered        bool       `json:"retry_triggered"`
}

// CircuitBreakerState is the per-job breaker state of spec.md §4.D.2.
type CircuitBreakerState struct {
	ConsecutiveRetries int      `json:"consecutive_retries"`
	TotalRetries       int      `json:"total_retries"`
	ProcessedSegments  int      `json:"processed_segments"`
	EscalationCount    int      `json:"escalation_count"`
	CurrentModel       string   `json:"current_model"`
	EscalationHistory  []string `json:"escalation_history,omitempty"`
	// FallbackToOriginal is set once on_break=fallback fires; subsequent
	// segments use the original audio instead of separated vocals.
	FallbackToOriginal bool `json:"fallback_to_original,omitempty"`
}

// Checkpoint is the persisted partial-result record of spec.md §3.1,
// written atomically to checkpoint.json.
type Checkpoint struct {
	Phase            Phase   `json:"phase"`
	ProcessingMode   string  `json:"processing_mode"`
	DurationSec      float64 `json:"duration_sec,omitempty"`
	TotalSegments    int     `json:"total_segments"`
	ProcessedIndices []int   `json:"processed_indices"`
	Segments         []Segment `json:"segments"`

	// UnalignedResults mirrors Segments pre-alignment so the align phase can
	// be re-run atomically without losing transcription output.
	UnalignedResults []Segment `json:"unaligned_results,omitempty"`

	DemucsState         DemucsState         `json:"demucs_state"`
	CircuitBreakerState CircuitBreakerState `json:"circuit_breaker_state"`

	Timestamp time.Time `json:"timestamp"`
}

// MarkProcessed inserts idx into ProcessedIndices keeping it sorted and
// duplicate-free, preserving the invariant of spec.md §8.1.2.
func (c *Checkpoint) MarkProcessed(idx int) {
	for _, v := range c.ProcessedIndices {
		if v == idx {
			return
		}
	}
	c.ProcessedIndices = append(c.ProcessedIndices, idx)
	// insertion sort; ProcessedIndices is small relative to total_segments
	// in the common case and this keeps no external dependency needed.
	for i := len(c.ProcessedIndices) - 1; i > 0 && c.ProcessedIndices[i-1] > c.ProcessedIndices[i]; i-- {
		c.ProcessedIndices[i-1], c.ProcessedIndices[i] = c.ProcessedIndices[i], c.ProcessedIndices[i-1]
	}
}

// IsProcessed reports whether idx is in ProcessedIndices.
func (c *Checkpoint) IsProcessed(idx int) bool {
	for _, v := range c.ProcessedIndices {
		if v == idx {
			return true
		}
	}
	return false
}

// QueueState is the Supervisor's externally-visible ordering snapshot
// (spec.md §3.1).
type QueueState struct {
	Queue         []string `json:"queue"`
	RunningID     string   `json:"running_id,omitempty"`
	InterruptedID string   `json:"interrupted_id,omitempty"`
}
