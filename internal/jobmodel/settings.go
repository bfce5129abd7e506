package jobmodel

import "fmt"

// Settings is the immutable-once-started TranscriptionSettings of spec.md
// §3.2. It is frozen onto a Job at admission time (spec.md §9: "explicit
// immutable settings structs frozen onto the Job at admission time").
type Settings struct {
	Model       string `json:"model"`
	ComputeType string `json:"compute_type"`
	Device      string `json:"device"`
	BatchSize   int    `json:"batch_size"`

	WordTimestamps bool `json:"word_timestamps"`

	VAD VADConfig `json:"vad"`

	Demucs DemucsSettings `json:"demucs"`

	// Diarization is accepted and stored but not acted on by the phase
	// pipeline; speaker diarization is outside the ML-library boundary
	// spec.md §1 draws (see SPEC_FULL.md §4).
	Diarization bool `json:"diarization"`
}

// VADConfig holds the voice-activity-detection parameters of spec.md §4.D.1
// (split phase).
type VADConfig struct {
	Onset         float64 `json:"onset"`
	Offset        float64 `json:"offset"`
	MinSpeechMs   int     `json:"min_speech_ms"`
	MinSilenceMs  int     `json:"min_silence_ms"`
}

// DefaultVADConfig returns the empirically-tuned defaults from spec.md
// §4.D.1.
func DefaultVADConfig() VADConfig {
	return VADConfig{Onset: 0.65, Offset: 0.45, MinSpeechMs: 400, MinSilenceMs: 400}
}

// DemucsMode controls when vocal separation runs.
type DemucsMode string

const (
	DemucsAuto     DemucsMode = "auto"
	DemucsAlways   DemucsMode = "always"
	DemucsNever    DemucsMode = "never"
	DemucsOnDemand DemucsMode = "on_demand"
)

// BreakAction is the circuit breaker's on_break strategy (spec.md §4.D.2).
type BreakAction string

const (
	BreakContinue BreakAction = "continue"
	BreakFallback BreakAction = "fallback"
	BreakFail     BreakAction = "fail"
	BreakPause    BreakAction = "pause"
)

// DemucsSettings is spec.md §3.2's DemucsSettings.
type DemucsSettings struct {
	Enabled bool       `json:"enabled"`
	Mode    DemucsMode `json:"mode"`

	WeakModel     string `json:"weak_model"`
	StrongModel   string `json:"strong_model"`
	FallbackModel string `json:"fallback_model"`

	AutoEscalation bool `json:"auto_escalation"`
	MaxEscalations int  `json:"max_escalations"`

	BGMLightThreshold float64 `json:"bgm_light_threshold"`
	BGMHeavyThreshold float64 `json:"bgm_heavy_threshold"`

	RetryThresholdLogprob   float64 `json:"retry_threshold_logprob"`
	RetryThresholdNoSpeech  float64 `json:"retry_threshold_no_speech"`

	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	OnBreak        BreakAction          `json:"on_break"`

	QualityPreset string `json:"quality_preset"`
}

// CircuitBreakerConfig is the `{enabled, consecutive_threshold,
// ratio_threshold}` tuple of spec.md §3.2.
type CircuitBreakerConfig struct {
	Enabled              bool    `json:"enabled"`
	ConsecutiveThreshold int     `json:"consecutive_threshold"`
	RatioThreshold       float64 `json:"ratio_threshold"`
}

// DefaultSettings returns the spec's documented defaults, suitable as a
// starting point for parse_settings.
func DefaultSettings() Settings {
	return Settings{
		Model:          "base",
		ComputeType:    "float32",
		Device:         "cpu",
		BatchSize:      8,
		WordTimestamps: true,
		VAD:            DefaultVADConfig(),
		Demucs: DemucsSettings{
			Enabled:                false,
			Mode:                   DemucsAuto,
			WeakModel:              "htdemucs",
			StrongModel:            "htdemucs_ft",
			FallbackModel:          "htdemucs_ft",
			AutoEscalation:         true,
			MaxEscalations:         1,
			BGMLightThreshold:      0.15,
			BGMHeavyThreshold:      0.35,
			RetryThresholdLogprob:  -0.8,
			RetryThresholdNoSpeech: 0.6,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:              true,
				ConsecutiveThreshold: 3,
				RatioThreshold:       0.2,
			},
			OnBreak: BreakContinue,
		},
	}
}

var validModels = map[string]bool{
	"tiny": true, "base": true, "small": true, "medium": true,
	"large-v2": true, "large-v3": true,
}

var validComputeTypes = map[string]bool{"float16": true, "float32": true, "int8": true}
var validDevices = map[string]bool{"cuda": true, "cpu": true}
var validDemucsModes = map[DemucsMode]bool{
	DemucsAuto: true, DemucsAlways: true, DemucsNever: true, DemucsOnDemand: true,
}
var validBreakActions = map[BreakAction]bool{
	BreakContinue: true, BreakFallback: true, BreakFail: true, BreakPause: true,
}

// ValidationError reports a single invalid settings field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid settings field %q: %s", e.Field, e.Reason)
}

// ParseSettings validates and fills defaults on a partially-specified
// Settings value, per spec.md §9's "single function parse_settings(json)
// -> Settings | ValidationError" redesign note.
func ParseSettings(s Settings) (Settings, error) {
	out := s

	if out.Model == "" {
		out.Model = "base"
	}
	if !validModels[out.Model] {
		return Settings{}, &ValidationError{"model", "must be one of tiny|base|small|medium|large-v2|large-v3"}
	}

	if out.ComputeType == "" {
		out.ComputeType = "float32"
	}
	if !validComputeTypes[out.ComputeType] {
		return Settings{}, &ValidationError{"compute_type", "must be one of float16|float32|int8"}
	}

	if out.Device == "" {
		out.Device = "cpu"
	}
	if !validDevices[out.Device] {
		return Settings{}, &ValidationError{"device", "must be one of cuda|cpu"}
	}

	if out.BatchSize == 0 {
		out.BatchSize = 8
	}
	if out.BatchSize < 1 || out.BatchSize > 32 {
		return Settings{}, &ValidationError{"batch_size", "must be in [1,32]"}
	}

	if out.VAD == (VADConfig{}) {
		out.VAD = DefaultVADConfig()
	}

	if out.Demucs.Mode == "" {
		out.Demucs.Mode = DemucsAuto
	}
	if !validDemucsModes[out.Demucs.Mode] {
		return Settings{}, &ValidationError{"demucs.mode", "must be one of auto|always|never|on_demand"}
	}
	if out.Demucs.OnBreak == "" {
		out.Demucs.OnBreak = BreakContinue
	}
	if !validBreakActions[out.Demucs.OnBreak] {
		return Settings{}, &ValidationError{"demucs.on_break", "must be one of continue|fallback|fail|pause"}
	}
	if out.Demucs.CircuitBreaker.ConsecutiveThreshold == 0 {
		out.Demucs.CircuitBreaker.ConsecutiveThreshold = 3
	}
	if out.Demucs.CircuitBreaker.RatioThreshold == 0 {
		out.Demucs.CircuitBreaker.RatioThreshold = 0.2
	}
	// Disable the breaker entirely when Demucs is never used (spec.md §9
	// Open Question, resolved explicitly).
	if out.Demucs.Mode == DemucsNever {
		out.Demucs.CircuitBreaker.Enabled = false
	}
	if out.Demucs.RetryThresholdLogprob == 0 {
		out.Demucs.RetryThresholdLogprob = -0.8
	}
	if out.Demucs.RetryThresholdNoSpeech == 0 {
		out.Demucs.RetryThresholdNoSpeech = 0.6
	}
	if out.Demucs.BGMLightThreshold == 0 {
		out.Demucs.BGMLightThreshold = 0.15
	}
	if out.Demucs.BGMHeavyThreshold == 0 {
		out.Demucs.BGMHeavyThreshold = 0.35
	}

	return out, nil
}
