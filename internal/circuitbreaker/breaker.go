// Package circuitbreaker implements the per-job circuit breaker of
// spec.md §4.D.2 as an explicit result-variant state machine, per the
// redesign note in spec.md §9 ("model the breaker as an explicit result
// variant... returned from the per-segment routine; the Executor dispatches
// on the variant instead of catching an exception").
package circuitbreaker

import "joborchestrator/internal/jobmodel"

// Outcome is the variant returned after evaluating one segment's quality.
type Outcome int

const (
	// OutcomeOK means the segment was good quality; proceed normally.
	OutcomeOK Outcome = iota
	// OutcomeRetry means the segment should be retried with vocal
	// separation applied (spec.md §4.D.1 step 2), before the breaker's
	// break condition is even considered.
	OutcomeRetry
	// OutcomeEscalate means the model should be upgraded mid-run.
	OutcomeEscalate
	// OutcomeBreak means the break condition fired and escalation was not
	// possible or not permitted; the caller must act per on_break.
	OutcomeBreak
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRetry:
		return "retry"
	case OutcomeEscalate:
		return "escalate"
	case OutcomeBreak:
		return "break"
	default:
		return "unknown"
	}
}

// Breaker wraps a CircuitBreakerState and the DemucsSettings that
// parameterize it.
type Breaker struct {
	cfg   jobmodel.DemucsSettings
	state jobmodel.CircuitBreakerState
}

// New creates a Breaker from settings and a (possibly resumed) state.
func New(cfg jobmodel.DemucsSettings, state jobmodel.CircuitBreakerState) *Breaker {
	if state.CurrentModel == "" {
		state.CurrentModel = cfg.WeakModel
	}
	return &Breaker{cfg: cfg, state: state}
}

// State returns the current persisted state, for checkpointing.
func (b *Breaker) State() jobmodel.CircuitBreakerState { return b.state }

// CurrentModel is the model the next segment should use.
func (b *Breaker) CurrentModel() string { return b.state.CurrentModel }

// FallbackActive reports whether on_break=fallback has fired, meaning
// subsequent segments should use the original (non-separated) audio.
func (b *Breaker) FallbackActive() bool { return b.state.FallbackToOriginal }

// RecordSuccess resets the consecutive-retry counter (spec.md §4.D.2).
func (b *Breaker) RecordSuccess() {
	b.state.ConsecutiveRetries = 0
	b.state.ProcessedSegments++
}

// recordRetry increments both retry counters.
func (b *Breaker) recordRetry() {
	b.state.ConsecutiveRetries++
	b.state.TotalRetries++
	b.state.ProcessedSegments++
}

// breakConditionMet implements spec.md §4.D.2's break condition:
// consecutive_retries >= consecutive_threshold OR (processed_segments >= 5
// AND total_retries/processed_segments >= ratio_threshold).
func (b *Breaker) breakConditionMet() bool {
	if !b.cfg.CircuitBreaker.Enabled {
		return false
	}
	if b.state.ConsecutiveRetries >= b.cfg.CircuitBreaker.ConsecutiveThreshold {
		return true
	}
	if b.state.ProcessedSegments >= 5 {
		ratio := float64(b.state.TotalRetries) / float64(b.state.ProcessedSegments)
		if ratio >= b.cfg.CircuitBreaker.RatioThreshold {
			return true
		}
	}
	return false
}

func (b *Breaker) canEscalate() bool {
	return b.cfg.AutoEscalation && b.state.EscalationCount < b.cfg.MaxEscalations && b.cfg.FallbackModel != ""
}

// Evaluate records a retry for a low-quality segment and returns the
// decision-priority outcome of spec.md §4.D.2: escalate (if permitted and
// the break condition is met), else break (if the condition is met), else
// OK (keep going, still counted as a retry).
func (b *Breaker) Evaluate() Outcome {
	b.recordRetry()

	if !b.breakConditionMet() {
		return OutcomeOK
	}
	if b.canEscalate() {
		return OutcomeEscalate
	}
	return OutcomeBreak
}

// ApplyEscalation performs the model upgrade side effects: switches to the
// fallback model, increments escalation count, resets consecutive
// retries, and records history.
func (b *Breaker) ApplyEscalation() (newModel string) {
	b.state.CurrentModel = b.cfg.FallbackModel
	b.state.EscalationCount++
	b.state.ConsecutiveRetries = 0
	b.state.EscalationHistory = append(b.state.EscalationHistory, b.cfg.FallbackModel)
	return b.state.CurrentModel
}

// ApplyFallback performs the on_break=fallback side effect: subsequent
// segments stop using separated vocals.
func (b *Breaker) ApplyFallback() {
	b.state.FallbackToOriginal = true
}
