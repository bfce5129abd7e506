package pipeline

import "joborchestrator/internal/jobmodel"

// runPhases lists the phases that carry weight, in execution order
// (pending and complete carry none).
var runPhases = []jobmodel.Phase{
	jobmodel.PhaseExtract,
	jobmodel.PhaseBGMDetect,
	jobmodel.PhaseDemucsGlobal,
	jobmodel.PhaseSplit,
	jobmodel.PhaseTranscribe,
	jobmodel.PhaseAlign,
	jobmodel.PhaseSRT,
}

// PercentTracker implements spec.md §8.1.6's invariant: percent =
// Σ(weight_of_completed) + weight_of_current × phase_percent/100, clamped
// to [0,100]. Phases skipped outright (bgm_detect when Demucs is disabled,
// demucs_global when BGM level doesn't warrant it) are folded into the
// completed sum immediately via Skip, so percent still reaches 100 at
// completion without the skipped phase ever reporting phase_percent.
type PercentTracker struct {
	weights         map[jobmodel.Phase]int
	completedWeight int
}

// NewPercentTracker builds a tracker from a (possibly config-overridden)
// weight table.
func NewPercentTracker(weights map[jobmodel.Phase]int) *PercentTracker {
	if weights == nil {
		weights = jobmodel.PhaseWeights
	}
	return &PercentTracker{weights: weights}
}

// Skip marks a phase as not run this pipeline, folding its weight into the
// completed sum.
func (t *PercentTracker) Skip(p jobmodel.Phase) {
	t.completedWeight += t.weights[p]
}

// Complete marks a phase as finished, folding its weight into the
// completed sum.
func (t *PercentTracker) Complete(p jobmodel.Phase) {
	t.completedWeight += t.weights[p]
}

// Percent computes the current global percent for a phase in progress.
func (t *PercentTracker) Percent(current jobmodel.Phase, phasePercent int) int {
	if phasePercent < 0 {
		phasePercent = 0
	}
	if phasePercent > 100 {
		phasePercent = 100
	}
	p := t.completedWeight + (t.weights[current]*phasePercent)/100
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p
}

// ResumeFrom pre-folds the weight of every phase strictly before resumeAt
// into the completed sum, so a resumed run's percent picks up where a
// fresh run would have left off instead of restarting from 0.
func (t *PercentTracker) ResumeFrom(resumeAt jobmodel.Phase) {
	for _, p := range runPhases {
		if p == resumeAt {
			return
		}
		t.completedWeight += t.weights[p]
	}
}
