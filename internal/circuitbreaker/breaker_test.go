package circuitbreaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joborchestrator/internal/jobmodel"
)

func cfg() jobmodel.DemucsSettings {
	s := jobmodel.DefaultSettings().Demucs
	s.AutoEscalation = true
	s.MaxEscalations = 1
	s.CircuitBreaker = jobmodel.CircuitBreakerConfig{Enabled: true, ConsecutiveThreshold: 3, RatioThreshold: 0.2}
	return s
}

func TestBreaker_EscalatesAfterConsecutiveThreshold(t *testing.T) {
	b := New(cfg(), jobmodel.CircuitBreakerState{})

	assert.Equal(t, OutcomeOK, b.Evaluate())
	assert.Equal(t, OutcomeOK, b.Evaluate())
	out := b.Evaluate()
	require.Equal(t, OutcomeEscalate, out)

	newModel := b.ApplyEscalation()
	assert.Equal(t, cfg().FallbackModel, newModel)
	assert.Equal(t, 1, b.State().EscalationCount)
	assert.Equal(t, 0, b.State().ConsecutiveRetries)
}

func TestBreaker_BreaksWhenEscalationExhausted(t *testing.T) {
	c := cfg()
	c.MaxEscalations = 0
	b := New(c, jobmodel.CircuitBreakerState{})

	b.Evaluate()
	b.Evaluate()
	out := b.Evaluate()
	assert.Equal(t, OutcomeBreak, out)
}

func TestBreaker_SuccessResetsConsecutiveButNotTotal(t *testing.T) {
	b := New(cfg(), jobmodel.CircuitBreakerState{})
	b.Evaluate()
	b.RecordSuccess()
	assert.Equal(t, 0, b.State().ConsecutiveRetries)
	assert.Equal(t, 1, b.State().TotalRetries)
}

func TestBreaker_RatioThresholdTriggersBreak(t *testing.T) {
	c := cfg()
	c.MaxEscalations = 0
	c.CircuitBreaker.ConsecutiveThreshold = 10 // isolate the ratio path
	b := New(c, jobmodel.CircuitBreakerState{})

	b.Evaluate() // retry: processed=1, total=1, consecutive=1
	b.RecordSuccess()
	b.RecordSuccess()
	b.RecordSuccess() // processed=4, consecutive reset to 0 each time

	// 5th segment is another low-quality retry: processed=5, total=2,
	// ratio=2/5=0.4 >= 0.2 threshold, while consecutive=1 stays well below
	// the (deliberately raised) consecutive threshold.
	out := b.Evaluate()
	assert.Equal(t, OutcomeBreak, out)
}

func TestBreaker_DisabledWhenCircuitBreakerConfigDisabled(t *testing.T) {
	c := cfg()
	c.CircuitBreaker.Enabled = false
	b := New(c, jobmodel.CircuitBreakerState{})
	for i := 0; i < 10; i++ {
		assert.Equal(t, OutcomeOK, b.Evaluate())
	}
}
