package jobmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettings_EmptyInputFillsAllDefaults(t *testing.T) {
	out, err := ParseSettings(Settings{})
	require.NoError(t, err)
	assert.Equal(t, "base", out.Model)
	assert.Equal(t, "float32", out.ComputeType)
	assert.Equal(t, "cpu", out.Device)
	assert.Equal(t, 8, out.BatchSize)
	assert.Equal(t, DefaultVADConfig(), out.VAD)
	assert.Equal(t, DemucsAuto, out.Demucs.Mode)
	assert.Equal(t, BreakContinue, out.Demucs.OnBreak)
	assert.Equal(t, 3, out.Demucs.CircuitBreaker.ConsecutiveThreshold)
	assert.InDelta(t, 0.2, out.Demucs.CircuitBreaker.RatioThreshold, 1e-9)
}

func TestParseSettings_RejectsInvalidModel(t *testing.T) {
	_, err := ParseSettings(Settings{Model: "huge"})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "model", ve.Field)
}

func TestParseSettings_RejectsInvalidComputeType(t *testing.T) {
	_, err := ParseSettings(Settings{ComputeType: "bf16"})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "compute_type", ve.Field)
}

func TestParseSettings_RejectsInvalidDevice(t *testing.T) {
	_, err := ParseSettings(Settings{Device: "tpu"})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "device", ve.Field)
}

func TestParseSettings_RejectsBatchSizeOutOfRange(t *testing.T) {
	_, err := ParseSettings(Settings{BatchSize: 64})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "batch_size", ve.Field)

	_, err = ParseSettings(Settings{BatchSize: -1})
	require.Error(t, err)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "batch_size", ve.Field)
}

func TestParseSettings_RejectsInvalidDemucsMode(t *testing.T) {
	_, err := ParseSettings(Settings{Demucs: DemucsSettings{Mode: "sometimes"}})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "demucs.mode", ve.Field)
}

func TestParseSettings_RejectsInvalidOnBreak(t *testing.T) {
	_, err := ParseSettings(Settings{Demucs: DemucsSettings{OnBreak: "retry_forever"}})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "demucs.on_break", ve.Field)
}

func TestParseSettings_DemucsNeverDisablesCircuitBreaker(t *testing.T) {
	out, err := ParseSettings(Settings{Demucs: DemucsSettings{
		Mode:           DemucsNever,
		CircuitBreaker: CircuitBreakerConfig{Enabled: true, ConsecutiveThreshold: 3, RatioThreshold: 0.2},
	}})
	require.NoError(t, err)
	assert.False(t, out.Demucs.CircuitBreaker.Enabled)
}

func TestParseSettings_PreservesValidExplicitValues(t *testing.T) {
	in := Settings{
		Model:       "large-v3",
		ComputeType: "int8",
		Device:      "cuda",
		BatchSize:   16,
		Demucs: DemucsSettings{
			Mode:    DemucsAlways,
			OnBreak: BreakFail,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled: true, ConsecutiveThreshold: 5, RatioThreshold: 0.5,
			},
		},
	}
	out, err := ParseSettings(in)
	require.NoError(t, err)
	assert.Equal(t, "large-v3", out.Model)
	assert.Equal(t, "int8", out.ComputeType)
	assert.Equal(t, "cuda", out.Device)
	assert.Equal(t, 16, out.BatchSize)
	assert.Equal(t, DemucsAlways, out.Demucs.Mode)
	assert.Equal(t, BreakFail, out.Demucs.OnBreak)
	assert.Equal(t, 5, out.Demucs.CircuitBreaker.ConsecutiveThreshold)
}
