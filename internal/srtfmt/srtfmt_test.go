package srtfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	cues := []Cue{
		{Index: 1, StartSec: 0, EndSec: 2.5, Text: "Hello there"},
		{Index: 2, StartSec: 2.5, EndSec: 5.125, Text: "General Kenobi", LowQuality: true},
	}

	out := Serialize(cues)
	parsed, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	assert.Equal(t, "Hello there", parsed[0].Text)
	assert.False(t, parsed[0].LowQuality)
	assert.Equal(t, "General Kenobi", parsed[1].Text)
	assert.True(t, parsed[1].LowQuality)

	out2 := Serialize(parsed)
	assert.Equal(t, out, out2)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00,000", formatTimestamp(0))
	assert.Equal(t, "00:00:02,500", formatTimestamp(2.5))
	assert.Equal(t, "01:00:00,000", formatTimestamp(3600))
}

func TestParseTimestamp(t *testing.T) {
	v, err := parseTimestamp("00:01:02,345")
	require.NoError(t, err)
	assert.InDelta(t, 62.345, v, 0.0001)
}

func TestParseRejectsMalformedIndex(t *testing.T) {
	_, err := Parse("not-a-number\r\n00:00:00,000 --> 00:00:01,000\r\ntext\r\n")
	assert.Error(t, err)
}
