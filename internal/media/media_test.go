package media

import (
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joborchestrator/internal/registry"
	"joborchestrator/internal/sse"
	"joborchestrator/internal/store"
)

// writeTestWAV writes a canonical 44-byte-header, 16kHz mono PCM16 WAV
// file containing samples, mirroring what internal/mediaops.FFmpegExtractor
// actually produces (just without real RIFF chunk sizes, which this
// package's reader never inspects).
func writeTestWAV(t *testing.T, path string, samples []int16) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	header := make([]byte, riffDataOffset)
	copy(header[0:4], "RIFF")
	copy(header[8:12], "WAVE")
	_, err = f.Write(header)
	require.NoError(t, err)

	for _, s := range samples {
		require.NoError(t, binary.Write(f, binary.LittleEndian, s))
	}
}

func newTestServer(t *testing.T) (*Server, *registry.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)
	hub := sse.NewHub(8)
	reg := registry.New(st, hub)
	return New(st, reg), reg, dir
}

func makeJob(t *testing.T, reg *registry.Registry, inputPath string) string {
	t.Helper()
	j, err := reg.Create(filepath.Base(inputPath), inputPath)
	require.NoError(t, err)
	return j.ID
}

func TestPeaks_DefaultSampleCountAndRange(t *testing.T) {
	s, reg, dir := newTestServer(t)
	jobID := makeJob(t, reg, filepath.Join(dir, "input.mp4"))

	j, err := reg.Get(jobID)
	require.NoError(t, err)

	samples := make([]int16, 16000) // 1 second at 16kHz
	for i := range samples {
		samples[i] = int16((i % 200) * 100)
	}
	writeTestWAV(t, j.Paths.AudioPath, samples)

	p, err := s.Peaks(jobID, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultMinPeakSamples, p.Samples)
	assert.InDelta(t, 1.0, p.DurationSec, 0.01)
	assert.Len(t, p.Values, defaultMinPeakSamples*2)
	for _, v := range p.Values {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}

	// Cached on disk atomically, and re-requesting returns the same shape
	// without needing to re-decode (can't observe that directly, but the
	// cache file must exist and parse).
	_, err = os.Stat(j.Paths.PeaksPath)
	require.NoError(t, err)

	p2, err := s.Peaks(jobID, 0)
	require.NoError(t, err)
	assert.Equal(t, p.Samples, p2.Samples)
}

func TestPeaks_LongDurationScalesAboveDefault(t *testing.T) {
	s, reg, dir := newTestServer(t)
	jobID := makeJob(t, reg, filepath.Join(dir, "long.mp4"))
	j, err := reg.Get(jobID)
	require.NoError(t, err)

	// 500 seconds of audio -> 10x duration (5000) exceeds the 2000 floor.
	samples := make([]int16, 500*wavSampleRateHz)
	writeTestWAV(t, j.Paths.AudioPath, samples)

	p, err := s.Peaks(jobID, 0)
	require.NoError(t, err)
	assert.Equal(t, 5000, p.Samples)
}

func TestPeaks_ExplicitSampleCountHonored(t *testing.T) {
	s, reg, dir := newTestServer(t)
	jobID := makeJob(t, reg, filepath.Join(dir, "input.mp4"))
	j, err := reg.Get(jobID)
	require.NoError(t, err)
	writeTestWAV(t, j.Paths.AudioPath, make([]int16, 16000))

	p, err := s.Peaks(jobID, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Samples)
	assert.Len(t, p.Values, 100)
}

func TestPeaks_MissingAudioReturnsNotFound(t *testing.T) {
	s, reg, dir := newTestServer(t)
	jobID := makeJob(t, reg, filepath.Join(dir, "input.mp4"))

	_, err := s.Peaks(jobID, 0)
	require.Error(t, err)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestReadWriteSRT_RoundTrip(t *testing.T) {
	s, reg, dir := newTestServer(t)
	jobID := makeJob(t, reg, filepath.Join(dir, "input.mp4"))

	_, err := s.ReadSRT(jobID)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	content := "1\n00:00:00,000 --> 00:00:01,000\nhello\n\n"
	require.NoError(t, s.WriteSRT(jobID, content))

	got, err := s.ReadSRT(jobID)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCopyResult_CopiesNextToInput(t *testing.T) {
	s, reg, dir := newTestServer(t)
	inputPath := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("fake video"), 0o644))
	jobID := makeJob(t, reg, inputPath)

	content := "1\n00:00:00,000 --> 00:00:01,000\nhi\n\n"
	require.NoError(t, s.WriteSRT(jobID, content))

	dstPath, err := s.CopyResult(jobID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip.srt"), dstPath)

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestServeAudio_RangeRequestServed(t *testing.T) {
	s, reg, dir := newTestServer(t)
	jobID := makeJob(t, reg, filepath.Join(dir, "input.mp4"))
	j, err := reg.Get(jobID)
	require.NoError(t, err)
	writeTestWAV(t, j.Paths.AudioPath, make([]int16, 100))

	req := httptest.NewRequest(http.MethodGet, "/api/media/"+jobID+"/audio", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, s.ServeAudio(rec, req, jobID))

	res := rec.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "bytes", res.Header.Get("Accept-Ranges"))
	assert.Equal(t, "audio/wav", res.Header.Get("Content-Type"))
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}

func TestServeAudio_MissingFileIsNotFound(t *testing.T) {
	s, reg, dir := newTestServer(t)
	jobID := makeJob(t, reg, filepath.Join(dir, "input.mp4"))

	req := httptest.NewRequest(http.MethodGet, "/api/media/"+jobID+"/audio", nil)
	rec := httptest.NewRecorder()
	err := s.ServeAudio(rec, req, jobID)
	require.Error(t, err)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
