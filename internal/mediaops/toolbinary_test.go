package mediaops

import (
	"context"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRegistrar captures RegisterProcess/ClearProcess calls so tests
// can assert the register/clear lifecycle around a tool invocation.
type recordingRegistrar struct {
	registered []int
	cleared    int
}

func (r *recordingRegistrar) RegisterProcess(p *os.Process) {
	r.registered = append(r.registered, p.Pid)
}

func (r *recordingRegistrar) ClearProcess() { r.cleared++ }

func TestRunJSON_RegistersAndClearsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}

	reg := &recordingRegistrar{}
	var out []int
	err := runJSON(context.Background(), "sh", []string{"-c", "echo '[1,2,3]'"}, &out, reg)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, out)

	require.Len(t, reg.registered, 1)
	assert.Greater(t, reg.registered[0], 0)
	assert.Equal(t, 1, reg.cleared)
}

func TestRunJSON_NilRegistrarIsSafe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}

	var out []int
	err := runJSON(context.Background(), "sh", []string{"-c", "echo '[4,5]'"}, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, out)
}

func TestToolVADSegmenter_SetRegistrarIsThreadedToRunJSON(t *testing.T) {
	v := NewToolVADSegmenter("")
	reg := &recordingRegistrar{}
	v.SetRegistrar(reg)
	assert.Equal(t, reg, v.current())
}
