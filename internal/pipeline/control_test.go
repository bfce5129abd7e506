package pipeline

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestControl_RequestCancelKillsRegisteredProcess(t *testing.T) {
	c := NewControl()
	var killed *os.Process
	c.SetKillFunc(func(p *os.Process) error {
		killed = p
		return nil
	})

	proc := &os.Process{Pid: 4242}
	c.RegisterProcess(proc)

	c.RequestCancel(true)

	assert.True(t, c.ShouldCancel())
	assert.True(t, c.DeleteOnCancel())
	assert.Same(t, proc, killed)
}

func TestControl_RegisterAfterCancelStillKills(t *testing.T) {
	c := NewControl()
	var killed *os.Process
	c.SetKillFunc(func(p *os.Process) error {
		killed = p
		return nil
	})

	c.RequestCancel(false)
	assert.Nil(t, killed)

	proc := &os.Process{Pid: 99}
	c.RegisterProcess(proc)

	assert.Same(t, proc, killed)
}

func TestControl_ClearProcessStopsFurtherKills(t *testing.T) {
	c := NewControl()
	calls := 0
	c.SetKillFunc(func(p *os.Process) error {
		calls++
		return nil
	})

	proc := &os.Process{Pid: 7}
	c.RegisterProcess(proc)
	c.ClearProcess()

	c.RequestCancel(false)
	assert.Equal(t, 0, calls)
}

func TestControl_PauseDoesNotKill(t *testing.T) {
	c := NewControl()
	calls := 0
	c.SetKillFunc(func(p *os.Process) error {
		calls++
		return nil
	})
	c.RegisterProcess(&os.Process{Pid: 1})

	c.RequestPause()

	assert.True(t, c.ShouldPause())
	assert.Equal(t, 0, calls)
}
