package jobmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckpoint_MarkProcessedKeepsSortedOrder(t *testing.T) {
	var cp Checkpoint
	cp.MarkProcessed(5)
	cp.MarkProcessed(1)
	cp.MarkProcessed(3)
	cp.MarkProcessed(2)
	cp.MarkProcessed(4)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, cp.ProcessedIndices)
}

func TestCheckpoint_MarkProcessedDeduplicates(t *testing.T) {
	var cp Checkpoint
	cp.MarkProcessed(2)
	cp.MarkProcessed(1)
	cp.MarkProcessed(2)
	cp.MarkProcessed(1)

	assert.Equal(t, []int{1, 2}, cp.ProcessedIndices)
}

func TestCheckpoint_IsProcessed(t *testing.T) {
	var cp Checkpoint
	cp.MarkProcessed(3)
	cp.MarkProcessed(7)

	assert.True(t, cp.IsProcessed(3))
	assert.True(t, cp.IsProcessed(7))
	assert.False(t, cp.IsProcessed(0))
	assert.False(t, cp.IsProcessed(5))
}

func TestCheckpoint_MarkProcessedOutOfOrderLargeRun(t *testing.T) {
	var cp Checkpoint
	for _, idx := range []int{9, 4, 8, 0, 6, 2, 7, 1, 5, 3} {
		cp.MarkProcessed(idx)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, cp.ProcessedIndices)
}
