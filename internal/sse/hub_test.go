package sse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublicationOrderPreserved(t *testing.T) {
	h := NewHub(16)
	sub := h.SubscribeJob("job-1", Event{Type: EventInitialState, Payload: "init"})
	defer sub.Close()

	for i := 0; i < 5; i++ {
		h.PublishJob("job-1", EventProgress, i)
	}

	var got []Event
	require.Eventually(t, func() bool {
		got = append(got, sub.Drain()...)
		return len(got) >= 6
	}, time.Second, time.Millisecond)

	require.Len(t, got, 6)
	assert.Equal(t, EventInitialState, got[0].Type)
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, got[i+1].Payload) // JSON round trip not involved here; same value
	}
}

func TestHub_OverflowDropsOldestNonSignalFirst(t *testing.T) {
	h := NewHub(3)
	sub := h.SubscribeJob("job-2", Event{Type: EventInitialState, Payload: 0})
	defer sub.Close()

	// Buffer now holds [initial_state]. Fill with progress events past
	// capacity; the oldest non-signal events should be dropped, never the
	// signal.
	for i := 0; i < 10; i++ {
		h.PublishJob("job-2", EventProgress, i)
	}
	h.PublishSignal("job-2", SignalJobComplete)

	got := sub.Drain()
	require.NotEmpty(t, got)

	foundSignal := false
	for _, ev := range got {
		if ev.Type == EventSignal {
			foundSignal = true
		}
	}
	assert.True(t, foundSignal, "terminal signal event must never be dropped")
}

func TestHub_GlobalAndJobChannelsAreIndependent(t *testing.T) {
	h := NewHub(16)
	global := h.SubscribeGlobal(Event{Type: EventInitialState})
	jobSub := h.SubscribeJob("job-3", Event{Type: EventInitialState})
	defer global.Close()
	defer jobSub.Close()

	h.PublishGlobal(EventQueueUpdate, "q")
	h.PublishJob("job-3", EventProgress, "p")

	require.Eventually(t, func() bool {
		return len(global.Drain()) >= 0
	}, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	gEvents := global.Drain()
	jEvents := jobSub.Drain()

	for _, ev := range gEvents {
		assert.NotEqual(t, EventProgress, ev.Type)
	}
	foundProgress := false
	for _, ev := range jEvents {
		if ev.Type == EventProgress {
			foundProgress = true
		}
	}
	assert.True(t, foundProgress)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub(16)
	sub := h.SubscribeJob("job-4", Event{Type: EventInitialState})
	assert.Equal(t, 1, h.SubscriberCount("job-4"))
	sub.Close()
	assert.Equal(t, 0, h.SubscriberCount("job-4"))
}
