// Package sse implements the Event Fan-out Hub (spec.md §4.C): a
// dual-channel broadcaster (global + per-job) that delivers events to many
// subscribers with a bounded per-subscriber buffer and automatic
// disconnection of slow clients.
//
// This is an adaptation, not a reuse, of the teacher's
// internal/sse.Broadcaster: the teacher keeps one subscriber table keyed by
// job ID with unbounded unbuffered channels; this Hub keeps two tables
// (global and per-job), bounded buffered channels, a drop-oldest-non-signal
// overflow policy, and a per-subscriber ping ticker, none of which the
// teacher's version has.
package sse

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"joborchestrator/pkg/logger"
)

// EventType enumerates the event varieties of spec.md §4.C.
type EventType string

const (
	EventInitialState         EventType = "initial_state"
	EventProgress             EventType = "progress"
	EventSegment              EventType = "segment"
	EventAligned              EventType = "aligned"
	EventSignal               EventType = "signal"
	EventSeparationStrategy   EventType = "separation_strategy"
	EventModelEscalated       EventType = "model_escalated"
	EventCircuitBreakerHandled EventType = "circuit_breaker_handled"
	EventProxyProgress        EventType = "proxy_progress"
	EventProxyComplete        EventType = "proxy_complete"
	EventPing                 EventType = "ping"

	EventQueueUpdate EventType = "queue_update"
	EventJobStatus   EventType = "job_status"
	EventJobProgress EventType = "job_progress"
)

// Signal names carried by EventSignal payloads.
const (
	SignalJobComplete  = "job_complete"
	SignalJobFailed    = "job_failed"
	SignalJobPaused    = "job_paused"
	SignalJobResumed   = "job_resumed"
	SignalJobCanceled  = "job_canceled"
)

// terminalSignals are never dropped from a subscriber's buffer, even when
// it overflows (spec.md §4.C).
var terminalSignals = map[string]bool{
	SignalJobComplete: true,
	SignalJobFailed:   true,
	SignalJobCanceled: true,
}

// Event is one message delivered to a subscriber.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

func (e Event) isSignalNeverDrop() bool {
	if e.Type != EventSignal {
		return false
	}
	m, ok := e.Payload.(map[string]interface{})
	if !ok {
		return false
	}
	name, _ := m["signal"].(string)
	return terminalSignals[name]
}

// Channel identifies which broadcast table a subscription belongs to.
type Channel int

const (
	ChannelGlobal Channel = iota
	ChannelJob
)

const defaultBufferSize = 256
const heartbeatInterval = 15 * time.Second

// subscriber is one open SSE connection.
type subscriber struct {
	id      string
	jobID   string // only set for ChannelJob
	channel Channel

	mu      sync.Mutex
	buf     []Event
	notify  chan struct{} // signaled (non-blocking) whenever buf gains an event
	closed  bool
	closeCh chan struct{}

	failedWrites int
}

func newSubscriber(id, jobID string, ch Channel, bufSize int) *subscriber {
	return &subscriber{
		id:      id,
		jobID:   jobID,
		channel: ch,
		buf:     make([]Event, 0, bufSize),
		notify:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
}

func (s *subscriber) signalNotify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// enqueue appends an event, applying the bounded-buffer overflow policy. It
// returns false if the subscriber should be disconnected (buffer still
// full after dropping all droppable events).
func (s *subscriber) enqueue(ev Event, bufSize int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}

	if len(s.buf) >= bufSize {
		// Drop the oldest non-signal event to make room.
		for i, e := range s.buf {
			if !e.isSignalNeverDrop() {
				s.buf = append(s.buf[:i], s.buf[i+1:]...)
				logger.Warn("sse: dropped oldest non-signal event for slow subscriber", "subscriber_id", s.id)
				break
			}
		}
		if len(s.buf) >= bufSize && !ev.isSignalNeverDrop() {
			// Buffer still full of undroppable (signal) events; the new
			// event itself would have to be dropped to fit, which is only
			// acceptable for non-signal events — but we've already
			// established it doesn't fit, so disconnect.
			return false
		}
	}

	s.buf = append(s.buf, ev)
	s.signalNotify()
	return true
}

// drain pops all currently buffered events.
func (s *subscriber) drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return nil
	}
	out := s.buf
	s.buf = nil
	return out
}

func (s *subscriber) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closeCh)
	}
}

// Hub is the SSE event fan-out described in spec.md §4.C.
type Hub struct {
	bufSize int

	mu           sync.RWMutex
	globalSubs   map[string]*subscriber
	jobSubs      map[string]map[string]*subscriber // jobID -> subscriberID -> subscriber
}

// NewHub creates a Hub with the given per-subscriber buffer size (spec.md
// §6.4 sse_subscriber_buffer, default 256).
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return &Hub{
		bufSize:    bufSize,
		globalSubs: make(map[string]*subscriber),
		jobSubs:    make(map[string]map[string]*subscriber),
	}
}

// Subscription is returned to callers (typically an HTTP handler) that want
// to read events for a connection's lifetime.
type Subscription struct {
	hub  *Hub
	sub  *subscriber
}

// Events returns a channel that is signaled whenever new events are
// available; call Drain to fetch them. This two-step API (rather than
// handing back a channel of Events directly) lets the Hub coalesce bursts
// without growing unboundedly between reads.
func (sub *Subscription) Events() <-chan struct{} { return sub.sub.notify }

// Drain returns and clears all currently buffered events.
func (sub *Subscription) Drain() []Event { return sub.sub.drain() }

// Closed is signaled when the Hub has forcibly disconnected this
// subscriber (buffer overflow even after dropping droppable events, or two
// consecutive failed writes reported via MarkWriteFailed).
func (sub *Subscription) Closed() <-chan struct{} { return sub.sub.closeCh }

// MarkWriteFailed records a failed delivery attempt by the HTTP layer; two
// consecutive failures close the subscription (spec.md §5 idle-timeout
// semantics).
func (sub *Subscription) MarkWriteFailed() {
	sub.sub.mu.Lock()
	sub.sub.failedWrites++
	fail := sub.sub.failedWrites >= 2
	sub.sub.mu.Unlock()
	if fail {
		sub.hub.unsubscribe(sub.sub)
	}
}

// MarkWriteSucceeded resets the consecutive-failure counter.
func (sub *Subscription) MarkWriteSucceeded() {
	sub.sub.mu.Lock()
	sub.sub.failedWrites = 0
	sub.sub.mu.Unlock()
}

// Close unregisters the subscription (normal client disconnect).
func (sub *Subscription) Close() { sub.hub.unsubscribe(sub.sub) }

// SubscribeGlobal registers a new global-channel subscriber and seeds its
// buffer with an initial_state event.
func (h *Hub) SubscribeGlobal(initial Event) *Subscription {
	s := newSubscriber(uuid.NewString(), "", ChannelGlobal, h.bufSize)
	h.mu.Lock()
	h.globalSubs[s.id] = s
	h.mu.Unlock()
	s.enqueue(initial, h.bufSize)
	h.startHeartbeat(s)
	return &Subscription{hub: h, sub: s}
}

// SubscribeJob registers a new per-job subscriber and seeds its buffer with
// an initial_state event.
func (h *Hub) SubscribeJob(jobID string, initial Event) *Subscription {
	s := newSubscriber(uuid.NewString(), jobID, ChannelJob, h.bufSize)
	h.mu.Lock()
	if h.jobSubs[jobID] == nil {
		h.jobSubs[jobID] = make(map[string]*subscriber)
	}
	h.jobSubs[jobID][s.id] = s
	h.mu.Unlock()
	s.enqueue(initial, h.bufSize)
	h.startHeartbeat(s)
	return &Subscription{hub: h, sub: s}
}

func (h *Hub) startHeartbeat(s *subscriber) {
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.enqueue(Event{Type: EventPing}, h.bufSize)
			case <-s.closeCh:
				return
			}
		}
	}()
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	switch s.channel {
	case ChannelGlobal:
		delete(h.globalSubs, s.id)
	case ChannelJob:
		if m, ok := h.jobSubs[s.jobID]; ok {
			delete(m, s.id)
			if len(m) == 0 {
				delete(h.jobSubs, s.jobID)
			}
		}
	}
	h.mu.Unlock()
	s.markClosed()
}

// publish fans an event out to a snapshot of the target subscriber set,
// enqueueing into each one and disconnecting any that overflow. The
// snapshot-then-enqueue pattern keeps the critical section (the RLock)
// short, per spec.md §4.C's non-blocking-publisher requirement.
func (h *Hub) publish(subs []*subscriber, ev Event) {
	for _, s := range subs {
		if !s.enqueue(ev, h.bufSize) {
			logger.Warn("sse: disconnecting slow subscriber", "subscriber_id", s.id)
			h.unsubscribe(s)
		}
	}
}

// PublishGlobal sends an event to every global-channel subscriber.
func (h *Hub) PublishGlobal(eventType EventType, payload interface{}) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.globalSubs))
	for _, s := range h.globalSubs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	h.publish(subs, Event{Type: eventType, Payload: payload})
}

// PublishJob sends an event to every subscriber of a specific job.
func (h *Hub) PublishJob(jobID string, eventType EventType, payload interface{}) {
	h.mu.RLock()
	m := h.jobSubs[jobID]
	subs := make([]*subscriber, 0, len(m))
	for _, s := range m {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	h.publish(subs, Event{Type: eventType, Payload: payload})
}

// PublishSignal is a convenience wrapper for EventSignal payloads.
func (h *Hub) PublishSignal(jobID, signal string) {
	h.PublishJob(jobID, EventSignal, map[string]interface{}{"signal": signal})
}

// MarshalEvent renders an event as an SSE `data: ...\n\n` frame.
func MarshalEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(data)+8)
	out = append(out, []byte("data: ")...)
	out = append(out, data...)
	out = append(out, []byte("\n\n")...)
	return out, nil
}

// SubscriberCount returns the number of subscribers for diagnostics/tests.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if jobID == "" {
		return len(h.globalSubs)
	}
	return len(h.jobSubs[jobID])
}
