// Package events implements the SSE event stream (§4.K's /events/subscribe
// endpoint), grounded on the ancestor's sse.py/eventgen.py: a simple
// pub/sub hub where each subscriber reads from its own buffered channel and
// a keepalive event is broadcast periodically so idle connections aren't
// dropped by intermediate proxies.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// subscriberQueueSize bounds each subscriber's backlog. The ancestor's
// Python subscriber queues were unbounded; a slow HTTP client reading an
// unbounded queue is a memory-exhaustion risk for a long-lived process, so
// this is bounded with drop-oldest semantics instead (see DESIGN.md).
const subscriberQueueSize = 64

// keepaliveInterval matches eventgen.py's `sleep(20)` keepalive cadence.
const keepaliveInterval = 20 * time.Second

// Event is one published notification: its wire name, channel, and JSON
// payload.
type Event struct {
	Name    string      `json:"event"`
	Channel string      `json:"-"`
	Data    interface{} `json:"data"`
}

// Subscriber receives events published to any of its subscribed channels.
// Reads that can't keep up silently drop the oldest buffered event rather
// than blocking the publisher.
type Subscriber struct {
	channels map[string]bool
	queue    chan Event
	hub      *Hub
}

// Channels reports which channels this subscriber is listening on.
func (s *Subscriber) Channels() []string {
	out := make([]string, 0, len(s.channels))
	for c := range s.channels {
		out = append(out, c)
	}
	return out
}

// Read blocks until the next event for this subscriber, or returns false
// when the subscriber has been closed.
func (s *Subscriber) Read() (Event, bool) {
	e, ok := <-s.queue
	return e, ok
}

func (s *Subscriber) deliver(e Event) {
	select {
	case s.queue <- e:
	default:
		select {
		case <-s.queue:
		default:
		}
		select {
		case s.queue <- e:
		default:
		}
	}
}

// Hub is the process-wide event stream. One Hub backs every HTTP
// connection's Subscriber.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]bool
}

// NewHub builds an empty hub and starts its keepalive ticker.
func NewHub() *Hub {
	h := &Hub{subscribers: make(map[*Subscriber]bool)}
	go h.keepaliveLoop()
	return h
}

// Subscribe registers a new subscriber listening on the given channels. An
// empty channel list means "general" only, matching the ancestor's default.
func (h *Hub) Subscribe(channels []string) *Subscriber {
	if len(channels) == 0 {
		channels = []string{"general"}
	}
	set := make(map[string]bool, len(channels))
	for _, c := range channels {
		set[c] = true
	}

	s := &Subscriber{channels: set, queue: make(chan Event, subscriberQueueSize), hub: h}

	h.mu.Lock()
	h.subscribers[s] = true
	h.mu.Unlock()
	return s
}

// Unsubscribe removes and closes a subscriber, called once its HTTP
// connection disconnects.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	if h.subscribers[s] {
		delete(h.subscribers, s)
		close(s.queue)
	}
	h.mu.Unlock()
}

// Publish fans out an event to every subscriber listening on its channel.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subscribers {
		if s.channels[e.Channel] {
			s.deliver(e)
		}
	}
}

func (h *Hub) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for range ticker.C {
		h.Publish(Event{Name: "keepalive", Channel: "keepalive", Data: nil})
	}
}

// Serialize renders an event in the wire format the HTTP handler writes
// to the response: a single `data: <json>\n\n` SSE frame.
func Serialize(e Event) ([]byte, error) {
	payload, err := json.Marshal(struct {
		Event   string      `json:"event"`
		Data    interface{} `json:"data"`
		Channel string      `json:"channel"`
	}{Event: e.Name, Data: e.Data, Channel: e.Channel})
	if err != nil {
		return nil, err
	}

	out := append([]byte("data: "), payload...)
	out = append(out, '\n', '\n')
	return out, nil
}
