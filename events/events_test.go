package events_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/freshgrlc/freshgrlc-indexer/events"
)

func TestSerializeFramesAsSSEDataLine(t *testing.T) {
	raw, err := events.Serialize(events.Event{Name: "newblock", Channel: "blocks", Data: map[string]int{"height": 5}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := string(raw)
	if !strings.HasPrefix(s, "data: ") || !strings.HasSuffix(s, "\n\n") {
		t.Fatalf("expected an SSE data frame, got %q", s)
	}

	var body struct {
		Event   string         `json:"event"`
		Channel string         `json:"channel"`
		Data    map[string]int `json:"data"`
	}
	jsonPart := strings.TrimSuffix(strings.TrimPrefix(s, "data: "), "\n\n")
	if err := json.Unmarshal([]byte(jsonPart), &body); err != nil {
		t.Fatalf("failed to decode frame body: %v", err)
	}
	if body.Event != "newblock" || body.Channel != "blocks" || body.Data["height"] != 5 {
		t.Fatalf("unexpected frame body: %+v", body)
	}
}

func TestHubDeliversOnlyToSubscribedChannel(t *testing.T) {
	hub := events.NewHub()
	blocksSub := hub.Subscribe([]string{"blocks"})
	txSub := hub.Subscribe([]string{"transactions"})
	defer hub.Unsubscribe(blocksSub)
	defer hub.Unsubscribe(txSub)

	hub.Publish(events.Event{Name: "newblock", Channel: "blocks", Data: 1})

	select {
	case e := <-waitForEvent(blocksSub):
		if e.Name != "newblock" {
			t.Fatalf("expected newblock, got %s", e.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the blocks subscriber to receive the event")
	}

	select {
	case e, ok := <-peek(txSub):
		if ok {
			t.Fatalf("transactions subscriber should not have received %v", e)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesQueue(t *testing.T) {
	hub := events.NewHub()
	sub := hub.Subscribe([]string{"general"})
	hub.Unsubscribe(sub)

	if _, ok := sub.Read(); ok {
		t.Fatal("expected Read to report closed after Unsubscribe")
	}
}

func waitForEvent(s *events.Subscriber) chan events.Event {
	ch := make(chan events.Event, 1)
	go func() {
		if e, ok := s.Read(); ok {
			ch <- e
		}
	}()
	return ch
}

func peek(s *events.Subscriber) chan events.Event {
	ch := make(chan events.Event)
	go func() {
		if e, ok := s.Read(); ok {
			ch <- e
		}
	}()
	return ch
}
