package streaming

import (
	"encoding/json"
	"testing"
	"time"
)

func testClient(h *Hub, buffer int, rooms ...string) *Client {
	c := &Client{
		hub:   h,
		send:  make(chan []byte, buffer),
		rooms: make(map[string]bool),
	}
	for _, room := range rooms {
		c.rooms[room] = true
	}
	return c
}

func TestDeliverFiltersByRoom(t *testing.T) {
	h := NewHub()
	member := testClient(h, 4, "game:g1")
	outsider := testClient(h, 4)
	h.clients[member] = true
	h.clients[outsider] = true

	h.deliver(Event{Type: EventTypeScore, Room: "game:g1", Timestamp: time.Now(), Data: "x"})

	select {
	case raw := <-member.send:
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if event.Type != EventTypeScore || event.Room != "game:g1" {
			t.Errorf("wrong event: %+v", event)
		}
	default:
		t.Fatal("room member received nothing")
	}

	select {
	case <-outsider.send:
		t.Fatal("client outside the room received the event")
	default:
	}
}

func TestDeliverDropsSlowConsumer(t *testing.T) {
	h := NewHub()
	fast := testClient(h, 4)
	slow := testClient(h, 0) // no buffer, nobody reading
	h.clients[fast] = true
	h.clients[slow] = true

	h.deliver(Event{Type: EventTypeStatus, Timestamp: time.Now(), Data: "x"})

	if got := h.ClientCount(); got != 1 {
		t.Fatalf("clients after delivery = %d, want 1", got)
	}
	if _, open := <-slow.send; open {
		t.Error("evicted client's send channel must be closed")
	}
	select {
	case <-fast.send:
	default:
		t.Error("healthy client must still receive the event")
	}
}

// Eviction mutates the client map, so delivery must be safe against
// concurrent readers. Run with -race.
func TestDeliverConcurrentWithClientCount(t *testing.T) {
	h := NewHub()
	for i := 0; i < 8; i++ {
		h.clients[testClient(h, 0)] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			h.ClientCount()
		}
	}()
	for i := 0; i < 200; i++ {
		h.deliver(Event{Type: EventTypeHeartbeat, Timestamp: time.Now(), Data: i})
	}
	<-done
}
