package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, roomID uint) *Client {
	return &Client{
		Hub:    hub,
		Send:   make(chan []byte, 4),
		UserID: 1,
		RoomID: roomID,
	}
}

func TestBroadcastReachesOnlySubscribedRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	inRoom := newTestClient(hub, 1)
	otherRoom := newTestClient(hub, 2)
	hub.Register <- inRoom
	hub.Register <- otherRoom

	// Registration goes through the run loop; give it a beat.
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToRoom(1, []byte("hello"))

	select {
	case payload := <-inRoom.Send:
		assert.Equal(t, "hello", string(payload))
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive broadcast")
	}

	select {
	case payload := <-otherRoom.Send:
		t.Fatalf("client in other room received %q", payload)
	default:
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, 1)
	hub.Register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Unregister <- client
	time.Sleep(10 * time.Millisecond)

	_, open := <-client.Send
	require.False(t, open)

	// Broadcasting to the now-empty room must not panic or block.
	hub.BroadcastToRoom(1, []byte("nobody home"))
}

func TestSlowConsumerIsDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{Hub: hub, Send: make(chan []byte), UserID: 1, RoomID: 1}
	hub.Register <- slow
	time.Sleep(10 * time.Millisecond)

	// Nobody reads slow.Send, so the broadcast falls through to the drop path.
	hub.BroadcastToRoom(1, []byte("first"))

	_, open := <-slow.Send
	assert.False(t, open)
}

func TestConcurrentBroadcastsWithStalledConsumer(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	live := newTestClient(hub, 1)
	stalled := &Client{Hub: hub, Send: make(chan []byte), UserID: 2, RoomID: 1}
	hub.Register <- live
	hub.Register <- stalled
	time.Sleep(10 * time.Millisecond)

	go func() {
		for range live.Send {
		}
	}()

	// Handlers broadcast from their own request goroutines; hammering the
	// hub from many of them at once must never send on the stalled
	// client's channel after it has been closed.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				hub.BroadcastToRoom(1, []byte("update"))
			}
		}()
	}
	wg.Wait()

	_, open := <-stalled.Send
	assert.False(t, open)
}
