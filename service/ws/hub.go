package ws

import "github.com/gorilla/websocket"

// Client is one open socket subscribed to a single chat room.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
	RoomID uint
}

type broadcast struct {
	roomID  uint
	payload []byte
}

// Hub fans chat events out to sockets subscribed by room id. It only pushes
// notifications; message persistence stays with the chat handlers, and the
// polling GET endpoint remains the fallback for clients without a socket.
//
// The rooms map is owned by the Run goroutine. Register, Unregister and
// broadcasts all funnel through it, so a subscriber can never be dropped and
// closed while another broadcast still holds a reference to its Send channel.
type Hub struct {
	rooms map[uint]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
	broadcasts chan broadcast
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uint]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcasts: make(chan broadcast),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			if h.rooms[client.RoomID] == nil {
				h.rooms[client.RoomID] = make(map[*Client]bool)
			}
			h.rooms[client.RoomID][client] = true

		case client := <-h.Unregister:
			h.drop(client)

		case b := <-h.broadcasts:
			for client := range h.rooms[b.roomID] {
				select {
				case client.Send <- b.payload:
				default:
					// Slow consumers are dropped rather than allowed
					// to block the broadcast.
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	subscribers, ok := h.rooms[client.RoomID]
	if !ok || !subscribers[client] {
		return
	}
	delete(subscribers, client)
	close(client.Send)
	if len(subscribers) == 0 {
		delete(h.rooms, client.RoomID)
	}
}

// BroadcastToRoom delivers payload to every socket subscribed to the room.
// Delivery happens on the hub's Run goroutine; callers never block on a
// subscriber.
func (h *Hub) BroadcastToRoom(roomID uint, payload []byte) {
	h.broadcasts <- broadcast{roomID: roomID, payload: payload}
}
