package websocket

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type userMessage struct {
	userID string
	data   []byte
}

// Hub maintains the set of active clients and routes messages to them by user.
type Hub struct {
	// Registered clients, grouped by the user they authenticated as.
	users map[string]map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Messages addressed to every client of one user.
	toUser chan userMessage

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		users:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		toUser:     make(chan userMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for _, clients := range h.users {
				for client := range clients {
					close(client.Send)
				}
			}
			h.users = make(map[string]map[*Client]bool)
			return
		case client := <-h.Register:
			if h.users[client.UserID] == nil {
				h.users[client.UserID] = make(map[*Client]bool)
			}
			h.users[client.UserID][client] = true
			log.Info().Str("user_id", client.UserID).Int("user_clients", len(h.users[client.UserID])).Msg("Client connected")
		case client := <-h.Unregister:
			h.remove(client)
		case msg := <-h.toUser:
			for client := range h.users[msg.userID] {
				select {
				case client.Send <- msg.data:
				default:
					// Slow consumer; drop it rather than stall every other user.
					h.remove(client)
				}
			}
		}
	}
}

// Stop ends Run and closes every client's send queue. Calling it again is a no-op.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Add registers a client. It reports false once the hub has stopped.
func (h *Hub) Add(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Remove unregisters a client; it is a no-op after Stop.
func (h *Hub) Remove(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// SendToUser queues message for every open connection of userID. It never blocks; when
// the hub is saturated the message is dropped.
func (h *Hub) SendToUser(userID string, message []byte) {
	select {
	case h.toUser <- userMessage{userID: userID, data: message}:
	default:
		log.Warn().Str("user_id", userID).Msg("Websocket hub queue full, dropping message")
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.users[client.UserID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.users, client.UserID)
	}
	log.Info().Str("user_id", client.UserID).Msg("Client disconnected")
}
