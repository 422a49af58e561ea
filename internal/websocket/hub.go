// Package websocket pushes ingested records and alerts to connected
// dashboard clients as they arrive, replacing polling.
package websocket

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// Hub maintains the set of active clients and broadcasts envelopes.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	log        zerolog.Logger
}

type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With().Str("component", "ws-hub").Logger(),
	}
}

// Run owns the client set until ctx is cancelled. All map access happens
// on this goroutine, so no lock is needed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug().Str("remote", client.conn.RemoteAddr().String()).Msg("client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client stalled; drop it rather than block the hub.
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastRecord pushes a freshly ingested record to all clients.
func (h *Hub) BroadcastRecord(record interface{}) {
	h.send(envelope{Type: "record", Payload: record})
}

// BroadcastAlert pushes a generated alert to all clients.
func (h *Hub) BroadcastAlert(alert interface{}) {
	h.send(envelope{Type: "alert", Payload: alert})
}

func (h *Hub) send(env envelope) {
	message, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Err(err).Msg("marshalling broadcast envelope")
		return
	}
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn().Msg("broadcast channel full, dropping message")
	}
}
