package websocket

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"

	"threadboard/internal/utils"

	"go.uber.org/zap"
)

const clientBuffer = 32

type Client struct {
	hub  *Hub
	conn ClientConn
	send chan []byte
	ID   string
}

type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

func generateClientID() string {
	bytes := make([]byte, 6)
	if _, err := rand.Read(bytes); err != nil {
		return "xxxxx"
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// Hub pushes board events to every connected client. A client that cannot
// keep up is disconnected rather than allowed to stall the others.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     <-chan utils.Event
	done       chan struct{}
	logger     *zap.SugaredLogger
}

func NewHub(logger *zap.Logger, eventBus *utils.EventBus) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		events:     eventBus.SubscribeCh(),
		done:       make(chan struct{}),
		logger:     logger.Sugar(),
	}
}

func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket Hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			h.logger.Info("WebSocket Hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Infow("Client connected",
				"client_id", client.ID,
				"clients_count", len(h.clients),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Infow("Client disconnected",
					"client_id", client.ID,
					"clients_count", len(h.clients),
				)
			}

		case event := <-h.events:
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Errorw("Failed to encode event", "event", event.Event, "error", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					h.logger.Warnw("Dropping slow client", "client_id", client.ID)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
}
