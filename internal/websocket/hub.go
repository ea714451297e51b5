package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/shadda-scores/internal/domain"
)

// Message types
const (
	MessageTypeRoundSubmitted     = string(domain.EventRoundSubmitted)
	MessageTypeFateetAnnouncement = string(domain.EventFateetAnnouncement)
	MessageTypeGameCompleted      = string(domain.EventGameCompleted)
	MessageTypeGameRepaired       = string(domain.EventGameRepaired)
	MessageTypeSubscribe          = "subscribe"
	MessageTypeSubscribed         = "subscribed"
	MessageTypeUnsubscribe        = "unsubscribe"
	MessageTypeUnsubscribed       = "unsubscribed"
	MessageTypeSync               = "sync"
	MessageTypeState              = "state"
	MessageTypePing               = "ping"
	MessageTypePong               = "pong"
	MessageTypeError              = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	GameID    string      `json:"game_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Announcement is the payload clients speak aloud
type Announcement struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// RoundUpdate is the payload of round and completion messages
type RoundUpdate struct {
	RoundNumber int               `json:"round_number"`
	FateetID    string            `json:"fateet_game_player_id,omitempty"`
	Totals      []domain.Standing `json:"totals"`
}

// Hub maintains the set of active clients and pushes game updates to the
// clients subscribed to each game.
type Hub struct {
	// Registered clients by game ID
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu sync.RWMutex

	lang   string
	state  StateFunc
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// StateFunc loads the view of a game a client gets when it joins or asks
// to resynchronize
type StateFunc func(ctx context.Context, gameID string) (interface{}, error)

type subscriptionRequest struct {
	client *Client
	gameID string
}

// NewHub creates a new Hub. lang tags announcements for the client's
// speech synthesizer.
func NewHub(lang string, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		lang:        lang,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for gameID, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, gameID)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.gameID]; !ok {
				h.clients[req.gameID] = make(map[*Client]bool)
			}
			h.clients[req.gameID][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "game_id", req.gameID)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.gameID]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.gameID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "game_id", req.gameID)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// SetStateFunc makes subscriptions check the game exists and carry its
// current state
func (h *Hub) SetStateFunc(f StateFunc) {
	h.state = f
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to the clients subscribed to its game
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	for client := range h.clients[message.GameID] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "game_id", message.GameID, "type", message.Type)
	}
}

// Announce pushes a line for the clients of a game to speak. Delivery is
// best effort.
func (h *Hub) Announce(gameID, text string) {
	h.enqueue(&Message{
		Type:      MessageTypeFateetAnnouncement,
		GameID:    gameID,
		Data:      Announcement{Text: text, Lang: h.lang},
		Timestamp: time.Now(),
	})
}

// Publish pushes round and completion events to subscribed clients.
// Announcements reach clients through Announce, so announcement events are
// not repeated here.
func (h *Hub) Publish(_ context.Context, event domain.GameEvent) error {
	if event.Type == domain.EventFateetAnnouncement {
		return nil
	}
	h.enqueue(&Message{
		Type:   string(event.Type),
		GameID: event.GameID,
		Data: RoundUpdate{
			RoundNumber: event.RoundNumber,
			FateetID:    event.FateetID,
			Totals:      event.Totals,
		},
		Timestamp: event.Timestamp,
	})
	return nil
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a game subscription
func (h *Hub) Subscribe(client *Client, gameID string) {
	h.subscribe <- &subscriptionRequest{
		client: client,
		gameID: gameID,
	}
}

// Unsubscribe removes a client from a game subscription
func (h *Hub) Unsubscribe(client *Client, gameID string) {
	h.unsubscribe <- &subscriptionRequest{
		client: client,
		gameID: gameID,
	}
}

// GetSubscriberCount returns the number of subscribers of a game
func (h *Hub) GetSubscriberCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[gameID])
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
