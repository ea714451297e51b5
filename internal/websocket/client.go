package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// stateTimeout bounds the game lookup behind subscribe and sync
	stateTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// table-side tablets connect from whatever host serves the UI
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one table display or phone following games over a WebSocket
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	// games this client follows; only touched by the read loop
	games map[string]bool
}

// ClientMessage is a request from a client
type ClientMessage struct {
	Type   string `json:"type"`
	GameID string `json:"game_id,omitempty"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger.With("client_id", id),
		games:  make(map[string]bool),
	}
}

// readPump reads client requests until the connection drops
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(MessageTypeError, "", errorData("invalid message format"))
			continue
		}

		switch msg.Type {
		case MessageTypeSubscribe:
			c.join(msg.GameID)
		case MessageTypeSync:
			c.sync(msg.GameID)
		case MessageTypeUnsubscribe:
			c.leave(msg.GameID)
		case MessageTypePing:
			c.reply(MessageTypePong, "", nil)
		default:
			c.logger.Debug("unknown message type", "type", msg.Type)
		}
	}
}

// join subscribes to a game and answers with its current state, so a
// display that connects mid-game can render the table at once
func (c *Client) join(gameID string) {
	if gameID == "" {
		c.reply(MessageTypeError, "", errorData("game_id required for subscribe"))
		return
	}
	state, ok := c.loadState(gameID)
	if !ok {
		return
	}
	if !c.games[gameID] {
		c.games[gameID] = true
		c.hub.Subscribe(c, gameID)
	}
	c.reply(MessageTypeSubscribed, gameID, state)
}

// sync re-sends the state of a followed game, typically after the client
// missed updates while its buffer was full
func (c *Client) sync(gameID string) {
	if !c.games[gameID] {
		c.reply(MessageTypeError, gameID, errorData("not subscribed to game"))
		return
	}
	if state, ok := c.loadState(gameID); ok {
		c.reply(MessageTypeState, gameID, state)
	}
}

func (c *Client) leave(gameID string) {
	if !c.games[gameID] {
		return
	}
	delete(c.games, gameID)
	c.hub.Unsubscribe(c, gameID)
	c.reply(MessageTypeUnsubscribed, gameID, nil)
}

// loadState asks the hub's state source for a game. Without a source every
// game id is accepted.
func (c *Client) loadState(gameID string) (interface{}, bool) {
	if c.hub.state == nil {
		return map[string]string{"status": "ok"}, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
	defer cancel()
	state, err := c.hub.state(ctx, gameID)
	if err != nil {
		c.logger.Debug("game state unavailable", "game_id", gameID, "error", err)
		c.reply(MessageTypeError, gameID, errorData(err.Error()))
		return nil, false
	}
	return state, true
}

// writePump writes queued messages, one frame each, and keeps the
// connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errorData(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// reply queues a direct answer to this client, dropped if it cannot keep up
func (c *Client) reply(msgType, gameID string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		GameID:    gameID,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		c.logger.Error("failed to marshal message", "error", err)
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("client buffer full, dropping reply", "type", msgType)
	}
}

// ServeWs upgrades a request and starts the client's pumps
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)

	go client.writePump()
	go client.readPump()

	client.logger.Debug("new websocket connection")
}
