package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"nifty-paper/internal/auth"
	"nifty-paper/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsSendBuffer = 256
)

// PnLChannel is the user room for portfolio pushes on fills and marks.
const PnLChannel = "paper:pnl:update"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSRequest is a client-to-server control message.
type WSRequest struct {
	Op       string   `json:"op"`
	Channel  string   `json:"channel,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

// WSMessage is a server-to-client push.
type WSMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WSClient is a single WebSocket connection with its channel subscriptions.
type WSClient struct {
	hub    *WSHub
	conn   *websocket.Conn
	send   chan []byte
	id     string
	userID uuid.UUID

	subsMu        sync.RWMutex
	subscriptions map[string]bool
}

// WSHub fans messages out to connected WebSocket clients by channel.
type WSHub struct {
	clients    map[*WSClient]bool
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan wsEnvelope
	snapshot   chan snapshotRequest
	done       chan struct{}
	logger     zerolog.Logger
}

type snapshotRequest struct {
	channel string
	reply   chan []uuid.UUID
}

type wsEnvelope struct {
	channel string
	userID  uuid.UUID // zero means any user
	payload []byte
}

// NewWSHub creates a WebSocket hub. Call Run in a goroutine to start it.
func NewWSHub(logger zerolog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan wsEnvelope, 1024),
		snapshot:   make(chan snapshotRequest),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Run processes client registration and message fan-out until Stop is called.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug().Str("client", client.id).Int("clients", len(h.clients)).Msg("client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug().Str("client", client.id).Int("clients", len(h.clients)).Msg("client disconnected")
			}

		case env := <-h.broadcast:
			for client := range h.clients {
				if env.userID != uuid.Nil && client.userID != env.userID {
					continue
				}
				if !client.isSubscribed(env.channel) {
					continue
				}
				select {
				case client.send <- env.payload:
				default:
					// Slow consumer, drop the connection.
					delete(h.clients, client)
					close(client.send)
				}
			}

		case req := <-h.snapshot:
			seen := make(map[uuid.UUID]bool)
			var ids []uuid.UUID
			for client := range h.clients {
				if client.userID == uuid.Nil || seen[client.userID] {
					continue
				}
				if client.isSubscribed(req.channel) {
					seen[client.userID] = true
					ids = append(ids, client.userID)
				}
			}
			req.reply <- ids

		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

// SubscribedUsers returns the distinct authenticated users currently
// subscribed to channel.
func (h *WSHub) SubscribedUsers(channel string) []uuid.UUID {
	req := snapshotRequest{channel: channel, reply: make(chan []uuid.UUID, 1)}
	select {
	case h.snapshot <- req:
		return <-req.reply
	case <-h.done:
		return nil
	}
}

// Stop shuts down the hub and disconnects all clients.
func (h *WSHub) Stop() {
	close(h.done)
}

// BroadcastToChannel sends a message to every client subscribed to channel.
func (h *WSHub) BroadcastToChannel(channel, msgType string, data interface{}) {
	h.push(channel, uuid.Nil, msgType, data)
}

// BroadcastToUser sends a message only to the given user's connections that
// are subscribed to channel.
func (h *WSHub) BroadcastToUser(userID uuid.UUID, channel, msgType string, data interface{}) {
	h.push(channel, userID, msgType, data)
}

func (h *WSHub) push(channel string, userID uuid.UUID, msgType string, data interface{}) {
	payload, err := json.Marshal(WSMessage{Type: msgType, Channel: channel, Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("channel", channel).Msg("failed to marshal ws message")
		return
	}
	select {
	case h.broadcast <- wsEnvelope{channel: channel, userID: userID, payload: payload}:
	default:
		h.logger.Warn().Str("channel", channel).Msg("ws broadcast buffer full, dropping message")
	}
}

// Symbols implements the tick consumer interface; nil means all symbols.
func (h *WSHub) Symbols() []string { return nil }

// OnTick forwards simulator ticks to clients subscribed to the symbol room.
func (h *WSHub) OnTick(tick models.Tick) {
	h.BroadcastToChannel(tick.Symbol, "price_update", tick)
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[channel]
}

func (c *WSClient) subscribe(channels ...string) {
	c.subsMu.Lock()
	for _, ch := range channels {
		if ch != "" {
			c.subscriptions[ch] = true
		}
	}
	c.subsMu.Unlock()
}

func (c *WSClient) unsubscribe(channels ...string) {
	c.subsMu.Lock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
	c.subsMu.Unlock()
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Str("client", c.id).Msg("read error")
			}
			return
		}

		var req WSRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.hub.logger.Debug().Str("client", c.id).Msg("invalid ws message")
			continue
		}

		switch req.Op {
		case "subscribe":
			c.subscribe(req.Channel)
			c.subscribe(req.Channels...)
		case "unsubscribe":
			c.unsubscribe(req.Channel)
			c.unsubscribe(req.Channels...)
		case "ping":
			if payload, err := json.Marshal(WSMessage{Type: "pong"}); err == nil {
				select {
				case c.send <- payload:
				default:
				}
			}
		default:
			c.hub.logger.Debug().Str("op", req.Op).Str("client", c.id).Msg("unknown ws op")
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket upgrades the connection and starts the client pumps. An
// optional token query parameter authenticates the connection so user rooms
// such as paper:pnl:update can be delivered.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("ws upgrade failed")
		return nil
	}

	var userID uuid.UUID
	if token := c.QueryParam("token"); token != "" {
		if claims, err := s.auth.VerifyToken(token); err == nil {
			userID = claims.UserID
		}
	} else if claims, ok := c.Get(contextClaims).(*auth.Claims); ok {
		userID = claims.UserID
	}

	client := &WSClient{
		hub:           s.wsHub,
		conn:          conn,
		send:          make(chan []byte, wsSendBuffer),
		id:            conn.RemoteAddr().String(),
		userID:        userID,
		subscriptions: make(map[string]bool),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
	return nil
}
