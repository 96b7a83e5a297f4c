package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"nifty-paper/internal/models"
)

const (
	wsReconnectDelay = 2 * time.Second
	wsReadTimeout    = 90 * time.Second
	wsWriteTimeout   = 10 * time.Second
)

// WSMessage is a push from the server.
type WSMessage struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// WS is a WebSocket client that maintains a connection to the tick stream,
// reconnecting with a fixed backoff and resubscribing to all channels after
// each reconnect.
type WS struct {
	url    string
	token  string
	logger zerolog.Logger

	mu            sync.RWMutex
	conn          *websocket.Conn
	subscriptions map[string]bool
	connected     bool

	ticks    chan models.Tick
	messages chan WSMessage
	done     chan struct{}
	once     sync.Once
}

// NewWS creates a WebSocket client for the given ws:// URL. The token is
// optional; without it user rooms are not delivered.
func NewWS(url, token string, logger zerolog.Logger) *WS {
	return &WS{
		url:           url,
		token:         token,
		logger:        logger.With().Str("component", "ws_client").Logger(),
		subscriptions: make(map[string]bool),
		ticks:         make(chan models.Tick, 256),
		messages:      make(chan WSMessage, 256),
		done:          make(chan struct{}),
	}
}

// Ticks returns the channel of price updates for subscribed symbols.
func (c *WS) Ticks() <-chan models.Tick {
	return c.ticks
}

// Messages returns the channel of non-tick pushes (pnl and leaderboard
// updates).
func (c *WS) Messages() <-chan WSMessage {
	return c.messages
}

// Start connects and keeps the connection alive until ctx is cancelled or
// Close is called. It returns after the first connection attempt is made;
// reconnection happens in the background.
func (c *WS) Start(ctx context.Context) {
	go c.run(ctx)
}

// Close shuts the client down.
func (c *WS) Close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
}

// Subscribe adds channel subscriptions, sending them to the server if
// connected. Subscriptions survive reconnects.
func (c *WS) Subscribe(channels ...string) {
	c.mu.Lock()
	for _, ch := range channels {
		c.subscriptions[ch] = true
	}
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if connected {
		c.send(conn, "subscribe", channels)
	}
}

// Unsubscribe removes channel subscriptions.
func (c *WS) Unsubscribe(channels ...string) {
	c.mu.Lock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if connected {
		c.send(conn, "unsubscribe", channels)
	}
}

// Connected reports whether the client currently holds a live connection.
func (c *WS) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *WS) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		if err := c.connectAndRead(ctx); err != nil {
			c.logger.Warn().Err(err).Dur("retry_in", wsReconnectDelay).Msg("connection lost, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-time.After(wsReconnectDelay):
		}
	}
}

func (c *WS) connectAndRead(ctx context.Context) error {
	url := c.url
	if c.token != "" {
		url += "?token=" + c.token
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	channels := make([]string, 0, len(c.subscriptions))
	for ch := range c.subscriptions {
		channels = append(channels, ch)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.connected = false
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	c.logger.Info().Str("url", c.url).Int("channels", len(channels)).Msg("connected")

	if len(channels) > 0 {
		if err := c.send(conn, "subscribe", channels); err != nil {
			return err
		}
	}

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		c.dispatch(payload)
	}
}

func (c *WS) dispatch(payload []byte) {
	var msg WSMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Debug().Err(err).Msg("invalid message")
		return
	}

	if msg.Type == "price_update" {
		var tick models.Tick
		if err := json.Unmarshal(msg.Data, &tick); err != nil {
			c.logger.Debug().Err(err).Msg("invalid tick payload")
			return
		}
		select {
		case c.ticks <- tick:
		default:
			// Drop on backpressure rather than stall the read loop.
		}
		return
	}

	select {
	case c.messages <- msg:
	default:
	}
}

func (c *WS) send(conn *websocket.Conn, op string, channels []string) error {
	if conn == nil {
		return nil
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(map[string]interface{}{
		"op":       op,
		"channels": channels,
	})
}
