package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 256
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Frame types sent by clients.
const (
	FramePing        = "ping"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameRead        = "read"
)

// ClientFrame is one inbound message from a connected client.
type ClientFrame struct {
	Type           string `json:"type"`
	Channel        string `json:"channel,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	GroupID        string `json:"group_id,omitempty"`
}

// ServerFrame is a control reply. Pushed events are sent as raw envelopes.
type ServerFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Error   string `json:"error,omitempty"`
}

// per-minute budgets
type RateLimits struct {
	MaxPing      int
	MaxSubscribe int
	MaxRead      int
}

var DefaultRateLimits = RateLimits{
	MaxPing:      60,
	MaxSubscribe: 60,
	MaxRead:      120,
}

type frameLimiter struct {
	mu         sync.Mutex
	limits     RateLimits
	tokens     map[string]int
	lastRefill time.Time
}

func newFrameLimiter(limits RateLimits) *frameLimiter {
	l := &frameLimiter{limits: limits}
	l.refill(time.Now())
	return l
}

func (l *frameLimiter) refill(now time.Time) {
	l.tokens = map[string]int{
		FramePing:        l.limits.MaxPing,
		FrameSubscribe:   l.limits.MaxSubscribe,
		FrameUnsubscribe: l.limits.MaxSubscribe,
		FrameRead:        l.limits.MaxRead,
	}
	l.lastRefill = now
}

func (l *frameLimiter) Allow(frameType string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastRefill) >= time.Minute {
		l.refill(now)
	}
	if l.tokens[frameType] <= 0 {
		return false
	}
	l.tokens[frameType]--
	return true
}

// Client is one websocket connection of an authenticated user.
type Client struct {
	ID     string
	UserID string

	conn    *websocket.Conn
	send    chan []byte
	limiter *frameLimiter

	mu       sync.Mutex
	closed   bool
	channels map[string]bool
}

func NewClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		limiter:  newFrameLimiter(DefaultRateLimits),
		channels: make(map[string]bool),
	}
}

// SendMessage queues msg without blocking. It reports false when the buffer
// is full or the client is gone.
func (c *Client) SendMessage(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) sendFrame(f ServerFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.SendMessage(data)
}

func (c *Client) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

func (c *Client) IsSubscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[channel]
}

func (c *Client) track(channel string) {
	c.mu.Lock()
	c.channels[channel] = true
	c.mu.Unlock()
}

func (c *Client) untrack(channel string) {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads frames until the connection fails and hands each one to
// handle. It returns when the peer goes away.
func (c *Client) ReadPump(ctx context.Context, log *Logger, handle func(ctx context.Context, c *Client, f ClientFrame)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("unexpected close", c.UserID, c.ID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		raw = bytes.TrimSpace(bytes.Replace(raw, newline, space, -1))
		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendFrame(ServerFrame{Type: "error", Error: "malformed frame"})
			continue
		}
		switch frame.Type {
		case FramePing, FrameSubscribe, FrameUnsubscribe, FrameRead:
		default:
			c.sendFrame(ServerFrame{Type: "error", Error: "unknown frame type"})
			continue
		}
		if !c.limiter.Allow(frame.Type) {
			log.Warn("frame rate limited", c.UserID, c.ID)
			c.sendFrame(ServerFrame{Type: "error", Error: "rate limited"})
			continue
		}
		handle(ctx, c, frame)
	}
}

// WritePump drains the send buffer onto the connection and keeps it alive
// with pings. Queued messages are batched into one write, newline separated.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				_, _ = w.Write(newline)
				_, _ = w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
