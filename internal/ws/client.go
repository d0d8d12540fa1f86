package ws

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"relay/internal/config"
	"relay/internal/domain"
	"relay/pkg/logger"
)

// Client is one authenticated connection. Its identity is fixed at creation.
type Client struct {
	ID       string
	UserID   string
	UserName string

	conn *websocket.Conn
	send chan []byte
	cfg  config.RealtimeConfig
	log  logger.Logger

	mu          sync.RWMutex
	closed      bool
	cleanupOnce sync.Once
}

// NewClient binds user to conn. conn may be nil in tests; such a client only
// buffers outbound frames.
func NewClient(conn *websocket.Conn, user *domain.User, cfg config.RealtimeConfig, log logger.Logger) *Client {
	id := uuid.NewString()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		ID:       id,
		UserID:   user.ID,
		UserName: user.DisplayName(),
		conn:     conn,
		send:     make(chan []byte, cfg.SendBuffer),
		cfg:      cfg,
		log:      log.With("conn_id", id, "user_id", user.ID),
	}
}

// Send queues one frame without blocking. A client whose buffer is full is
// too slow to keep up and gets disconnected.
func (c *Client) Send(frame []byte) bool {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return false
	}
	select {
	case c.send <- frame:
		c.mu.RUnlock()
		return true
	default:
	}
	c.mu.RUnlock()

	c.log.Warn("Send buffer full, dropping connection")
	c.Close()
	return false
}

// Close stops outbound delivery. The write pump then sends a close frame and
// tears down the socket, which ends the read pump.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// cleanup runs fn at most once per connection.
func (c *Client) cleanup(fn func()) {
	c.cleanupOnce.Do(fn)
}

func (c *Client) readPump(handle func([]byte)) {
	defer func() {
		c.Close()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("Error closing connection in readPump", "error", err)
		}
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.log.Warn("Failed to set read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		handle(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("Error closing connection in writePump", "error", err)
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Warn("Failed to write frame", "error", err)
				}
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Frame exceeded maximum size", "limit", c.cfg.MaxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.log.Debug("Client disconnected", "reason", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Debug("Connection closed", "reason", err)
	default:
		c.log.Warn("Unexpected websocket read error", "error", err)
	}
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "broken pipe")
}
