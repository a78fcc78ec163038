package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/domain/interfaces"
	"github.com/tuncanbit/qrpay/pkg/config"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrClientInactive = errors.New("client is inactive")
	ErrSendBufferFull = errors.New("send channel full")
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// Client implements the WebSocketClient interface
type Client struct {
	id         string
	conn       *websocket.Conn
	send       chan *domain.Event
	done       chan struct{}
	closeOnce  sync.Once
	pingPeriod time.Duration
	logger     zerolog.Logger
}

// NewClient starts the read and write pumps for conn.
func NewClient(conn *websocket.Conn, cfg config.WebSocketConfig, logger zerolog.Logger) interfaces.WebSocketClient {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	ping := cfg.PingPeriod
	if ping <= 0 {
		ping = 54 * time.Second
	}

	client := &Client{
		id:         uuid.New().String(),
		conn:       conn,
		send:       make(chan *domain.Event, buffer),
		done:       make(chan struct{}),
		pingPeriod: ping,
	}
	client.logger = logger.With().Str("client_id", client.id).Logger()

	go client.writePump()
	go client.readPump()

	return client
}

func (c *Client) GetID() string {
	return c.id
}

// Send queues an event. A full buffer drops the event instead of blocking
// the publisher.
func (c *Client) Send(event *domain.Event) error {
	if !c.IsActive() {
		return ErrClientInactive
	}

	select {
	case c.send <- event:
		return nil
	case <-c.done:
		return ErrClientInactive
	default:
		c.logger.Warn().Str("event_type", string(event.Type)).Msg("WebSocket client send channel full, dropping event")
		return ErrSendBufferFull
	}
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

func (c *Client) IsActive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// HandleConnection blocks until the connection is closed.
func (c *Client) HandleConnection() {
	<-c.done
}

// readPump only drains control frames; UI clients talk to the REST endpoints.
func (c *Client) readPump() {
	defer c.Close()

	readWait := c.pingPeriod * 10 / 9
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("Unexpected WebSocket close error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(event)
			if err != nil {
				c.logger.Error().Err(err).Msg("Failed to marshal WebSocket event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
