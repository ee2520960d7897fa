package signaling

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/peerlounge/peerlounge/internal/metrics"
)

var (
	errClientClosed  = errors.New("client closed")
	errSendQueueFull = errors.New("send queue full")
)

// client wraps one WebSocket connection with a buffered outbound queue. All
// writes to the socket happen on the writePump goroutine; Send only enqueues
// and never blocks, so matchmaking and relay paths cannot stall on a slow
// reader.
type client struct {
	id   string
	conn *websocket.Conn

	send   chan []byte
	closed chan struct{}
	once   sync.Once

	pingInterval time.Duration
	log          *slog.Logger
	metrics      *metrics.Metrics
}

func newClient(conn *websocket.Conn, queueSize int, pingInterval time.Duration, logger *slog.Logger, m *metrics.Metrics) *client {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &client{
		id:           uuid.NewString(),
		conn:         conn,
		send:         make(chan []byte, queueSize),
		closed:       make(chan struct{}),
		pingInterval: pingInterval,
		log:          logger,
		metrics:      m,
	}
}

func (c *client) ID() string {
	return c.id
}

// Send enqueues an already encoded frame for delivery. A full queue drops the
// frame rather than blocking the caller.
func (c *client) Send(data []byte) error {
	select {
	case <-c.closed:
		return errClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.closed:
		return errClientClosed
	default:
		c.metrics.Inc(metrics.SendQueueOverflow)
		c.log.Warn("send queue full, dropping frame", "connection_id", c.id)
		return errSendQueueFull
	}
}

// close stops the write pump and closes the socket. Safe to call more than
// once.
func (c *client) close() {
	c.once.Do(func() {
		close(c.closed)
	})
}

// writePump drains the send queue and emits keepalive pings. It owns all
// writes to the underlying connection and closes it on exit.
func (c *client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			// Flush anything already queued before tearing down.
			for {
				select {
				case data := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}
