package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/metrics"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/protocol"
)

const (
	// writeWait is the maximum time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// maxMessageSize is the maximum inbound message size in bytes.
	maxMessageSize = 64 * 1024
	// sendBufferSize is the number of outbound frames a client may lag behind
	// before it is evicted.
	sendBufferSize = 256
	// pendingRequests is the number of inbound requests queued behind the one
	// being handled before new ones are rejected.
	pendingRequests = 16
)

// transport is the subset of *websocket.Conn a Client needs.
type transport interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dispatcher handles one inbound text frame from c.
type Dispatcher interface {
	Dispatch(ctx context.Context, c *Client, raw []byte)
}

// Client represents a single WebSocket connection. Its channel memberships
// live in the Hub.
type Client struct {
	ID         string
	RemoteAddr string

	conn      transport
	send      chan []byte
	pong      chan struct{}
	limiter   *rate.Limiter
	closeOnce sync.Once
}

// NewClient wraps conn. Inbound frames beyond messagesPerSecond are rejected;
// zero or less disables the limit.
func NewClient(conn transport, remoteAddr string, messagesPerSecond float64) *Client {
	limit := rate.Inf
	burst := 0
	if messagesPerSecond > 0 {
		limit = rate.Limit(messagesPerSecond)
		burst = max(int(messagesPerSecond), 1)
	}
	return &Client{
		ID:         uuid.New().String(),
		RemoteAddr: remoteAddr,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		pong:       make(chan struct{}, 1),
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// enqueue must only be called with the hub mutex held, which guarantees send
// is still open.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *Client) notifyPong() {
	select {
	case c.pong <- struct{}{}:
	default:
	}
}

// probe sends a ping control frame and waits up to timeout for the pong.
func (c *Client) probe(ctx context.Context, timeout time.Duration) error {
	select {
	case <-c.pong:
	default:
	}

	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.pong:
		return nil
	case <-timer.C:
		return ErrHeartbeatTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadPump reads frames from the connection and hands each one to d on a
// separate goroutine, in arrival order. The read loop never waits on a
// request, so pongs are processed while storage work is in flight. ReadPump
// returns once the connection fails or is closed, after removing c from hub.
func (c *Client) ReadPump(ctx context.Context, hub *Hub, d Dispatcher) {
	ctx, cancel := context.WithCancel(ctx)
	requests := make(chan []byte, pendingRequests)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for raw := range requests {
			if ctx.Err() != nil {
				continue
			}
			d.Dispatch(ctx, c, raw)
		}
	}()

	defer func() {
		hub.Remove(c)
		c.Close()
		cancel()
		close(requests)
		<-dispatched
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.notifyPong()
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("ws: client %s read error: %v", c.ID, err)
			}
			return
		}

		if !c.limiter.Allow() {
			metrics.RateLimited.Inc()
			hub.SendTo(c, protocol.Error("rate limit exceeded")) //nolint:errcheck // eviction is the only failure
			continue
		}

		select {
		case requests <- msg:
		default:
			metrics.RateLimited.Inc()
			hub.SendTo(c, protocol.Error("too many pending requests")) //nolint:errcheck // eviction is the only failure
		}
	}
}

// WritePump drains the send queue onto the connection. It returns when the
// hub closes the queue or a write fails.
func (c *Client) WritePump() {
	defer c.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("ws: client %s write error: %v", c.ID, err)
			return
		}
	}

	// Hub closed the channel.
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
