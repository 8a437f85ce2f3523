package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Conn is the part of *websocket.Conn the client uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// inbound is one received message, already parsed. A parse failure travels
// through the queue too, so its error reply keeps its place in line.
// dropped counts frames discarded while this was the newest queued message;
// their notices follow its reply. Guarded by Client.mu.
type inbound struct {
	env     Envelope
	err     error
	dropped int
	handled bool
}

// Client is one connection. A single worker goroutine handles its events,
// so replies leave in the order the events arrived.
type Client struct {
	id         uuid.UUID
	hub        *Hub
	conn       Conn
	dispatcher *Dispatcher
	logger     *slog.Logger

	queue chan *inbound
	mu    sync.Mutex
	// tail is the newest message still waiting in queue.
	tail *inbound
	// send is never closed; writers select on done instead.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn Conn, dispatcher *Dispatcher, queueSize int, logger *slog.Logger) *Client {
	if queueSize <= 0 {
		queueSize = 16
	}
	id := uuid.New()
	return &Client{
		id:         id,
		hub:        hub,
		conn:       conn,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("connection_id", id.String())),
		queue:      make(chan *inbound, queueSize),
		send:       make(chan []byte, queueSize),
		done:       make(chan struct{}),
	}
}

func (c *Client) ID() uuid.UUID {
	return c.id
}

// Emit queues an event for this connection. After the connection closed it
// is a no-op.
func (c *Client) Emit(eventType EventType, data interface{}) {
	message, err := json.Marshal(Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		c.logger.Error("failed to marshal event", "event", eventType, slog.Any("error", err))
		return
	}

	if c.isClosed() {
		return
	}

	select {
	case <-c.done:
	case c.send <- message:
	}
}

// ReadPump reads until the connection fails, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		msg := &inbound{}
		if err := json.Unmarshal(data, &msg.env); err != nil {
			msg.err = err
		}

		if msg.err == nil && msg.env.Event == EventFrame {
			c.offer(msg)
			continue
		}

		select {
		case c.queue <- msg:
		case <-c.done:
			return
		}
		c.mu.Lock()
		if !msg.handled {
			c.tail = msg
		}
		c.mu.Unlock()
	}
}

// offer queues a frame without waiting. When the queue is full the frame is
// dropped and a notice is owed after the newest queued message.
func (c *Client) offer(msg *inbound) {
	c.mu.Lock()
	select {
	case c.queue <- msg:
		c.tail = msg
		c.mu.Unlock()
		return
	default:
	}

	owner := c.tail
	if owner != nil {
		owner.dropped++
	}
	c.mu.Unlock()

	c.logger.Debug("frame dropped, queue full")
	if owner == nil {
		c.emitDropped(1)
	}
}

func (c *Client) emitDropped(n int) {
	for i := 0; i < n; i++ {
		c.Emit(EventRecognitionError, ErrorPayload{
			Code:    "frame_dropped",
			Message: "frame dropped, connection is busy",
		})
	}
}

// WritePump writes queued events until the connection closes.
func (c *Client) WritePump() {
	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			if c.isClosed() {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}
		}
	}
}

// Work handles queued events one at a time. Calls in flight when the
// connection closes run to completion; their replies are dropped by Emit.
func (c *Client) Work(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.queue:
			c.handle(ctx, msg)

			c.mu.Lock()
			msg.handled = true
			dropped := msg.dropped
			if c.tail == msg {
				c.tail = nil
			}
			c.mu.Unlock()
			c.emitDropped(dropped)
		}
	}
}

// handle runs one event. A panic is contained to this connection.
func (c *Client) handle(ctx context.Context, msg *inbound) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while handling event",
				slog.Any("panic", r),
				slog.String("event", string(msg.env.Event)),
			)
			c.Emit(EventError, ErrorPayload{Code: "internal_error", Message: "An unexpected error occurred"})
		}
	}()

	if msg.err != nil {
		c.Emit(EventError, ErrorPayload{Code: "malformed_message", Message: "message must be a JSON object with event and data"})
		return
	}
	c.dispatcher.Dispatch(ctx, c, msg.env)
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
