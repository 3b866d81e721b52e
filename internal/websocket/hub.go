package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/netpulse/internal/logging"
)

const (
	writeTimeout  = 10 * time.Second
	pingInterval  = 54 * time.Second
	clientSendCap = 256
)

// Client is one connected observer. Hub owns its lifecycle; Server owns
// the *websocket.Conn it wraps (accepted during the HTTP upgrade).
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out telemetry messages to every connected observer,
// following the register/unregister/broadcast channel pattern of a
// connection manager: a single goroutine processes registrations and
// broadcasts, and clientsMu guards the clients set (the broadcast path
// takes only its read lock, to copy the current client list).
//
// Invariants:
//   - clients is only mutated inside Run's select loop and by Close,
//     always under clientsMu
//   - ctx and cancel are never nil after New
//   - Close may be called more than once; only the first has effect
type Hub struct {
	clients    map[*Client]struct{}
	clientsMu  sync.RWMutex
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	log logging.Logger
}

// New returns a Hub bound to parent's lifetime. Call Run in its own
// goroutine to start processing registrations and broadcasts.
func New(parent context.Context, log logging.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 32),
		unregister: make(chan *Client, 32),
		broadcast:  make(chan []byte, 256),
		ctx:        ctx,
		cancel:     cancel,
		log:        log.WithComponent("websocket"),
	}
}

// Run processes registrations, unregistrations, and broadcasts until
// ctx is cancelled or Close is called. Run blocks; call it in its own
// goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.clientsMu.Unlock()
			h.log.Debug(h.ctx, "client registered", "total_clients", n)

		case c := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.clientsMu.Unlock()
			h.log.Debug(h.ctx, "client unregistered", "total_clients", n)

		case msg := <-h.broadcast:
			h.clientsMu.RLock()
			targets := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				targets = append(targets, c)
			}
			h.clientsMu.RUnlock()

			for _, c := range targets {
				select {
				case c.send <- msg:
				default:
					// Slow consumer; drop it rather than block the hub.
					go func(c *Client) { h.unregister <- c }(c)
				}
			}

		case <-h.ctx.Done():
			return
		}
	}
}

// Register accepts conn into the broadcast set, queuing initial as the
// first message the client's write loop sends (the snapshot), and
// starts the per-client read/write pumps. It returns once the client
// has disconnected.
func (h *Hub) Register(conn *websocket.Conn, initial any) {
	c := &Client{conn: conn, send: make(chan []byte, clientSendCap)}

	if initial != nil {
		data, err := json.Marshal(initial)
		if err != nil {
			h.log.Error(h.ctx, err, "marshal snapshot failed")
		} else {
			c.send <- data
		}
	}

	select {
	case h.register <- c:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "server shutting down")
		return
	}

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop only watches for the client closing the connection; NetPulse
// observers don't send application messages, so anything read is
// discarded aside from resetting the idle deadline.
func (h *Hub) readLoop(c *Client) {
	defer func() { h.unregister <- c }()

	for {
		ctx, cancel := context.WithTimeout(h.ctx, pingInterval+writeTimeout)
		_, _, err := c.conn.Read(ctx)
		cancel()
		if err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer func() {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-h.ctx.Done():
			return
		}
	}
}

// Broadcast marshals msg and queues it for delivery to every connected
// client. Non-blocking: if the broadcast channel is full the message is
// dropped rather than stalling the scheduler goroutine that called it.
func (h *Hub) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error(h.ctx, err, "marshal broadcast message failed")
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.log.Warn(h.ctx, nil, "broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Close stops Run and disconnects every client. Safe to call more than
// once; only the first call has effect.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.cancel()

		h.clientsMu.Lock()
		for c := range h.clients {
			close(c.send)
			_ = c.conn.Close(websocket.StatusNormalClosure, "server shutdown")
		}
		h.clients = make(map[*Client]struct{})
		h.clientsMu.Unlock()
	})
}
