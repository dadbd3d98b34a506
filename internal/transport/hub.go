package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/haptic/internal/command"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// inbound is a frame read from a client.
type inbound struct {
	client *Client
	env    Envelope
}

// Hub maintains the set of connected clients and fans frames out to them.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	done       chan struct{}

	logger *slog.Logger

	// Counts readable from other goroutines.
	mu       sync.RWMutex
	total    int
	desktops int

	// onRelay observes every command relayed on behalf of a client.
	onRelay func(json.RawMessage)
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound, 64),
		done:       make(chan struct{}),
		logger:     logger.With("component", "transport.hub"),
	}
}

// OnRelay sets a callback for commands relayed from clients. It must be set
// before Run.
func (h *Hub) OnRelay(fn func(json.RawMessage)) {
	h.onRelay = fn
}

// Run is the hub's main loop. It returns when ctx is done, after closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for c := range h.clients {
			h.remove(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = true
			h.updateCounts()
			h.logger.Info("client connected", "client", c.id, "total", len(h.clients))

		case c := <-h.unregister:
			if h.clients[c] {
				h.remove(c)
				h.logger.Info("client disconnected", "client", c.id, "role", c.role, "total", len(h.clients))
				if c.role == RoleDesktop {
					h.fanout(mustEncode(EventDesktopDisconnected, nil))
				}
			}

		case msg := <-h.broadcast:
			h.fanout(msg)

		case in := <-h.inbound:
			h.handle(in)
		}
	}
}

func (h *Hub) handle(in inbound) {
	switch in.env.Event {
	case EventRegister:
		var role string
		if err := json.Unmarshal(in.env.Data, &role); err != nil {
			h.logger.Warn("bad register payload", "client", in.client.id, "error", err)
			return
		}
		in.client.role = role
		h.updateCounts()
		h.logger.Info("client registered", "client", in.client.id, "role", role)
		if role == RoleDesktop {
			h.fanout(mustEncode(EventDesktopConnected, nil))
		}

	case EventSendCommand:
		h.relay(in.env.Data)

	case EventGestureInterpreted:
		h.relay(commandPayload(in.env.Data))

	default:
		h.logger.Debug("ignoring event", "client", in.client.id, "event", in.env.Event)
	}
}

func (h *Hub) relay(data json.RawMessage) {
	if len(data) == 0 {
		return
	}
	msg, err := json.Marshal(Envelope{Event: EventMotionCommand, Data: data})
	if err != nil {
		return
	}
	h.fanout(msg)
	if h.onRelay != nil {
		h.onRelay(data)
	}
}

// fanout queues msg on every client, dropping clients whose queue is full.
// Dropping a desktop is announced to the clients that remain.
func (h *Hub) fanout(msg []byte) {
	lostDesktop := false
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.remove(c)
			h.logger.Warn("dropped slow client", "client", c.id, "role", c.role)
			if c.role == RoleDesktop {
				lostDesktop = true
			}
		}
	}
	if lostDesktop {
		h.fanout(mustEncode(EventDesktopDisconnected, nil))
	}
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.updateCounts()
}

func (h *Hub) updateCounts() {
	desktops := 0
	for c := range h.clients {
		if c.role == RoleDesktop {
			desktops++
		}
	}
	h.mu.Lock()
	h.total = len(h.clients)
	h.desktops = desktops
	h.mu.Unlock()
}

// Emit broadcasts an event to every client.
func (h *Hub) Emit(event string, data any) error {
	msg, err := Encode(event, data)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.Warn("broadcast queue full, dropping", "event", event)
	}
	return nil
}

// PublishCommand broadcasts cmd as motion_command.
func (h *Hub) PublishCommand(cmd *command.Command) error {
	return h.Emit(EventMotionCommand, cmd)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// DesktopCount returns the number of clients registered as desktop.
func (h *Hub) DesktopCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.desktops
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &Client{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	c.run()
}

func mustEncode(event string, data any) []byte {
	msg, err := Encode(event, data)
	if err != nil {
		panic(err)
	}
	return msg
}
