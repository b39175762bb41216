package services

import (
	"encoding/json"
	"sync"
	"time"

	"friendsAPI/internal/notification"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	clientSendBuffer = 16
)

type EventPublisher interface {
	Publish(userID uuid.UUID, event *notification.Event)
}

// EventHub fans live events out to every open connection of a user.
type EventHub struct {
	mu      sync.Mutex
	clients map[uuid.UUID]map[*EventClient]struct{}
	closed  bool
	logger  *zap.Logger
	now     func() time.Time
}

func NewEventHub(logger *zap.Logger) *EventHub {
	return &EventHub{
		clients: make(map[uuid.UUID]map[*EventClient]struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

// Register adds c and queues a "connected" event to it, so the peer knows
// it will receive everything published afterwards.
func (h *EventHub) Register(c *EventClient) bool {
	hello, err := json.Marshal(&notification.Event{Type: notification.TypeConnected, Timestamp: h.now()})
	if err != nil {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}

	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*EventClient]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	c.send <- hello
	return true
}

func (h *EventHub) Unregister(c *EventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked drops c and closes its send channel exactly once.
func (h *EventHub) removeLocked(c *EventClient) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// Publish sends event to userID's connections. A connection whose buffer is
// full is dropped rather than stalling the publisher.
func (h *EventHub) Publish(userID uuid.UUID, event *notification.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping slow event client", zap.String("user_id", userID.String()))
			h.removeLocked(c)
		}
	}
}

func (h *EventHub) ClientCount(userID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

// Close disconnects every client and refuses new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

// EventClient is the middleman between one websocket connection and the hub.
type EventClient struct {
	hub    *EventHub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
}

func NewEventClient(hub *EventHub, conn *websocket.Conn, userID uuid.UUID) *EventClient {
	return &EventClient{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, clientSendBuffer),
		userID: userID,
	}
}

// ReadPump only services control frames; the stream is one-way. It returns
// when the peer goes away.
func (c *EventClient) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("event stream read error", zap.String("user_id", c.userID.String()), zap.Error(err))
			}
			return
		}
	}
}

// WritePump handles messages going to the peer.
func (c *EventClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
