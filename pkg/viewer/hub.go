package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/boristopalov/gridhunt/pkg/messaging"
)

// SubscriberID is the broker ID the hub listens under
const SubscriberID = "viewer"

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
	sendBuffer   = 64
)

// Hub relays step events from the broker to websocket clients and keeps the
// latest one for late joiners and the /state endpoint.
type Hub struct {
	broker   messaging.Broker
	inbox    chan messaging.Message
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  *messaging.StepEvent
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub. broker may be nil when events are fed through
// Broadcast directly.
func NewHub(broker messaging.Broker) *Hub {
	return &Hub{
		broker: broker,
		inbox:  make(chan messaging.Message, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // viewers are served from anywhere
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// Run subscribes to the broker and forwards events until ctx is done
func (h *Hub) Run(ctx context.Context) error {
	if h.broker == nil {
		return errors.New("hub has no broker")
	}
	if err := h.broker.Subscribe(SubscriberID, h.inbox); err != nil {
		return err
	}
	defer func() {
		if err := h.broker.Unsubscribe(SubscriberID); err != nil {
			log.Printf("Warning: Failed to unsubscribe viewer: %v", err)
		}
		h.closeClients()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-h.inbox:
			event, ok := msg.Content.(messaging.StepEvent)
			if !ok {
				continue
			}
			h.Broadcast(event)
		}
	}
}

// Broadcast stores event as the latest state and sends it to every client.
// Clients that cannot keep up are dropped.
func (h *Hub) Broadcast(event messaging.StepEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to encode step event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = &event
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("Viewer client %s is too slow, disconnecting", c.conn.RemoteAddr())
			delete(h.clients, c)
			c.close()
		}
	}
}

// Latest returns the most recent event seen by the hub
func (h *Hub) Latest() (messaging.StepEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil {
		return messaging.StepEvent{}, false
	}
	return *h.latest, true
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams step events as JSON text frames
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.latest != nil {
		if data, err := json.Marshal(h.latest); err == nil {
			c.send <- data
		}
	}
	h.mu.Unlock()
	log.Printf("Viewer connected from %s", conn.RemoteAddr())

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Viewer write failed: %v", err)
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Viewer ping failed: %v", err)
				h.remove(c)
				return
			}
		}
	}
}

// readLoop discards client frames and notices disconnects
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
		log.Printf("Viewer %s disconnected", c.conn.RemoteAddr())
	}
}

func (h *Hub) closeClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// HealthCheck endpoint
func (h *Hub) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// State endpoint
func (h *Hub) State(w http.ResponseWriter, r *http.Request) {
	event, ok := h.Latest()
	if !ok {
		http.Error(w, "no episode has started yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(event)
}

// Handler routes /ws, /state and /healthz
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/state", h.State)
	mux.HandleFunc("/healthz", h.HealthCheck)
	return mux
}
