package websocket

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"storyland-backend/internal/middleware"
	"storyland-backend/internal/observability"
	"storyland-backend/internal/tracking"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub streams feed snapshots to connected dashboards. Each connection
// gets its own feed observer; a slow dashboard misses intermediate
// snapshots instead of holding the feed back.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*websocket.Conn]struct{}
	feed    *tracking.Feed
	jwt     *middleware.JWTAuth
	metrics *observability.Metrics
}

func NewHub(feed *tracking.Feed, jwt *middleware.JWTAuth, metrics *observability.Metrics) *Hub {
	return &Hub{
		conns:   make(map[*websocket.Conn]struct{}),
		feed:    feed,
		jwt:     jwt,
		metrics: metrics,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param; browsers cannot set headers
	// on WebSocket upgrades.
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	adminID, err := h.jwt.VerifyToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.register(conn)
	log.Printf("WebSocket connected: admin %s (total: %d)", adminID, h.count())

	snapshots, stopWatch := h.feed.Watch()

	// Writer pump: push every snapshot this connection keeps up with.
	go func() {
		for snap := range snapshots {
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	}()

	// Reader: the dashboard never sends anything meaningful, so this
	// only detects disconnects.
	go func() {
		defer func() {
			stopWatch()
			h.unregister(conn)
			log.Printf("WebSocket disconnected: admin %s", adminID)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSConnections.Set(float64(h.count()))
	}
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Set(float64(h.count()))
	}
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll tears down every connection, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[*websocket.Conn]struct{})
}
