package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"battlecore/internal/battle"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed.
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP.
	MaxWSConnectionsPerIP = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		log.Printf("websocket connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// wsClient tracks a WebSocket connection with its source IP and which
// battle it is spectating.
type wsClient struct {
	conn     *websocket.Conn
	ip       string
	battleID string
}

// logEvent is what a spectator connection receives for each new log line.
type logEvent struct {
	BattleID string `json:"battleId"`
	Sequence uint64 `json:"sequence"`
	Text     string `json:"text"`
}

// WebSocketHub manages every spectator connection and periodically
// forwards each watched battle's new LogSink lines to its subscribers
// (spec.md §6: "the battle log is the wire format spectators consume").
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	wsLimiter *WebSocketRateLimiter
}

// NewWebSocketHub creates a new hub with connection limiting.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
	}
}

// Run starts the hub's event loop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			h.mu.Unlock()
			UpdateWSConnections(len(h.clients))

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				h.wsLimiter.Release(client.ip)
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
			UpdateWSConnections(len(h.clients))

		case message := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					h.mu.RUnlock()
					h.mu.Lock()
					if client, ok := h.clients[conn]; ok {
						h.wsLimiter.Release(client.ip)
						delete(h.clients, conn)
					}
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
			IncrementWSMessages()
		}
	}
}

// sendToBattle delivers a message only to clients spectating battleID.
func (h *WebSocketHub) sendToBattle(battleID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, client := range h.clients {
		if client.battleID != battleID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			conn.Close()
		}
	}
	IncrementWSMessages()
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartLogBroadcastLoop polls every battle's log sink and forwards any
// lines a spectator hasn't seen yet. cursor tracks the next unseen sequence
// number per battle.
func (h *WebSocketHub) StartLogBroadcastLoop(manager *BattleManager) {
	ticker := time.NewTicker(100 * time.Millisecond)
	cursor := map[string]uint64{}

	go func() {
		for range ticker.C {
			if h.ClientCount() == 0 {
				continue
			}
			manager.mu.RLock()
			ids := make([]string, 0, len(manager.battles))
			for id := range manager.battles {
				ids = append(ids, id)
			}
			manager.mu.RUnlock()

			for _, id := range ids {
				lines, err := manager.GetLog(id)
				if err != nil {
					continue
				}
				next := cursor[id]
				for _, line := range lines {
					if line.Sequence < next {
						continue
					}
					h.publishLogLine(id, line)
					cursor[id] = line.Sequence + 1
				}
			}
		}
	}()
}

func (h *WebSocketHub) publishLogLine(battleID string, line battle.LogLine) {
	payload, err := json.Marshal(logEvent{BattleID: battleID, Sequence: line.Sequence, Text: line.Text})
	if err != nil {
		return
	}
	h.sendToBattle(battleID, payload)
}

// HandleWebSocket upgrades a request to a spectator WebSocket connection
// for the battle identified by the "battleId" query parameter.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)
	battleID := r.URL.Query().Get("battleId")

	h.mu.RLock()
	total := len(h.clients)
	h.mu.RUnlock()
	if total >= MaxWSConnectionsTotal {
		log.Printf("websocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Printf("websocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}

	client := &wsClient{conn: conn, ip: ip, battleID: battleID}
	h.register <- client

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
