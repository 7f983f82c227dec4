package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"battlecore/internal/datastore"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with a WebSocket hub for spectator streaming.
type Server struct {
	manager     *BattleManager
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
}

// NewServer creates a new API server with default production configuration,
// backed by the given read-only DataStore.
//
// IMPORTANT: The WebSocket hub and log broadcast loop do NOT start until
// Start() is called, and no network listener is opened before then. The
// rate limiter's cleanup goroutine starts here; Stop() ends it.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(data datastore.DataStore) *Server {
	manager := NewBattleManager(data)

	s := &Server{
		manager: manager,
		wsHub:   NewWebSocketHub(),
	}
	s.rateLimiter = NewIPRateLimiter(DefaultRateLimitConfig)

	s.router = NewRouter(RouterConfig{
		Manager:     manager,
		RateLimiter: s.rateLimiter,
	})
	s.setupWebSocketRoutes()

	return s
}

// setupWebSocketRoutes adds the spectator WebSocket route to the router.
// It needs access to the wsHub instance, so it can't be part of the
// generic NewRouter factory.
func (s *Server) setupWebSocketRoutes() {
	s.router.Get("/ws", s.handleWS)
}

// Start begins the HTTP server AND starts background workers.
// This is the ONLY method that opens a network listener.
//
// Call this method only once. To stop the server, signal the process.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartLogBroadcastLoop(s.manager)

	log.Printf("api server starting on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Router returns the HTTP handler for use with httptest.
//
// Example:
//
//	server := api.NewServer(dataStore)
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/battles/b1/log")
func (s *Server) Router() http.Handler {
	return s.router
}

// Manager returns the server's battle manager, for hosts that need to
// create battles outside of the HTTP surface.
func (s *Server) Manager() *BattleManager {
	return s.manager
}

// Stop performs graceful shutdown of background workers.
// Call this before process exit to ensure clean cleanup.
func (s *Server) Stop() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}
