package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-battle or per-player labels,
// to keep the series count independent of how many battles run).
var (
	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "battle_turn_duration_seconds",
		Help:    "Time spent executing one RunTurn call",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	dispatchDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "battle_dispatch_depth",
		Help:    "Deepest event dispatcher nesting reached by a battle, observed once per turn",
		Buckets: []float64{1, 2, 4, 8, 16, 32},
	})

	activeBattles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "battle_active_total",
		Help: "Current number of battles held by the manager",
	})

	fxlangRuntimeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fxlang_runtime_errors_total",
		Help: "EffectRuntimeError occurrences logged as internalerror events",
	})

	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "battle_event_log_total",
		Help: "Total log lines emitted across all battles",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "battle_event_log_dropped_total",
		Help: "Log lines dropped because a battle's LogSink was full",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be "127.0.0.1:6060" in production
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer starts the internal observability server. It binds to
// localhost only, unless ALLOW_DEBUG_EXTERNAL is set.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("debug server forced to localhost")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	go func() {
		log.Printf("debug server starting on %s", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("debug server error: %v", err)
		}
	}()

	return nil
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordTurn records one RunTurn call's wall-clock duration.
func RecordTurn(d time.Duration) { turnDuration.Observe(d.Seconds()) }

// RecordDispatchDepth records one dispatch-depth observation; the manager
// calls it once per turn with the battle's high-water depth.
func RecordDispatchDepth(depth int) { dispatchDepth.Observe(float64(depth)) }

// UpdateActiveBattles sets the active-battle gauge.
func UpdateActiveBattles(count int) { activeBattles.Set(float64(count)) }

// RecordFxlangRuntimeError increments the EffectRuntimeError counter.
func RecordFxlangRuntimeError() { fxlangRuntimeErrors.Inc() }

// RecordEventLogged increments the log-line counter, or the dropped
// counter when the sink was full.
func RecordEventLogged(dropped bool) {
	if dropped {
		eventLogDropped.Inc()
		return
	}
	eventLogTotal.Inc()
}

// RecordConnectionRejected increments the rejection counter.
// reason must be one of: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit".
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates the WebSocket connection gauge.
func UpdateWSConnections(count int) { wsConnectionsActive.Set(float64(count)) }

// IncrementWSMessages increments the WebSocket message counter.
func IncrementWSMessages() { wsMessagesTotal.Inc() }
