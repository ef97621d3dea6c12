// Package api exposes the engine's diagnostics and signal feed over
// HTTP and WebSocket: health, Prometheus metrics, failure counters,
// the current session phase, recently admitted signals, and tracked
// trade plans. It adapts the trading-backend server's mux/gorilla-
// websocket/rs-cors stack to the order-flow engine's read-only
// diagnostics surface — there is no inbound order or backtest control
// plane here, only observation.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/diagnostics"
	"github.com/atlas-desktop/trading-backend/internal/feed"
	"github.com/atlas-desktop/trading-backend/internal/plans"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Config is the API server's transport configuration, kept separate
// from flowtypes.Config the same way the server's own settings are
// kept separate from the engine's domain configuration.
type Config struct {
	Addr          string
	WebSocketPath string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// DefaultConfig returns sane defaults for local/dev use.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8090",
		WebSocketPath: "/ws",
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  10 * time.Second,
	}
}

// SessionFunc reports the engine's current session phase.
type SessionFunc func() flowtypes.Phase

// client is one connected WebSocket subscriber.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Server is the HTTP/WebSocket diagnostics surface. It subscribes to a
// feed.Bus and fans every published event out to connected WebSocket
// clients in addition to serving point-in-time snapshot routes.
type Server struct {
	logger *zap.Logger
	cfg    Config

	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	counters *diagnostics.Counters
	metrics  *diagnostics.Metrics
	bus      *feed.Bus
	tracker  *plans.Tracker
	session  SessionFunc

	mu      sync.RWMutex
	clients map[string]*client

	busSubID string
	busCh    <-chan feed.Event

	recentMu        sync.RWMutex
	recentSignals   []flowtypes.Signal
	recentCap       int
}

// NewServer builds a Server wired to its collaborators. Start must be
// called to begin serving and forwarding bus events.
func NewServer(logger *zap.Logger, cfg Config, counters *diagnostics.Counters, metrics *diagnostics.Metrics, bus *feed.Bus, tracker *plans.Tracker, session SessionFunc) *Server {
	s := &Server{
		logger:    logger.Named("api"),
		cfg:       cfg,
		router:    mux.NewRouter(),
		counters:  counters,
		metrics:   metrics,
		bus:       bus,
		tracker:   tracker,
		session:   session,
		clients:   make(map[string]*client),
		recentCap: 200,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/counters", s.handleCounters).Methods(http.MethodGet)
	s.router.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	s.router.HandleFunc("/signals/recent", s.handleRecentSignals).Methods(http.MethodGet)
	s.router.HandleFunc("/plans", s.handlePlans).Methods(http.MethodGet)
	s.router.HandleFunc("/plans/{id}", s.handlePlan).Methods(http.MethodGet)
	s.router.HandleFunc(s.cfg.WebSocketPath, s.handleWebSocket)
}

// Start subscribes to the feed bus, launches the forwarding goroutine,
// and begins serving HTTP. It blocks until the server stops.
func (s *Server) Start() error {
	s.busSubID, s.busCh = s.bus.Subscribe(256)
	go s.forward()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info("starting diagnostics API", zap.String("addr", s.cfg.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down, closes all WebSocket clients,
// and unsubscribes from the feed bus.
func (s *Server) Stop(ctx context.Context) error {
	s.bus.Unsubscribe(s.busSubID)

	s.mu.Lock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// forward drains the bus subscription and mirrors every event to
// connected WebSocket clients; admitted signals are additionally kept
// in a bounded recent-signals ring for the /signals/recent route.
func (s *Server) forward() {
	for ev := range s.busCh {
		if ev.Kind == feed.KindSignal && ev.Signal != nil {
			s.recordRecentSignal(*ev.Signal)
		}
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		s.broadcast(data)
	}
}

func (s *Server) recordRecentSignal(sig flowtypes.Signal) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	s.recentSignals = append(s.recentSignals, sig)
	if len(s.recentSignals) > s.recentCap {
		s.recentSignals = s.recentSignals[len(s.recentSignals)-s.recentCap:]
	}
}

func (s *Server) broadcast(data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.counters.Snapshot())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]flowtypes.Phase{"phase": s.session()})
}

func (s *Server) handleRecentSignals(w http.ResponseWriter, r *http.Request) {
	s.recentMu.RLock()
	out := make([]flowtypes.Signal, len(s.recentSignals))
	copy(out, s.recentSignals)
	s.recentMu.RUnlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Recent(0))
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	plan, ok := s.tracker.Plan(id)
	if !ok {
		http.Error(w, "plan not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{id: uuid.New().String(), conn: conn, send: make(chan []byte, 256)}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	go s.readPump(c)
	go s.writePump(c)
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			reply, _ := json.Marshal(map[string]string{"type": "pong"})
			select {
			case c.send <- reply:
			default:
			}
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
