// Package mockserver is a development event server that plays the backend
// of the invoice dashboard over WebSocket.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grovetools/invoicedash/config"
	"github.com/grovetools/invoicedash/logging"
	"github.com/grovetools/invoicedash/pkg/models"
	"github.com/grovetools/invoicedash/pkg/realtime"
	"github.com/grovetools/invoicedash/pkg/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// RunningConfig is the active generator configuration, served at
// /api/config so clients can verify what is in effect.
type RunningConfig struct {
	InvoiceUpdateInterval time.Duration `json:"invoice_update_interval"`
	InvoiceCreateInterval time.Duration `json:"invoice_create_interval"`
	InvoiceCreateChance   float64       `json:"invoice_create_chance"`
	ActivityInterval      time.Duration `json:"activity_interval"`
	ActivityChance        float64       `json:"activity_chance"`
	SampleInvoiceCount    int           `json:"sample_invoice_count"`
	AllowedOrigins        []string      `json:"allowed_origins"`
	Clients               int           `json:"clients"`
	StartedAt             time.Time     `json:"started_at"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRand replaces the random source of the generators.
func WithRand(r Rand) Option {
	return func(s *Server) { s.rng = r }
}

// WithIDGenerator replaces the id source of generated records.
func WithIDGenerator(ids store.IDGenerator) Option {
	return func(s *Server) { s.ids = ids }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithAccessLog logs one line per HTTP request to logger.
func WithAccessLog(logger *logrus.Logger) Option {
	return func(s *Server) { s.accessLog = logger }
}

// WithMetrics shares a metrics set.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server accepts dashboard sockets and feeds each one simulated events.
type Server struct {
	logger    *logrus.Entry
	accessLog *logrus.Logger
	metrics   *Metrics
	rng       Rand
	ids       store.IDGenerator
	now       func() time.Time
	upgrader  websocket.Upgrader
	settings  atomic.Pointer[config.ServerConfig]

	mu      sync.RWMutex
	clients map[string]*conn

	httpServer *http.Server
	startedAt  time.Time
}

// New creates a server for cfg. Zero fields take the configuration
// defaults.
func New(cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		rng:       globalRand{},
		now:       time.Now,
		clients:   make(map[string]*conn),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("mock-server")
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.ids == nil {
		ids, err := store.NewSnowflakeIDs(2)
		if err != nil {
			s.ids = store.IDFunc(func() int64 { return time.Now().UnixMilli() })
		} else {
			s.ids = ids
		}
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.Reload(cfg)
	return s
}

// Reload swaps the generator settings. Running generators pick them up on
// their next tick.
func (s *Server) Reload(cfg config.ServerConfig) {
	full := &config.Config{Server: cfg}
	full.SetDefaults()
	next := full.Server
	clampServerConfig(&next)
	next.AllowedOrigins = slices.Clone(next.AllowedOrigins)
	s.settings.Store(&next)
}

// clampServerConfig replaces negative values that SetDefaults leaves alone.
func clampServerConfig(c *config.ServerConfig) {
	if c.InvoiceUpdateIntervalMs < 0 {
		c.InvoiceUpdateIntervalMs = config.DefaultInvoiceUpdateIntervalMs
	}
	if c.InvoiceCreateIntervalMs < 0 {
		c.InvoiceCreateIntervalMs = config.DefaultInvoiceCreateIntervalMs
	}
	if c.ActivityIntervalMs < 0 {
		c.ActivityIntervalMs = config.DefaultActivityIntervalMs
	}
	if c.SampleInvoiceCount <= 0 {
		c.SampleInvoiceCount = config.DefaultSampleInvoiceCount
	}
	c.InvoiceCreateChance = min(max(c.InvoiceCreateChance, 0), 1)
	c.ActivityChance = min(max(c.ActivityChance, 0), 1)
}

func (s *Server) config() config.ServerConfig {
	return *s.settings.Load()
}

// Metrics returns the server's metrics set.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the HTTP handler with every endpoint mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/config", s.handleGetConfig)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/socket", s.handleSocket)

	var h http.Handler = mux
	if s.accessLog != nil {
		h = accessLogMiddleware(s.accessLog, s.now)(h)
	}
	return h2c.NewHandler(h, &http2.Server{})
}

// ListenAndServe listens on the configured address and blocks until the
// server stops or fails.
func (s *Server) ListenAndServe() error {
	addr := s.config().Addr
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on l.
func (s *Server) Serve(l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"addr":    l.Addr().String(),
		"origins": s.config().AllowedOrigins,
	}).Info("Mock event server listening")

	err := srv.Serve(l)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and closes every open socket.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	s.mu.RLock()
	open := make([]*conn, 0, len(s.clients))
	for _, c := range s.clients {
		open = append(open, c)
	}
	s.mu.RUnlock()
	for _, c := range open {
		c.close()
	}
	return err
}

// ConnectedClients returns the number of open sockets.
func (s *Server) ConnectedClients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Notify sends a notification to every client.
func (s *Server) Notify(n models.Notification) {
	env, err := realtime.NewEnvelope(realtime.EventNotification, n, 0)
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode notification")
		return
	}
	s.broadcast(env, "")
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.config()
	running := RunningConfig{
		InvoiceUpdateInterval: cfg.InvoiceUpdateInterval(),
		InvoiceCreateInterval: cfg.InvoiceCreateInterval(),
		InvoiceCreateChance:   cfg.InvoiceCreateChance,
		ActivityInterval:      cfg.ActivityInterval(),
		ActivityChance:        cfg.ActivityChance,
		SampleInvoiceCount:    cfg.SampleInvoiceCount,
		AllowedOrigins:        cfg.AllowedOrigins,
		Clients:               s.ConnectedClients(),
		StartedAt:             s.startedAt,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(running)
}

// checkOrigin admits requests without an Origin header (non-browser
// clients), any origin when the allow-list is empty, and listed origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := s.config().AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	s.logger.WithField("origin", origin).Warn("Rejected socket from disallowed origin")
	return false
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.logger.WithError(err).Debug("Socket upgrade failed")
		return
	}

	c := newConn(uuid.NewString(), ws, s.metrics, s.logger)
	s.register(c)
	defer s.unregister(c)

	log := s.logger.WithField("client", c.id)
	log.Info("Client connected")

	go c.writePump()

	c.enqueue(s.envelope(realtime.EventNotification, models.Notification{
		Type:    "info",
		Message: "Connected to real-time server",
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c.done
		cancel()
	}()
	go s.runGenerators(ctx, c)

	c.readPump(func(env realtime.Envelope) { s.handleFrame(c, env) })
	log.Info("Client disconnected")
}

func (s *Server) register(c *conn) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.metrics.clients.Inc()
}

func (s *Server) unregister(c *conn) {
	c.close()
	s.mu.Lock()
	_, ok := s.clients[c.id]
	delete(s.clients, c.id)
	s.mu.Unlock()
	if ok {
		s.metrics.clients.Dec()
	}
}

// broadcast sends env to every client except the one with id except.
func (s *Server) broadcast(env realtime.Envelope, except string) {
	s.mu.RLock()
	targets := make([]*conn, 0, len(s.clients))
	for id, c := range s.clients {
		if id != except {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(env)
	}
}

// handleFrame answers a frame read from c.
func (s *Server) handleFrame(c *conn, env realtime.Envelope) {
	log := s.logger.WithFields(logrus.Fields{"client": c.id, "event": env.Event})

	switch env.Event {
	case realtime.EventCreateInvoice:
		var inv models.NewInvoice
		if err := env.Decode(&inv); err != nil {
			log.WithError(err).Warn("Rejected frame")
			c.enqueue(s.envelope(realtime.EventError, realtime.ErrorPayload{Message: err.Error()}))
			return
		}
		if inv.ID == 0 {
			inv.ID = s.ids.NextID()
		}
		if inv.CreatedAt.IsZero() {
			inv.CreatedAt = s.now().UTC()
		}
		if inv.Status == "" {
			inv.Status = models.StatusDraft
		}
		log.WithField("invoice_id", inv.ID).Info("Received new invoice from client")

		created := s.envelope(realtime.EventInvoiceCreated, inv)
		s.broadcast(created, c.id)
		c.enqueue(created)
		c.enqueue(s.envelope(realtime.EventNotification, models.Notification{
			Type:    "success",
			Message: fmt.Sprintf("Invoice #%s created successfully", inv.Number),
		}))
		s.ack(c, env, inv)

	case realtime.EventUpdateInvoice:
		var update models.InvoiceUpdate
		if err := env.Decode(&update); err != nil {
			log.WithError(err).Warn("Rejected frame")
			c.enqueue(s.envelope(realtime.EventError, realtime.ErrorPayload{Message: err.Error()}))
			return
		}
		if update.UpdatedAt.IsZero() {
			update.UpdatedAt = s.now().UTC()
		}
		log.WithFields(logrus.Fields{"invoice_id": update.ID, "status": update.Status}).Info("Received invoice update from client")

		s.broadcast(s.envelope(realtime.EventInvoiceUpdated, update), c.id)
		s.ack(c, env, map[string]string{"status": "ok"})

	default:
		log.Warn("Unknown event from client")
		c.enqueue(s.envelope(realtime.EventError, realtime.ErrorPayload{
			Message: fmt.Sprintf("unknown event %q", env.Event),
		}))
	}
}

func (s *Server) ack(c *conn, req realtime.Envelope, data interface{}) {
	if req.AckID == 0 {
		return
	}
	ack, err := req.Ack(data)
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode ack")
		return
	}
	c.enqueue(ack)
}

// envelope encodes a server-built payload; those always marshal.
func (s *Server) envelope(event string, data interface{}) realtime.Envelope {
	env, err := realtime.NewEnvelope(event, data, 0)
	if err != nil {
		s.logger.WithError(err).WithField("event", event).Error("Failed to encode frame")
	}
	return env
}
