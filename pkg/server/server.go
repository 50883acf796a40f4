// Package server implements the Janus server engine: lifecycle,
// datagram dispatch loop, handler registry, built-in requests, the
// event/stats surface, and client-activity bookkeeping.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/jowharshamshiri/janus/pkg/jsonrpc"
	"github.com/jowharshamshiri/janus/pkg/manifest"
	"github.com/jowharshamshiri/janus/pkg/security"
	"github.com/jowharshamshiri/janus/pkg/transport"
	"github.com/jowharshamshiri/janus/pkg/wire"
)

// Config mirrors spec.md §6's enumerated server configuration.
type Config struct {
	SocketPath            string
	Name                  string
	Version               string
	DefaultTimeout        time.Duration
	MaxMessageSize        int
	CleanupOnStart        bool
	CleanupOnShutdown     bool
	MaxConcurrentHandlers int
	// ClientInactivityTimeout is the maxInactiveMs passed to the periodic
	// cleanupInactiveClients sweep.
	ClientInactivityTimeout time.Duration
	// CleanupInterval is how often the periodic sweep runs. Zero disables it.
	CleanupInterval time.Duration
	MetricsNamespace string
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "janus-server"
	}
	if c.Version == "" {
		c.Version = "0.0.0"
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = transport.MaxDatagramSize
	}
	if c.MaxConcurrentHandlers == 0 {
		c.MaxConcurrentHandlers = 100
	}
	if c.ClientInactivityTimeout == 0 {
		c.ClientInactivityTimeout = 5 * time.Minute
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = "janus"
	}
}

// Stats is the snapshot returned by getServerStats() / Stats().
type Stats struct {
	Listening      bool   `json:"listening"`
	ActiveHandlers int    `json:"activeHandlers"`
	TotalClients   int    `json:"totalClients"`
	TotalHandlers  int    `json:"totalHandlers"`
	SocketPath     string `json:"socketPath"`
}

// Server is the Janus server engine.
type Server struct {
	cfg       Config
	log       zerolog.Logger
	validator *security.Validator

	handlers *handlerRegistry
	bus      *eventBus
	metrics  *serverMetrics
	registry *prometheus.Registry

	manifestMu sync.RWMutex
	manifest   *manifest.Manifest

	machine *fsm.FSM
	sock    *transport.ServerSocket

	activeHandlers int32
	sem            chan struct{}

	clientsMu sync.Mutex
	clients   map[string]*wire.ClientActivity

	shutdownInProgress atomic.Bool
	cron               *cron.Cron
	dispatchDone       chan struct{}
}

// New constructs a Server, eagerly validating its socket path.
func New(cfg Config, log zerolog.Logger) (*Server, error) {
	cfg.applyDefaults()
	v := security.NewValidator(security.DefaultConfig())
	if f := v.ValidateSocketPath(cfg.SocketPath); f != nil {
		return nil, f
	}

	s := &Server{
		cfg:          cfg,
		log:          log,
		validator:    v,
		handlers:     newHandlerRegistry(),
		bus:          newEventBus(),
		metrics:      newServerMetrics(cfg.MetricsNamespace),
		registry:     prometheus.NewRegistry(),
		clients:      map[string]*wire.ClientActivity{},
		sem:          make(chan struct{}, cfg.MaxConcurrentHandlers),
		dispatchDone: make(chan struct{}),
	}
	s.metrics.Register(s.registry)

	s.machine = fsm.NewFSM(
		"created",
		fsm.Events{
			{Name: "listen", Src: []string{"created"}, Dst: "listening"},
			{Name: "drain", Src: []string{"listening"}, Dst: "draining"},
			{Name: "finishClose", Src: []string{"draining"}, Dst: "closed"},
		},
		fsm.Callbacks{},
	)
	return s, nil
}

// MetricsRegistry exposes the Prometheus registry for an optional
// /metrics HTTP endpoint, additive to the Unix socket.
func (s *Server) MetricsRegistry() *prometheus.Registry { return s.registry }

// SetManifest validates and installs the Manifest the "manifest"
// built-in will serve.
func (s *Server) SetManifest(m *manifest.Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.manifestMu.Lock()
	defer s.manifestMu.Unlock()
	s.manifest = m
	return nil
}

// RegisterRequestHandler registers fn for name, validated by C1. The
// six built-in names are reserved and cannot be overridden.
func (s *Server) RegisterRequestHandler(name string, fn RequestHandler) error {
	if f := s.validator.ValidateName(name, "request"); f != nil {
		return f
	}
	if manifest.ReservedRequestNames[name] {
		return jsonrpc.New(jsonrpc.ValidationFailed, fmt.Sprintf("%q is a reserved built-in request name", name))
	}
	s.handlers.Register(name, fn)
	return nil
}

// UnregisterRequestHandler removes the handler for name, if present.
func (s *Server) UnregisterRequestHandler(name string) {
	s.handlers.Unregister(name)
}

// GetAllHandlers returns the names of every user-registered handler
// (built-ins are not included; they are always present).
func (s *Server) GetAllHandlers() []string {
	return s.handlers.Names()
}

// On subscribes fn to topic; see EventTopic for the available topics.
func (s *Server) On(topic EventTopic, fn Subscriber) {
	s.bus.On(topic, fn)
}

// Stats returns the current getServerStats() snapshot.
func (s *Server) Stats() Stats {
	s.clientsMu.Lock()
	totalClients := len(s.clients)
	s.clientsMu.Unlock()
	return Stats{
		Listening:      s.machine.Current() == "listening",
		ActiveHandlers: int(atomic.LoadInt32(&s.activeHandlers)),
		TotalClients:   totalClients,
		TotalHandlers:  s.handlers.Count(),
		SocketPath:     s.cfg.SocketPath,
	}
}

// Listen binds the socket, starts the dispatch loop, and transitions
// created -> listening.
func (s *Server) Listen() error {
	if err := s.machine.Event(context.Background(), "listen"); err != nil {
		return fmt.Errorf("server lifecycle: %w", err)
	}
	sock, err := transport.BindServer(s.cfg.SocketPath, s.cfg.CleanupOnStart)
	if err != nil {
		return err
	}
	s.sock = sock

	if s.cfg.CleanupInterval > 0 {
		s.cron = cron.New()
		interval := s.cfg.CleanupInterval
		_, _ = s.cron.AddFunc(fmt.Sprintf("@every %s", interval.String()), func() {
			evicted := s.CleanupInactiveClients(s.cfg.ClientInactivityTimeout)
			if evicted > 0 {
				s.log.Debug().Int("evicted", evicted).Msg("cleaned up inactive clients")
			}
		})
		s.cron.Start()
	}

	s.log.Info().Str("socket", s.cfg.SocketPath).Msg("listening")
	s.bus.Emit(EventListening, nil)

	go s.dispatchLoop()
	return nil
}

// Close transitions listening -> draining -> closed: stops accepting
// new work, waits (up to a fixed grace period) for in-flight handlers
// to finish, then closes and optionally unlinks the socket.
func (s *Server) Close() error {
	if s.machine.Current() != "listening" {
		return fmt.Errorf("server is not listening")
	}
	if err := s.machine.Event(context.Background(), "drain"); err != nil {
		return fmt.Errorf("server lifecycle: %w", err)
	}
	s.shutdownInProgress.Store(true)

	deadline := time.Now().Add(30 * time.Second)
	for atomic.LoadInt32(&s.activeHandlers) > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if s.cron != nil {
		s.cron.Stop()
	}
	err := s.sock.Close(s.cfg.CleanupOnShutdown)
	if ferr := s.machine.Event(context.Background(), "finishClose"); ferr != nil {
		s.log.Warn().Err(ferr).Msg("lifecycle transition to closed failed")
	}
	s.log.Info().Msg("closed")
	return err
}

// CleanupInactiveClients evicts ClientActivity entries whose
// LastActivity is older than maxInactive, returning the eviction count.
func (s *Server) CleanupInactiveClients(maxInactive time.Duration) int {
	cutoff := time.Now().Add(-maxInactive)
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	evicted := 0
	for addr, activity := range s.clients {
		if activity.LastActivity.Before(cutoff) {
			delete(s.clients, addr)
			evicted++
		}
	}
	s.metrics.activeClients.Set(float64(len(s.clients)))
	return evicted
}

func (s *Server) dispatchLoop() {
	defer close(s.dispatchDone)
	for {
		raw, err := s.sock.Receive()
		if err != nil {
			if s.shutdownInProgress.Load() {
				return
			}
			s.bus.Emit(EventError, err)
			s.log.Warn().Err(err).Msg("receive failed")
			continue
		}
		if s.shutdownInProgress.Load() {
			continue
		}
		s.handleDatagram(raw)
	}
}

func (s *Server) handleDatagram(raw []byte) {
	if len(raw) > s.cfg.MaxMessageSize {
		s.bus.Emit(EventError, fmt.Errorf("datagram of %d bytes exceeds max message size %d", len(raw), s.cfg.MaxMessageSize))
		return
	}

	var req wire.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.bus.Emit(EventError, fmt.Errorf("parse request: %w", err))
		return
	}

	addr := wire.ClientAddressOf(&req)
	s.touchClient(addr)
	s.bus.Emit(EventClientActivity, ClientActivityEvent{Address: addr, When: time.Now().UnixNano()})

	if f := s.validator.ValidateRequest(security.RequestShape{
		ID: req.ID, Request: req.Request, Timeout: req.Timeout, Timestamp: req.Timestamp, ReplyTo: req.ReplyTo,
	}); f != nil {
		s.replyError(&req, addr, jsonrpc.New(jsonrpc.InvalidRequest, f.Error()))
		s.bus.Emit(EventError, f)
		return
	}

	s.bus.Emit(EventRequest, RequestEvent{Request: &req, ClientAddr: addr})
	s.metrics.totalRequests.Inc()

	select {
	case s.sem <- struct{}{}:
	default:
		s.replyError(&req, addr, jsonrpc.New(jsonrpc.ResourceLimitExceeded, "maxConcurrentHandlers exceeded"))
		s.metrics.rejectedOverCap.Inc()
		return
	}

	atomic.AddInt32(&s.activeHandlers, 1)
	s.metrics.activeHandlers.Set(float64(atomic.LoadInt32(&s.activeHandlers)))
	go s.executeTimed(&req, addr)
}

func (s *Server) executeTimed(req *wire.Request, addr string) {
	defer func() {
		<-s.sem
		atomic.AddInt32(&s.activeHandlers, -1)
		s.metrics.activeHandlers.Set(float64(atomic.LoadInt32(&s.activeHandlers)))
	}()

	timeout := s.cfg.DefaultTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout * float64(time.Second))
	}

	handler, ok := s.handlers.Lookup(req.Request)
	if !ok {
		if b := s.builtinHandler(req.Request); b != nil {
			handler, ok = b, true
		}
	}
	if !ok {
		s.replyError(req, addr, methodNotFoundError(req.Request))
		return
	}

	type result struct {
		value interface{}
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		v, err := handler(req.Args)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			s.replyError(req, addr, jsonrpc.FromGoError(r.err))
			return
		}
		s.replySuccess(req, addr, r.value)
	case <-time.After(timeout):
		s.replyError(req, addr, jsonrpc.New(jsonrpc.HandlerTimeout, fmt.Sprintf("handler for %q exceeded its %s timeout", req.Request, timeout)))
		// The handler goroutine may still complete later; its result is
		// discarded because `done` is buffered and nothing reads it again.
	}
}

func (s *Server) replySuccess(req *wire.Request, addr string, value interface{}) {
	resp := &wire.Response{
		RequestID: req.ID,
		ID:        newResponseID(),
		Success:   true,
		Result:    value,
		Timestamp: wire.Now(),
	}
	s.sendReply(req, resp, addr)
}

func (s *Server) replyError(req *wire.Request, addr string, err error) {
	resp := &wire.Response{
		RequestID: req.ID,
		ID:        newResponseID(),
		Success:   false,
		Error:     jsonrpc.FromGoError(err),
		Timestamp: wire.Now(),
	}
	s.metrics.totalErrors.Inc()
	s.sendReply(req, resp, addr)
}

func (s *Server) sendReply(req *wire.Request, resp *wire.Response, addr string) {
	if req.ReplyTo == "" {
		return
	}
	buf, err := json.Marshal(resp)
	if err != nil {
		s.bus.Emit(EventError, fmt.Errorf("encode response: %w", err))
		return
	}
	if err := transport.Send(req.ReplyTo, buf); err != nil {
		// The client may have already abandoned and unlinked its reply
		// socket (e.g. after its own timeout); this is logged, not fatal.
		s.log.Warn().Err(err).Str("reply_to", req.ReplyTo).Msg("failed to send reply")
		s.bus.Emit(EventError, err)
		return
	}
	s.bus.Emit(EventResponse, ResponseEvent{Response: resp, ClientAddr: addr})
}

func (s *Server) touchClient(addr string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	activity, ok := s.clients[addr]
	if !ok {
		activity = &wire.ClientActivity{Address: addr}
		s.clients[addr] = activity
	}
	activity.LastActivity = time.Now()
	activity.RequestCount++
	s.metrics.activeClients.Set(float64(len(s.clients)))
}

// newResponseID generates a fresh v4 UUID for a response object.
func newResponseID() string {
	return uuid.New().String()
}
