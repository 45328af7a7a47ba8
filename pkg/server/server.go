// Package server exposes interview sessions over HTTP: the interview and
// observer websockets, read-only REST views of the analysis store, health and
// metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/interview/pkg/logging"
	"github.com/harunnryd/interview/pkg/metrics"
	"github.com/harunnryd/interview/pkg/session"
	"github.com/harunnryd/interview/pkg/store"
)

type Config struct {
	Addr            string
	AllowAnyOrigin  bool
	AllowedOrigins  []string
	MaxMessageBytes int64
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	// DrainGrace is how long Drain waits for sessions to end on their own
	// before closing them.
	DrainGrace  time.Duration
	MetricsPath string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 1 << 20
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// SessionFactory builds the controller for a new interview connection.
type SessionFactory func(id string, sink session.Sink) *session.Controller

type Deps struct {
	Store      *store.Store
	Sessions   *session.Registry
	NewSession SessionFactory
	// Metrics is mounted at Config.MetricsPath when set.
	Metrics  http.Handler
	Observer metrics.Observer
	Logger   *slog.Logger
}

type Server struct {
	cfg      Config
	deps     Deps
	log      *slog.Logger
	upgrader websocket.Upgrader
	http     *http.Server
	listener net.Listener
}

func New(cfg Config, deps Deps) *Server {
	cfg = cfg.withDefaults()
	if deps.Observer == nil {
		deps.Observer = metrics.NoopObserver{}
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  logging.NewComponentLogger(deps.Logger, "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	return s
}

// Handler returns the routing table. Interview sockets without an id get a
// generated one.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/interview", s.handleInterview)
	mux.HandleFunc("GET /ws/interview/{id}", s.handleInterview)
	mux.HandleFunc("GET /ws/observe/{id}", s.handleObserve)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSession)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.deps.Metrics != nil {
		mux.Handle("GET "+s.cfg.MetricsPath, s.deps.Metrics)
	}
	return mux
}

// Start binds the listener and serves in the background until Drain is
// called. ctx only bounds the bind.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http_server_error", "error", err.Error())
		}
	}()
	s.log.Info("http_server_listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Drain refuses new interviews, gives running ones DrainGrace to finish and
// then closes whatever is left.
func (s *Server) Drain() error {
	s.deps.Sessions.SetDraining(true)
	s.log.Info("drain_started", "active_sessions", s.deps.Sessions.Count())
	if s.cfg.DrainGrace > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainGrace)
		s.deps.Sessions.WaitForEmpty(ctx, 200*time.Millisecond)
		cancel()
	}
	s.deps.Sessions.CloseAll()
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range s.cfg.AllowedOrigins {
		a := strings.TrimSpace(allowed)
		if a == "" {
			continue
		}
		a = strings.TrimRight(a, "/")
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
