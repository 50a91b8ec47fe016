package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "127.0.0.1:7733",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the local API UI collaborators use to list, pin, remove and
// copy history entries
type Server struct {
	config       *Config
	history      History
	snapshots    interface{ Ping() error }
	logger       *zap.Logger
	server       *http.Server
	itemHandler  *ItemHandler
	debugHandler *DebugHandler
}

// New creates a new HTTP server
func New(cfg *Config, deps Deps, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config:    cfg,
		history:   deps.History,
		snapshots: deps.Snapshots,
		logger:    logger,
	}

	s.itemHandler = NewItemHandler(deps.History, deps.Copier, deps.Thumbnails, logger)
	s.debugHandler = NewDebugHandler(deps, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /items", s.itemHandler.HandleList)
	mux.HandleFunc("DELETE /items", s.itemHandler.HandleClear)
	mux.HandleFunc("GET /items/{id}", s.itemHandler.HandleGet)
	mux.HandleFunc("DELETE /items/{id}", s.itemHandler.HandleDelete)
	mux.HandleFunc("POST /items/{id}/pin", s.itemHandler.HandlePin)
	mux.HandleFunc("POST /items/{id}/copy", s.itemHandler.HandleCopy)
	mux.HandleFunc("GET /thumbnails/{id}", s.itemHandler.HandleThumbnail)

	mux.HandleFunc("GET /debug/stats", s.debugHandler.HandleStats)

	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      RecoverMiddleware(logger)(LoggingMiddleware(logger)(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler, for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.snapshots != nil {
		if err := s.snapshots.Ping(); err != nil {
			s.logger.Error("health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "snapshot database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"entries": s.history.Len(),
		"version": s.history.Version(),
		"time":    time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
