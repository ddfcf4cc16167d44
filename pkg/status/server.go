package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aicoder/pkg/logx"
)

// DefaultRoute is the read-only status endpoint path.
const DefaultRoute = "/task/status"

// Server exposes the current task status over HTTP. Start and Stop are
// idempotent so the server can be treated as a scoped resource around one
// orchestration run.
type Server struct {
	store  *Store
	host   string
	port   int
	route  string
	logger *logx.Logger

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
}

// NewServer creates a status server for the given store.
func NewServer(store *Store, host string, port int) *Server {
	return &Server{
		store:  store,
		host:   host,
		port:   port,
		route:  DefaultRoute,
		logger: logx.NewLogger("status-server"),
	}
}

// Start begins serving in a background goroutine. Starting an already
// running server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.route, s.handleStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	httpSrv := s.httpSrv
	go func() {
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("Status server stopped: %v", serveErr)
		}
	}()
	s.logger.Info("Status server listening on %s", addr)
	return nil
}

// Stop shuts the server down. Stopping a server that was never started is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv == nil {
		return nil
	}
	err := s.httpSrv.Shutdown(ctx)
	s.httpSrv = nil
	s.listener = nil
	return err
}

// Addr returns the bound address, or empty when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snapshot := s.store.Snapshot()
	if snapshot == nil {
		idle := map[string]any{
			"status":     "idle",
			"task_id":    nil,
			"message":    "No task is currently running.",
			"is_running": false,
		}
		if err := json.NewEncoder(w).Encode(idle); err != nil {
			s.logger.Error("Failed to encode idle payload: %v", err)
		}
		return
	}
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.Error("Failed to encode status snapshot: %v", err)
	}
}
