package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/madara-alliance/orchestrator-go/internal/common"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
)

// Server is the read-only status RPC surface over the job store (spec.md
// §6): it never enqueues work, only reports job state for operators and
// dashboards.
type Server struct {
	store  jobstore.Store
	logger *common.Logger
	server *http.Server
}

// NewServer constructs a Server bound to host:port, serving reads from store.
func NewServer(host string, port int, store jobstore.Store, logger *common.Logger) *Server {
	s := &Server{store: store, logger: logger}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      applyMiddleware(mux, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	mux.HandleFunc("/jobs", s.handleJobList)
}

// Start runs the server until it is shut down. It returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("starting status api server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
