package service

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/merklekit/merklekit/pkg/persistence"
)

/*
Service exposes the merkle tree core over HTTP.

Endpoints:
  POST /trees
    - Request: { algorithm?, blocks: [base64, ...] }
    - Builds a tree, persists it, returns { tree_id, root, leaf_count, algorithm }

  GET /trees
    - Returns the IDs of all persisted trees

  GET /trees/{id}
    - Returns { tree_id, root, leaf_count, algorithm }

  DELETE /trees/{id}
    - Removes the tree and any cached proofs

  GET /trees/{id}/proof?index=N
    - Generates (or returns a cached) inclusion proof for leaf N

  POST /verify
    - Request: { proof, trusted_root? }
    - Verifies a proof record against the trusted root (defaults to the
      root embedded in the record). Verification needs no access to the
      originating tree.

  GET /healthz
    - Store health check

Trees are immutable once created: there is no update endpoint by design.
Reflecting new data means building a new tree.
*/

// Config holds service configuration
type Config struct {
	Port             int
	DefaultAlgorithm string

	// RequestsPerSecond caps tree creation; 0 disables limiting
	RequestsPerSecond float64
}

// Service handles HTTP requests for tree building, proof generation and
// proof verification.
type Service struct {
	store            persistence.ITreeStore
	logger           *zap.Logger
	defaultAlgorithm string
	limiter          *rate.Limiter
	mux              *http.ServeMux
	httpServer       *http.Server
}

// NewService creates a new service instance
func NewService(cfg Config, store persistence.ITreeStore, logger *zap.Logger) *Service {
	s := &Service{
		store:            store,
		logger:           logger,
		defaultAlgorithm: cfg.DefaultAlgorithm,
	}

	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/trees", s.handleTrees)
	mux.HandleFunc("/trees/", s.handleTreeByID)
	mux.HandleFunc("/verify", s.handleVerify)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.mux = mux

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	return s
}

// Handler returns the service's HTTP handler, for testing and embedding.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server in a background goroutine
func (s *Service) Start() error {
	s.logger.Sugar().Infow("Starting merkle service", "addr", s.httpServer.Addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Sugar().Info("Stopping merkle service")
	return s.httpServer.Shutdown(ctx)
}
