package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urbaine/upwatch/common/cache"
	"github.com/urbaine/upwatch/config"
	"github.com/urbaine/upwatch/pkg/riskmodel"
	"golang.org/x/time/rate"
)

// Server exposes a Trainer over HTTP.
type Server struct {
	trainer       *riskmodel.Trainer
	predictions   *cache.Cache[string]
	maxUploadSize int64
	limiter       *rate.Limiter
	logger        *log.Logger
}

func NewServer(ctx context.Context, trainer *riskmodel.Trainer) (*Server, error) {
	cfg := config.C()
	predictions, err := cache.New[string]()
	if err != nil {
		return nil, err
	}
	s := &Server{
		trainer:       trainer,
		predictions:   predictions,
		maxUploadSize: cfg.API.MaxUploadSize,
		logger:        log.FromContext(ctx).WithPrefix("api"),
	}
	if cfg.API.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.API.RateLimit), max(cfg.API.Burst, 1))
	}
	return s, nil
}

// Handler returns the routed handler wrapped with middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return loggingMiddleware(s.logger)(rateLimitMiddleware(s.limiter)(mux))
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /progress", s.handleProgress)
	mux.HandleFunc("GET /predict", s.handlePredict)
}

// ListenAndServe blocks until ctx is cancelled, then shuts the server down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	defer s.predictions.Close()
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown api server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
