package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gitlab.prplanit.com/precisionplanit/sapsteward/metrics"

	"golang.org/x/sync/errgroup"
)

// Server exposes metrics and health probes while the scheduler runs.
type Server struct {
	addr   string
	sched  *Scheduler
	logger *slog.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, sched *Scheduler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, sched: sched, logger: logger}
}

type healthResponse struct {
	Status  string        `json:"status"`
	Managed int           `json:"managed"`
	Checks  []CheckResult `json:"checks"`
}

// Handler routes /metrics, /healthz and /readyz.
//
// /healthz always answers 200 while the process is up. /readyz answers 503
// until every watched instance has been checked once.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeHealth(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if len(s.sched.LastResults()) < s.sched.ManagedCount() {
			s.writeHealth(w, http.StatusServiceUnavailable, "pending")
			return
		}
		s.writeHealth(w, http.StatusOK, "ok")
	})
	return mux
}

func (s *Server) writeHealth(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:  status,
		Managed: s.sched.ManagedCount(),
		Checks:  s.sched.LastResults(),
	})
}

// Serve runs the HTTP server and the cron scheduler, checks every instance
// once up front, and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.sched.Start()
	defer s.sched.Stop()

	eg.Go(func() error {
		s.logger.Info("Serving metrics and health probes", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		s.sched.RunAll(egctx)
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
