// Package httpapi serves the Paperless webhook and the status-edit pages.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/valter-silva-au/paperless-tasks/internal/core"
)

// maxRequestBody limits webhook payloads and form posts.
const maxRequestBody = 1 << 20

// Server exposes the sync engine over HTTP.
type Server struct {
	engine core.SyncEngine
	config core.ConfigStore
	logger *slog.Logger
	router chi.Router
}

// NewServer builds the router. logger may be nil.
func NewServer(engine core.SyncEngine, config core.ConfigStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, config: config, logger: logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxRequestBody))
	r.Use(securityHeaders)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/paperless_webhook", s.handleWebhook)
	r.Get("/status/{documentID:[0-9]+}", s.handleStatusForm)
	r.Post("/status/{documentID:[0-9]+}", s.handleStatusSubmit)
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on SERVER_HOST:SERVER_PORT and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	cfg := s.config.Current()
	addr := net.JoinHostPort(cfg.ServerHost, strconv.Itoa(cfg.ServerPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	return s.logger.With("request_id", RequestIDFromContext(r.Context()))
}

// reauthorize answers a credential failure. Without REAUTHORIZE_URL there is
// nowhere to send the browser, so the request fails with 503 and says what to
// renew.
func (s *Server) reauthorize(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	target := s.config.Current().ReauthorizeURL
	if target == "" {
		log.Error("task backend needs re-authorization", "error", err)
		writeText(w, http.StatusServiceUnavailable, textReauthorize)
		return
	}
	log.Error("task backend needs re-authorization", "error", err, "redirect", target)
	http.Redirect(w, r, target, http.StatusFound)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, code int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(text))
}
