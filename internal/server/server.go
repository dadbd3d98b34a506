// Package server provides the HTTP server for the haptic control surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/haptic/internal/app"
	"github.com/ayusman/haptic/internal/capture"
	"github.com/ayusman/haptic/internal/command"
	"github.com/ayusman/haptic/internal/server/api"
	"github.com/ayusman/haptic/internal/store"
	"github.com/ayusman/haptic/internal/transport"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 5 * time.Second

// Config holds the server configuration. Every field is optional; routes
// whose dependencies are missing are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
	Hub       *transport.Hub
	Frames    *capture.FrameBuffer
	Specs     command.SpecTable
	Logger    *slog.Logger
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Specs == nil {
		config.Specs = command.DefaultSpecs()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: config.Logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	commands := api.NewCommandHandler(s.config.Store, s.config.Specs)
	s.mux.Handle("/api/commands", commands)
	s.mux.Handle("/api/commands/", commands)

	if s.config.Store != nil {
		bindings := api.NewBindingHandler(s.config.Store, s.config.Specs)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)

		var registrar api.Registrar
		if s.config.App != nil {
			registrar = s.config.App
		}
		objects := api.NewObjectHandler(s.config.Store, registrar, s.logger)
		s.mux.Handle("/api/objects", objects)
		s.mux.Handle("/api/objects/", objects)
	}

	if s.config.App != nil {
		var settings *store.SettingsRepository
		if s.config.Store != nil {
			settings = s.config.Store.Settings()
		}
		var notifier api.Notifier
		if s.config.Hub != nil {
			notifier = s.config.Hub
		}
		tracking := api.NewTrackingHandler(s.config.App, settings, notifier, s.logger)
		s.mux.Handle("/api/tracking", tracking)
		s.mux.Handle("/api/tracking/", tracking)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/send-command", api.NewSendCommandHandler(s.config.Hub, s.config.Specs, s.logger))
		s.mux.Handle("/ws", s.config.Hub)
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type healthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Clients  int    `json:"clients"`
	Desktops int    `json:"desktops"`
	Tracking bool   `json:"tracking"`
	Running  bool   `json:"running"`
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.start).Round(time.Second).String(),
	}
	if s.config.Hub != nil {
		response.Clients = s.config.Hub.ClientCount()
		response.Desktops = s.config.Hub.DesktopCount()
	}
	if s.config.App != nil {
		status := s.config.App.Status()
		response.Tracking = status.Enabled
		response.Running = status.Running
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ListenAndServe starts the HTTP server on addr and shuts it down when ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("server shutdown", "error", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
