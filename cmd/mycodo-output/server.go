package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mycodo-go/mycodo-go/pkg/metrics"
	"github.com/mycodo-go/mycodo-go/pkg/service"
)

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Version string

	// Metrics is optional. When set, /metrics is served and every route is
	// counted and timed.
	Metrics *metrics.Metrics

	Logger *slog.Logger

	// AccessLog receives Apache-style access lines. Nil disables them.
	AccessLog io.Writer
}

// Server is the REST API over an OutputService.
type Server struct {
	svc    *service.OutputService
	config ServerConfig
	router *mux.Router
}

// NewServer creates a server and registers its routes.
func NewServer(svc *service.OutputService, cfg ServerConfig) *Server {
	s := &Server{
		svc:    svc,
		config: cfg,
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// apiPrefix is the base path of the REST API.
const apiPrefix = "/api/v1"

// registerRoutes sets up all HTTP routes. Fixed paths are registered before
// the {unique_id} patterns they would otherwise match.
func (s *Server) registerRoutes() {
	s.handle(apiPrefix+"/health", s.handleHealth, http.MethodGet)
	s.handle(apiPrefix+"/capabilities", s.handleCapabilities, http.MethodGet)

	s.handle(apiPrefix+"/outputs/state", s.handleState, http.MethodGet)
	s.handle(apiPrefix+"/outputs/order", s.handleReorderAll, http.MethodPut)
	s.handle(apiPrefix+"/outputs", s.handleList, http.MethodGet)
	s.handle(apiPrefix+"/outputs", s.handleAdd, http.MethodPost)

	s.handle(apiPrefix+"/outputs/{unique_id}", s.handleGet, http.MethodGet)
	s.handle(apiPrefix+"/outputs/{unique_id}", s.handleUpdate, http.MethodPatch)
	s.handle(apiPrefix+"/outputs/{unique_id}", s.handleDelete, http.MethodDelete)
	s.handle(apiPrefix+"/outputs/{unique_id}/reorder/{direction:up|down}", s.handleReorder, http.MethodPost)

	s.handle(apiPrefix+"/outputs/{unique_id}/{action:on|off}", s.handleCommand, http.MethodPost)
	s.handle(apiPrefix+"/outputs/{unique_id}/{action:on|off}/{kind:sec|pwm|vol}", s.handleCommand, http.MethodPost)
	s.handle(apiPrefix+"/outputs/{unique_id}/{action:on|off}/{kind:sec|pwm|vol}/{amount}", s.handleCommand, http.MethodPost)

	if s.config.Metrics != nil {
		s.router.Handle("/metrics", s.config.Metrics.Handler()).Methods(http.MethodGet)
	}
}

func (s *Server) handle(path string, fn http.HandlerFunc, method string) {
	s.router.Handle(path, s.config.Metrics.WrapHandler(path, fn)).Methods(method)
}

// Handler returns the router wrapped with panic recovery and access logging.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if s.config.AccessLog != nil {
		h = handlers.LoggingHandler(s.config.AccessLog, h)
	}
	opts := []handlers.RecoveryOption{handlers.PrintRecoveryStack(true)}
	if s.config.Logger != nil {
		opts = append(opts, handlers.RecoveryLogger(recoveryLogger{s.config.Logger}))
	}
	return handlers.RecoveryHandler(opts...)(h)
}

// recoveryLogger routes recovered panics to slog.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("handler panic", "panic", v)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
