// Package api serves the camera control HTTP API, the event streams and the
// MJPEG preview.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/uvcctl/internal/api/models"
	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/control"
	"github.com/smazurov/uvcctl/internal/devices"
	"github.com/smazurov/uvcctl/internal/events"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/properties"
	"github.com/smazurov/uvcctl/internal/session"
	"github.com/smazurov/uvcctl/internal/sink"
	"github.com/smazurov/uvcctl/internal/updater"
	"github.com/smazurov/uvcctl/internal/version"
)

// Controller is the session surface the API drives. *control.Controller
// implements it.
type Controller interface {
	Catalog() *catalog.Catalog
	Registry() *properties.Registry
	Status() session.Status
	Open(ctx context.Context, index int, recording bool) (session.Status, error)
	Close() error
	Restart(ctx context.Context, opts session.RestartOptions) (session.Status, error)
	SetProperty(name string, value float64) (properties.Result, error)
	Probe(name string) (properties.ProbeResult, error)
	ProbeAll() ([]properties.ProbeResult, error)
	Properties() ([]control.PropertyView, error)
	ApplyPresets(presets map[string]float64) ([]properties.Result, error)
}

// DeviceLister lists capture nodes.
type DeviceLister interface {
	FindDevices() ([]devices.DeviceInfo, error)
}

// Options wires the server to the rest of the process. Controller is
// required; everything else is optional and its routes are skipped or
// answer 503 when nil.
type Options struct {
	AuthUsername string
	AuthPassword string

	Controller Controller
	Devices    DeviceLister
	EventBus   *events.Bus
	Preview    *sink.Preview
	Snapshots  *sink.Snapshotter

	// DefaultResolutionIndex is used by POST /api/session/open when the
	// request names no index.
	DefaultResolutionIndex int
	SnapshotTimeout        time.Duration

	UpdateService     updater.Service
	PrometheusHandler http.Handler
}

// Server serves the huma API plus the metrics and preview handlers that
// bypass it.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    Options
	auth       basicAuth
	logger     logging.Logger
}

// NewServer builds the mux and registers every route.
func NewServer(opts Options) *Server {
	if opts.SnapshotTimeout <= 0 {
		opts.SnapshotTimeout = 5 * time.Second
	}

	mux := http.NewServeMux()
	handlePreflight(mux)

	cfg := huma.DefaultConfig("uvcctl API", version.Version)
	cfg.Info.Description = "Session lifecycle, property writes and probes, and live events for UVC cameras"
	cfg.Servers = []*huma.Server{}
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {Type: "http", Scheme: "basic"},
	}

	s := &Server{
		api:     humago.New(mux, cfg),
		mux:     mux,
		options: opts,
		auth:    basicAuth{user: opts.AuthUsername, pass: opts.AuthPassword},
		logger:  logging.GetLogger("api"),
	}

	s.api.UseMiddleware(corsMiddleware, logRequests)
	if s.auth.enabled() {
		s.api.UseMiddleware(s.auth.middleware(s.api))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}
	if opts.Preview != nil {
		mux.Handle("GET /preview.mjpeg", s.auth.wrap(http.HandlerFunc(s.servePreview)))
	}

	s.registerRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting uvcctl API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the listener and every open connection, including SSE and
// preview streams.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.options.Preview != nil {
		s.options.Preview.Close()
	}
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{Status: "ok", Message: "API is healthy"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		v := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   v.Version,
				GitCommit: v.GitCommit,
				BuildDate: v.BuildDate,
				BuildID:   v.BuildID,
				GoVersion: v.GoVersion,
				Compiler:  v.Compiler,
				Platform:  v.Platform,
			},
		}, nil
	})

	s.registerDeviceRoutes()
	s.registerSessionRoutes()
	s.registerPropertyRoutes()
	s.registerSnapshotRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
	s.registerUpdateRoutes()
}
