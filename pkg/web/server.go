// Package web serves the go-mimic HTTP API and mounts the estimator and
// renderer WebSocket endpoints.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/hub"
	"github.com/teslashibe/go-mimic/pkg/ingest"
	"github.com/teslashibe/go-mimic/pkg/pipeline"
	"github.com/teslashibe/go-mimic/pkg/record"
	"github.com/teslashibe/go-mimic/pkg/remote"
	"github.com/teslashibe/go-mimic/pkg/urdf"
)

// RendererPath is where renderers subscribe to joint and overlay frames.
const RendererPath = "/ws/joints"

// Options wires the server to the running components. Store, Remote and
// Estimators may be nil.
type Options struct {
	Port        string
	Driver      *pipeline.Driver
	Estimators  *ingest.Hub
	Renderers   *hub.Hub
	Store       *record.Store
	Remote      *remote.Client
	Description string         // Where the robot description was loaded from
	Warnings    []urdf.Warning // Non-fatal description problems
}

// Server is the API server
type Server struct {
	app     *fiber.App
	opts    Options
	started time.Time
	logger  *slog.Logger
}

// NewServer creates the server and registers every route
func NewServer(opts Options) *Server {
	s := &Server{
		opts:    opts,
		started: time.Now(),
		logger:  log.Component("web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-mimic",
		DisableStartupMessage: true,
	})

	// CORS for browser renderers on other origins
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/tree", s.handleTree)
	api.Get("/joints", s.handleJoints)
	api.Post("/joints/:name", s.handleSetJoint)
	api.Get("/links/:name/world", s.handleLinkWorld)
	api.Get("/overlay.jpg", s.handleOverlay)
	api.Get("/sessions", s.handleSessions)
	api.Get("/sessions/:id/frames", s.handleSessionFrames)

	if opts.Estimators != nil {
		opts.Estimators.RegisterRoutes(app)
		opts.Estimators.RegisterAPIRoutes(api)
	}
	if opts.Renderers != nil {
		opts.Renderers.RegisterRoutes(app, RendererPath)
	}

	s.app = app
	return s
}

// App returns the underlying Fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the renderer hub and serves until the listener fails
func (s *Server) Start(ctx context.Context) error {
	if s.opts.Renderers != nil && !s.opts.Renderers.IsRunning() {
		go s.opts.Renderers.Run(ctx)
	}
	s.logger.Info("api listening", "addr", "http://localhost:"+s.opts.Port)
	return s.app.Listen(":" + s.opts.Port)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
