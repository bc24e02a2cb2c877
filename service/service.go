// Package service exposes agent management and task execution over HTTP.
// Agents are created and torn down through a REST surface and tasks run
// against them one-shot or with streamed assistant chunks.
package service

import (
	"log/slog"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// Config carries the service's listen address.
type Config struct {
	ListenAddr string
}

// Server is the agent HTTP service. The runner is injected so tests can run
// tasks without a model behind them.
type Server struct {
	config Config
	agents *haxmap.Map[string, registeredAgent]
	runner Runner
	logger *slog.Logger
	app    *fiber.App
}

var (
	// WithRunner replaces the task runner. Defaults to the local run loop.
	WithRunner = opts.ForName[Server, Runner]("runner")

	// WithLogger replaces the service logger.
	WithLogger = opts.ForName[Server, *slog.Logger]("logger")
)

// NewServer builds the service and registers its routes.
func NewServer(config Config, options ...opts.Option[Server]) (*Server, error) {
	s := &Server{
		config: config,
		agents: haxmap.New[string, registeredAgent](),
	}
	if err := opts.Apply(s, options); err != nil {
		return nil, err
	}
	if s.runner == nil {
		s.runner = runLocal
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})
	s.app = app

	app.Get("/health", s.handleHealth)
	app.Post("/agents", s.handleCreateAgent)
	app.Get("/agents", s.handleListAgents)
	app.Get("/agents/:id", s.handleGetAgent)
	app.Delete("/agents/:id", s.handleDeleteAgent)
	app.Post("/tasks", s.handleRunTask)
	app.Post("/tasks/stream", s.handleStreamTask)
	app.Post("/run", s.handleRunAdhoc)

	return s, nil
}

// Run starts the server on the configured address and blocks.
func (s *Server) Run() error {
	s.logger.Info("starting agent service", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down agent service")
	return s.app.Shutdown()
}
