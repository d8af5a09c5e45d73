package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/andesco/edgegate/handlers"
	"github.com/andesco/edgegate/pkg/config"
	"github.com/andesco/edgegate/pkg/logger"
	"github.com/andesco/edgegate/pkg/metrics"
	"github.com/andesco/edgegate/pkg/routing"
	"github.com/andesco/edgegate/pkg/upstream"
)

// Server owns the public listener and, when enabled, the metrics listener.
type Server struct {
	app        *fiber.App
	metricsApp *fiber.App
	table      *routing.Table
	config     *config.Config
	logger     *logger.Logger
}

// New builds the route table from cfg and wires it behind a fiber app.
func New(cfg *config.Config, appLogger *logger.Logger) (*Server, error) {
	client := upstream.New(cfg.Upstream)
	table, err := BuildTable(cfg.Routes, client, appLogger)
	if err != nil {
		return nil, err
	}

	opts := []routing.Option{
		routing.WithLogger(appLogger.WithComponent("dispatcher")),
		routing.WithTimeout(cfg.Server.HandlerTimeout),
	}

	s := &Server{
		table:  table,
		config: cfg,
		logger: appLogger,
	}

	if cfg.Metrics.Enabled {
		rec := metrics.New()
		opts = append(opts, routing.WithObserver(rec))
		s.metricsApp = fiber.New(fiber.Config{DisableStartupMessage: true})
		s.metricsApp.Get(cfg.Metrics.Path, adaptor.HTTPHandler(rec.Handler()))
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "edgegate",
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		DisableStartupMessage: true,
	})
	s.app.Use(routing.NewDispatcher(table, opts...).Handle)

	appLogger.Infow("Routes registered",
		"prefixes", table.Prefixes(),
		"upstream_timeout", client.Timeout().String(),
		"handler_timeout", cfg.Server.HandlerTimeout.String(),
	)
	return s, nil
}

// BuildTable constructs one handler per route and registers it in order.
// The table is frozen before it is returned.
func BuildTable(routes []config.RouteConfig, client handlers.Fetcher, appLogger *logger.Logger) (*routing.Table, error) {
	table := routing.NewTable()
	for _, rc := range routes {
		h, err := newHandler(rc, client, appLogger)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", rc.Prefix, err)
		}
		if err := table.Register(rc.Prefix, h); err != nil {
			return nil, fmt.Errorf("route %s: %w", rc.Prefix, err)
		}
	}
	table.Freeze()
	return table, nil
}

func newHandler(rc config.RouteConfig, client handlers.Fetcher, appLogger *logger.Logger) (routing.Handler, error) {
	log := appLogger.WithFields("prefix", rc.Prefix)
	switch rc.Kind {
	case config.KindRelay:
		if rc.Relay == nil {
			return nil, errors.New("missing relay block")
		}
		return handlers.NewRelay(*rc.Relay, client, log)
	case config.KindTemplate:
		if rc.Template == nil {
			return nil, errors.New("missing template block")
		}
		return handlers.NewTemplate(*rc.Template, client, log)
	case config.KindStatic:
		if rc.Static == nil {
			return nil, errors.New("missing static block")
		}
		return handlers.NewStatic(*rc.Static, log)
	}
	return nil, fmt.Errorf("unknown route kind '%s'", rc.Kind)
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Table() *routing.Table {
	return s.table
}

// Start serves metrics in the background and blocks on the main listener.
func (s *Server) Start() error {
	if s.metricsApp != nil {
		go func() {
			s.logger.Infow("Starting metrics listener", "address", s.config.Metrics.Address, "path", s.config.Metrics.Path)
			if err := s.metricsApp.Listen(s.config.Metrics.Address); err != nil {
				s.logger.Errorw("Metrics listener stopped", "error", err)
			}
		}()
	}

	addr := s.config.Server.Address()
	s.logger.Infow("Starting server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	var errs []error
	if s.metricsApp != nil {
		if err := s.metricsApp.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics listener: %w", err))
		}
	}
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
