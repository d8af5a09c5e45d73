package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akamensky/argparse"

	"github.com/andesco/edgegate/pkg/config"
	"github.com/andesco/edgegate/pkg/logger"
	"github.com/andesco/edgegate/pkg/server"
)

var version = "dev"

func main() {
	parser := argparse.NewParser("edgegate", "Prefix-routed HTTP edge server")

	configPath := parser.String("c", "config", &argparse.Options{
		Required: false,
		Help:     "Path to the YAML config file. Falls back to the CONFIG environment variable",
	})
	port := parser.Int("p", "port", &argparse.Options{
		Required: false,
		Help:     "Port the webserver will listen on. Overrides config and PORT",
	})
	envFile := parser.String("e", "env-file", &argparse.Options{
		Required: false,
		Default:  ".env",
		Help:     "Env file loaded before the config",
	})
	listRoutes := parser.Flag("r", "routes", &argparse.Options{
		Required: false,
		Help:     "Print the route table and exit",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
		if err := config.Validate(cfg); err != nil {
			log.Fatalf("Invalid port %d: %v", *port, err)
		}
	}

	if *listRoutes {
		for _, r := range cfg.Routes {
			fmt.Printf("%-12s %s\n", r.Prefix, r.Kind)
		}
		return
	}

	appLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	srv, err := server.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to initialize server", "error", err)
	}

	go func() {
		appLogger.Infow("Starting edgegate", "version", version, "port", cfg.Server.Port)
		if err := srv.Start(); err != nil {
			appLogger.Fatalw("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Errorw("Server forced to shutdown", "error", err)
		return
	}
	appLogger.Info("Server exited gracefully")
}
