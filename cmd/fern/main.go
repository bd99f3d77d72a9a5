package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/startup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.AppName, cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	database := &startup.DatabaseDependency{Config: cfg, Logger: logger}
	graph := &startup.GraphDependency{Config: cfg, Logger: logger}
	tracing := &startup.TracingDependency{Config: cfg, Logger: logger}
	kafka := &startup.KafkaDependency{Config: cfg, Logger: logger}
	container := &startup.ContainerDependency{
		Config:   cfg,
		Logger:   logger,
		Database: database,
		Graph:    graph,
		Kafka:    kafka,
	}
	server := &startup.ServerDependency{
		Config:   cfg,
		Logger:   logger,
		Database: database,
		Graph:    graph,
	}

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(tracing)
	boot.AddDependency(database)
	boot.AddDependency(graph)
	boot.AddDependency(kafka)
	boot.AddDependency(container)
	boot.AddDependency(server)

	ctx := context.Background()
	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("startup failed")
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
}
