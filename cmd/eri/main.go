package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"eri/internal/app"
	"eri/internal/config"
	httpinfra "eri/internal/infra/http"
	"eri/internal/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()
	if err := log.Build(log.Config{Level: cfg.LogLevel, Debug: cfg.LogDebug}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging configuration: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Errorf("failed to init application: %v", err)
		return 1
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Errorf("close application: %v", err)
		}
	}()

	srv := httpinfra.NewServer(application)
	if err := srv.Run(ctx); err != nil {
		log.Errorf("server exited: %v", err)
		return 1
	}
	return 0
}
