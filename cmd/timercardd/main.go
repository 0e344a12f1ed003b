package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timercard/internal/backend"
	"timercard/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to timercard.yaml")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	repo, err := backend.OpenSQLite(cfg.Server.DBPath)
	if err != nil {
		slog.Error("sqlite open failed", "path", cfg.Server.DBPath, "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	if err := backend.MigrateUp(repo.DB()); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	engine := backend.NewEngine(cfg.Server.EngineBuffer)
	server := backend.NewServer(nil, logger)
	svc := backend.NewService(repo, engine, server, logger)
	server.SetService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Restore(ctx); err != nil {
		slog.Error("restore failed", "error", err)
		os.Exit(1)
	}
	engine.Start()
	defer engine.Stop()
	go server.Run(ctx, engine)

	mux := http.NewServeMux()
	mux.Handle("/ws", server)
	httpServer := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: mux,
	}

	go func() {
		slog.Info("listening", "addr", cfg.Server.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server exited")
}
