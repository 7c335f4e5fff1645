package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/bidrank/internal/api"
	"github.com/dgallion1/bidrank/internal/config"
	"github.com/dgallion1/bidrank/internal/pipeline"
	"github.com/dgallion1/bidrank/internal/rater"
	"github.com/dgallion1/bidrank/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	weights, err := config.LoadWeights(cfg.WeightsFile)
	if err != nil {
		log.Error("invalid weights", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Error("open store", "path", cfg.StorePath, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize pipeline.
	raters := pipeline.NewRaterSource(cfg, st, rater.NewLLMStats(time.Hour), log)
	orch := pipeline.NewOrchestrator(cfg, weights, raters, st, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, st, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		st.Close()
	}()

	log.Info("starting bidrank",
		"port", cfg.Port,
		"provider", cfg.RaterProvider,
		"weights", weights,
		"store", cfg.StorePath,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
