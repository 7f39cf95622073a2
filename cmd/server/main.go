package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/klynov/lectern/internal/adapters/http"
	"github.com/klynov/lectern/internal/app"
	"github.com/klynov/lectern/internal/config"
	"github.com/klynov/lectern/internal/recording"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	recordings := recording.NewManager(cfg.UploadRetries)
	uploader := &recording.Uploader{
		Store:     &recording.DiskStorage{Root: cfg.ArtifactDir},
		Lifecycle: recordings,
	}

	orch := &app.Orchestrator{
		Registry:   app.NewRegistry(),
		Rooms:      app.NewRoomManager(),
		Policy:     app.SimplePolicy{},
		Recordings: recordings,
	}

	go orch.RunReaper(ctx, cfg.ReaperInterval, cfg.HeartbeatTimeout)

	r := router.SetupRouter(ctx, cfg, orch, uploader)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Lectern signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
