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

	router "github.com/proctorlab/Proctor/internal/adapters/http"
	signaladapter "github.com/proctorlab/Proctor/internal/adapters/signal"
	"github.com/proctorlab/Proctor/internal/config"
	"github.com/proctorlab/Proctor/internal/core"
	"github.com/proctorlab/Proctor/internal/media"
	"github.com/proctorlab/Proctor/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	reg := core.NewRegistry()
	presence := core.NewPresence(reg)
	met := metrics.New()

	client := media.NewClient()
	prov := media.NewProvisioner(client,
		cfg.Media.APIBaseURL, cfg.Media.HLSBaseURL,
		cfg.Media.APITimeout, cfg.Media.ProbeTimeout)
	broker := media.NewBroker(client, prov, cfg.Media.WHIPBaseURL, cfg.Media.PublishTimeout)
	status := media.NewReconciler(client, prov,
		cfg.Media.APIBaseURL, cfg.Media.APITimeout, cfg.Media.ProbeTimeout)

	ctl := signaladapter.NewController(cfg, reg, presence, met, prov)
	mh := &router.MediaHandlers{
		Broker:  broker,
		Prov:    prov,
		Status:  status,
		Metrics: met,
		Limiter: router.NewPublishRateLimiter(5, 10*time.Second),
	}

	r := router.SetupRouter(ctx, cfg, reg, ctl, mh, met)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("media_api", cfg.Media.APIBaseURL).Msg("Proctor server started")
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
