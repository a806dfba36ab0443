// neoserve runs the hazard scoring service. The model artifact is loaded
// exactly once, before the HTTP server accepts its first request; a failed
// load keeps the service up but unready, answering 503 instead of
// fabricating predictions.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"neo-guard/internal/cfg"
	"neo-guard/internal/metrics"
	"neo-guard/internal/ml"
)

func main() {
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	m := metrics.New()
	sink := metrics.NewWrapper(m)

	// Load-then-serve: the predictor is fully constructed before the
	// server starts listening.
	predictor := ml.NewPredictor(c.ModelPath, sink)
	server := ml.NewScoreServer(predictor, c.HTTPPort, promhttp.Handler())

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("score server failed")
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}
}
