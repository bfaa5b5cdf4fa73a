package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kycgate/internal/governor"
	"kycgate/internal/issue"
	"kycgate/internal/pipeline"
	"kycgate/internal/platform/config"
	"kycgate/internal/platform/httpserver"
	"kycgate/internal/platform/logger"
	"kycgate/internal/platform/metrics"
	"kycgate/internal/quality"
	"kycgate/internal/reviewer"
	"kycgate/internal/risk"
	"kycgate/internal/submission"
	httptransport "kycgate/internal/transport/http"
	"kycgate/internal/vision"
)

const defaultVisionBaseURL = "https://generativelanguage.googleapis.com"

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	m := metrics.New(prometheus.DefaultRegisterer)

	var visionClient vision.Client
	if cfg.VisionAPIKey != "" {
		baseURL := cfg.VisionBaseURL
		if baseURL == "" {
			baseURL = defaultVisionBaseURL
		}
		visionClient = vision.NewHTTPClient(baseURL, cfg.VisionAPIKey)
	} else {
		log.Warn("no vision API key configured, extraction will report NO_PROVIDER_CONFIGURED")
	}

	gov := governor.New()
	orchestrator := vision.NewOrchestrator(visionClient, cfg.VisionModels, gov, vision.WithLogger(log))

	var registrar submission.Registrar
	if cfg.RegistrarURL != "" {
		registrar = submission.NewHTTPRegistrar(cfg.RegistrarURL)
	}
	submissions := submission.NewService(registrar, submission.NewHistory(), submission.WithLogger(log))

	verifier := pipeline.New(
		quality.NewAnalyzer(),
		orchestrator,
		issue.NewDetector(),
		risk.NewService(visionClient, risk.WithLogger(log)),
		submissions,
		gov,
		m,
		pipeline.WithLogger(log),
		pipeline.WithAIRisk(cfg.RiskUseAI),
	)

	tokens := reviewer.NewTokenService(cfg.ReviewerJWTKey, "kycgate")
	handler := httptransport.NewHandler(verifier, log)
	router := httptransport.NewRouter(handler, tokens, log, prometheus.DefaultGatherer)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting kycgate", "addr", cfg.Addr, "models", cfg.VisionModels)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
