package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"

	"github.com/2beens/stravadash/internal/config"
	"github.com/2beens/stravadash/internal/dataset"
	"github.com/2beens/stravadash/internal/logging"
	"github.com/2beens/stravadash/internal/pipeline"
	"github.com/2beens/stravadash/internal/strava"
	"github.com/2beens/stravadash/internal/telemetry/metrics"
	"github.com/2beens/stravadash/internal/telemetry/tracing"
	"github.com/2beens/stravadash/internal/tokenstore"
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	dotEnvPath := flag.String("dotenv", ".env", "optional .env file with secrets")
	cronMode := flag.Bool("cron", false, "keep running and update on the configured cron schedule")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}
	if err := config.LoadDotEnv(*dotEnvPath); err != nil {
		log.Fatalf("load dotenv: %s", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	secrets, err := config.LoadSecrets(ctx)
	if err != nil {
		log.Fatalf("load secrets: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        secrets.SentryDSN,
		SentryServerName: "update-data",
	})
	defer sentry.Flush(5 * time.Second)

	if err := multierr.Combine(secrets.RequireStrava(), secrets.RequireStorage(cfg)); err != nil {
		log.Fatalf("missing secrets: %s", err)
	}

	tokens, closeTokens := tokenstore.Open(cfg, secrets.RedisPassword)
	defer func() {
		if err := closeTokens(); err != nil {
			log.Errorf("close token store: %s", err)
		}
	}()
	if tokens == nil && secrets.RefreshToken == "" {
		log.Fatalln("no refresh token: set REFRESH_TOKEN or configure a token store")
	}

	otelShutdown, err := tracing.HoneycombSetup(os.Getenv("HONEYCOMB_ENABLED") == "true", "stravadash-update", nil)
	if err != nil {
		log.Fatalf("tracing setup: %s", err)
	}
	defer otelShutdown()

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("stravadash", "update", promRegistry)

	httpClient := &http.Client{
		Timeout:   cfg.HTTPTimeout(),
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	client := strava.NewClient(cfg.StravaBaseURL, httpClient, metricsManager)
	client.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.MaxRetries)
	}

	authenticator := strava.NewAuthenticator(secrets.ClientID, secrets.ClientSecret, strava.Endpoint{
		AuthURL:     cfg.StravaAuthURL,
		TokenURL:    cfg.StravaTokenURL,
		RedirectURL: cfg.StravaRedirectURL,
	}, httpClient)

	store, container, err := dataset.OpenStore(ctx, cfg, secrets)
	if err != nil {
		log.Fatalf("open dataset store: %s", err)
	}

	updater := pipeline.NewUpdater(pipeline.Params{
		Refresher:      authenticator,
		Source:         client,
		Exporter:       dataset.NewExporter(store, container, metricsManager),
		Tokens:         tokens,
		RefreshToken:   secrets.RefreshToken,
		PerPage:        cfg.PerPage,
		MetricsManager: metricsManager,
	})

	if !*cronMode {
		report, err := updater.Run(ctx)
		// a report next to an error means the dataset was still written
		if report != nil && len(report.Skipped) > 0 {
			log.Warnf("pb efforts without splits: %v", report.Skipped)
		}
		if err != nil {
			log.Errorf("update failed: %s", err)
			otelShutdown()
			os.Exit(1)
		}
		return
	}

	if cfg.UpdateCron == "" {
		log.Fatalln("cron mode needs update_cron in config")
	}

	metricsServer := serveMetrics(cfg, promRegistry)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown metrics server: %s", err)
		}
	}()

	if err := pipeline.RunScheduled(ctx, cfg.UpdateCron, updater); err != nil {
		log.Errorf("run scheduled: %s", err)
	}
}

func serveMetrics(cfg *config.Config, promRegistry *prometheus.Registry) *http.Server {
	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	metricsAddr := net.JoinHostPort(cfg.PrometheusMetricsHost, cfg.PrometheusMetricsPort)
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := metricsServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics service, listen and serve: %s", err)
		}
	}()

	return metricsServer
}
