package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/stravadash/internal/auth"
	"github.com/2beens/stravadash/internal/config"
	"github.com/2beens/stravadash/internal/dashboard"
	"github.com/2beens/stravadash/internal/dataset"
	"github.com/2beens/stravadash/internal/middleware"
	"github.com/2beens/stravadash/internal/telemetry/metrics"
	"github.com/2beens/stravadash/internal/telemetry/tracing"
	"github.com/2beens/stravadash/internal/workflow"
)

const sessionsCleanupInterval = 8 * time.Hour

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server

	config   *config.Config
	reader   dashboard.DatasetReader
	workflow dashboard.WorkflowRunner

	// nil when redis is not configured; the login gate is then off
	redisClient  *redis.Client
	loginChecker *auth.LoginChecker
	authService  *auth.Service

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	Secrets                 *config.Secrets
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg, secrets := params.Config, params.Secrets

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("stravadash", "dashboard", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	reader, err := dataset.NewReaderFromConfig(ctx, cfg, secrets)
	if err != nil {
		return nil, fmt.Errorf("new dataset reader: %w", err)
	}

	s := &Server{
		config:         cfg,
		reader:         reader,
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
	}

	if cfg.RedisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: secrets.RedisPassword,
			DB:       0, // use default DB
		})

		rdbStatus := rdb.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}

		s.redisClient = rdb
		s.loginChecker = auth.NewLoginChecker(auth.DefaultTTL, rdb)
		s.authService = auth.NewAuthService(&auth.Admin{
			Username:     secrets.AppUsername,
			PasswordHash: secrets.AppPasswordHash,
		}, auth.DefaultTTL, rdb)

		go s.cleanSessionsPeriodically(ctx)
	} else {
		log.Warnln("redis not configured, login gate and rate limiting are off")
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	s.otelShutdown, err = tracing.HoneycombSetup(params.HoneycombTracingEnabled, "stravadash", s.redisClient)
	if err != nil {
		return nil, err
	}

	if cfg.WorkflowRepo != "" && secrets.GithubToken != "" {
		s.workflow = workflow.NewClient(workflow.Params{
			Repo:         cfg.WorkflowRepo,
			WorkflowFile: cfg.WorkflowFile,
			Token:        secrets.GithubToken,
			HTTPClient: &http.Client{
				Timeout:   cfg.HTTPTimeout(),
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			MetricsManager: metricsManager,
		})
	} else {
		log.Warnln("update workflow not configured, /update is disabled")
	}

	return s, nil
}

func (s *Server) cleanSessionsPeriodically(ctx context.Context) {
	ticker := time.NewTicker(sessionsCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := s.authService.ScanAndClean(ctx, now)
			if err != nil {
				log.Errorf("clean sessions: %s", err)
				continue
			}
			log.Debugf("sessions cleanup: %d removed", removed)
		}
	}
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("dashboard-router"))

	handlerParams := dashboard.NewHandlerParams{
		Reader:      s.reader,
		Workflow:    s.workflow,
		WorkflowRef: s.config.WorkflowRef,
	}
	var rateLimiter middleware.RequestRateLimiter
	if s.authService != nil {
		handlerParams.Sessions = s.authService
		rateLimiter = redis_rate.NewLimiter(s.redisClient)
	}

	dashboardHandler := dashboard.NewHandler(handlerParams)
	dashboardHandler.SetupRoutes(r, rateLimiter, s.config.LoginRateLimitAllowedPerMin, s.metricsManager)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	var checker auth.Checker = auth.NewLoginTestChecker()
	if s.loginChecker != nil {
		checker = s.loginChecker
	}
	authMiddleware := middleware.NewAuthMiddlewareHandler(
		s.config.LoginEnabled && s.loginChecker != nil,
		checker,
	)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) metricsRouterSetup() *mux.Router {
	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	return metricsRouter
}

func (s *Server) Serve(host string, port int) {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.routerSetup(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           s.metricsRouterSetup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
