// Command passbolt runs the resource index API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/stchstepan/passbolt/pkg/config"
	"github.com/stchstepan/passbolt/pkg/httputil"
	"github.com/stchstepan/passbolt/pkg/middleware"
	"github.com/stchstepan/passbolt/pkg/observability"
	"github.com/stchstepan/passbolt/pkg/permissions"
	"github.com/stchstepan/passbolt/pkg/recovery"
	"github.com/stchstepan/passbolt/pkg/resources"
	"github.com/stchstepan/passbolt/pkg/storage/postgres"
	"github.com/stchstepan/passbolt/pkg/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting passbolt resource index")

	ctx := context.Background()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: splitReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgres.RunMigrations(ctx, cm.Primary()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	var cache *redis.Client
	var index permissions.Reader = permissions.NewIndex(cm.Replica())
	if cfg.Cache.Enabled {
		opts, err := redis.ParseURL(cfg.Cache.URL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		if cfg.Cache.Password != "" {
			opts.Password = cfg.Cache.Password
		}
		opts.DB = cfg.Cache.DB
		cache = redis.NewClient(opts)
		index = permissions.NewCachedIndex(index, cache, cfg.Cache.TTL, cfg.Cache.GroupLRUSize, metrics)
		logger.Info("permission level cache enabled")
	}

	userStore := users.NewStore(cm.Replica())
	resourceStore := resources.NewStore(cm.Replica())
	indexService := resources.NewService(index, resourceStore, logger, metrics)
	cookies := httputil.NewSecureCookieService("/", cfg.Auth.SecureCookies)
	session := middleware.NewSessionMiddleware(userStore, index, []byte(cfg.Auth.JWTSecret), cookies, logger)

	tokenStore := recovery.NewStore(cm.Primary())
	sweeper := recovery.NewSweeper(tokenStore, cfg.Auth.RecoveryTokenExpiry, logger)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start token sweeper: %w", err)
	}

	apiServer := buildAPIServer(cfg, logger, metrics, session, indexService)
	healthServer := buildHealthServer(cfg, cm, cache, metrics)

	go func() {
		logger.Infof("health server listening on :%s", cfg.Server.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.Infof("API server listening on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	sm := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		sweeper.Stop()
		return nil
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		return cm.Close()
	})
	if cache != nil {
		sm.RegisterShutdownFunc(func(context.Context) error {
			return cache.Close()
		})
	}
	if providers != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	return sm.WaitForShutdown()
}

func buildAPIServer(
	cfg *config.Config,
	logger *observability.Logger,
	metrics *observability.Metrics,
	session *middleware.SessionMiddleware,
	indexService *resources.Service,
) *http.Server {
	router := mux.NewRouter()
	router.Use(httputil.LoggingMiddleware(logger))
	router.Use(httputil.RecoveryMiddleware(logger))
	if metrics != nil {
		router.Use(metrics.Middleware)
	}
	router.Use(session.Handler)

	resources.NewHandler(indexService, logger).RegisterRoutes(router)

	var handler http.Handler = router
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(router, "passbolt-api")
	}

	return &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func buildHealthServer(
	cfg *config.Config,
	cm *postgres.ConnectionManager,
	cache *redis.Client,
	metrics *observability.Metrics,
) *http.Server {
	checker := observability.NewHealthChecker(cm.Primary(), cache)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", checker.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", checker.Readiness).Methods(http.MethodGet)
	if metrics != nil {
		metrics.ObserveDBStats(cm.Primary())
		router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	return &http.Server{
		Addr:    ":" + cfg.Server.HealthPort,
		Handler: router,
	}
}

// splitReplicaURLs parses the comma-separated replica list.
func splitReplicaURLs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	urls := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}
