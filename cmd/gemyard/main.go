package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/gemyard/gemyard/pkg/api"
	"github.com/gemyard/gemyard/pkg/auth"
	"github.com/gemyard/gemyard/pkg/config"
	"github.com/gemyard/gemyard/pkg/gems"
	"github.com/gemyard/gemyard/pkg/observability"
	"github.com/gemyard/gemyard/pkg/webhooks"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting gemyard")

	var promRegistry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		promRegistry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(promRegistry)
	}

	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		otelProviders, err = observability.InitOTel(context.Background(), observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize OpenTelemetry, continuing without tracing")
		}
	}

	var db *sql.DB
	var hookStore webhooks.Store
	var catalog gems.Store
	var keyring auth.Keyring

	if cfg.Database.PostgresURL != "" {
		db, err = sql.Open("postgres", cfg.Database.PostgresURL)
		if err != nil {
			logger.WithError(err).Error("Failed to open database connection")
			os.Exit(1)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

		pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			logger.WithError(err).Error("Failed to ping database")
			os.Exit(1)
		}

		hookStore, err = webhooks.NewPostgresStore(db)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize webhook store")
			os.Exit(1)
		}
		catalog, err = gems.NewPostgresStore(db)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize gem catalog")
			os.Exit(1)
		}
		keyring, err = auth.NewPostgresKeyring(db)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize keyring")
			os.Exit(1)
		}
		logger.Info("Using PostgreSQL storage")
	} else {
		// Development mode: everything in memory, one throwaway API key.
		hookStore = webhooks.NewMemoryStore()
		catalog = gems.NewMemoryStore()

		key, _, err := auth.GenerateKey()
		if err != nil {
			logger.WithError(err).Error("Failed to generate development API key")
			os.Exit(1)
		}
		static := auth.NewStaticKeyring()
		static.Add(key, &auth.User{ID: 1, Handle: "dev"})
		keyring = static

		logger.Warn("No GEMYARD_POSTGRES_URL set, using in-memory storage")
		logger.WithField("api_key", key).Warn("Development API key (not persisted)")
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		if cfg.Cache.RedisURL != "" {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Cache.RedisURL,
				Password: cfg.Cache.RedisPassword,
				DB:       cfg.Cache.RedisDB,
			})
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = redisClient.Ping(pingCtx).Err()
			cancel()
			if err != nil {
				logger.WithError(err).Warn("Redis unavailable, caching with L1 only")
				redisClient = nil
			}
		}

		cached, err := gems.NewCachedStore(catalog, redisClient, cfg.Cache.TTL, cfg.Cache.L1Size, metrics)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize gem cache")
			os.Exit(1)
		}
		catalog = cached
	}

	deliverer := webhooks.NewDeliverer(catalog, logger, metrics, webhooks.DeliveryConfig{
		Timeout:     cfg.Delivery.Timeout,
		Concurrency: cfg.Delivery.Concurrency,
		BaseURL:     cfg.Server.BaseURL,
	})

	server := api.NewServer(api.Config{
		Logger:         logger,
		Metrics:        metrics,
		Keyring:        keyring,
		HookStore:      hookStore,
		Catalog:        catalog,
		Deliverer:      deliverer,
		TracingEnabled: otelProviders != nil,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ready := func(ctx context.Context) error {
		if db != nil {
			return db.PingContext(ctx)
		}
		return nil
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: api.NewHealthHandler(promRegistry, ready),
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)

	if metrics != nil {
		refreshGauges(logger, metrics, hookStore, catalog, db)

		scheduler := cron.New()
		_, err = scheduler.AddFunc(cfg.Delivery.GaugeRefreshSchedule, func() {
			refreshGauges(logger, metrics, hookStore, catalog, db)
		})
		if err != nil {
			logger.WithError(err).Error("Failed to schedule gauge refresh")
			os.Exit(1)
		}
		scheduler.Start()
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			stopCtx := scheduler.Stop()
			select {
			case <-stopCtx.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	if db != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return db.Close()
		})
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

// refreshGauges updates the business and pool gauges from current store
// counts. Scheduled via cron and run once at startup.
func refreshGauges(logger *observability.Logger, metrics *observability.Metrics, hookStore webhooks.Store, catalog gems.Store, db *sql.DB) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if count, err := hookStore.Count(ctx); err != nil {
		logger.WithError(err).Warn("Failed to count webhooks for gauge refresh")
	} else {
		metrics.HooksTotal.Set(float64(count))
	}

	if count, err := catalog.CountGems(ctx); err != nil {
		logger.WithError(err).Warn("Failed to count gems for gauge refresh")
	} else {
		metrics.GemsTotal.Set(float64(count))
	}

	if db != nil {
		metrics.UpdateDBStats(db.Stats())
	}
}
