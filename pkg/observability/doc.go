// Package observability provides structured logging, Prometheus metrics,
// optional OpenTelemetry tracing, and graceful shutdown management.
//
// # Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("gem", name).Info("version published")
//
// # Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.DeliveriesTotal.WithLabelValues("fire", "delivered").Inc()
//
// # Shutdown
//
//	sm := observability.NewShutdownManager(logger, server, 30*time.Second)
//	sm.RegisterShutdownFunc(func(ctx context.Context) error { return db.Close() })
//	sm.WaitForShutdown()
package observability
