// Package di wires the gateway's dependencies.
package di

import (
	"go.uber.org/zap"

	"offgate/internal/config"
	"offgate/internal/gateway"
	"offgate/internal/metrics"
	"offgate/internal/store"
	"offgate/internal/upstream"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      store.Store
	Fetcher    gateway.Fetcher
	Metrics    *metrics.Metrics
	Dispatcher *gateway.Dispatcher
}

// Close releases the container's resources in reverse dependency order.
func (c *Container) Close() error {
	err := c.Store.Close()
	_ = c.Logger.Sync()
	return err
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideStore opens the local cache store. An empty data directory
// selects the in-memory store.
func ProvideStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.DataDir == "" {
		logger.Warn("no data directory configured, cache will not survive restarts")
		return store.NewMemoryStore(), nil
	}
	return store.NewBadgerStore(cfg.DataDir)
}

// ProvideFetcher creates the upstream transport.
func ProvideFetcher(cfg *config.Config, logger *zap.Logger) (gateway.Fetcher, error) {
	ucfg := upstream.DefaultConfig(cfg.UpstreamURL)
	ucfg.Timeout = cfg.UpstreamTimeout
	ucfg.BreakerMaxRequests = cfg.BreakerMaxRequests
	ucfg.BreakerInterval = cfg.BreakerInterval
	ucfg.BreakerTimeout = cfg.BreakerTimeout
	ucfg.BreakerFailureThreshold = cfg.BreakerFailureThreshold
	ucfg.BreakerMinRequests = cfg.BreakerMinRequests
	return upstream.New(ucfg, logger)
}

// ProvideMetrics creates the gateway's metrics set.
func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

// ProvideDispatcher builds one handler per endpoint family and the
// dispatcher that routes between them.
func ProvideDispatcher(
	st store.Store,
	fetcher gateway.Fetcher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *gateway.Dispatcher {
	endpoints := gateway.DefaultEndpoints()
	handlers := make([]*gateway.Handler, 0, len(endpoints))
	for _, ep := range endpoints {
		handlers = append(handlers, gateway.NewHandler(ep, st, fetcher, m, logger))
	}
	return gateway.NewDispatcher(logger, handlers...)
}
