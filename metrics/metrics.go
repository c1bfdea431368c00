package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"jazz-tools/jazz-crypto/config"
)

var Module = fx.Options(
	fx.Provide(newMetricsProvider),
	fx.Provide(newRootMetricsHandler),
)

type (
	MetricsProvider interface {
		Start() error
		Stop(ctx context.Context) error
		Addr() string
	}

	httpPromMetricsProvider struct {
		host     string
		port     int
		path     string
		server   *http.Server
		listener net.Listener
		logger   *zap.Logger
	}
)

func newMetricsProvider(lc fx.Lifecycle, configProvider config.ConfigProvider, logger *zap.Logger) (MetricsProvider, error) {
	cfg := configProvider.GetConfig()

	if _, err := InitPrometheus(); err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus provider: %w", err)
	}

	provider := NewPrometheusServer(cfg.Server.Host, cfg.Metrics.Port, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return provider.Start()
		},
		OnStop: func(ctx context.Context) error {
			return provider.Stop(ctx)
		},
	})

	return provider, nil
}

func newRootMetricsHandler(configProvider config.ConfigProvider) *MetricsHandler {
	cfg := configProvider.GetConfig()
	return NewMetricsHandler(MetricsHandlerOptions{
		InitialAttributes: attribute.NewSet(
			attribute.String("memory_backing", cfg.Memory.Backing),
			attribute.String("encryption_type", cfg.Encryption.Type),
		),
	})
}

// NewPrometheusServer serves promhttp.Handler on host:port. A port of 0
// picks a free port; see Addr.
func NewPrometheusServer(host string, port int, logger *zap.Logger) MetricsProvider {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle(DefaultPrometheusPath, promhttp.Handler())

	return &httpPromMetricsProvider{
		host:   host,
		port:   port,
		path:   DefaultPrometheusPath,
		server: &http.Server{Handler: mux},
		logger: logger,
	}
}

func (h *httpPromMetricsProvider) Start() error {
	lis, err := net.Listen("tcp", h.getHostPort())
	if err != nil {
		return fmt.Errorf("metrics server listen: %w", err)
	}
	h.listener = lis

	go func() {
		h.logger.Info("metrics server started", zap.String("endpoint", h.Addr()+h.path))
		if err := h.server.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("metrics server error", zap.Error(err))
		}
	}()

	return nil
}

func (h *httpPromMetricsProvider) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Addr returns the bound address once started, else the configured one.
func (h *httpPromMetricsProvider) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.getHostPort()
}

func (h *httpPromMetricsProvider) getHostPort() string {
	return fmt.Sprintf("%s:%d", h.host, h.port)
}
