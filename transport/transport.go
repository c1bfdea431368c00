package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"jazz-tools/jazz-crypto/auth"
	"jazz-tools/jazz-crypto/codec"
	"jazz-tools/jazz-crypto/config"
	"jazz-tools/jazz-crypto/entrypoint"
)

var Module = fx.Provide(newTransportProvider)

type (
	TransportProvider interface {
		Start() error
		Stop() error
		Addr() string
	}

	grpcTransportProvider struct {
		host       string
		port       int
		grpcServer *grpc.Server
		listener   net.Listener
		logger     *zap.Logger
	}
)

// NewServer builds a gRPC server carrying the Crypto service over fns.
func NewServer(fns entrypoint.Table, defaults config.DefaultsConfig, authManager *auth.AuthManager,
	envelope *codec.Envelope, logger *zap.Logger) *grpc.Server {

	if logger == nil {
		logger = zap.NewNop()
	}
	grpcServer := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(authInterceptor(authManager, logger)),
	)
	RegisterCryptoServer(grpcServer, newCryptoServer(fns, defaults, envelope, logger))
	return grpcServer
}

func newTransportProvider(lc fx.Lifecycle, configProvider config.ConfigProvider, logger *zap.Logger,
	authManager *auth.AuthManager, envelope *codec.Envelope) (TransportProvider, error) {

	cfg := configProvider.GetConfig()

	transportManager := &grpcTransportProvider{
		host:       cfg.Server.Host,
		port:       cfg.Server.Port,
		grpcServer: NewServer(entrypoint.Functions, cfg.Defaults, authManager, envelope, logger),
		logger:     logger,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return transportManager.Start()
		},
		OnStop: func(ctx context.Context) error {
			return transportManager.Stop()
		},
	})

	return transportManager, nil
}

func (t *grpcTransportProvider) Start() error {
	lis, err := net.Listen("tcp", t.getHostPort())
	if err != nil {
		return fmt.Errorf("transport listen: %w", err)
	}
	t.listener = lis

	t.logger.Info(
		"crypto service started",
		zap.String("host", t.host),
		zap.Int("port", t.port),
		zap.String("addr", lis.Addr().String()),
	)

	go func() {
		if err := t.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.logger.Error("crypto service stopped", zap.Error(err))
		}
	}()

	return nil
}

func (t *grpcTransportProvider) Stop() error {
	t.grpcServer.GracefulStop()
	return nil
}

// Addr returns the bound address once started.
func (t *grpcTransportProvider) Addr() string {
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.getHostPort()
}

func (t *grpcTransportProvider) getHostPort() string {
	return fmt.Sprintf("%s:%d", t.host, t.port)
}
