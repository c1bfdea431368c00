package codec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"jazz-tools/jazz-crypto/config"
	"jazz-tools/jazz-crypto/keys"
	"jazz-tools/jazz-crypto/metrics"
	"jazz-tools/jazz-crypto/securemem"
)

var Module = fx.Options(
	fx.Provide(newEnvelopeProvider),
	fx.Invoke(registerCodecServer),
)

// Envelope bundles the envelope cipher and the payload codec built on it.
// Both are nil when no encryption provider is configured.
type Envelope struct {
	Cipher *keys.Cipher
	Codec  *Codec
}

// Enabled reports whether an encryption provider is configured.
func (e *Envelope) Enabled() bool {
	return e != nil && e.Cipher != nil
}

// NewEnvelope builds the materials manager named by cfg.Encryption and the
// codec over it. The returned closer releases the provider.
func NewEnvelope(
	ctx context.Context,
	cfg config.Config,
	metricsHandler *metrics.MetricsHandler,
	logger *zap.Logger,
) (*Envelope, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var handler client.MetricsHandler = client.MetricsNopHandler
	if metricsHandler != nil {
		handler = metricsHandler
	}

	alloc := securemem.NewAllocator(cfg.Memory.Allocator(), securemem.WithLogger(logger))
	manager := keys.NewManager(alloc, keys.WithName("codec"), keys.WithLogger(logger), keys.WithMetricsHandler(handler))

	provider, err := keys.NewMaterialsManager(ctx, cfg.Encryption, manager, metricsHandler, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure %s encryption: %w", cfg.Encryption.Type, err)
	}

	cipher := keys.NewCipher(provider, handler)

	return &Envelope{
		Cipher: cipher,
		Codec:  NewEncryptionCodec(cipher, provider.KeyID, cfg.Codec.Context),
	}, provider.Close, nil
}

func newEnvelopeProvider(
	lc fx.Lifecycle,
	configProvider config.ConfigProvider,
	metricsHandler *metrics.MetricsHandler,
	logger *zap.Logger,
) (*Envelope, error) {
	cfg := configProvider.GetConfig()
	if cfg.Encryption.Type == "" {
		logger.Info("envelope encryption disabled")
		return &Envelope{}, nil
	}

	envelope, closeProvider, err := NewEnvelope(context.Background(), cfg, metricsHandler, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closeProvider()
		},
	})

	return envelope, nil
}

// NewClientInterceptor returns a gRPC client interceptor that runs the
// payloads of Temporal requests and responses through codecs.
func NewClientInterceptor(codecs ...converter.PayloadCodec) (grpc.UnaryClientInterceptor, error) {
	return converter.NewPayloadCodecGRPCClientInterceptor(
		converter.PayloadCodecGRPCClientInterceptorOptions{
			Codecs: codecs,
		},
	)
}

// CodecServer serves the Temporal remote codec endpoints (/encode and
// /decode) for the Web UI and CLI.
type CodecServer struct {
	host     string
	port     int
	server   *http.Server
	listener net.Listener
	logger   *zap.Logger
}

func NewCodecServer(host string, port int, logger *zap.Logger, codecs ...converter.PayloadCodec) *CodecServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodecServer{
		host:   host,
		port:   port,
		server: &http.Server{Handler: converter.NewPayloadCodecHTTPHandler(codecs...)},
		logger: logger,
	}
}

func (s *CodecServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.host, s.port))
	if err != nil {
		return fmt.Errorf("codec server listen: %w", err)
	}
	s.listener = lis

	go func() {
		s.logger.Info("codec server started", zap.String("addr", lis.Addr().String()))
		if err := s.server.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("codec server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *CodecServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address once started.
func (s *CodecServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

func registerCodecServer(lc fx.Lifecycle, configProvider config.ConfigProvider, envelope *Envelope, logger *zap.Logger) {
	cfg := configProvider.GetConfig()
	if cfg.Codec.Port == 0 || !envelope.Enabled() {
		return
	}

	server := NewCodecServer(cfg.Server.Host, cfg.Codec.Port, logger, envelope.Codec)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start()
		},
		OnStop: func(ctx context.Context) error {
			return server.Stop(ctx)
		},
	})
}
