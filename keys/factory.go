package keys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	gcpKms "cloud.google.com/go/kms/apiv1"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awsKms "github.com/aws/aws-sdk-go/service/kms"
	"github.com/mr-tron/base58"
	"go.opentelemetry.io/otel/attribute"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"jazz-tools/jazz-crypto/config"
	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/metrics"
)

// Provider is a configured MaterialsManager together with the resources it
// owns.
type Provider struct {
	MaterialsManager
	// KeyID names the wrapping key: the KMS key ID or name, or a key_z ID
	// for a local master key.
	KeyID string

	closers []io.Closer
}

// Close releases the provider's cache, clients and master key.
func (p *Provider) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type (
	providerArgs struct {
		ctx     context.Context
		config  config.EncryptionConfig
		manager *Manager
		dataAlg crypto.Algorithm
	}

	providerConstructor func(args providerArgs) (*Provider, error)
)

var providers = map[string]providerConstructor{
	config.EncryptionLocal:  newLocalFromConfig,
	config.EncryptionAWSKMS: newAWSKMSFromConfig,
	config.EncryptionGCPKMS: newGCPKMSFromConfig,
}

// NewMaterialsManager builds the materials manager selected by cfg.Type,
// wrapped in a CachingMaterialsManager when caching is configured.
func NewMaterialsManager(
	ctx context.Context,
	cfg config.EncryptionConfig,
	manager *Manager,
	metricsHandler *metrics.MetricsHandler,
	logger *zap.Logger,
) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	construct, ok := providers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported encryption type %s", cfg.Type)
	}

	var dataAlg crypto.Algorithm
	if name := cfg.String("data-key-algorithm"); name != "" {
		alg, err := crypto.ParseAlgorithm(name)
		if err != nil {
			return nil, err
		}
		if !supportsEnvelope(alg) {
			return nil, fmt.Errorf("%w: data key algorithm %s", crypto.ErrUnsupportedAlgorithm, alg)
		}
		dataAlg = alg
	}

	provider, err := construct(providerArgs{
		ctx:     ctx,
		config:  cfg,
		manager: manager,
		dataAlg: dataAlg,
	})
	if err != nil {
		return nil, err
	}

	var handler client.MetricsHandler = client.MetricsNopHandler
	if metricsHandler != nil {
		metricsHandler.AddAttributes(attribute.String("encryption_key", provider.KeyID))
		handler = metricsHandler
	}

	if cfg.Caching.Enabled() {
		cachingConfig := CachingConfig{
			MaxCache:        cfg.Caching.MaxCache,
			MaxMessagesUsed: cfg.Caching.MaxUsage,
		}
		if cfg.Caching.MaxAge != "" {
			if duration, err := time.ParseDuration(cfg.Caching.MaxAge); err == nil {
				cachingConfig.MaxAge = duration
			}
		}

		cachingMM, err := NewCachingMaterialsManager(provider.MaterialsManager, cachingConfig, handler, logger)
		if err != nil {
			_ = provider.Close()
			return nil, err
		}
		provider.MaterialsManager = cachingMM
		provider.closers = append(provider.closers, cachingMM)
	}

	logger.Info("materials manager configured",
		zap.String("type", cfg.Type),
		zap.String("key_id", provider.KeyID),
		zap.Bool("caching", cfg.Caching.Enabled()))

	return provider, nil
}

func newLocalFromConfig(args providerArgs) (*Provider, error) {
	secret := args.config.String("master-key")
	if envVar := args.config.String("master-key-env"); secret == "" && envVar != "" {
		secret = os.Getenv(envVar)
		if secret == "" {
			return nil, fmt.Errorf("master key environment variable %s is empty", envVar)
		}
	}
	if secret == "" {
		return nil, fmt.Errorf("master key not found in config")
	}

	masterAlg := crypto.DefaultAEAD
	if name := args.config.String("master-algorithm"); name != "" {
		alg, err := crypto.ParseAlgorithm(name)
		if err != nil {
			return nil, err
		}
		masterAlg = alg
	}

	master, err := args.manager.ImportSecret(secret, masterAlg)
	if err != nil {
		return nil, fmt.Errorf("failed to import master key: %w", err)
	}

	local, err := NewLocalProvider(args.manager, master, LocalOptions{DataKeyAlgorithm: args.dataAlg})
	if err != nil {
		master.Destroy()
		return nil, err
	}

	keyID := args.config.String("key-id")
	if keyID == "" {
		keyID = localKeyID(master)
	}

	return &Provider{
		MaterialsManager: local,
		KeyID:            keyID,
		closers: []io.Closer{closerFunc(func() error {
			master.Destroy()
			return nil
		})},
	}, nil
}

// localKeyID names a master key by a hash of its bytes so that restarts
// with the same key report the same ID.
func localKeyID(master *KeyMaterial) string {
	var id string
	_ = master.Use(func(secret []byte) error {
		sum := crypto.HashWithContext([]byte("keyID"), secret)
		id = PrefixKeyID + base58.Encode(sum[:KeyIDSize])
		return nil
	})
	return id
}

func newAWSKMSFromConfig(args providerArgs) (*Provider, error) {
	keyID := args.config.String("key-id")
	if keyID == "" {
		return nil, fmt.Errorf("key not found in config")
	}

	region := os.Getenv(config.AwsRegionEnvVar)
	if region == "" {
		region = config.DefaultAwsRegion
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return &Provider{
		MaterialsManager: NewAWSKMSProvider(awsKms.New(sess), args.manager, AWSKMSOptions{
			KeyID:            keyID,
			KeySpec:          awsKms.DataKeySpecAes256,
			DataKeyAlgorithm: args.dataAlg,
		}),
		KeyID: keyID,
	}, nil
}

func newGCPKMSFromConfig(args providerArgs) (*Provider, error) {
	keyName := args.config.String("key-name")
	if keyName == "" {
		return nil, fmt.Errorf("key not found in config")
	}

	kmsClient, err := gcpKms.NewKeyManagementClient(args.ctx)
	if err != nil {
		return nil, err
	}

	return &Provider{
		MaterialsManager: NewGCPKMSProvider(kmsClient, args.manager, GCPKMSOptions{
			KeyName:          keyName,
			DataKeyAlgorithm: args.dataAlg,
		}),
		KeyID:   keyName,
		closers: []io.Closer{kmsClient},
	}, nil
}
