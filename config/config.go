package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/securemem"
)

const (
	ConfigPathFlag    = "config"
	DefaultConfigPath = "config.yaml"
	LogLevelFlag      = "level"

	AwsRegionEnvVar  = "AWS_REGION"
	DefaultAwsRegion = "us-west-2"

	DefaultServerHost  = "0.0.0.0"
	DefaultServerPort  = 7443
	DefaultMetricsPort = 9090
)

// Encryption provider types.
const (
	EncryptionLocal  = "local"
	EncryptionAWSKMS = "aws-kms"
	EncryptionGCPKMS = "gcp-kms"
)

// Authentication types.
const (
	AuthJWT    = "jwt"
	AuthSpiffe = "spiffe"
)

type (
	ConfigProvider interface {
		GetConfig() Config
	}

	Config struct {
		Server         ServerConfig     `yaml:"server"`
		Metrics        MetricsConfig    `yaml:"metrics"`
		Memory         MemoryConfig     `yaml:"memory"`
		Defaults       DefaultsConfig   `yaml:"defaults"`
		NonceGuard     NonceGuardConfig `yaml:"nonce_guard"`
		Encryption     EncryptionConfig `yaml:"encryption"`
		Codec          CodecConfig      `yaml:"codec"`
		Authentication *AuthConfig      `yaml:"authentication,omitempty"`
	}

	ServerConfig struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	}

	MetricsConfig struct {
		Port int `yaml:"port"`
	}

	MemoryConfig struct {
		Ceiling int    `yaml:"ceiling,omitempty"`
		Backing string `yaml:"backing,omitempty"`
	}

	DefaultsConfig struct {
		AEAD      string `yaml:"aead,omitempty"`
		Hash      string `yaml:"hash,omitempty"`
		Signature string `yaml:"signature,omitempty"`
	}

	NonceGuardConfig struct {
		Enabled bool `yaml:"enabled"`
		Size    int  `yaml:"size,omitempty"`
	}

	EncryptionConfig struct {
		Type    string                 `yaml:"type,omitempty"`
		Config  map[string]interface{} `yaml:"config,omitempty"`
		Caching CachingConfig          `yaml:"caching"`
	}

	// CodecConfig configures the Temporal payload codec. Port 0 disables
	// the HTTP codec server.
	CodecConfig struct {
		Port    int               `yaml:"port,omitempty"`
		Context map[string]string `yaml:"context,omitempty"`
	}

	CachingConfig struct {
		MaxCache int    `yaml:"max_cache,omitempty"`
		MaxAge   string `yaml:"max_age,omitempty"`
		MaxUsage int    `yaml:"max_usage,omitempty"`
	}

	AuthConfig struct {
		Type   string                 `yaml:"type"`
		Config map[string]interface{} `yaml:"config"`
	}

	cliConfigProvider struct {
		ctx    *cli.Context
		config Config
	}

	staticConfigProvider struct {
		config Config
	}
)

var Module = fx.Provide(
	newConfigProvider,
)

func newConfigProvider(ctx *cli.Context) (ConfigProvider, error) {
	path := ctx.String(ConfigPathFlag)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return &cliConfigProvider{
		ctx:    ctx,
		config: cfg,
	}, nil
}

func (c *cliConfigProvider) GetConfig() Config {
	return c.config
}

// NewStaticConfigProvider serves a fixed configuration.
func NewStaticConfigProvider(cfg Config) ConfigProvider {
	return &staticConfigProvider{config: cfg}
}

func (s *staticConfigProvider) GetConfig() Config {
	return s.config
}

// DefaultConfig returns the configuration used for omitted fields.
func DefaultConfig() Config {
	return Config{
		Server:  ServerConfig{Host: DefaultServerHost, Port: DefaultServerPort},
		Metrics: MetricsConfig{Port: DefaultMetricsPort},
		Memory: MemoryConfig{
			Ceiling: securemem.DefaultCeiling,
			Backing: securemem.BackingLocked.String(),
		},
		Defaults: DefaultsConfig{
			AEAD:      crypto.DefaultAEAD.String(),
			Hash:      crypto.DefaultHash.String(),
			Signature: crypto.DefaultSignature.String(),
		},
		NonceGuard: NonceGuardConfig{Size: crypto.DefaultNonceGuardSize},
	}
}

func LoadConfig(configFilePath string) (Config, error) {
	config := DefaultConfig()

	configFile, err := os.ReadFile(configFilePath)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(configFile, &config); err != nil {
		return config, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	if err = config.Validate(); err != nil {
		return config, fmt.Errorf("failed to validate config: %w", err)
	}

	return config, nil
}

func (c Config) Validate() error {
	var errs []error

	errs = append(errs, c.Server.Validate()...)
	errs = append(errs, c.Metrics.Validate()...)
	errs = append(errs, c.Memory.Validate()...)
	errs = append(errs, c.Defaults.Validate()...)
	errs = append(errs, c.NonceGuard.Validate()...)
	errs = append(errs, c.Encryption.Validate()...)
	errs = append(errs, c.Codec.Validate()...)
	if c.Authentication != nil {
		errs = append(errs, c.Authentication.Validate()...)
	}

	return errors.Join(errs...)
}

func (s ServerConfig) Validate() []error {
	if s.Port <= 0 || s.Port > 65535 {
		return []error{fmt.Errorf("invalid server port: %d", s.Port)}
	}
	return nil
}

func (m MetricsConfig) Validate() []error {
	if m.Port < 0 || m.Port > 65535 {
		return []error{fmt.Errorf("invalid metrics server port: %d", m.Port)}
	}
	return nil
}

func (m MemoryConfig) Validate() []error {
	var errs []error
	if m.Ceiling < 0 {
		errs = append(errs, fmt.Errorf("memory ceiling must be >= 0: %d", m.Ceiling))
	}
	if _, err := securemem.ParseBacking(m.Backing); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// Allocator returns the allocator settings.
func (m MemoryConfig) Allocator() securemem.Config {
	// validated by LoadConfig
	backing, _ := securemem.ParseBacking(m.Backing)
	return securemem.Config{Ceiling: m.Ceiling, Backing: backing}
}

func (d DefaultsConfig) Validate() []error {
	var errs []error
	check := func(field, name string, kind crypto.Kind) {
		if name == "" {
			return
		}
		alg, err := crypto.ParseAlgorithm(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("defaults.%s: %w", field, err))
			return
		}
		if alg.Kind() != kind {
			errs = append(errs, fmt.Errorf("defaults.%s: %s is not a %s algorithm", field, name, kind))
		}
	}

	check("aead", d.AEAD, crypto.KindAEAD)
	check("hash", d.Hash, crypto.KindHash)
	check("signature", d.Signature, crypto.KindSignature)
	return errs
}

// Algorithms resolves the default algorithm names, falling back to the
// built-in defaults for empty fields.
func (d DefaultsConfig) Algorithms() (aead, hash, signature crypto.Algorithm) {
	resolve := func(name string, fallback crypto.Algorithm) crypto.Algorithm {
		if alg, err := crypto.ParseAlgorithm(name); err == nil {
			return alg
		}
		return fallback
	}
	return resolve(d.AEAD, crypto.DefaultAEAD),
		resolve(d.Hash, crypto.DefaultHash),
		resolve(d.Signature, crypto.DefaultSignature)
}

func (c CodecConfig) Validate() []error {
	if c.Port < 0 || c.Port > 65535 {
		return []error{fmt.Errorf("invalid codec server port: %d", c.Port)}
	}
	return nil
}

func (n NonceGuardConfig) Validate() []error {
	if n.Size < 0 {
		return []error{fmt.Errorf("nonce_guard size must be >= 0: %d", n.Size)}
	}
	return nil
}

func (e EncryptionConfig) Validate() []error {
	var errs []error

	switch e.Type {
	case "":
	case EncryptionLocal:
		if e.String("master-key") == "" && e.String("master-key-env") == "" {
			errs = append(errs, errors.New("local encryption requires master-key or master-key-env"))
		}
	case EncryptionAWSKMS:
		if e.String("key-id") == "" {
			errs = append(errs, errors.New("aws-kms encryption requires key-id"))
		}
	case EncryptionGCPKMS:
		if e.String("key-name") == "" {
			errs = append(errs, errors.New("gcp-kms encryption requires key-name"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported encryption type: %s", e.Type))
	}

	errs = append(errs, e.Caching.Validate()...)
	return errs
}

// String returns a string value from the provider config, or "".
func (e EncryptionConfig) String(key string) string {
	if v, ok := e.Config[key].(string); ok {
		return v
	}
	return ""
}

func (c CachingConfig) Validate() []error {
	var errs []error
	if c.MaxCache < 0 {
		errs = append(errs, fmt.Errorf("encryption max_cache must be >= 0: %d", c.MaxCache))
	}
	if c.MaxUsage < 0 {
		errs = append(errs, fmt.Errorf("encryption max_usage must be >= 0: %d", c.MaxUsage))
	}
	if c.MaxAge != "" {
		if _, err := time.ParseDuration(c.MaxAge); err != nil {
			errs = append(errs, fmt.Errorf("encryption max_age is not a duration: %s", c.MaxAge))
		}
	}
	return errs
}

// Enabled reports whether any caching field is set.
func (c CachingConfig) Enabled() bool {
	return c.MaxCache > 0 || c.MaxAge != "" || c.MaxUsage > 0
}

func (a AuthConfig) Validate() []error {
	switch a.Type {
	case AuthJWT:
		if _, ok := a.Config["jwks-url"].(string); !ok {
			return []error{errors.New("jwt authentication requires jwks-url")}
		}
	case AuthSpiffe:
		if _, ok := a.Config["trust_domain"].(string); !ok {
			return []error{errors.New("spiffe authentication requires trust_domain")}
		}
		if _, ok := a.Config["endpoint"].(string); !ok {
			return []error{errors.New("spiffe authentication requires endpoint")}
		}
	default:
		return []error{fmt.Errorf("unsupported authentication type: %s", a.Type)}
	}
	return nil
}
