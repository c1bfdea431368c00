package keys

import (
	"fmt"
	"sync/atomic"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/metrics"
	"jazz-tools/jazz-crypto/securemem"
)

// Manager creates key material in secure memory. It is safe for concurrent
// use; the keys it returns are owned by the caller.
type Manager struct {
	alloc          *securemem.Allocator
	logger         *zap.Logger
	metricsHandler client.MetricsHandler
	name           string
	live           atomic.Int64
}

// DefaultManagerName tags the live-key gauge of a manager built without
// WithName.
const DefaultManagerName = "default"

type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetricsHandler(handler client.MetricsHandler) Option {
	return func(m *Manager) {
		if handler != nil {
			m.metricsHandler = handler
		}
	}
}

// WithName sets the value of the manager tag on the live-key gauge.
func WithName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.name = name
		}
	}
}

func NewManager(alloc *securemem.Allocator, opts ...Option) *Manager {
	if alloc == nil {
		alloc = securemem.NewAllocator(securemem.Config{})
	}

	m := &Manager{
		alloc:          alloc,
		logger:         zap.NewNop(),
		metricsHandler: client.MetricsNopHandler,
		name:           DefaultManagerName,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.metricsHandler = m.metricsHandler.WithTags(map[string]string{metrics.TagManager: m.name})
	return m
}

// Allocator returns the allocator backing the manager's keys.
func (m *Manager) Allocator() *securemem.Allocator {
	return m.alloc
}

// Live returns the number of keys created and not yet destroyed.
func (m *Manager) Live() int64 {
	return m.live.Load()
}

func (m *Manager) wrap(alg crypto.Algorithm, buf *securemem.Buffer) *KeyMaterial {
	n := m.live.Add(1)
	m.metricsHandler.Gauge(metrics.KeysLive).Update(float64(n))

	return newKeyMaterial(alg, buf, func() {
		n := m.live.Add(-1)
		m.metricsHandler.Gauge(metrics.KeysLive).Update(float64(n))
	})
}

func requireSecretKey(alg crypto.Algorithm) error {
	if !alg.Valid() || !alg.HasSecretKey() {
		return fmt.Errorf("%w: %s takes no secret key", crypto.ErrUnsupportedAlgorithm, alg)
	}
	return nil
}

// GenerateKey returns a fresh random key for alg.
func (m *Manager) GenerateKey(alg crypto.Algorithm) (*KeyMaterial, error) {
	if err := requireSecretKey(alg); err != nil {
		return nil, err
	}

	buf, err := m.alloc.Allocate(alg.KeySize())
	if err != nil {
		return nil, err
	}
	crypto.Fill(buf.Bytes())

	m.logger.Debug("generated key", zap.Stringer("algorithm", alg))
	return m.wrap(alg, buf), nil
}

type deriveOptions struct {
	alg crypto.Algorithm
}

type DeriveOption func(*deriveOptions)

// WithAlgorithm sets the algorithm of the derived key. The default is the
// master key's algorithm.
func WithAlgorithm(alg crypto.Algorithm) DeriveOption {
	return func(o *deriveOptions) {
		o.alg = alg
	}
}

// DeriveKey deterministically derives a key from master and context: the
// BLAKE3 extendable output of context || master.
func (m *Manager) DeriveKey(master *KeyMaterial, context []byte, opts ...DeriveOption) (*KeyMaterial, error) {
	if master == nil {
		return nil, fmt.Errorf("%w: nil master key", crypto.ErrInvalidParameter)
	}

	o := deriveOptions{alg: master.Algorithm()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := requireSecretKey(o.alg); err != nil {
		return nil, err
	}

	buf, err := m.alloc.Allocate(o.alg.KeySize())
	if err != nil {
		return nil, err
	}

	err = master.Use(func(secret []byte) error {
		return crypto.ExpandTo(buf.Bytes(), context, secret)
	})
	if err != nil {
		buf.Release()
		return nil, err
	}

	m.logger.Debug("derived key",
		zap.Stringer("master_algorithm", master.Algorithm()),
		zap.Stringer("algorithm", o.alg))
	return m.wrap(o.alg, buf), nil
}

// ImportKey copies raw into secure memory and wipes raw.
func (m *Manager) ImportKey(alg crypto.Algorithm, raw []byte) (*KeyMaterial, error) {
	if err := requireSecretKey(alg); err != nil {
		return nil, err
	}
	if len(raw) != alg.KeySize() {
		return nil, fmt.Errorf("%w: %s key length %d, want %d",
			crypto.ErrInvalidParameter, alg, len(raw), alg.KeySize())
	}

	buf, err := m.alloc.AllocateFrom(raw)
	if err != nil {
		return nil, err
	}
	return m.wrap(alg, buf), nil
}

// Destroy zeroes and frees key.
func (m *Manager) Destroy(key *KeyMaterial) {
	if key != nil {
		key.Destroy()
	}
}

// PublicKey returns the public half of a signature or sealing key.
func (m *Manager) PublicKey(key *KeyMaterial) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil key", crypto.ErrInvalidParameter)
	}

	var pub []byte
	err := key.Use(func(secret []byte) error {
		var err error
		pub, err = crypto.PublicKey(key.Algorithm(), secret)
		return err
	})
	return pub, err
}
