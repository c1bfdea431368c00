// Package entrypoint is the stable, flat surface through which hosts call
// jazz-crypto. Every function takes and returns only uint32, []byte, bool
// and Status; outputs are written into caller-supplied buffers whose length
// must match the algorithm's output size exactly.
//
// Initialize must succeed before any other function is used. Entry points
// never panic: failures, including unexpected panics inside the library,
// are reported as a Status.
package entrypoint

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"jazz-tools/jazz-crypto/config"
	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/keys"
	"jazz-tools/jazz-crypto/metrics"
	"jazz-tools/jazz-crypto/securemem"
)

// Options configures InitializeWith. Zero fields select the defaults.
type Options struct {
	// Config supplies the memory, defaults and nonce guard sections.
	Config         *config.Config
	Logger         *zap.Logger
	MetricsHandler client.MetricsHandler
}

type runtime struct {
	manager *keys.Manager
	guard   *crypto.NonceGuard
	logger  *zap.Logger
	metrics client.MetricsHandler

	defaultAEAD      crypto.Algorithm
	defaultHash      crypto.Algorithm
	defaultSignature crypto.Algorithm
}

var (
	initOnce   sync.Once
	initStatus Status
	current    atomic.Pointer[runtime]
)

// Initialize prepares the library with the default configuration. It is
// idempotent and safe for concurrent use; every call returns the status of
// the first.
func Initialize() Status {
	return InitializeWith(Options{})
}

// InitializeWith is Initialize with explicit options. Only the first call
// of Initialize or InitializeWith takes effect.
func InitializeWith(opts Options) Status {
	initOnce.Do(func() {
		rt, err := newRuntime(opts)
		if err != nil {
			logger := opts.Logger
			if logger == nil {
				logger = zap.NewNop()
			}
			logger.Error("jazz-crypto initialization failed", zap.Error(err))
			initStatus = StatusOf(err)
			return
		}
		current.Store(rt)
		initStatus = StatusOK
	})
	return initStatus
}

// Initialized reports whether Initialize has succeeded.
func Initialized() bool {
	return current.Load() != nil
}

func newRuntime(opts Options) (*runtime, error) {
	cfg := config.DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidParameter, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := opts.MetricsHandler
	if handler == nil {
		handler = client.MetricsNopHandler
	}

	if err := crypto.InitRandom(); err != nil {
		return nil, err
	}

	alloc := securemem.NewAllocator(cfg.Memory.Allocator(), securemem.WithLogger(logger))
	rt := &runtime{
		manager: keys.NewManager(alloc, keys.WithName("entrypoint"), keys.WithLogger(logger), keys.WithMetricsHandler(handler)),
		logger:  logger,
		metrics: handler,
	}
	rt.defaultAEAD, rt.defaultHash, rt.defaultSignature = cfg.Defaults.Algorithms()

	if cfg.NonceGuard.Enabled {
		guard, err := crypto.NewNonceGuard(cfg.NonceGuard.Size)
		if err != nil {
			return nil, err
		}
		rt.guard = guard
	}

	logger.Info("jazz-crypto initialized",
		zap.Stringer("backing", alloc.Backing()),
		zap.Int("ceiling", alloc.Ceiling()),
		zap.Stringer("aead", rt.defaultAEAD),
		zap.Stringer("hash", rt.defaultHash),
		zap.Stringer("signature", rt.defaultSignature),
		zap.Bool("nonce_guard", rt.guard != nil))

	return rt, nil
}

// call runs fn against the initialized runtime, recording metrics and
// converting errors and panics to a Status. A securemem.Abort panic is
// re-raised.
func call(op string, fn func(rt *runtime) error) (status Status) {
	rt := current.Load()
	if rt == nil {
		return StatusUninitialized
	}

	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok && errors.Is(err, securemem.ErrFatal) {
				panic(r)
			}
			rt.logger.Error("panic in entry point",
				zap.String("op", op),
				zap.Any("panic", r),
				zap.Stack("stack"))
			status = StatusInternal
		}
	}()

	err := metrics.Observe(rt.metrics, op, func() error { return fn(rt) })
	if err != nil {
		rt.logger.Debug("entry point failed", zap.String("op", op), zap.Error(err))
	}
	return StatusOf(err)
}

// resolve maps identifier 0 to the configured default of kind and checks
// that alg belongs to kind.
func (rt *runtime) resolve(alg uint32, kind crypto.Kind) (crypto.Algorithm, error) {
	a := crypto.Algorithm(alg)
	if alg == 0 {
		switch kind {
		case crypto.KindAEAD:
			a = rt.defaultAEAD
		case crypto.KindHash:
			a = rt.defaultHash
		case crypto.KindSignature:
			a = rt.defaultSignature
		case crypto.KindKeyAgreement:
			a = crypto.X25519
		}
	}
	if a.Kind() != kind {
		return 0, fmt.Errorf("%w: %s is not a %s algorithm", crypto.ErrUnsupportedAlgorithm, a, kind)
	}
	return a, nil
}

func checkOut(out []byte, want int) error {
	if len(out) != want {
		return fmt.Errorf("%w: output buffer length %d, want %d", crypto.ErrInvalidParameter, len(out), want)
	}
	return nil
}

// deliver copies result into out and wipes result.
func deliver(out, result []byte) error {
	defer securemem.Wipe(result)
	if err := checkOut(out, len(result)); err != nil {
		return err
	}
	copy(out, result)
	return nil
}
