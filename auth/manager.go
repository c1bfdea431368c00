package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"jazz-tools/jazz-crypto/config"
)

type AuthenticatorConstructor func(logger *zap.Logger) Authenticator

var constructors = map[string]AuthenticatorConstructor{
	config.AuthJWT:    func(logger *zap.Logger) Authenticator { return NewJwtAuthenticator(logger) },
	config.AuthSpiffe: func(logger *zap.Logger) Authenticator { return NewSpiffeAuthenticator(logger) },
}

// NewAuthenticator builds and initialises the authenticator cfg names.
func NewAuthenticator(ctx context.Context, cfg config.AuthConfig, logger *zap.Logger) (Authenticator, error) {
	newAuth, ok := constructors[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported authentication type: %s", cfg.Type)
	}

	authenticator := newAuth(logger)
	if err := authenticator.Init(ctx, cfg.Config); err != nil {
		return nil, fmt.Errorf("failed to initialize %s authenticator: %w", cfg.Type, err)
	}
	return authenticator, nil
}

type AuthManager struct {
	authenticators map[string]Authenticator
	// required names the authenticator every request must pass; empty
	// disables authentication.
	required string
	logger   *zap.Logger
	mu       sync.RWMutex
}

func NewAuthManager(logger *zap.Logger) *AuthManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthManager{
		authenticators: make(map[string]Authenticator),
		logger:         logger,
	}
}

func (am *AuthManager) RegisterAuthenticator(auth Authenticator) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	typ := auth.Type()
	if _, exists := am.authenticators[typ]; exists {
		return fmt.Errorf("authenticator with type %s already registered", typ)
	}

	am.authenticators[typ] = auth
	return nil
}

// Require makes the authenticator of type typ mandatory for Verify.
func (am *AuthManager) Require(typ string) error {
	if _, err := am.GetAuthenticator(typ); err != nil {
		return err
	}

	am.mu.Lock()
	defer am.mu.Unlock()
	am.required = typ
	return nil
}

// Enabled reports whether Verify checks credentials.
func (am *AuthManager) Enabled() bool {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.required != ""
}

func (am *AuthManager) GetAuthenticator(name string) (Authenticator, error) {
	am.mu.RLock()
	defer am.mu.RUnlock()

	auth, exists := am.authenticators[name]
	if !exists {
		return nil, fmt.Errorf("authenticator with name %s not found", name)
	}

	return auth, nil
}

func (am *AuthManager) Authenticate(ctx context.Context, name string, credentials interface{}) (*AuthenticationResult, error) {
	auth, err := am.GetAuthenticator(name)
	if err != nil {
		return nil, err
	}

	return auth.Authenticate(ctx, credentials)
}

// Verify authenticates credentials with the required authenticator. It
// succeeds with a nil result when authentication is disabled.
func (am *AuthManager) Verify(ctx context.Context, credentials interface{}) (*AuthenticationResult, error) {
	am.mu.RLock()
	required := am.required
	am.mu.RUnlock()

	if required == "" {
		return nil, nil
	}

	result, err := am.Authenticate(ctx, required, credentials)
	if err != nil {
		return result, err
	}
	if result == nil || !result.Authenticated {
		return result, fmt.Errorf("%w: rejected by %s", ErrUnauthenticated, required)
	}

	am.logger.Debug("request authenticated",
		zap.String("auth_type", required),
		zap.String("subject", result.Subject))
	return result, nil
}

func (am *AuthManager) Close() error {
	am.mu.Lock()
	defer am.mu.Unlock()

	var errs []error
	for name, auth := range am.authenticators {
		if err := auth.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close authenticator %s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
