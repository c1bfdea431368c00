package auth

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthenticated is wrapped by every credential rejection.
var ErrUnauthenticated = errors.New("unauthenticated")

type AuthenticationResult struct {
	Authenticated bool
	Subject       string
	Claims        map[string]interface{}
	Expiration    time.Time
}

type Authenticator interface {
	Type() string
	Init(ctx context.Context, config map[string]interface{}) error
	Authenticate(ctx context.Context, credentials interface{}) (*AuthenticationResult, error)
	Close() error
}

func rejected() *AuthenticationResult {
	return &AuthenticationResult{Authenticated: false}
}

func stringList(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
