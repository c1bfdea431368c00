package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"jazz-tools/jazz-crypto/config"
)

const bearerPrefix = "Bearer "

type JwtAuthenticator struct {
	Audiences []string `yaml:"audiences"`
	JwksUrl   string   `yaml:"jwks-url"`
	jwks      *keyfunc.JWKS
	logger    *zap.Logger
}

func NewJwtAuthenticator(logger *zap.Logger) *JwtAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JwtAuthenticator{logger: logger}
}

func (j *JwtAuthenticator) Type() string {
	return config.AuthJWT
}

func (j *JwtAuthenticator) Init(ctx context.Context, cfg map[string]interface{}) error {
	if j.logger == nil {
		j.logger = zap.NewNop()
	}

	jwksUrl, ok := cfg["jwks-url"].(string)
	if !ok || jwksUrl == "" {
		return fmt.Errorf("jwks-url is required")
	}
	j.JwksUrl = jwksUrl
	j.Audiences = stringList(cfg["audiences"])

	jwks, err := keyfunc.Get(jwksUrl, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			j.logger.Warn("JWKS refresh failed", zap.String("jwks_url", jwksUrl), zap.Error(err))
		},
		RefreshInterval: time.Minute * 5,
	})
	if err != nil {
		return fmt.Errorf("failed to get JWKS: %w", err)
	}

	j.jwks = jwks
	return nil
}

func (j *JwtAuthenticator) Authenticate(ctx context.Context, credentials interface{}) (*AuthenticationResult, error) {
	jwtString, ok := credentials.(string)
	if !ok {
		return nil, fmt.Errorf("%w: credentials must be a string token", ErrUnauthenticated)
	}
	if j.jwks == nil {
		return nil, fmt.Errorf("jwt authenticator not initialised")
	}

	jwtString = strings.TrimPrefix(jwtString, bearerPrefix)

	token, err := jwt.Parse(jwtString, j.jwks.Keyfunc)
	if err != nil {
		j.logger.Debug("rejected JWT", zap.Error(err))
		return rejected(), fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return rejected(), fmt.Errorf("%w: invalid token signature", ErrUnauthenticated)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return rejected(), fmt.Errorf("%w: unexpected claims type", ErrUnauthenticated)
	}

	if !j.audienceAllowed(claims) {
		return rejected(), fmt.Errorf("%w: invalid audience: %v", ErrUnauthenticated, claims["aud"])
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return rejected(), fmt.Errorf("%w: invalid subject: %v", ErrUnauthenticated, claims["sub"])
	}

	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return rejected(), fmt.Errorf("%w: invalid expiry: %v", ErrUnauthenticated, claims["exp"])
	}
	expiry := time.Unix(int64(expFloat), 0)
	if time.Now().After(expiry) {
		return rejected(), fmt.Errorf("%w: token expired", ErrUnauthenticated)
	}

	return &AuthenticationResult{
		Authenticated: true,
		Subject:       sub,
		Claims:        claims,
		Expiration:    expiry,
	}, nil
}

// audienceAllowed accepts a string or list "aud" claim sharing at least one
// value with the configured audiences.
func (j *JwtAuthenticator) audienceAllowed(claims jwt.MapClaims) bool {
	var auds []string
	switch aud := claims["aud"].(type) {
	case string:
		auds = []string{aud}
	case []interface{}:
		auds = stringList(aud)
	}

	for _, aud := range auds {
		if aud != "" && slices.Contains(j.Audiences, aud) {
			return true
		}
	}
	return false
}

func (j *JwtAuthenticator) Close() error {
	if j.jwks != nil {
		j.jwks.EndBackground()
	}
	return nil
}
