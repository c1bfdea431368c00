package auth

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spiffe/go-spiffe/v2/bundle/jwtbundle"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/svid/jwtsvid"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
	"go.uber.org/zap"

	"jazz-tools/jazz-crypto/config"
)

type SpiffeAuthenticator struct {
	TrustDomain string   `yaml:"trust_domain"`
	Audiences   []string `yaml:"audiences"`
	Endpoint    string   `yaml:"endpoint"`

	trustDomain spiffeid.TrustDomain
	bundles     jwtbundle.Source
	closer      io.Closer
	logger      *zap.Logger
}

func NewSpiffeAuthenticator(logger *zap.Logger) *SpiffeAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpiffeAuthenticator{logger: logger}
}

func (s *SpiffeAuthenticator) Type() string {
	return config.AuthSpiffe
}

func (s *SpiffeAuthenticator) Init(ctx context.Context, cfg map[string]interface{}) error {
	if err := s.initConfig(cfg); err != nil {
		return err
	}

	clientOptions := workloadapi.WithClientOptions(workloadapi.WithAddr(s.Endpoint))
	jwtSource, err := workloadapi.NewJWTSource(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to initialise JWT source: %w", err)
	}

	s.bundles = jwtSource
	s.closer = jwtSource
	return nil
}

func (s *SpiffeAuthenticator) initConfig(cfg map[string]interface{}) error {
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	trustDomain, ok := cfg["trust_domain"].(string)
	if !ok {
		return fmt.Errorf("trust_domain is required")
	}
	td, err := spiffeid.TrustDomainFromString(trustDomain)
	if err != nil {
		return fmt.Errorf("invalid trust_domain: %w", err)
	}
	s.TrustDomain = trustDomain
	s.trustDomain = td

	endpoint, ok := cfg["endpoint"].(string)
	if !ok {
		return fmt.Errorf("endpoint is required")
	}
	s.Endpoint = endpoint
	s.Audiences = stringList(cfg["audiences"])

	return nil
}

func (s *SpiffeAuthenticator) Authenticate(ctx context.Context, credentials interface{}) (*AuthenticationResult, error) {
	token, ok := credentials.(string)
	if !ok {
		return nil, fmt.Errorf("%w: credentials must be a string token", ErrUnauthenticated)
	}
	if s.bundles == nil {
		return nil, fmt.Errorf("spiffe authenticator not initialised")
	}

	token = strings.TrimPrefix(token, bearerPrefix)

	svid, err := jwtsvid.ParseAndValidate(token, s.bundles, s.Audiences)
	if err != nil {
		s.logger.Debug("rejected JWT-SVID", zap.Error(err))
		return rejected(), fmt.Errorf("%w: invalid token: %v", ErrUnauthenticated, err)
	}

	if !svid.ID.MemberOf(s.trustDomain) {
		return rejected(), fmt.Errorf("%w: %s is not in trust domain %s", ErrUnauthenticated, svid.ID, s.trustDomain)
	}

	claims := make(map[string]interface{}, len(svid.Claims))
	for k, v := range svid.Claims {
		claims[k] = v
	}

	return &AuthenticationResult{
		Authenticated: true,
		Subject:       svid.ID.String(),
		Claims:        claims,
		Expiration:    svid.Expiry,
	}, nil
}

func (s *SpiffeAuthenticator) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
