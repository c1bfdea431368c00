package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyID = "test-key-id"

func TestJwtAuthenticator_Type(t *testing.T) {
	assert.Equal(t, "jwt", NewJwtAuthenticator(nil).Type())
}

func TestJwtAuthenticator_Init(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := createMockJWKSServer(t, &privateKey.PublicKey)

	tests := []struct {
		name          string
		config        map[string]interface{}
		expectError   bool
		errorContains string
	}{
		{
			name: "valid configuration with mock server",
			config: map[string]interface{}{
				"jwks-url":  server.URL + "/.well-known/jwks.json",
				"audiences": []interface{}{"service1", "service2"},
			},
		},
		{
			name: "missing jwks-url",
			config: map[string]interface{}{
				"audiences": []interface{}{"service1"},
			},
			expectError:   true,
			errorContains: "jwks-url is required",
		},
		{
			name: "invalid jwks-url type",
			config: map[string]interface{}{
				"jwks-url": 123,
			},
			expectError:   true,
			errorContains: "jwks-url is required",
		},
		{
			name:          "empty config",
			config:        map[string]interface{}{},
			expectError:   true,
			errorContains: "jwks-url is required",
		},
		{
			name: "jwks endpoint not found",
			config: map[string]interface{}{
				"jwks-url": server.URL + "/missing",
			},
			expectError:   true,
			errorContains: "failed to get JWKS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := NewJwtAuthenticator(nil)
			err := auth.Init(context.Background(), tt.config)
			t.Cleanup(func() { _ = auth.Close() })

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, auth.jwks)
			assert.Equal(t, tt.config["jwks-url"], auth.JwksUrl)
			assert.Equal(t, []string{"service1", "service2"}, auth.Audiences)
		})
	}
}

func TestJwtAuthenticator_Authenticate(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := createMockJWKSServer(t, &privateKey.PublicKey)

	auth := NewJwtAuthenticator(nil)
	require.NoError(t, auth.Init(context.Background(), map[string]interface{}{
		"jwks-url":  server.URL + "/.well-known/jwks.json",
		"audiences": []interface{}{"test-service", "another-service"},
	}))
	t.Cleanup(func() { _ = auth.Close() })

	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "test-user",
			"aud": "test-service",
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Unix(),
		}
	}

	tests := []struct {
		name          string
		credentials   func() interface{}
		expectError   bool
		errorContains string
		expectedSubj  string
	}{
		{
			name:         "valid token",
			credentials:  func() interface{} { return signToken(t, privateKey, valid()) },
			expectedSubj: "test-user",
		},
		{
			name:         "Bearer prefix stripped",
			credentials:  func() interface{} { return "Bearer " + signToken(t, privateKey, valid()) },
			expectedSubj: "test-user",
		},
		{
			name: "audience list",
			credentials: func() interface{} {
				claims := valid()
				claims["aud"] = []string{"unrelated", "another-service"}
				return signToken(t, privateKey, claims)
			},
			expectedSubj: "test-user",
		},
		{
			name:          "invalid credentials type",
			credentials:   func() interface{} { return 123 },
			expectError:   true,
			errorContains: "credentials must be a string token",
		},
		{
			name:          "nil credentials",
			credentials:   func() interface{} { return nil },
			expectError:   true,
			errorContains: "credentials must be a string token",
		},
		{
			name:        "empty token",
			credentials: func() interface{} { return "" },
			expectError: true,
		},
		{
			name:        "signed by unknown key",
			credentials: func() interface{} { return signToken(t, otherKey, valid()) },
			expectError: true,
		},
		{
			name: "wrong audience",
			credentials: func() interface{} {
				claims := valid()
				claims["aud"] = "service3"
				return signToken(t, privateKey, claims)
			},
			expectError:   true,
			errorContains: "invalid audience",
		},
		{
			name: "missing subject",
			credentials: func() interface{} {
				claims := valid()
				delete(claims, "sub")
				return signToken(t, privateKey, claims)
			},
			expectError:   true,
			errorContains: "invalid subject",
		},
		{
			name: "missing expiry",
			credentials: func() interface{} {
				claims := valid()
				delete(claims, "exp")
				return signToken(t, privateKey, claims)
			},
			expectError:   true,
			errorContains: "invalid expiry",
		},
		{
			name: "expired",
			credentials: func() interface{} {
				claims := valid()
				claims["exp"] = time.Now().Add(-time.Hour).Unix()
				return signToken(t, privateKey, claims)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := auth.Authenticate(context.Background(), tt.credentials())

			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnauthenticated)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				if result != nil {
					assert.False(t, result.Authenticated)
				}
				return
			}

			require.NoError(t, err)
			assert.True(t, result.Authenticated)
			assert.Equal(t, tt.expectedSubj, result.Subject)
			assert.True(t, result.Expiration.After(time.Now()))
		})
	}
}

func TestJwtAuthenticator_NotInitialised(t *testing.T) {
	_, err := NewJwtAuthenticator(nil).Authenticate(context.Background(), "token")
	assert.ErrorContains(t, err, "not initialised")
}

func TestJwtAuthenticator_Close(t *testing.T) {
	assert.NoError(t, (&JwtAuthenticator{}).Close())
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func createMockJWKSServer(t *testing.T, publicKey *rsa.PublicKey) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}

		jwks := map[string]interface{}{
			"keys": []map[string]interface{}{
				{
					"kty": "RSA",
					"kid": testKeyID,
					"use": "sig",
					"alg": "RS256",
					"n":   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)
	return server
}
