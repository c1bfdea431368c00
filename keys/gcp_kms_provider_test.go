package keys

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"jazz-tools/jazz-crypto/crypto"
)

// Mock GCP KMS client
type mockGCPKMSClient struct {
	mock.Mock
}

func (m *mockGCPKMSClient) GenerateRandomBytes(ctx context.Context, req *kmspb.GenerateRandomBytesRequest, opts ...gax.CallOption) (*kmspb.GenerateRandomBytesResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*kmspb.GenerateRandomBytesResponse)
	return resp, args.Error(1)
}

func (m *mockGCPKMSClient) Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*kmspb.EncryptResponse)
	return resp, args.Error(1)
}

func (m *mockGCPKMSClient) Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*kmspb.DecryptResponse)
	return resp, args.Error(1)
}

const testGCPKeyName = "projects/my-project/locations/global/keyRings/my-keyring/cryptoKeys/my-key"

func TestGCPKMSProvider_GetMaterial(t *testing.T) {
	mockClient := new(mockGCPKMSClient)
	ciphertext := []byte("test-encrypted-key")
	cryptoCtx := crypto.CryptoContext{"purpose": "test"}

	mockClient.On("GenerateRandomBytes", mock.Anything, mock.MatchedBy(func(req *kmspb.GenerateRandomBytesRequest) bool {
		return req.Location == "projects/my-project/locations/global" &&
			req.LengthBytes == crypto.KeySize &&
			req.ProtectionLevel == kmspb.ProtectionLevel_HSM
	})).Return(&kmspb.GenerateRandomBytesResponse{Data: rawKey(0x22)}, nil)
	mockClient.On("Encrypt", mock.Anything, mock.MatchedBy(func(req *kmspb.EncryptRequest) bool {
		return req.Name == testGCPKeyName &&
			string(req.AdditionalAuthenticatedData) == string(crypto.ContextToBytes(cryptoCtx))
	})).Return(&kmspb.EncryptResponse{Ciphertext: ciphertext}, nil)

	provider := NewGCPKMSProvider(mockClient, newTestManager(t), GCPKMSOptions{KeyName: testGCPKeyName})

	material, err := provider.GetMaterial(context.Background(), cryptoCtx)
	require.NoError(t, err)
	defer material.Release()

	exported, err := material.Key.Export()
	require.NoError(t, err)
	assert.Equal(t, rawKey(0x22), exported)
	assert.Equal(t, ciphertext, material.EncryptedKey)
	assert.Equal(t, crypto.AES256GCM, material.Key.Algorithm())

	mockClient.AssertExpectations(t)
}

func TestGCPKMSProvider_GetMaterialEncryptError(t *testing.T) {
	mockClient := new(mockGCPKMSClient)
	manager := newTestManager(t)

	mockClient.On("GenerateRandomBytes", mock.Anything, mock.Anything).Return(
		&kmspb.GenerateRandomBytesResponse{Data: rawKey(0x22)}, nil)
	mockClient.On("Encrypt", mock.Anything, mock.Anything).Return(nil, errors.New("permission denied"))

	provider := NewGCPKMSProvider(mockClient, manager, GCPKMSOptions{KeyName: testGCPKeyName})

	material, err := provider.GetMaterial(context.Background(), crypto.CryptoContext{"purpose": "test"})
	assert.ErrorContains(t, err, "failed to encrypt data key")
	assert.Nil(t, material)
	assert.Zero(t, manager.Live())
}

func TestGCPKMSProvider_DecryptMaterial(t *testing.T) {
	mockClient := new(mockGCPKMSClient)
	ciphertext := []byte("test-encrypted-key")

	mockClient.On("Decrypt", mock.Anything, mock.MatchedBy(func(req *kmspb.DecryptRequest) bool {
		return string(req.Ciphertext) == string(ciphertext)
	})).Return(&kmspb.DecryptResponse{Plaintext: rawKey(0x22)}, nil)

	provider := NewGCPKMSProvider(mockClient, newTestManager(t), GCPKMSOptions{
		KeyName:          testGCPKeyName,
		DataKeyAlgorithm: crypto.ChaCha20Poly1305,
	})

	material, err := provider.DecryptMaterial(context.Background(), crypto.CryptoContext{"purpose": "test"}, &Material{
		EncryptedKey: ciphertext,
	})
	require.NoError(t, err)
	defer material.Release()

	exported, err := material.Key.Export()
	require.NoError(t, err)
	assert.Equal(t, rawKey(0x22), exported)
	assert.Equal(t, ciphertext, material.EncryptedKey)
	assert.Equal(t, crypto.ChaCha20Poly1305, material.Key.Algorithm())

	mockClient.AssertExpectations(t)
}

func TestGCPKMSProvider_DecryptMaterialWrongLength(t *testing.T) {
	mockClient := new(mockGCPKMSClient)
	mockClient.On("Decrypt", mock.Anything, mock.Anything).Return(
		&kmspb.DecryptResponse{Plaintext: []byte("short")}, nil)

	provider := NewGCPKMSProvider(mockClient, newTestManager(t), GCPKMSOptions{KeyName: testGCPKeyName})

	_, err := provider.DecryptMaterial(context.Background(), nil, &Material{EncryptedKey: []byte("x")})
	assert.ErrorIs(t, err, crypto.ErrInvalidParameter)
}

func TestExtractLocationFromKeyName(t *testing.T) {
	tests := []struct {
		name     string
		keyName  string
		expected string
	}{
		{
			name:     "Valid key name",
			keyName:  testGCPKeyName,
			expected: "projects/my-project/locations/global",
		},
		{
			name:     "Valid key name with region",
			keyName:  "projects/my-project/locations/us-central1/keyRings/my-keyring/cryptoKeys/my-key",
			expected: "projects/my-project/locations/us-central1",
		},
		{
			name:     "Invalid key name",
			keyName:  "invalid-key-name",
			expected: "projects/default-project/locations/global",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractLocationFromKeyName(tt.keyName))
		})
	}
}
