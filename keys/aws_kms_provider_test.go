package keys

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jazz-tools/jazz-crypto/crypto"
)

// MockKMSClient implements kmsiface.KMSAPI for testing
type MockKMSClient struct {
	kmsiface.KMSAPI
	generateDataKeyError  error
	decryptError          error
	lastEncryptionContext map[string]*string
	lastKeySpec           string
	lastKeyId             string
}

func (m *MockKMSClient) GenerateDataKeyWithContext(ctx context.Context, input *kms.GenerateDataKeyInput, opts ...request.Option) (*kms.GenerateDataKeyOutput, error) {
	m.lastEncryptionContext = input.EncryptionContext
	m.lastKeySpec = *input.KeySpec
	m.lastKeyId = *input.KeyId
	if m.generateDataKeyError != nil {
		return nil, m.generateDataKeyError
	}
	return &kms.GenerateDataKeyOutput{
		Plaintext:      rawKey(0x11),
		CiphertextBlob: []byte("test-ciphertext"),
		KeyId:          input.KeyId,
	}, nil
}

func (m *MockKMSClient) DecryptWithContext(ctx context.Context, input *kms.DecryptInput, opts ...request.Option) (*kms.DecryptOutput, error) {
	m.lastEncryptionContext = input.EncryptionContext
	if m.decryptError != nil {
		return nil, m.decryptError
	}
	return &kms.DecryptOutput{
		Plaintext: rawKey(0x11),
		KeyId:     aws.String("test-key-id"),
	}, nil
}

func TestNewAWSKMSProvider(t *testing.T) {
	tests := []struct {
		name        string
		options     AWSKMSOptions
		expectedAlg crypto.Algorithm
		expected    string
	}{
		{
			name:        "Default KeySpec",
			options:     AWSKMSOptions{KeyID: "test-key-id"},
			expectedAlg: crypto.AES256GCM,
			expected:    "AES_256",
		},
		{
			name:        "Custom data key algorithm",
			options:     AWSKMSOptions{KeyID: "test-key-id", DataKeyAlgorithm: crypto.XChaCha20Poly1305},
			expectedAlg: crypto.XChaCha20Poly1305,
			expected:    "AES_256",
		},
		{
			name:        "Secretbox falls back to default",
			options:     AWSKMSOptions{KeyID: "test-key-id", DataKeyAlgorithm: crypto.XSalsa20Poly1305},
			expectedAlg: crypto.AES256GCM,
			expected:    "AES_256",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockKMS := &MockKMSClient{}
			provider := NewAWSKMSProvider(mockKMS, newTestManager(t), tt.options)

			material, err := provider.GetMaterial(context.Background(), crypto.CryptoContext{"purpose": "test"})
			require.NoError(t, err)
			defer material.Release()

			assert.Equal(t, tt.options.KeyID, mockKMS.lastKeyId)
			assert.Equal(t, tt.expected, mockKMS.lastKeySpec)
			assert.Equal(t, tt.expectedAlg, material.Key.Algorithm())
		})
	}
}

func TestAWSKMSProvider_GetMaterial(t *testing.T) {
	tests := []struct {
		name          string
		context       crypto.CryptoContext
		mockError     error
		expectedError bool
	}{
		{
			name:    "Success",
			context: crypto.CryptoContext{"purpose": "test"},
		},
		{
			name:          "KMS Error",
			context:       crypto.CryptoContext{"purpose": "test"},
			mockError:     errors.New("KMS error"),
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockKMS := &MockKMSClient{generateDataKeyError: tt.mockError}
			manager := newTestManager(t)

			provider := NewAWSKMSProvider(mockKMS, manager, AWSKMSOptions{KeyID: "test-key-id"})
			material, err := provider.GetMaterial(context.Background(), tt.context)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, material)
				assert.Zero(t, manager.Live())
				return
			}

			require.NoError(t, err)
			exported, err := material.Key.Export()
			require.NoError(t, err)
			assert.Equal(t, rawKey(0x11), exported)
			assert.Equal(t, []byte("test-ciphertext"), material.EncryptedKey)

			for k, v := range tt.context {
				assert.Equal(t, v, *mockKMS.lastEncryptionContext[k])
			}

			material.Release()
			assert.True(t, material.Key.Destroyed())
			assert.Zero(t, manager.Live())
		})
	}
}

func TestAWSKMSProvider_DecryptMaterial(t *testing.T) {
	tests := []struct {
		name          string
		context       crypto.CryptoContext
		encryptedKey  []byte
		mockError     error
		expectedError bool
	}{
		{
			name:         "Success",
			context:      crypto.CryptoContext{"purpose": "test"},
			encryptedKey: []byte("test-encrypted-key"),
		},
		{
			name:          "KMS Error",
			context:       crypto.CryptoContext{"purpose": "test"},
			encryptedKey:  []byte("test-encrypted-key"),
			mockError:     errors.New("KMS error"),
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockKMS := &MockKMSClient{decryptError: tt.mockError}

			provider := NewAWSKMSProvider(mockKMS, newTestManager(t), AWSKMSOptions{KeyID: "test-key-id"})
			material, err := provider.DecryptMaterial(context.Background(), tt.context, &Material{
				EncryptedKey: tt.encryptedKey,
			})

			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, material)
				return
			}

			require.NoError(t, err)
			defer material.Release()

			exported, err := material.Key.Export()
			require.NoError(t, err)
			assert.Equal(t, rawKey(0x11), exported)
			assert.Equal(t, tt.encryptedKey, material.EncryptedKey)

			for k, v := range tt.context {
				assert.Equal(t, v, *mockKMS.lastEncryptionContext[k])
			}
		})
	}
}

func TestAWSKMSProvider_EncryptionContextHandling(t *testing.T) {
	mockKMS := &MockKMSClient{}
	provider := NewAWSKMSProvider(mockKMS, newTestManager(t), AWSKMSOptions{KeyID: "test-key-id"})
	ctx := context.Background()

	material, err := provider.GetMaterial(ctx, crypto.CryptoContext{})
	require.NoError(t, err)
	material.Release()
	assert.Empty(t, mockKMS.lastEncryptionContext)

	complexContext := crypto.CryptoContext{
		"key1": "value1",
		"key2": "value2",
		"key3": "value3",
	}

	material, err = provider.GetMaterial(ctx, complexContext)
	require.NoError(t, err)
	material.Release()

	assert.Equal(t, 3, len(mockKMS.lastEncryptionContext))
	assert.Equal(t, "value1", *mockKMS.lastEncryptionContext["key1"])
	assert.Equal(t, "value2", *mockKMS.lastEncryptionContext["key2"])
	assert.Equal(t, "value3", *mockKMS.lastEncryptionContext["key3"])
}
