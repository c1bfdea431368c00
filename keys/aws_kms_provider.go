package keys

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/securemem"
)

// AWSKMSOptions contains configuration options for AWSKMSProvider
type AWSKMSOptions struct {
	// KeyID is the ARN or ID of the KMS key to use
	KeyID string

	// KeySpec is the type of key to generate (defaults to AES_256 if empty)
	KeySpec string

	// DataKeyAlgorithm is the AEAD the data keys are used with (defaults
	// to AES-256-GCM).
	DataKeyAlgorithm crypto.Algorithm
}

// AWSKMSProvider implements MaterialsManager using AWS KMS
type AWSKMSProvider struct {
	kmsClient kmsiface.KMSAPI
	manager   *Manager
	keyID     string
	keySpec   string
	dataAlg   crypto.Algorithm
}

// NewAWSKMSProvider creates a new KMS-based materials manager
func NewAWSKMSProvider(kmsClient kmsiface.KMSAPI, manager *Manager, options AWSKMSOptions) *AWSKMSProvider {
	keySpec := options.KeySpec
	if keySpec == "" {
		keySpec = kms.DataKeySpecAes256
	}

	dataAlg := options.DataKeyAlgorithm
	if !supportsEnvelope(dataAlg) {
		dataAlg = crypto.AES256GCM
	}

	return &AWSKMSProvider{
		kmsClient: kmsClient,
		manager:   manager,
		keyID:     options.KeyID,
		keySpec:   keySpec,
		dataAlg:   dataAlg,
	}
}

func encryptionContext(cryptoCtx crypto.CryptoContext) map[string]*string {
	ec := make(map[string]*string, len(cryptoCtx))
	for key, value := range cryptoCtx {
		ec[key] = aws.String(value)
	}
	return ec
}

// GetMaterial generates new encryption materials using KMS
func (k *AWSKMSProvider) GetMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext) (*Material, error) {
	input := &kms.GenerateDataKeyInput{
		KeyId:             aws.String(k.keyID),
		KeySpec:           aws.String(k.keySpec),
		EncryptionContext: encryptionContext(cryptoCtx),
	}

	result, err := k.kmsClient.GenerateDataKeyWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	key, err := k.manager.ImportKey(k.dataAlg, result.Plaintext)
	if err != nil {
		securemem.Wipe(result.Plaintext)
		return nil, fmt.Errorf("failed to import data key: %w", err)
	}

	return NewMaterial(key, result.CiphertextBlob), nil
}

// DecryptMaterial decrypts the encrypted key using KMS
func (k *AWSKMSProvider) DecryptMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext, material *Material) (*Material, error) {
	input := &kms.DecryptInput{
		CiphertextBlob:    material.EncryptedKey,
		EncryptionContext: encryptionContext(cryptoCtx),
	}

	result, err := k.kmsClient.DecryptWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}

	key, err := k.manager.ImportKey(k.dataAlg, result.Plaintext)
	if err != nil {
		securemem.Wipe(result.Plaintext)
		return nil, fmt.Errorf("failed to import data key: %w", err)
	}

	return NewMaterial(key, material.EncryptedKey), nil
}
