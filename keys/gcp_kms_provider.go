package keys

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/securemem"
)

// GCPKMSOptions contains configuration options for GCPKMSProvider
type GCPKMSOptions struct {
	// KeyName is the fully qualified name of the GCP KMS key to use
	// Format: projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{cryptoKey}
	KeyName string

	// ProtectionLevel for generated data keys (defaults to HSM)
	ProtectionLevel kmspb.ProtectionLevel

	// DataKeyAlgorithm is the AEAD the data keys are used with (defaults
	// to AES-256-GCM).
	DataKeyAlgorithm crypto.Algorithm
}

// GCPKMSClient defines the interface for GCP KMS operations
type GCPKMSClient interface {
	GenerateRandomBytes(ctx context.Context, req *kmspb.GenerateRandomBytesRequest, opts ...gax.CallOption) (*kmspb.GenerateRandomBytesResponse, error)
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error)
}

// GCPKMSProvider implements MaterialsManager using Google Cloud KMS
type GCPKMSProvider struct {
	kmsClient       GCPKMSClient
	manager         *Manager
	keyName         string
	protectionLevel kmspb.ProtectionLevel
	dataAlg         crypto.Algorithm
}

// NewGCPKMSProvider creates a new GCP KMS-based materials manager
func NewGCPKMSProvider(kmsClient GCPKMSClient, manager *Manager, options GCPKMSOptions) *GCPKMSProvider {
	protectionLevel := options.ProtectionLevel
	if protectionLevel == kmspb.ProtectionLevel_PROTECTION_LEVEL_UNSPECIFIED {
		protectionLevel = kmspb.ProtectionLevel_HSM
	}

	dataAlg := options.DataKeyAlgorithm
	if !supportsEnvelope(dataAlg) {
		dataAlg = crypto.AES256GCM
	}

	return &GCPKMSProvider{
		kmsClient:       kmsClient,
		manager:         manager,
		keyName:         options.KeyName,
		protectionLevel: protectionLevel,
		dataAlg:         dataAlg,
	}
}

// GetMaterial generates new encryption materials using GCP KMS
func (g *GCPKMSProvider) GetMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext) (*Material, error) {
	aad := crypto.ContextToBytes(cryptoCtx)

	req := &kmspb.GenerateRandomBytesRequest{
		Location:        extractLocationFromKeyName(g.keyName),
		LengthBytes:     int32(g.dataAlg.KeySize()),
		ProtectionLevel: g.protectionLevel,
	}

	randomResp, err := g.kmsClient.GenerateRandomBytes(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	plaintextKey := randomResp.Data

	encryptReq := &kmspb.EncryptRequest{
		Name:                        g.keyName,
		Plaintext:                   plaintextKey,
		AdditionalAuthenticatedData: aad,
	}

	encryptResp, err := g.kmsClient.Encrypt(ctx, encryptReq)
	if err != nil {
		securemem.Wipe(plaintextKey)
		return nil, fmt.Errorf("failed to encrypt data key: %w", err)
	}

	key, err := g.manager.ImportKey(g.dataAlg, plaintextKey)
	if err != nil {
		securemem.Wipe(plaintextKey)
		return nil, fmt.Errorf("failed to import data key: %w", err)
	}

	return NewMaterial(key, encryptResp.Ciphertext), nil
}

// DecryptMaterial decrypts the encrypted key using GCP KMS
func (g *GCPKMSProvider) DecryptMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext, material *Material) (*Material, error) {
	req := &kmspb.DecryptRequest{
		Name:                        g.keyName,
		Ciphertext:                  material.EncryptedKey,
		AdditionalAuthenticatedData: crypto.ContextToBytes(cryptoCtx),
	}

	resp, err := g.kmsClient.Decrypt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}

	key, err := g.manager.ImportKey(g.dataAlg, resp.Plaintext)
	if err != nil {
		securemem.Wipe(resp.Plaintext)
		return nil, fmt.Errorf("failed to import data key: %w", err)
	}

	return NewMaterial(key, material.EncryptedKey), nil
}

// extractLocationFromKeyName returns projects/{project}/locations/{location}
// for a key name.
func extractLocationFromKeyName(keyName string) string {
	parts := strings.Split(keyName, "/")
	var projectID, location string

	for i, part := range parts {
		if part == "projects" && i+1 < len(parts) {
			projectID = parts[i+1]
		}
		if part == "locations" && i+1 < len(parts) {
			location = parts[i+1]
		}
	}

	if projectID != "" && location != "" {
		return fmt.Sprintf("projects/%s/locations/%s", projectID, location)
	}

	return "projects/default-project/locations/global"
}
