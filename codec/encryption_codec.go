package codec

import (
	"context"
	"fmt"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/keys"
)

const (
	// MetadataEncodingEncrypted is "binary/encrypted"
	MetadataEncodingEncrypted = "binary/encrypted"
	// MetadataEncryptionKeyID is "encryption-key-id"
	MetadataEncryptionKeyID = "encryption-key-id"
	// MetadataEncryptedDataKey is "encrypted-data-key"
	MetadataEncryptedDataKey = "encrypted-data-key"

	// PurposeEncryptionKeyAuth is the purpose for encryption key authentication
	PurposeEncryptionKeyAuth = "encryption-key-auth"
	// PurposePayloadAuth is the purpose for payload authentication
	PurposePayloadAuth = "payload-auth"
)

// Codec is a converter.PayloadCodec that envelope-encrypts each payload
// with a data key from a keys.Cipher.
type Codec struct {
	KeyID        string
	Cipher       *keys.Cipher
	CodecContext map[string]string
}

var _ converter.PayloadCodec = (*Codec)(nil)

// NewEncryptionCodec creates a codec encrypting under keyID. codecContext
// is bound into both the key and payload contexts.
func NewEncryptionCodec(cipher *keys.Cipher, keyID string, codecContext map[string]string) *Codec {
	return &Codec{
		KeyID:        keyID,
		Cipher:       cipher,
		CodecContext: codecContext,
	}
}

func (e *Codec) createCryptoContext(purpose, encryptionKeyID string) crypto.CryptoContext {
	cryptoContext := crypto.CryptoContext{
		"purpose":         purpose,
		"encryptionKeyID": encryptionKeyID,
	}

	for k, v := range e.CodecContext {
		cryptoContext[k] = v
	}

	return cryptoContext
}

// Encode implements converter.PayloadCodec.Encode.
func (e *Codec) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	result := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		origBytes, err := p.Marshal()
		if err != nil {
			return payloads, err
		}

		input := &keys.EncryptInput{
			Plaintext:      origBytes,
			KeyContext:     e.createCryptoContext(PurposeEncryptionKeyAuth, e.KeyID),
			PayloadContext: e.createCryptoContext(PurposePayloadAuth, e.KeyID),
		}

		ciphertext, encryptedKey, err := e.Cipher.Encrypt(context.Background(), input)
		if err != nil {
			return payloads, err
		}

		result[i] = &commonpb.Payload{
			Metadata: map[string][]byte{
				converter.MetadataEncoding: []byte(MetadataEncodingEncrypted),
				MetadataEncryptionKeyID:    []byte(e.KeyID),
				MetadataEncryptedDataKey:   encryptedKey,
			},
			Data: ciphertext,
		}
	}

	return result, nil
}

// Decode implements converter.PayloadCodec.Decode. Payloads that are not
// encrypted pass through unchanged.
func (e *Codec) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	result := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		if string(p.Metadata[converter.MetadataEncoding]) != MetadataEncodingEncrypted {
			result[i] = p
			continue
		}

		keyID, ok := p.Metadata[MetadataEncryptionKeyID]
		if !ok {
			return payloads, fmt.Errorf("no encryption key id")
		}

		encryptedKey, ok := p.Metadata[MetadataEncryptedDataKey]
		if !ok {
			return payloads, fmt.Errorf("no encrypted key in payload")
		}

		input := &keys.DecryptInput{
			Ciphertext:     p.Data,
			EncryptedKey:   encryptedKey,
			KeyContext:     e.createCryptoContext(PurposeEncryptionKeyAuth, string(keyID)),
			PayloadContext: e.createCryptoContext(PurposePayloadAuth, string(keyID)),
		}

		decrypted, err := e.Cipher.Decrypt(context.Background(), input)
		if err != nil {
			return payloads, err
		}

		result[i] = &commonpb.Payload{}
		if err := result[i].Unmarshal(decrypted); err != nil {
			return payloads, err
		}
	}

	return result, nil
}
