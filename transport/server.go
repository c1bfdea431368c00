package transport

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"jazz-tools/jazz-crypto/codec"
	"jazz-tools/jazz-crypto/config"
	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/entrypoint"
	"jazz-tools/jazz-crypto/keys"
)

// maxRandom bounds a single Random request.
const maxRandom = 1 << 16

// cryptoServer implements CryptoServer over the entry-point table, so the
// gRPC host shares the C host's semantics and status codes.
type cryptoServer struct {
	fns      entrypoint.Table
	defaults map[crypto.Kind]crypto.Algorithm
	envelope *codec.Envelope
	logger   *zap.Logger
}

var _ CryptoServer = (*cryptoServer)(nil)

func newCryptoServer(fns entrypoint.Table, defaults config.DefaultsConfig, envelope *codec.Envelope, logger *zap.Logger) *cryptoServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	aead, hash, signature := defaults.Algorithms()
	return &cryptoServer{
		fns:      fns,
		defaults: map[crypto.Kind]crypto.Algorithm{
			crypto.KindAEAD:         aead,
			crypto.KindHash:         hash,
			crypto.KindSignature:    signature,
			crypto.KindKeyAgreement: crypto.X25519,
		},
		envelope: envelope,
		logger:   logger,
	}
}

// statusError maps an entry-point status to a gRPC status.
func statusError(s entrypoint.Status) error {
	switch s {
	case entrypoint.StatusOK:
		return nil
	case entrypoint.StatusAllocation:
		return status.Error(codes.ResourceExhausted, s.String())
	case entrypoint.StatusAuth:
		return status.Error(codes.DataLoss, s.String())
	case entrypoint.StatusInvalidParameter:
		return status.Error(codes.InvalidArgument, s.String())
	case entrypoint.StatusUninitialized:
		return status.Error(codes.FailedPrecondition, s.String())
	default:
		return status.Error(codes.Internal, s.String())
	}
}

// sizes returns the sizes of alg, resolving 0 to the configured default of
// kind.
func (s *cryptoServer) sizes(alg uint32, kind crypto.Kind) (key, public, nonce, output int, err error) {
	if alg == 0 {
		alg = uint32(s.defaults[kind])
	}
	k, p, n, o, st := s.fns.Sizes(alg)
	if st != entrypoint.StatusOK {
		return 0, 0, 0, 0, statusError(st)
	}
	return int(k), int(p), int(n), int(o), nil
}

func (s *cryptoServer) GenerateKey(ctx context.Context, req *AlgorithmRequest) (*KeyResponse, error) {
	key, _, _, _, err := s.sizes(req.Algorithm, crypto.KindAEAD)
	if err != nil {
		return nil, err
	}
	out := make([]byte, key)
	if err := statusError(s.fns.GenerateKey(req.Algorithm, out)); err != nil {
		return nil, err
	}
	return &KeyResponse{Key: out}, nil
}

func (s *cryptoServer) DeriveKey(ctx context.Context, req *DeriveKeyRequest) (*KeyResponse, error) {
	key, _, _, _, err := s.sizes(req.Algorithm, crypto.KindAEAD)
	if err != nil {
		return nil, err
	}
	out := make([]byte, key)
	if err := statusError(s.fns.DeriveKey(req.Algorithm, req.Master, req.Context, out)); err != nil {
		return nil, err
	}
	return &KeyResponse{Key: out}, nil
}

func (s *cryptoServer) PublicKey(ctx context.Context, req *PublicKeyRequest) (*PublicKeyResponse, error) {
	_, public, _, _, err := s.sizes(req.Algorithm, crypto.KindSignature)
	if err != nil {
		return nil, err
	}
	out := make([]byte, public)
	if err := statusError(s.fns.PublicKey(req.Algorithm, req.Secret, out)); err != nil {
		return nil, err
	}
	return &PublicKeyResponse{Public: out}, nil
}

func (s *cryptoServer) Encrypt(ctx context.Context, req *EncryptRequest) (*EncryptResponse, error) {
	_, _, _, tag, err := s.sizes(req.Algorithm, crypto.KindAEAD)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(req.Plaintext)+tag)
	if err := statusError(s.fns.Encrypt(req.Algorithm, req.Key, req.Nonce, req.Plaintext, req.AAD, out)); err != nil {
		return nil, err
	}
	return &EncryptResponse{Sealed: out}, nil
}

func (s *cryptoServer) Decrypt(ctx context.Context, req *DecryptRequest) (*DecryptResponse, error) {
	_, _, _, tag, err := s.sizes(req.Algorithm, crypto.KindAEAD)
	if err != nil {
		return nil, err
	}
	if len(req.Sealed) < tag {
		return nil, statusError(entrypoint.StatusInvalidParameter)
	}
	out := make([]byte, len(req.Sealed)-tag)
	if err := statusError(s.fns.Decrypt(req.Algorithm, req.Key, req.Nonce, req.Sealed, req.AAD, out)); err != nil {
		return nil, err
	}
	return &DecryptResponse{Plaintext: out}, nil
}

func (s *cryptoServer) Hash(ctx context.Context, req *HashRequest) (*HashResponse, error) {
	_, _, _, digest, err := s.sizes(req.Algorithm, crypto.KindHash)
	if err != nil {
		return nil, err
	}
	out := make([]byte, digest)
	if err := statusError(s.fns.Hash(req.Algorithm, req.Data, out)); err != nil {
		return nil, err
	}
	return &HashResponse{Digest: out}, nil
}

func (s *cryptoServer) Sign(ctx context.Context, req *SignRequest) (*SignResponse, error) {
	_, _, _, sigSize, err := s.sizes(req.Algorithm, crypto.KindSignature)
	if err != nil {
		return nil, err
	}
	out := make([]byte, sigSize)
	if err := statusError(s.fns.Sign(req.Algorithm, req.Secret, req.Data, out)); err != nil {
		return nil, err
	}
	return &SignResponse{Signature: out}, nil
}

func (s *cryptoServer) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	ok, st := s.fns.Verify(req.Algorithm, req.Public, req.Data, req.Signature)
	if err := statusError(st); err != nil {
		return nil, err
	}
	return &VerifyResponse{Valid: ok}, nil
}

func (s *cryptoServer) Seal(ctx context.Context, req *SealRequest) (*SealResponse, error) {
	_, _, _, tag, err := s.sizes(req.Algorithm, crypto.KindKeyAgreement)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(req.Message)+tag)
	if err := statusError(s.fns.Seal(req.Algorithm, req.Secret, req.PeerPublic, req.Nonce, req.Message, out)); err != nil {
		return nil, err
	}
	return &SealResponse{Sealed: out}, nil
}

func (s *cryptoServer) Open(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	_, _, _, tag, err := s.sizes(req.Algorithm, crypto.KindKeyAgreement)
	if err != nil {
		return nil, err
	}
	if len(req.Sealed) < tag {
		return nil, statusError(entrypoint.StatusInvalidParameter)
	}
	out := make([]byte, len(req.Sealed)-tag)
	if err := statusError(s.fns.Open(req.Algorithm, req.Secret, req.PeerPublic, req.Nonce, req.Sealed, out)); err != nil {
		return nil, err
	}
	return &OpenResponse{Message: out}, nil
}

func (s *cryptoServer) SealAnonymous(ctx context.Context, req *SealRequest) (*SealResponse, error) {
	_, public, _, tag, err := s.sizes(req.Algorithm, crypto.KindKeyAgreement)
	if err != nil {
		return nil, err
	}
	out := make([]byte, public+len(req.Message)+tag)
	if err := statusError(s.fns.SealAnonymous(req.Algorithm, req.PeerPublic, req.Nonce, req.Message, out)); err != nil {
		return nil, err
	}
	return &SealResponse{Sealed: out}, nil
}

func (s *cryptoServer) OpenAnonymous(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	_, public, _, tag, err := s.sizes(req.Algorithm, crypto.KindKeyAgreement)
	if err != nil {
		return nil, err
	}
	if len(req.Sealed) < public+tag {
		return nil, statusError(entrypoint.StatusInvalidParameter)
	}
	out := make([]byte, len(req.Sealed)-public-tag)
	if err := statusError(s.fns.OpenAnonymous(req.Algorithm, req.Secret, req.Nonce, req.Sealed, out)); err != nil {
		return nil, err
	}
	return &OpenResponse{Message: out}, nil
}

func (s *cryptoServer) Random(ctx context.Context, req *RandomRequest) (*RandomResponse, error) {
	if req.Size > maxRandom {
		return nil, status.Errorf(codes.InvalidArgument, "size %d exceeds %d", req.Size, maxRandom)
	}
	out := make([]byte, req.Size)
	if err := statusError(s.fns.Random(out)); err != nil {
		return nil, err
	}
	return &RandomResponse{Data: out}, nil
}

func (s *cryptoServer) Sizes(ctx context.Context, req *AlgorithmRequest) (*SizesResponse, error) {
	key, public, nonce, output, st := s.fns.Sizes(req.Algorithm)
	if err := statusError(st); err != nil {
		return nil, err
	}
	return &SizesResponse{Key: key, Public: public, Nonce: nonce, Output: output}, nil
}

func (s *cryptoServer) EnvelopeEncrypt(ctx context.Context, req *EnvelopeEncryptRequest) (*EnvelopeEncryptResponse, error) {
	if !s.envelope.Enabled() {
		return nil, status.Error(codes.Unimplemented, "envelope encryption is not configured")
	}

	ciphertext, encryptedKey, err := s.envelope.Cipher.Encrypt(ctx, &keys.EncryptInput{
		Plaintext:      req.Plaintext,
		KeyContext:     req.Context,
		PayloadContext: req.Context,
	})
	if err != nil {
		return nil, s.envelopeError("envelope encrypt", err)
	}
	return &EnvelopeEncryptResponse{
		Ciphertext:   ciphertext,
		EncryptedKey: encryptedKey,
		KeyID:        s.envelope.Codec.KeyID,
	}, nil
}

func (s *cryptoServer) EnvelopeDecrypt(ctx context.Context, req *EnvelopeDecryptRequest) (*EnvelopeDecryptResponse, error) {
	if !s.envelope.Enabled() {
		return nil, status.Error(codes.Unimplemented, "envelope encryption is not configured")
	}

	plaintext, err := s.envelope.Cipher.Decrypt(ctx, &keys.DecryptInput{
		Ciphertext:     req.Ciphertext,
		EncryptedKey:   req.EncryptedKey,
		KeyContext:     req.Context,
		PayloadContext: req.Context,
	})
	if err != nil {
		return nil, s.envelopeError("envelope decrypt", err)
	}
	return &EnvelopeDecryptResponse{Plaintext: plaintext}, nil
}

func (s *cryptoServer) envelopeError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	st := entrypoint.StatusOf(err)
	if st == entrypoint.StatusInternal {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	return statusError(st)
}
