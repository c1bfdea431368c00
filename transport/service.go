package transport

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "jazzcrypto.v1.Crypto"

type (
	AlgorithmRequest struct {
		Algorithm uint32 `json:"algorithm"`
	}

	KeyResponse struct {
		Key []byte `json:"key"`
	}

	DeriveKeyRequest struct {
		Algorithm uint32 `json:"algorithm"`
		Master    []byte `json:"master"`
		Context   []byte `json:"context"`
	}

	PublicKeyRequest struct {
		Algorithm uint32 `json:"algorithm"`
		Secret    []byte `json:"secret"`
	}

	PublicKeyResponse struct {
		Public []byte `json:"public"`
	}

	EncryptRequest struct {
		Algorithm uint32 `json:"algorithm"`
		Key       []byte `json:"key"`
		Nonce     []byte `json:"nonce"`
		Plaintext []byte `json:"plaintext"`
		AAD       []byte `json:"aad,omitempty"`
	}

	EncryptResponse struct {
		Sealed []byte `json:"sealed"`
	}

	DecryptRequest struct {
		Algorithm uint32 `json:"algorithm"`
		Key       []byte `json:"key"`
		Nonce     []byte `json:"nonce"`
		Sealed    []byte `json:"sealed"`
		AAD       []byte `json:"aad,omitempty"`
	}

	DecryptResponse struct {
		Plaintext []byte `json:"plaintext"`
	}

	HashRequest struct {
		Algorithm uint32 `json:"algorithm"`
		Data      []byte `json:"data"`
	}

	HashResponse struct {
		Digest []byte `json:"digest"`
	}

	SignRequest struct {
		Algorithm uint32 `json:"algorithm"`
		Secret    []byte `json:"secret"`
		Data      []byte `json:"data"`
	}

	SignResponse struct {
		Signature []byte `json:"signature"`
	}

	VerifyRequest struct {
		Algorithm uint32 `json:"algorithm"`
		Public    []byte `json:"public"`
		Data      []byte `json:"data"`
		Signature []byte `json:"signature"`
	}

	VerifyResponse struct {
		Valid bool `json:"valid"`
	}

	SealRequest struct {
		Algorithm  uint32 `json:"algorithm"`
		Secret     []byte `json:"secret,omitempty"`
		PeerPublic []byte `json:"peer_public"`
		Nonce      []byte `json:"nonce"`
		Message    []byte `json:"message"`
	}

	SealResponse struct {
		Sealed []byte `json:"sealed"`
	}

	OpenRequest struct {
		Algorithm  uint32 `json:"algorithm"`
		Secret     []byte `json:"secret"`
		PeerPublic []byte `json:"peer_public,omitempty"`
		Nonce      []byte `json:"nonce"`
		Sealed     []byte `json:"sealed"`
	}

	OpenResponse struct {
		Message []byte `json:"message"`
	}

	RandomRequest struct {
		Size uint32 `json:"size"`
	}

	RandomResponse struct {
		Data []byte `json:"data"`
	}

	SizesResponse struct {
		Key    uint32 `json:"key"`
		Public uint32 `json:"public"`
		Nonce  uint32 `json:"nonce"`
		Output uint32 `json:"output"`
	}

	EnvelopeEncryptRequest struct {
		Plaintext []byte            `json:"plaintext"`
		Context   map[string]string `json:"context,omitempty"`
	}

	EnvelopeEncryptResponse struct {
		Ciphertext   []byte `json:"ciphertext"`
		EncryptedKey []byte `json:"encrypted_key"`
		KeyID        string `json:"key_id"`
	}

	EnvelopeDecryptRequest struct {
		Ciphertext   []byte            `json:"ciphertext"`
		EncryptedKey []byte            `json:"encrypted_key"`
		Context      map[string]string `json:"context,omitempty"`
	}

	EnvelopeDecryptResponse struct {
		Plaintext []byte `json:"plaintext"`
	}
)

// CryptoServer is the server API of the Crypto service.
type CryptoServer interface {
	GenerateKey(context.Context, *AlgorithmRequest) (*KeyResponse, error)
	DeriveKey(context.Context, *DeriveKeyRequest) (*KeyResponse, error)
	PublicKey(context.Context, *PublicKeyRequest) (*PublicKeyResponse, error)
	Encrypt(context.Context, *EncryptRequest) (*EncryptResponse, error)
	Decrypt(context.Context, *DecryptRequest) (*DecryptResponse, error)
	Hash(context.Context, *HashRequest) (*HashResponse, error)
	Sign(context.Context, *SignRequest) (*SignResponse, error)
	Verify(context.Context, *VerifyRequest) (*VerifyResponse, error)
	Seal(context.Context, *SealRequest) (*SealResponse, error)
	Open(context.Context, *OpenRequest) (*OpenResponse, error)
	SealAnonymous(context.Context, *SealRequest) (*SealResponse, error)
	OpenAnonymous(context.Context, *OpenRequest) (*OpenResponse, error)
	Random(context.Context, *RandomRequest) (*RandomResponse, error)
	Sizes(context.Context, *AlgorithmRequest) (*SizesResponse, error)
	EnvelopeEncrypt(context.Context, *EnvelopeEncryptRequest) (*EnvelopeEncryptResponse, error)
	EnvelopeDecrypt(context.Context, *EnvelopeDecryptRequest) (*EnvelopeDecryptResponse, error)
}

func unary[Req, Resp any](name string, call func(CryptoServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CryptoServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(CryptoServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FullMethod returns the gRPC method path of name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// CryptoServiceDesc describes the Crypto service for grpc.Server.RegisterService.
var CryptoServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CryptoServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GenerateKey", CryptoServer.GenerateKey),
		unary("DeriveKey", CryptoServer.DeriveKey),
		unary("PublicKey", CryptoServer.PublicKey),
		unary("Encrypt", CryptoServer.Encrypt),
		unary("Decrypt", CryptoServer.Decrypt),
		unary("Hash", CryptoServer.Hash),
		unary("Sign", CryptoServer.Sign),
		unary("Verify", CryptoServer.Verify),
		unary("Seal", CryptoServer.Seal),
		unary("Open", CryptoServer.Open),
		unary("SealAnonymous", CryptoServer.SealAnonymous),
		unary("OpenAnonymous", CryptoServer.OpenAnonymous),
		unary("Random", CryptoServer.Random),
		unary("Sizes", CryptoServer.Sizes),
		unary("EnvelopeEncrypt", CryptoServer.EnvelopeEncrypt),
		unary("EnvelopeDecrypt", CryptoServer.EnvelopeDecrypt),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jazzcrypto/v1/crypto.proto",
}

// RegisterCryptoServer registers srv on s.
func RegisterCryptoServer(s grpc.ServiceRegistrar, srv CryptoServer) {
	s.RegisterService(&CryptoServiceDesc, srv)
}

// CryptoClient calls the Crypto service. Connections must use the JSON
// codec; see WithJSONCodec.
type CryptoClient struct {
	cc grpc.ClientConnInterface
}

func NewCryptoClient(cc grpc.ClientConnInterface) *CryptoClient {
	return &CryptoClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, FullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CryptoClient) GenerateKey(ctx context.Context, in *AlgorithmRequest, opts ...grpc.CallOption) (*KeyResponse, error) {
	return invoke[KeyResponse](ctx, c.cc, "GenerateKey", in, opts)
}

func (c *CryptoClient) DeriveKey(ctx context.Context, in *DeriveKeyRequest, opts ...grpc.CallOption) (*KeyResponse, error) {
	return invoke[KeyResponse](ctx, c.cc, "DeriveKey", in, opts)
}

func (c *CryptoClient) PublicKey(ctx context.Context, in *PublicKeyRequest, opts ...grpc.CallOption) (*PublicKeyResponse, error) {
	return invoke[PublicKeyResponse](ctx, c.cc, "PublicKey", in, opts)
}

func (c *CryptoClient) Encrypt(ctx context.Context, in *EncryptRequest, opts ...grpc.CallOption) (*EncryptResponse, error) {
	return invoke[EncryptResponse](ctx, c.cc, "Encrypt", in, opts)
}

func (c *CryptoClient) Decrypt(ctx context.Context, in *DecryptRequest, opts ...grpc.CallOption) (*DecryptResponse, error) {
	return invoke[DecryptResponse](ctx, c.cc, "Decrypt", in, opts)
}

func (c *CryptoClient) Hash(ctx context.Context, in *HashRequest, opts ...grpc.CallOption) (*HashResponse, error) {
	return invoke[HashResponse](ctx, c.cc, "Hash", in, opts)
}

func (c *CryptoClient) Sign(ctx context.Context, in *SignRequest, opts ...grpc.CallOption) (*SignResponse, error) {
	return invoke[SignResponse](ctx, c.cc, "Sign", in, opts)
}

func (c *CryptoClient) Verify(ctx context.Context, in *VerifyRequest, opts ...grpc.CallOption) (*VerifyResponse, error) {
	return invoke[VerifyResponse](ctx, c.cc, "Verify", in, opts)
}

func (c *CryptoClient) Seal(ctx context.Context, in *SealRequest, opts ...grpc.CallOption) (*SealResponse, error) {
	return invoke[SealResponse](ctx, c.cc, "Seal", in, opts)
}

func (c *CryptoClient) Open(ctx context.Context, in *OpenRequest, opts ...grpc.CallOption) (*OpenResponse, error) {
	return invoke[OpenResponse](ctx, c.cc, "Open", in, opts)
}

func (c *CryptoClient) SealAnonymous(ctx context.Context, in *SealRequest, opts ...grpc.CallOption) (*SealResponse, error) {
	return invoke[SealResponse](ctx, c.cc, "SealAnonymous", in, opts)
}

func (c *CryptoClient) OpenAnonymous(ctx context.Context, in *OpenRequest, opts ...grpc.CallOption) (*OpenResponse, error) {
	return invoke[OpenResponse](ctx, c.cc, "OpenAnonymous", in, opts)
}

func (c *CryptoClient) Random(ctx context.Context, in *RandomRequest, opts ...grpc.CallOption) (*RandomResponse, error) {
	return invoke[RandomResponse](ctx, c.cc, "Random", in, opts)
}

func (c *CryptoClient) Sizes(ctx context.Context, in *AlgorithmRequest, opts ...grpc.CallOption) (*SizesResponse, error) {
	return invoke[SizesResponse](ctx, c.cc, "Sizes", in, opts)
}

func (c *CryptoClient) EnvelopeEncrypt(ctx context.Context, in *EnvelopeEncryptRequest, opts ...grpc.CallOption) (*EnvelopeEncryptResponse, error) {
	return invoke[EnvelopeEncryptResponse](ctx, c.cc, "EnvelopeEncrypt", in, opts)
}

func (c *CryptoClient) EnvelopeDecrypt(ctx context.Context, in *EnvelopeDecryptRequest, opts ...grpc.CallOption) (*EnvelopeDecryptResponse, error) {
	return invoke[EnvelopeDecryptResponse](ctx, c.cc, "EnvelopeDecrypt", in, opts)
}
