//go:build cgo

package main

/*
#include <stdint.h>
#include <stddef.h>
*/
import "C"

import (
	"unsafe"

	"jazz-tools/jazz-crypto/entrypoint"
)

var fns = entrypoint.Functions

func in(p *C.uint8_t, n C.size_t) []byte {
	return view(unsafe.Pointer(p), int(n))
}

func status(s entrypoint.Status) C.int32_t {
	return C.int32_t(s)
}

//export jc_initialize
func jc_initialize() C.int32_t {
	return status(fns.Initialize())
}

//export jc_generate_key
func jc_generate_key(alg C.uint32_t, out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.GenerateKey(uint32(alg), in(out, outLen)))
}

//export jc_derive_key
func jc_derive_key(alg C.uint32_t, master *C.uint8_t, masterLen C.size_t,
	context *C.uint8_t, contextLen C.size_t, out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.DeriveKey(uint32(alg), in(master, masterLen), in(context, contextLen), in(out, outLen)))
}

//export jc_public_key
func jc_public_key(alg C.uint32_t, secret *C.uint8_t, secretLen C.size_t, out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.PublicKey(uint32(alg), in(secret, secretLen), in(out, outLen)))
}

//export jc_encrypt
func jc_encrypt(alg C.uint32_t, key *C.uint8_t, keyLen C.size_t, nonce *C.uint8_t, nonceLen C.size_t,
	plaintext *C.uint8_t, plaintextLen C.size_t, aad *C.uint8_t, aadLen C.size_t,
	out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.Encrypt(uint32(alg), in(key, keyLen), in(nonce, nonceLen),
		in(plaintext, plaintextLen), in(aad, aadLen), in(out, outLen)))
}

//export jc_decrypt
func jc_decrypt(alg C.uint32_t, key *C.uint8_t, keyLen C.size_t, nonce *C.uint8_t, nonceLen C.size_t,
	sealed *C.uint8_t, sealedLen C.size_t, aad *C.uint8_t, aadLen C.size_t,
	out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.Decrypt(uint32(alg), in(key, keyLen), in(nonce, nonceLen),
		in(sealed, sealedLen), in(aad, aadLen), in(out, outLen)))
}

//export jc_hash
func jc_hash(alg C.uint32_t, data *C.uint8_t, dataLen C.size_t, out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.Hash(uint32(alg), in(data, dataLen), in(out, outLen)))
}

//export jc_sign
func jc_sign(alg C.uint32_t, secret *C.uint8_t, secretLen C.size_t, data *C.uint8_t, dataLen C.size_t,
	out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.Sign(uint32(alg), in(secret, secretLen), in(data, dataLen), in(out, outLen)))
}

// jc_verify stores 1 in *valid for a good signature and 0 otherwise.
//
//export jc_verify
func jc_verify(alg C.uint32_t, public *C.uint8_t, publicLen C.size_t, data *C.uint8_t, dataLen C.size_t,
	sig *C.uint8_t, sigLen C.size_t, valid *C.int32_t) C.int32_t {
	if valid == nil {
		return status(entrypoint.StatusInvalidParameter)
	}
	ok, st := fns.Verify(uint32(alg), in(public, publicLen), in(data, dataLen), in(sig, sigLen))
	*valid = 0
	if ok {
		*valid = 1
	}
	return status(st)
}

//export jc_seal
func jc_seal(alg C.uint32_t, secret *C.uint8_t, secretLen C.size_t, peerPublic *C.uint8_t, peerPublicLen C.size_t,
	nonce *C.uint8_t, nonceLen C.size_t, msg *C.uint8_t, msgLen C.size_t, out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.Seal(uint32(alg), in(secret, secretLen), in(peerPublic, peerPublicLen),
		in(nonce, nonceLen), in(msg, msgLen), in(out, outLen)))
}

//export jc_open
func jc_open(alg C.uint32_t, secret *C.uint8_t, secretLen C.size_t, peerPublic *C.uint8_t, peerPublicLen C.size_t,
	nonce *C.uint8_t, nonceLen C.size_t, sealed *C.uint8_t, sealedLen C.size_t, out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.Open(uint32(alg), in(secret, secretLen), in(peerPublic, peerPublicLen),
		in(nonce, nonceLen), in(sealed, sealedLen), in(out, outLen)))
}

//export jc_seal_anonymous
func jc_seal_anonymous(alg C.uint32_t, peerPublic *C.uint8_t, peerPublicLen C.size_t,
	nonce *C.uint8_t, nonceLen C.size_t, msg *C.uint8_t, msgLen C.size_t, out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.SealAnonymous(uint32(alg), in(peerPublic, peerPublicLen),
		in(nonce, nonceLen), in(msg, msgLen), in(out, outLen)))
}

//export jc_open_anonymous
func jc_open_anonymous(alg C.uint32_t, secret *C.uint8_t, secretLen C.size_t,
	nonce *C.uint8_t, nonceLen C.size_t, sealed *C.uint8_t, sealedLen C.size_t, out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.OpenAnonymous(uint32(alg), in(secret, secretLen),
		in(nonce, nonceLen), in(sealed, sealedLen), in(out, outLen)))
}

//export jc_random
func jc_random(out *C.uint8_t, outLen C.size_t) C.int32_t {
	return status(fns.Random(in(out, outLen)))
}

//export jc_wipe
func jc_wipe(buf *C.uint8_t, bufLen C.size_t) C.int32_t {
	return status(fns.Wipe(in(buf, bufLen)))
}

// jc_sizes writes the sizes of alg through the non-nil pointers.
//
//export jc_sizes
func jc_sizes(alg C.uint32_t, key, public, nonce, output *C.uint32_t) C.int32_t {
	k, p, n, o, st := fns.Sizes(uint32(alg))
	for _, field := range []struct {
		dst *C.uint32_t
		v   uint32
	}{{key, k}, {public, p}, {nonce, n}, {output, o}} {
		if field.dst != nil {
			*field.dst = C.uint32_t(field.v)
		}
	}
	return status(st)
}
