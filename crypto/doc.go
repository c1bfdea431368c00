// Package crypto implements the primitive operations of jazz-crypto over
// caller-supplied buffers.
//
// # Algorithms
//
//   - AEAD: ChaCha20-Poly1305 (default), XChaCha20-Poly1305,
//     XSalsa20-Poly1305 (NaCl secretbox) and AES-256-GCM.
//   - Hashing: BLAKE3 (default), BLAKE2b-256 and SHA-256.
//   - Signatures: Ed25519 (default) and ML-DSA-65.
//   - Sealing: X25519 key agreement with XSalsa20-Poly1305.
//
// Every secret key is 32 bytes. Signature and sealing keys are seeds from
// which the public half is derived with [PublicKey].
//
// # Failure behaviour
//
// Decryption fails closed: on a tag mismatch [Decrypt] and [Open] wipe any
// computed plaintext and return [ErrAuth]. Malformed lengths and unknown
// algorithms return [ErrInvalidParameter]. Callers test error kinds with
// errors.Is.
//
// The process-wide random source is checked once by [InitRandom]. A read
// failure after that point aborts the process.
package crypto
