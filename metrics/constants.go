package metrics

const (
	DefaultPrometheusPath = "/metrics"

	JazzCryptoPrefix = "jazz_crypto_"

	// Entry-point operations. Each has _requests, _errors, _success and
	// _latency series; see OperationNames.
	OpGenerateKey = "generate_key"
	OpDeriveKey   = "derive_key"
	OpPublicKey   = "public_key"
	OpEncrypt     = "encrypt"
	OpDecrypt     = "decrypt"
	OpHash        = "hash"
	OpSign        = "sign"
	OpVerify      = "verify"
	OpSeal        = "seal"
	OpOpen        = "open"
	OpSealAnon    = "seal_anonymous"
	OpOpenAnon    = "open_anonymous"
	OpRandom      = "random"
	OpWipe        = "wipe"
	OpSizes       = "sizes"

	// Envelope encryption metrics
	EncryptLatency  = JazzCryptoPrefix + "envelope_encrypt_latency"
	EncryptRequests = JazzCryptoPrefix + "envelope_encrypt_requests"
	EncryptErrors   = JazzCryptoPrefix + "envelope_encrypt_errors"
	EncryptSuccess  = JazzCryptoPrefix + "envelope_encrypt_success"

	DecryptLatency  = JazzCryptoPrefix + "envelope_decrypt_latency"
	DecryptRequests = JazzCryptoPrefix + "envelope_decrypt_requests"
	DecryptErrors   = JazzCryptoPrefix + "envelope_decrypt_errors"
	DecryptSuccess  = JazzCryptoPrefix + "envelope_decrypt_success"

	// Materials manager get metrics
	MaterialsManagerGetLatency  = JazzCryptoPrefix + "materials_manager_get_latency"
	MaterialsManagerGetRequests = JazzCryptoPrefix + "materials_manager_get_requests"
	MaterialsManagerGetErrors   = JazzCryptoPrefix + "materials_manager_get_errors"
	MaterialsManagerGetSuccess  = JazzCryptoPrefix + "materials_manager_get_success"

	// Materials manager decrypt metrics
	MaterialsManagerDecryptLatency  = JazzCryptoPrefix + "materials_manager_decrypt_latency"
	MaterialsManagerDecryptRequests = JazzCryptoPrefix + "materials_manager_decrypt_requests"
	MaterialsManagerDecryptErrors   = JazzCryptoPrefix + "materials_manager_decrypt_errors"
	MaterialsManagerDecryptSuccess  = JazzCryptoPrefix + "materials_manager_decrypt_success"

	// Materials cache
	MaterialsCacheHits      = JazzCryptoPrefix + "materials_cache_hits"
	MaterialsCacheMisses    = JazzCryptoPrefix + "materials_cache_misses"
	MaterialsCacheEvictions = JazzCryptoPrefix + "materials_cache_evictions"

	// Key manager. KeysLive is tagged with TagManager so managers sharing a
	// handler report separate series.
	KeysLive   = JazzCryptoPrefix + "keys_live"
	TagManager = "manager"
)

// Names holds the series names of one operation.
type Names struct {
	Requests string
	Errors   string
	Success  string
	Latency  string
}

// OperationNames returns the series names for op.
func OperationNames(op string) Names {
	base := JazzCryptoPrefix + op
	return Names{
		Requests: base + "_requests",
		Errors:   base + "_errors",
		Success:  base + "_success",
		Latency:  base + "_latency",
	}
}
