// Package keys manages key material held in secure memory: generation,
// derivation, import, the textual formats exchanged with Jazz peers, agent
// identities, and envelope encryption with data keys from local or KMS
// materials managers.
package keys
