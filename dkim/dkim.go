// Package dkim implements DomainKeys Identified Mail (DKIM) signing and
// verification per RFC 6376, with a verification surface shaped for
// circuit input generation.
//
// Verification is split into two entry points. VerifyWithKey is a pure
// function of a parsed message and an injected public key: no DNS, no
// logging, no I/O. Verifier resolves the signer's key through a
// dns.Resolver first and then delegates to the same pure path. Both
// return a Result that carries the exact canonical header bytes the
// signature covers, which downstream witness builders consume.
//
// Supported algorithms:
//   - RSA-SHA256 (required by RFC 6376)
//   - RSA-SHA1 (deprecated, kept for compatibility)
//   - Ed25519-SHA256 (RFC 8463)
package dkim

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"time"
)

// Status is the outcome of verifying a single DKIM-Signature.
type Status string

const (
	// StatusValid indicates the signature verified successfully.
	StatusValid Status = "valid"

	// StatusInvalidSignature indicates the body hash or the cryptographic
	// signature did not match.
	StatusInvalidSignature Status = "invalid-signature"

	// StatusMissingKey indicates the signer's public key could not be
	// obtained (absent, revoked, or resolution failed).
	StatusMissingKey Status = "missing-key"

	// StatusMalformedHeader indicates the DKIM-Signature header or a
	// signed header could not be processed.
	StatusMalformedHeader Status = "malformed-header"

	// StatusUnsupportedAlgorithm indicates the signature declares an
	// algorithm or canonicalization this package does not support.
	StatusUnsupportedAlgorithm Status = "unsupported-algorithm"
)

// Algorithm is a DKIM signing algorithm.
type Algorithm string

const (
	AlgRSASHA256     Algorithm = "rsa-sha256"
	AlgRSASHA1       Algorithm = "rsa-sha1"
	AlgEd25519SHA256 Algorithm = "ed25519-sha256"
)

// Canonicalization selects a header/body canonicalization algorithm.
type Canonicalization string

const (
	// CanonSimple is the "simple" canonicalization algorithm.
	CanonSimple Canonicalization = "simple"

	// CanonRelaxed is the "relaxed" canonicalization algorithm.
	CanonRelaxed Canonicalization = "relaxed"
)

// Errors returned during parsing and verification.
var (
	ErrMalformedHeader         = errors.New("dkim: malformed DKIM-Signature header")
	ErrMissingHeader           = errors.New("dkim: signed header not present in message")
	ErrMissingSignature        = errors.New("dkim: no DKIM-Signature header found")
	ErrUnsupportedAlgorithm    = errors.New("dkim: unsupported signature algorithm")
	ErrInvalidSignature        = errors.New("dkim: signature verification failed")
	ErrBodyHashMismatch        = errors.New("dkim: body hash does not match")
	ErrMissingKey              = errors.New("dkim: public key unavailable")
	ErrKeyRevoked              = errors.New("dkim: key has been revoked")
	ErrWeakKey                 = errors.New("dkim: key is too weak")
	ErrCanonicalizationUnknown = errors.New("dkim: unknown canonicalization")
	ErrMissingTag              = errors.New("dkim: missing required tag")
	ErrDuplicateTag            = errors.New("dkim: duplicate tag")
	ErrInvalidVersion          = errors.New("dkim: invalid version")
	ErrSigExpired              = errors.New("dkim: signature has expired")
	ErrFromRequired            = errors.New("dkim: From header must be signed")
	ErrTLD                     = errors.New("dkim: signed domain is a public suffix")
	ErrNoRecord                = errors.New("dkim: no DKIM DNS record found")
	ErrMultipleRecords         = errors.New("dkim: multiple DKIM DNS records found")
	ErrSyntax                  = errors.New("dkim: syntax error in DKIM record")
)

// timeNow is used for testing.
var timeNow = time.Now

// cryptoRand is the random source for signing.
var cryptoRand = rand.Reader

// signWithKey signs a digest with the given private key.
func signWithKey(key crypto.Signer, hash crypto.Hash, digest []byte) ([]byte, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k.Sign(cryptoRand, digest, hash)
	case ed25519.PrivateKey:
		// Ed25519 uses PureEdDSA over the unhashed data.
		return k.Sign(cryptoRand, digest, crypto.Hash(0))
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// verifyWithKey verifies a signature over a digest with the given public key.
func verifyWithKey(key any, hash crypto.Hash, digest, signature []byte) error {
	switch k := key.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(k, hash, digest, signature); err != nil {
			return ErrInvalidSignature
		}
		return nil
	case ed25519.PublicKey:
		if !ed25519.Verify(k, digest, signature) {
			return ErrInvalidSignature
		}
		return nil
	default:
		return ErrUnsupportedAlgorithm
	}
}

// getHash returns the crypto.Hash for the given hash algorithm name.
func getHash(algorithm string) (crypto.Hash, bool) {
	switch algorithm {
	case "sha256":
		return crypto.SHA256, true
	case "sha1":
		return crypto.SHA1, true
	default:
		return 0, false
	}
}
