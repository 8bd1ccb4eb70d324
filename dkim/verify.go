package dkim

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/BananaLF/relayer-utils/dns"
	"github.com/BananaLF/relayer-utils/email"
)

// DefaultMinRSAKeyBits is the smallest RSA modulus accepted by default.
// RFC 8301 obsoleted keys below 1024 bits.
const DefaultMinRSAKeyBits = 1024

// Result is the outcome of verifying one DKIM-Signature header.
type Result struct {
	// Status classifies the outcome.
	Status Status

	// Signature is the parsed signature, nil when parsing failed.
	Signature *Signature

	// Record is the DNS key record used, nil when none was obtained.
	Record *Record

	// CanonicalHeader is the exact byte sequence the signature covers:
	// the canonicalized signed headers followed by the canonicalized
	// DKIM-Signature header with an empty b= value. It is populated for
	// every status that got far enough to canonicalize, so callers can
	// reuse it as signed data even when the key was unavailable.
	CanonicalHeader []byte

	// Err carries the failure detail for non-valid statuses.
	Err error
}

// Verifier verifies DKIM signatures using DNS key records.
type Verifier struct {
	// Resolver performs the TXT lookups for key records.
	Resolver dns.Resolver

	// MinRSAKeyBits rejects RSA keys below this size.
	// Zero means DefaultMinRSAKeyBits.
	MinRSAKeyBits int
}

// VerifyEmail verifies the first DKIM-Signature header of a parsed message,
// fetching the key record over DNS. It returns an error only when the
// message carries no DKIM-Signature header at all; every other failure is
// reported through the Result status.
func (v *Verifier) VerifyEmail(ctx context.Context, parsed *email.ParsedEmail) (*Result, error) {
	field, ok := parsed.First("dkim-signature")
	if !ok {
		return nil, ErrMissingSignature
	}

	sig, stripped, err := ParseSignature(field.Raw)
	if err != nil {
		return &Result{Status: StatusMalformedHeader, Err: err}, nil
	}

	record, err := v.lookup(ctx, sig.Selector, sig.Domain)
	if err != nil {
		res := verifySignature(parsed, sig, stripped, nil, v.minKeyBits())
		if res.Status == StatusMissingKey {
			res.Err = err
		}
		return res, nil
	}

	res := verifySignature(parsed, sig, stripped, record.PublicKey, v.minKeyBits())
	res.Record = record
	return res, nil
}

// VerifyWithKey verifies the first DKIM-Signature header of a parsed message
// against a known public key (*rsa.PublicKey or ed25519.PublicKey), without
// any DNS lookup. A nil key yields StatusMissingKey but still canonicalizes
// the signed headers. It returns an error only when no DKIM-Signature header
// is present.
func VerifyWithKey(parsed *email.ParsedEmail, key any) (*Result, error) {
	field, ok := parsed.First("dkim-signature")
	if !ok {
		return nil, ErrMissingSignature
	}

	sig, stripped, err := ParseSignature(field.Raw)
	if err != nil {
		return &Result{Status: StatusMalformedHeader, Err: err}, nil
	}

	return verifySignature(parsed, sig, stripped, key, DefaultMinRSAKeyBits), nil
}

func (v *Verifier) minKeyBits() int {
	if v.MinRSAKeyBits > 0 {
		return v.MinRSAKeyBits
	}
	return DefaultMinRSAKeyBits
}

// verifySignature runs the full verification against a known key. A nil key
// performs every check short of the cryptographic one and reports
// StatusMissingKey.
func verifySignature(parsed *email.ParsedEmail, sig *Signature, stripped []byte, key any, minRSABits int) *Result {
	res := &Result{Signature: sig}

	if err := checkSignatureParams(sig); err != nil {
		res.Status = classifyParamError(err)
		res.Err = err
		return res
	}

	if err := checkKey(key, sig, minRSABits); err != nil {
		res.Status = classifyParamError(err)
		res.Err = err
		if key != nil {
			return res
		}
	}

	hash, _ := getHash(sig.AlgorithmHash())

	// Body hash first: it is cheap and pins down the failure to the body
	// before any public key cryptography runs.
	body, err := CanonicalizeBody(parsed.Body, sig.BodyCanon())
	if err != nil {
		res.Status = StatusMalformedHeader
		res.Err = err
		return res
	}
	if sig.Length >= 0 {
		if sig.Length > int64(len(body)) {
			res.Status = StatusMalformedHeader
			res.Err = fmt.Errorf("%w: l= exceeds body length", ErrMalformedHeader)
			return res
		}
		body = body[:sig.Length]
	}
	h := hash.New()
	h.Write(body)
	if !bytes.Equal(h.Sum(nil), sig.BodyHash) {
		res.Status = StatusInvalidSignature
		res.Err = ErrBodyHashMismatch
		return res
	}

	data, err := dataToSign(parsed.Headers, sig.HeaderCanon(), sig.SignedHeaders, stripped)
	if err != nil {
		res.Status = StatusMalformedHeader
		res.Err = err
		return res
	}
	res.CanonicalHeader = data

	if key == nil {
		res.Status = StatusMissingKey
		res.Err = ErrMissingKey
		return res
	}

	h = hash.New()
	h.Write(data)
	if err := verifyWithKey(key, hash, h.Sum(nil), sig.Signature); err != nil {
		if errors.Is(err, ErrUnsupportedAlgorithm) {
			res.Status = StatusUnsupportedAlgorithm
		} else {
			res.Status = StatusInvalidSignature
		}
		res.Err = err
		return res
	}

	res.Status = StatusValid
	return res
}

// checkSignatureParams validates signature parameters that do not need the
// key: algorithm support, canonicalization names, required signed headers,
// expiry, and the signing domain.
func checkSignatureParams(sig *Signature) error {
	if _, ok := getHash(sig.AlgorithmHash()); !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, sig.Algorithm)
	}
	switch sig.AlgorithmSign() {
	case "rsa", "ed25519":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, sig.Algorithm)
	}

	for _, c := range []Canonicalization{sig.HeaderCanon(), sig.BodyCanon()} {
		if c != CanonSimple && c != CanonRelaxed {
			return fmt.Errorf("%w: %s", ErrCanonicalizationUnknown, c)
		}
	}

	fromSigned := false
	for _, h := range sig.SignedHeaders {
		if strings.EqualFold(h, "from") {
			fromSigned = true
			break
		}
	}
	if !fromSigned {
		return ErrFromRequired
	}

	if sig.IsExpired() {
		return ErrSigExpired
	}

	if isTLD(sig.Domain) {
		return fmt.Errorf("%w: %s", ErrTLD, sig.Domain)
	}

	return nil
}

// checkKey validates the public key against the signature algorithm.
func checkKey(key any, sig *Signature, minRSABits int) error {
	if key == nil {
		return ErrMissingKey
	}
	if rsaKey, ok := key.(*rsa.PublicKey); ok {
		if sig.AlgorithmSign() != "rsa" {
			return fmt.Errorf("%w: key type does not match %s", ErrUnsupportedAlgorithm, sig.Algorithm)
		}
		if rsaKey.N.BitLen() < minRSABits {
			return fmt.Errorf("%w: %d bits", ErrWeakKey, rsaKey.N.BitLen())
		}
	}
	return nil
}

// classifyParamError maps a parameter check failure to a status.
func classifyParamError(err error) Status {
	switch {
	case errors.Is(err, ErrUnsupportedAlgorithm),
		errors.Is(err, ErrCanonicalizationUnknown),
		errors.Is(err, ErrWeakKey):
		return StatusUnsupportedAlgorithm
	case errors.Is(err, ErrMissingKey), errors.Is(err, ErrKeyRevoked):
		return StatusMissingKey
	default:
		return StatusMalformedHeader
	}
}

// lookup retrieves and parses the DKIM key record for selector and domain.
func (v *Verifier) lookup(ctx context.Context, selector, domain string) (*Record, error) {
	name := selector + "._domainkey." + domain

	result, err := v.Resolver.LookupTXT(ctx, name)
	if err != nil {
		if dns.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRecord, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrMissingKey, err)
	}

	var record *Record
	for _, txt := range result.Records {
		r, isDKIM, err := ParseRecord(txt)
		if err != nil && isDKIM {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		if err != nil || !isDKIM {
			continue
		}
		if record != nil {
			return nil, fmt.Errorf("%w: %s", ErrMultipleRecords, name)
		}
		record = r
	}

	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRecord, name)
	}
	if len(record.Pubkey) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrKeyRevoked, name)
	}

	return record, nil
}

// isTLD reports whether the domain sits at or above the public suffix
// boundary and is therefore not a valid signing domain.
func isTLD(domain string) bool {
	if domain == "" {
		return true
	}
	domain = strings.TrimSuffix(domain, ".")

	etldPlusOne, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return true
	}
	lower := strings.ToLower(domain)
	return !strings.EqualFold(domain, etldPlusOne) &&
		!strings.HasSuffix(lower, "."+strings.ToLower(etldPlusOne))
}
