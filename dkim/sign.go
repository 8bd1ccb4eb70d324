package dkim

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/BananaLF/relayer-utils/email"
)

// DefaultSignedHeaders is the header set signed when Signer.Headers is empty.
var DefaultSignedHeaders = []string{
	"From", "To", "Subject", "Date", "Message-ID",
}

// Signer produces DKIM-Signature headers for messages.
type Signer struct {
	// Domain is the signing domain (d= tag).
	Domain string

	// Selector is the selector for the signing key (s= tag).
	Selector string

	// PrivateKey is the signing key.
	// Supported types: *rsa.PrivateKey, ed25519.PrivateKey
	PrivateKey crypto.Signer

	// Headers is the list of header names to sign.
	// If empty, DefaultSignedHeaders is used.
	Headers []string

	// HeaderCanonicalization is the header canonicalization algorithm.
	// Default is CanonRelaxed.
	HeaderCanonicalization Canonicalization

	// BodyCanonicalization is the body canonicalization algorithm.
	// Default is CanonRelaxed.
	BodyCanonicalization Canonicalization

	// Identity is the signing identity (i= tag). Optional.
	Identity string

	// Expiration is the signature validity period.
	// If zero, no expiration is set.
	Expiration time.Duration
}

// Sign signs a parsed message and returns the DKIM-Signature header value,
// folded and without a trailing CRLF, ready to prepend to the message.
func (s *Signer) Sign(parsed *email.ParsedEmail) (string, error) {
	if len(parsed.All("from")) != 1 {
		return "", ErrFromRequired
	}

	alg, hash, err := s.algorithm()
	if err != nil {
		return "", err
	}

	headerCanon := s.HeaderCanonicalization
	if headerCanon == "" {
		headerCanon = CanonRelaxed
	}
	bodyCanon := s.BodyCanonicalization
	if bodyCanon == "" {
		bodyCanon = CanonRelaxed
	}

	sig := NewSignature()
	sig.Domain = s.Domain
	sig.Selector = s.Selector
	sig.Algorithm = string(alg)
	sig.Canonicalization = string(headerCanon) + "/" + string(bodyCanon)
	sig.Identity = s.Identity
	sig.SignTime = timeNow().Unix()
	if s.Expiration > 0 {
		sig.ExpireTime = timeNow().Add(s.Expiration).Unix()
	}
	sig.SignedHeaders = s.signedHeaders(parsed)

	body, err := CanonicalizeBody(parsed.Body, bodyCanon)
	if err != nil {
		return "", err
	}
	h := hash.New()
	h.Write(body)
	sig.BodyHash = h.Sum(nil)

	data, err := dataToSign(parsed.Headers, headerCanon, sig.SignedHeaders,
		[]byte(sig.Header(false)))
	if err != nil {
		return "", err
	}
	h = hash.New()
	h.Write(data)
	sig.Signature, err = signWithKey(s.PrivateKey, hash, h.Sum(nil))
	if err != nil {
		return "", err
	}

	return sig.Header(true), nil
}

// signedHeaders resolves the h= list, keeping only names present in the
// message and guaranteeing From is included.
func (s *Signer) signedHeaders(parsed *email.ParsedEmail) []string {
	names := s.Headers
	if len(names) == 0 {
		names = DefaultSignedHeaders
	}

	hasFrom := false
	for _, n := range names {
		if strings.EqualFold(n, "from") {
			hasFrom = true
			break
		}
	}
	if !hasFrom {
		names = append([]string{"From"}, names...)
	}

	var out []string
	for _, n := range names {
		if len(parsed.All(n)) > 0 {
			out = append(out, n)
		}
	}
	return out
}

// algorithm derives the a= tag value from the private key type.
func (s *Signer) algorithm() (Algorithm, crypto.Hash, error) {
	switch s.PrivateKey.(type) {
	case *rsa.PrivateKey:
		return AlgRSASHA256, crypto.SHA256, nil
	case ed25519.PrivateKey:
		return AlgEd25519SHA256, crypto.SHA256, nil
	default:
		return "", 0, fmt.Errorf("%w: key type %T", ErrUnsupportedAlgorithm, s.PrivateKey)
	}
}
