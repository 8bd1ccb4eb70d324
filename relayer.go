// Package relayer turns raw DKIM-signed emails into witness inputs for
// zero-knowledge email verification circuits.
//
// The pipeline parses the message, verifies its DKIM signature (against a
// DNS key record or a caller-supplied key), canonicalizes the signed
// header, and maps header bytes, signature, and public key modulus into
// the fixed circuit shape, together with the byte offsets of the
// circuit-relevant substrings:
//
//	resolver := dns.NewResolver(dns.ResolverConfig{})
//	gen := &relayer.Generator{Resolver: resolver}
//	input, err := gen.GenerateEmailAuthInput(ctx, rawEmail, accountCode)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	text, err := input.ToJSON()
//
// The with-key variant performs no I/O at all:
//
//	input, err := gen.GenerateWithKey(rawEmail, accountCode, &key.PublicKey)
//
// Output is deterministic: the same message, code, and key always produce
// byte-identical JSON.
package relayer

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/BananaLF/relayer-utils/circuit"
	"github.com/BananaLF/relayer-utils/dkim"
	"github.com/BananaLF/relayer-utils/dns"
	"github.com/BananaLF/relayer-utils/email"
	"github.com/BananaLF/relayer-utils/fields"
)

// Pipeline failure classes, beyond the sentinel errors of the underlying
// packages.
var (
	ErrVerificationFailed = errors.New("relayer: DKIM verification failed")
	ErrUnsupportedKey     = errors.New("relayer: circuit input requires an RSA signature")
)

// Generator builds EmailAuthInput records from raw emails. The zero value
// with a Resolver set is ready to use with the default circuit shape.
type Generator struct {
	// Resolver fetches DKIM key records for GenerateEmailAuthInput.
	// Unused by GenerateWithKey.
	Resolver dns.Resolver

	// Patterns overrides the header index patterns. Nil means
	// DefaultPatterns.
	Patterns *Patterns

	// MaxHeaderLength and MaxBodyLength override the padded circuit
	// sizes. Zero means the circuit defaults (1024 and 64).
	MaxHeaderLength int
	MaxBodyLength   int

	// IncludeBody feeds the canonical body into the circuit input.
	// When false the body hash is left to the circuit's caller, which
	// matches circuits that only constrain the header.
	IncludeBody bool

	// ShaPrecomputeSelector enables body hash precomputation up to the
	// block containing the selector. Only meaningful with IncludeBody.
	ShaPrecomputeSelector string

	// MinRSAKeyBits rejects weak keys during verification. Zero means
	// the dkim package default.
	MinRSAKeyBits int
}

// GenerateEmailAuthInput runs the full pipeline for a raw message,
// resolving the DKIM key over DNS.
func (g *Generator) GenerateEmailAuthInput(ctx context.Context, raw []byte, accountCode string) (*EmailAuthInput, error) {
	code, err := fields.ParseAccountCode(accountCode)
	if err != nil {
		return nil, err
	}

	parsed, err := email.Parse(raw)
	if err != nil {
		return nil, err
	}

	v := &dkim.Verifier{Resolver: g.Resolver, MinRSAKeyBits: g.MinRSAKeyBits}
	res, err := v.VerifyEmail(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if res.Status != dkim.StatusValid {
		return nil, fmt.Errorf("%w: %s: %v", ErrVerificationFailed, res.Status, res.Err)
	}

	key, _ := res.Record.PublicKey.(*rsa.PublicKey)
	return g.buildInput(parsed, res, code, key)
}

// GenerateWithKey runs the pipeline against a known public key, without
// any DNS lookup.
func (g *Generator) GenerateWithKey(raw []byte, accountCode string, key *rsa.PublicKey) (*EmailAuthInput, error) {
	code, err := fields.ParseAccountCode(accountCode)
	if err != nil {
		return nil, err
	}

	parsed, err := email.Parse(raw)
	if err != nil {
		return nil, err
	}

	res, err := dkim.VerifyWithKey(parsed, key)
	if err != nil {
		return nil, err
	}
	if res.Status != dkim.StatusValid {
		return nil, fmt.Errorf("%w: %s: %v", ErrVerificationFailed, res.Status, res.Err)
	}

	return g.buildInput(parsed, res, code, key)
}

// buildInput maps a successful verification onto the circuit shape.
func (g *Generator) buildInput(parsed *email.ParsedEmail, res *dkim.Result, code fields.AccountCode, key *rsa.PublicKey) (*EmailAuthInput, error) {
	if key == nil {
		return nil, ErrUnsupportedKey
	}
	sig := res.Signature

	params := circuit.Params{
		Header:          res.CanonicalHeader,
		Signature:       new(big.Int).SetBytes(sig.Signature),
		PublicKey:       key.N,
		MaxHeaderLength: g.MaxHeaderLength,
		MaxBodyLength:   g.MaxBodyLength,
		IgnoreBodyHash:  !g.IncludeBody,
	}

	if g.IncludeBody {
		body, err := dkim.CanonicalizeBody(parsed.Body, sig.BodyCanon())
		if err != nil {
			return nil, err
		}
		params.Body = RemoveQuotedPrintableSoftBreaks(body)
		params.ShaPrecomputeSelector = []byte(g.ShaPrecomputeSelector)
	}

	inputs, err := circuit.Generate(params)
	if err != nil {
		return nil, err
	}

	patterns := g.Patterns
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	idx := patterns.Indexes(string(res.CanonicalHeader))

	return &EmailAuthInput{
		PaddedHeader:    inputs.HeaderPadded,
		PublicKey:       inputs.PublicKey,
		Signature:       inputs.Signature,
		PaddedHeaderLen: inputs.HeaderPaddedLen,
		AccountCode:     code.String(),
		FromAddrIdx:     idx.FromAddr,
		SubjectIdx:      idx.Subject,
		DomainIdx:       idx.Domain,
		TimestampIdx:    idx.Timestamp,
		AddressIdx:      idx.Address,
		PubkeyIdx:       idx.Pubkey,
		ValidatorIdx:    idx.Validator,
	}, nil
}

// GenerateEmailAuthInput is the package-level convenience form of the
// pipeline with the default circuit shape.
func GenerateEmailAuthInput(ctx context.Context, raw []byte, accountCode string, resolver dns.Resolver) (*EmailAuthInput, error) {
	g := &Generator{Resolver: resolver}
	return g.GenerateEmailAuthInput(ctx, raw, accountCode)
}
