// Package circuit builds witness inputs for zero-knowledge email
// verification circuits: SHA-256 padded byte arrays, fixed-width big
// integer limbs, and precomputed hash midstates, all in the decimal
// string encoding the circuits consume.
package circuit

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

// Default circuit shape for RSA-2048 email verification.
const (
	// DefaultMaxHeaderLength is the padded header size in bytes.
	DefaultMaxHeaderLength = 1024

	// DefaultMaxBodyLength is the padded body size in bytes.
	DefaultMaxBodyLength = 64

	// DefaultLimbBits is the bit width of one big integer limb.
	DefaultLimbBits = 121

	// DefaultLimbCount is the number of limbs per big integer.
	// 17 limbs of 121 bits cover an RSA-2048 modulus.
	DefaultLimbCount = 17
)

// shaBlockSize is the SHA-256 block size in bytes.
const shaBlockSize = 64

// ErrInputTooLarge is returned when data does not fit the configured
// circuit shape. Inputs are never truncated.
var ErrInputTooLarge = errors.New("circuit: input exceeds configured maximum")

// Params describes one witness generation request.
type Params struct {
	// Header is the canonical header covered by the signature.
	Header []byte

	// Body is the canonical body. May be empty when the circuit
	// ignores the body hash.
	Body []byte

	// Signature is the RSA signature as a big integer.
	Signature *big.Int

	// PublicKey is the RSA public key modulus.
	PublicKey *big.Int

	// ShaPrecomputeSelector marks where in the body hashing must be
	// done inside the circuit. Whole SHA-256 blocks before the
	// selector are hashed outside and handed over as a midstate.
	// Empty disables precomputation.
	ShaPrecomputeSelector []byte

	// MaxHeaderLength is the padded header size. Zero means
	// DefaultMaxHeaderLength. Must be a multiple of 64.
	MaxHeaderLength int

	// MaxBodyLength is the padded body size. Zero means
	// DefaultMaxBodyLength. Must be a multiple of 64.
	MaxBodyLength int

	// LimbBits is the limb width in bits. Zero means DefaultLimbBits.
	LimbBits int

	// LimbCount is the limb count. Zero means DefaultLimbCount.
	LimbCount int

	// IgnoreBodyHash skips body processing entirely, for circuits
	// that only constrain the header.
	IgnoreBodyHash bool
}

// withDefaults fills zero fields with the default circuit shape.
func (p Params) withDefaults() Params {
	if p.MaxHeaderLength == 0 {
		p.MaxHeaderLength = DefaultMaxHeaderLength
	}
	if p.MaxBodyLength == 0 {
		p.MaxBodyLength = DefaultMaxBodyLength
	}
	if p.LimbBits == 0 {
		p.LimbBits = DefaultLimbBits
	}
	if p.LimbCount == 0 {
		p.LimbCount = DefaultLimbCount
	}
	return p
}

// Inputs is the witness bundle handed to the circuit. All numeric values
// are decimal strings, the wire format the provers consume.
type Inputs struct {
	// HeaderPadded holds the SHA-256 padded header, one byte per
	// entry, zero filled to MaxHeaderLength.
	HeaderPadded []string

	// HeaderLen is the unpadded header length in bytes.
	HeaderLen int

	// HeaderPaddedLen is the header length after SHA-256 message
	// padding, a multiple of the block size.
	HeaderPaddedLen int

	// BodyPadded holds the SHA-256 padded body, zero filled to
	// MaxBodyLength. Nil when IgnoreBodyHash is set.
	BodyPadded []string

	// BodyLen is the unpadded body length in bytes.
	BodyLen int

	// BodyPaddedLen is the body length after SHA-256 message padding.
	BodyPaddedLen int

	// PrecomputedSHA is the 32-byte SHA-256 midstate over the body
	// blocks preceding ShaPrecomputeSelector. Nil when no selector
	// was given.
	PrecomputedSHA []string

	// Signature is the signature split into little-endian limbs.
	Signature []string

	// PublicKey is the modulus split into little-endian limbs.
	PublicKey []string
}

// Generate builds circuit inputs from the given parameters.
func Generate(params Params) (*Inputs, error) {
	p := params.withDefaults()

	if p.MaxHeaderLength%shaBlockSize != 0 {
		return nil, fmt.Errorf("circuit: max header length %d is not a multiple of %d", p.MaxHeaderLength, shaBlockSize)
	}
	if p.MaxBodyLength%shaBlockSize != 0 {
		return nil, fmt.Errorf("circuit: max body length %d is not a multiple of %d", p.MaxBodyLength, shaBlockSize)
	}

	in := &Inputs{HeaderLen: len(p.Header)}

	headerPadded, headerPaddedLen, err := shaPad(p.Header, p.MaxHeaderLength)
	if err != nil {
		return nil, fmt.Errorf("%w: header %d bytes, max %d", ErrInputTooLarge, len(p.Header), p.MaxHeaderLength)
	}
	in.HeaderPadded = bytesToDecimal(headerPadded)
	in.HeaderPaddedLen = headerPaddedLen

	if !p.IgnoreBodyHash {
		body := p.Body
		if len(p.ShaPrecomputeSelector) > 0 {
			midstate, rest, err := precomputeSHA(body, p.ShaPrecomputeSelector)
			if err != nil {
				return nil, err
			}
			in.PrecomputedSHA = bytesToDecimal(midstate)
			body = rest
		}

		in.BodyLen = len(body)
		bodyPadded, bodyPaddedLen, err := shaPad(body, p.MaxBodyLength)
		if err != nil {
			return nil, fmt.Errorf("%w: body %d bytes, max %d", ErrInputTooLarge, len(body), p.MaxBodyLength)
		}
		in.BodyPadded = bytesToDecimal(bodyPadded)
		in.BodyPaddedLen = bodyPaddedLen
	}

	if p.Signature != nil {
		in.Signature, err = ToLimbs(p.Signature, p.LimbBits, p.LimbCount)
		if err != nil {
			return nil, fmt.Errorf("signature: %w", err)
		}
	}
	if p.PublicKey != nil {
		in.PublicKey, err = ToLimbs(p.PublicKey, p.LimbBits, p.LimbCount)
		if err != nil {
			return nil, fmt.Errorf("public key: %w", err)
		}
	}

	return in, nil
}

// precomputeSHA hashes the whole SHA-256 blocks of body preceding the
// selector and returns the midstate plus the remaining body, which starts
// at a block boundary and still contains the selector.
func precomputeSHA(body, selector []byte) (midstate, rest []byte, err error) {
	idx := bytes.Index(body, selector)
	if idx < 0 {
		return nil, nil, fmt.Errorf("circuit: precompute selector %q not found in body", selector)
	}

	cut := (idx / shaBlockSize) * shaBlockSize
	state := partialSHA256(body[:cut])
	return state, body[cut:], nil
}

// bytesToDecimal renders each byte as a decimal string.
func bytesToDecimal(data []byte) []string {
	out := make([]string, len(data))
	for i, b := range data {
		out[i] = strconv.Itoa(int(b))
	}
	return out
}
