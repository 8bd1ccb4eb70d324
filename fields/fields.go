// Package fields maps byte-level email artifacts onto BN254 scalar field
// elements: account codes, nullifiers, public key hashes, and account
// salts, in the hex encoding downstream contracts consume.
package fields

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/BananaLF/relayer-utils/utils"
)

// ErrInvalidAccountCode is returned for account codes that are not a
// 0x-prefixed 64-digit hex string below the field modulus.
var ErrInvalidAccountCode = errors.New("fields: invalid account code")

// ErrNonASCIIAddress is returned for email addresses that cannot be
// packed into salt elements.
var ErrNonASCIIAddress = errors.New("fields: email address is not ASCII")

// packChunkSize is the number of bytes packed into one field element.
// 31 bytes always fit below the BN254 modulus.
const packChunkSize = 31

// AccountCode is a caller-supplied secret identifier, a BN254 field
// element written as "0x" + 64 hex digits.
type AccountCode struct {
	element fr.Element
}

// ParseAccountCode validates and parses an account code string.
func ParseAccountCode(s string) (AccountCode, error) {
	hexPart, ok := strings.CutPrefix(s, "0x")
	if !ok || len(hexPart) != 64 {
		return AccountCode{}, fmt.Errorf("%w: want 0x + 64 hex digits", ErrInvalidAccountCode)
	}

	// hex.DecodeString accepts exactly [0-9a-fA-F]; big.Int.SetString
	// would also take a sign prefix.
	raw, err := hex.DecodeString(hexPart)
	if err != nil {
		return AccountCode{}, fmt.Errorf("%w: not a hex string", ErrInvalidAccountCode)
	}
	value := new(big.Int).SetBytes(raw)
	if value.Cmp(fr.Modulus()) >= 0 {
		return AccountCode{}, fmt.Errorf("%w: value exceeds field modulus", ErrInvalidAccountCode)
	}

	var code AccountCode
	code.element.SetBigInt(value)
	return code, nil
}

// String renders the code as "0x" + 64 lowercase hex digits.
func (c AccountCode) String() string {
	return elementToHex(&c.element)
}

// Element returns the underlying field element.
func (c AccountCode) Element() fr.Element {
	return c.element
}

// elementToHex renders a field element as "0x" + 64 hex digits.
func elementToHex(e *fr.Element) string {
	return fmt.Sprintf("0x%064x", e.BigInt(new(big.Int)))
}

// PackBytes packs data into field elements, 31 bytes per element,
// big-endian within each chunk. The final chunk is shorter when the data
// length is not a multiple of 31.
func PackBytes(data []byte) []fr.Element {
	out := make([]fr.Element, 0, (len(data)+packChunkSize-1)/packChunkSize)
	for len(data) > 0 {
		n := packChunkSize
		if n > len(data) {
			n = len(data)
		}
		var e fr.Element
		e.SetBytes(data[:n])
		out = append(out, e)
		data = data[n:]
	}
	return out
}

// hashElements hashes field elements with MiMC over BN254.
func hashElements(elements []fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for i := range elements {
		b := elements[i].Bytes()
		h.Write(b[:])
	}

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// EmailNullifier derives the nullifier for a DKIM signature. The
// signature bytes are reversed before packing, so the nullifier pins down
// the exact signature while staying independent of its big-endian wire
// form.
func EmailNullifier(signature []byte) string {
	reversed := make([]byte, len(signature))
	for i, b := range signature {
		reversed[len(signature)-1-i] = b
	}
	out := hashElements(PackBytes(reversed))
	return elementToHex(&out)
}

// PublicKeyHash derives the circuit-friendly hash of an RSA public key
// modulus.
func PublicKeyHash(modulus *big.Int) string {
	out := hashElements(PackBytes(modulus.Bytes()))
	return elementToHex(&out)
}

// AccountSalt derives the CREATE2-style salt binding an email address to
// an account code without revealing either. The address must be ASCII:
// the packed byte layout has no encoding marker, so a non-ASCII address
// would alias a different ASCII byte sequence.
func AccountSalt(emailAddr string, code AccountCode) (string, error) {
	if utils.ContainsNonASCII(emailAddr) {
		return "", fmt.Errorf("%w: %q", ErrNonASCIIAddress, emailAddr)
	}
	elements := PackBytes([]byte(emailAddr))
	elements = append(elements, code.element)
	out := hashElements(elements)
	return elementToHex(&out), nil
}
