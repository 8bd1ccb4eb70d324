package fields

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func TestParseAccountCode(t *testing.T) {
	zero := "0x" + strings.Repeat("0", 64)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "all zeros", input: zero},
		{name: "small value", input: "0x" + strings.Repeat("0", 63) + "1"},
		{name: "mixed case hex", input: "0x" + strings.Repeat("0", 60) + "AbCd"},
		{name: "missing prefix", input: strings.Repeat("0", 64), wantErr: true},
		{name: "too short", input: "0x" + strings.Repeat("0", 63), wantErr: true},
		{name: "too long", input: "0x" + strings.Repeat("0", 65), wantErr: true},
		{name: "non-hex", input: "0x" + strings.Repeat("z", 64), wantErr: true},
		{name: "plus sign prefix", input: "0x+" + strings.Repeat("0", 62) + "a", wantErr: true},
		{name: "minus sign prefix", input: "0x-" + strings.Repeat("0", 62) + "a", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{
			name:    "above modulus",
			input:   "0x" + strings.Repeat("f", 64),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := ParseAccountCode(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAccountCode) {
					t.Errorf("expected ErrInvalidAccountCode, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAccountCode() error = %v", err)
			}
			rendered := code.String()
			if !strings.HasPrefix(rendered, "0x") || len(rendered) != 66 {
				t.Errorf("String() = %q, want 0x + 64 hex digits", rendered)
			}
		})
	}
}

func TestParseAccountCodeModulusBoundary(t *testing.T) {
	// The modulus itself is out of range, modulus-1 is the largest
	// valid code.
	modHex := "0x" + fr.Modulus().Text(16)
	if len(modHex) == 66 {
		if _, err := ParseAccountCode(modHex); !errors.Is(err, ErrInvalidAccountCode) {
			t.Errorf("modulus accepted, want ErrInvalidAccountCode")
		}
	}

	maxValid := new(big.Int).Sub(fr.Modulus(), big.NewInt(1))
	code, err := ParseAccountCode("0x" + strings.Repeat("0", 64-len(maxValid.Text(16))) + maxValid.Text(16))
	if err != nil {
		t.Fatalf("modulus-1 rejected: %v", err)
	}
	got := code.Element()
	gotBig := got.BigInt(new(big.Int))
	if gotBig.Cmp(maxValid) != 0 {
		t.Errorf("Element() = %s, want %s", gotBig, maxValid)
	}
}

func TestPackBytes(t *testing.T) {
	if got := PackBytes(nil); len(got) != 0 {
		t.Errorf("PackBytes(nil) = %d elements, want 0", len(got))
	}

	one := PackBytes([]byte{0x01})
	var want fr.Element
	want.SetUint64(1)
	if !one[0].Equal(&want) {
		t.Error("single byte should pack to the element 1")
	}

	// 62 bytes pack into exactly two elements, 63 need three.
	if got := PackBytes(make([]byte, 62)); len(got) != 2 {
		t.Errorf("62 bytes = %d elements, want 2", len(got))
	}
	if got := PackBytes(make([]byte, 63)); len(got) != 3 {
		t.Errorf("63 bytes = %d elements, want 3", len(got))
	}
}

func TestEmailNullifierDeterministic(t *testing.T) {
	sig := []byte{0x01, 0x02, 0x03, 0x04}

	a := EmailNullifier(sig)
	b := EmailNullifier(sig)
	if a != b {
		t.Error("nullifier is not deterministic")
	}
	if !strings.HasPrefix(a, "0x") || len(a) != 66 {
		t.Errorf("nullifier format %q", a)
	}

	if a == EmailNullifier([]byte{0x01, 0x02, 0x03, 0x05}) {
		t.Error("different signatures produced the same nullifier")
	}
}

func TestPublicKeyHash(t *testing.T) {
	a := PublicKeyHash(big.NewInt(65537))
	b := PublicKeyHash(big.NewInt(65537))
	if a != b {
		t.Error("hash is not deterministic")
	}
	if a == PublicKeyHash(big.NewInt(65539)) {
		t.Error("different moduli produced the same hash")
	}
}

func TestAccountSalt(t *testing.T) {
	code, err := ParseAccountCode("0x" + strings.Repeat("0", 63) + "1")
	if err != nil {
		t.Fatal(err)
	}
	code2, err := ParseAccountCode("0x" + strings.Repeat("0", 63) + "2")
	if err != nil {
		t.Fatal(err)
	}

	salt, err := AccountSalt("alice@example.com", code)
	if err != nil {
		t.Fatalf("AccountSalt() error = %v", err)
	}
	again, err := AccountSalt("alice@example.com", code)
	if err != nil {
		t.Fatal(err)
	}
	if salt != again {
		t.Error("salt is not deterministic")
	}
	other, err := AccountSalt("bob@example.com", code)
	if err != nil {
		t.Fatal(err)
	}
	if salt == other {
		t.Error("different addresses produced the same salt")
	}
	otherCode, err := AccountSalt("alice@example.com", code2)
	if err != nil {
		t.Fatal(err)
	}
	if salt == otherCode {
		t.Error("different codes produced the same salt")
	}
}

func TestAccountSaltNonASCIIAddress(t *testing.T) {
	code, err := ParseAccountCode("0x" + strings.Repeat("0", 63) + "1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := AccountSalt("ålice@example.com", code); !errors.Is(err, ErrNonASCIIAddress) {
		t.Errorf("got %v, want ErrNonASCIIAddress", err)
	}
}
