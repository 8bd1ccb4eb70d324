package relayer

import (
	"strings"
	"testing"
)

func sampleInput() *EmailAuthInput {
	return &EmailAuthInput{
		PaddedHeader:    []string{"102", "114", "111", "109", "0"},
		PublicKey:       []string{"1", "2", "3"},
		Signature:       []string{"4", "5", "6"},
		PaddedHeaderLen: 64,
		AccountCode:     "0x" + strings.Repeat("0", 63) + "1",
		FromAddrIdx:     5,
		SubjectIdx:      30,
		DomainIdx:       11,
		TimestampIdx:    0,
		AddressIdx:      9,
		PubkeyIdx:       0,
		ValidatorIdx:    0,
	}
}

// Downstream provers rely on the JSON field order, so it is pinned here.
func TestInputJSONFieldOrder(t *testing.T) {
	text, err := sampleInput().ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	order := []string{
		`"padded_header"`,
		`"public_key"`,
		`"signature"`,
		`"padded_header_len"`,
		`"account_code"`,
		`"from_addr_idx"`,
		`"subject_idx"`,
		`"domain_idx"`,
		`"timestamp_idx"`,
		`"address_idx"`,
		`"pubkey_idx"`,
		`"validator_idx"`,
	}

	last := -1
	for _, field := range order {
		pos := strings.Index(text, field)
		if pos < 0 {
			t.Fatalf("field %s missing from %s", field, text)
		}
		if pos < last {
			t.Errorf("field %s out of order", field)
		}
		last = pos
	}
}

func TestInputJSONDeterministic(t *testing.T) {
	a, err := sampleInput().ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	b, err := sampleInput().ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("identical inputs encoded differently")
	}
}

func TestInputMessagePackRoundTrip(t *testing.T) {
	in := sampleInput()

	data, err := in.ToMessagePack()
	if err != nil {
		t.Fatalf("ToMessagePack() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("ToMessagePack returned empty data")
	}

	decoded, err := FromMessagePack(data)
	if err != nil {
		t.Fatalf("FromMessagePack() error = %v", err)
	}

	if decoded.AccountCode != in.AccountCode {
		t.Errorf("AccountCode = %q, want %q", decoded.AccountCode, in.AccountCode)
	}
	if decoded.PaddedHeaderLen != in.PaddedHeaderLen {
		t.Errorf("PaddedHeaderLen = %d, want %d", decoded.PaddedHeaderLen, in.PaddedHeaderLen)
	}
	if strings.Join(decoded.PaddedHeader, ",") != strings.Join(in.PaddedHeader, ",") {
		t.Error("PaddedHeader lost in round trip")
	}
	if strings.Join(decoded.Signature, ",") != strings.Join(in.Signature, ",") {
		t.Error("Signature lost in round trip")
	}
	if decoded.FromAddrIdx != in.FromAddrIdx || decoded.SubjectIdx != in.SubjectIdx ||
		decoded.AddressIdx != in.AddressIdx {
		t.Error("indexes lost in round trip")
	}
}

func TestFromMessagePackGarbage(t *testing.T) {
	if _, err := FromMessagePack([]byte{0xff, 0x00, 0x01}); err == nil {
		t.Error("expected error for garbage input")
	}
}
