package dkim

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"strings"
	"testing"
)

func testRSARecordTXT(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	return "v=DKIM1; k=rsa; p=" + base64.StdEncoding.EncodeToString(der), key
}

func TestParseRecordRSA(t *testing.T) {
	txt, key := testRSARecordTXT(t)

	record, isDKIM, err := ParseRecord(txt)
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	if !isDKIM {
		t.Fatal("record not recognized as DKIM")
	}
	if record.Key != "rsa" {
		t.Errorf("Key = %q", record.Key)
	}

	pk, ok := record.PublicKey.(*rsa.PublicKey)
	if !ok {
		t.Fatalf("PublicKey type %T", record.PublicKey)
	}
	if pk.N.Cmp(key.PublicKey.N) != 0 {
		t.Error("modulus mismatch")
	}
}

func TestParseRecordEd25519(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	txt := "v=DKIM1; k=ed25519; p=" + base64.StdEncoding.EncodeToString(pub)

	record, _, err := ParseRecord(txt)
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	got, ok := record.PublicKey.(ed25519.PublicKey)
	if !ok {
		t.Fatalf("PublicKey type %T", record.PublicKey)
	}
	if !pub.Equal(got) {
		t.Error("key mismatch")
	}
}

func TestParseRecordRevoked(t *testing.T) {
	record, isDKIM, err := ParseRecord("v=DKIM1; p=")
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	if !isDKIM {
		t.Fatal("record not recognized as DKIM")
	}
	if len(record.Pubkey) != 0 || record.PublicKey != nil {
		t.Error("revoked record should carry no key")
	}
}

func TestParseRecordNotDKIM(t *testing.T) {
	for _, txt := range []string{
		"v=spf1 include:_spf.example.com ~all",
		"some unrelated verification token",
	} {
		if _, isDKIM, err := ParseRecord(txt); err == nil || isDKIM {
			t.Errorf("%q accepted as DKIM record", txt)
		}
	}
}

func TestParseRecordFlags(t *testing.T) {
	txt, _ := testRSARecordTXT(t)
	record, _, err := ParseRecord(txt + "; t=y:s; s=email; h=sha256")
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}

	if len(record.Flags) != 2 || record.Flags[0] != "y" || record.Flags[1] != "s" {
		t.Errorf("Flags = %v", record.Flags)
	}
	if !record.ServiceAllowed("email") || record.ServiceAllowed("other") {
		t.Errorf("Services = %v", record.Services)
	}
	if !record.HashAllowed("sha256") || record.HashAllowed("sha1") {
		t.Errorf("Hashes = %v", record.Hashes)
	}
}

func TestRecordToTXTRoundTrip(t *testing.T) {
	txt, _ := testRSARecordTXT(t)
	record, _, err := ParseRecord(txt)
	if err != nil {
		t.Fatal(err)
	}

	rendered, err := record.ToTXT()
	if err != nil {
		t.Fatalf("ToTXT() error = %v", err)
	}
	if !strings.HasPrefix(rendered, "v=DKIM1;") {
		t.Errorf("rendered record %q", rendered)
	}

	again, _, err := ParseRecord(rendered)
	if err != nil {
		t.Fatalf("reparsing rendered record: %v", err)
	}
	pk := again.PublicKey.(*rsa.PublicKey)
	orig := record.PublicKey.(*rsa.PublicKey)
	if pk.N.Cmp(orig.N) != 0 {
		t.Error("key lost in round trip")
	}
}
