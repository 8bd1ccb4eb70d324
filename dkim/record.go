package dkim

import (
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
)

// Record is a DKIM key record published as a DNS TXT record at
// <selector>._domainkey.<domain> (RFC 6376 Section 3.6.1).
type Record struct {
	// Version is the record version, must be "DKIM1".
	Version string

	// Hashes lists acceptable hash algorithms. Empty means all.
	Hashes []string

	// Key is the key type: "rsa" (default) or "ed25519".
	Key string

	// Pubkey is the raw base64-decoded key data. Empty means revoked.
	Pubkey []byte

	// Services lists acceptable service types. Empty or "*" means all.
	Services []string

	// Flags holds key flags: "y" (testing), "s" (strict i= alignment).
	Flags []string

	// PublicKey is the parsed key: *rsa.PublicKey or ed25519.PublicKey.
	PublicKey any
}

// HashAllowed reports whether the record permits the given hash algorithm.
func (r *Record) HashAllowed(hash string) bool {
	if len(r.Hashes) == 0 {
		return true
	}
	for _, h := range r.Hashes {
		if strings.EqualFold(h, hash) {
			return true
		}
	}
	return false
}

// ServiceAllowed reports whether the record permits the given service type.
func (r *Record) ServiceAllowed(service string) bool {
	if len(r.Services) == 0 {
		return true
	}
	for _, s := range r.Services {
		if s == "*" || strings.EqualFold(s, service) {
			return true
		}
	}
	return false
}

// ToTXT renders the record as a DNS TXT record string.
func (r *Record) ToTXT() (string, error) {
	if r.Version != "DKIM1" {
		return "", fmt.Errorf("invalid record version: %s", r.Version)
	}

	parts := []string{"v=DKIM1"}
	if len(r.Hashes) > 0 {
		parts = append(parts, "h="+strings.Join(r.Hashes, ":"))
	}
	if r.Key != "" && !strings.EqualFold(r.Key, "rsa") {
		parts = append(parts, "k="+r.Key)
	}
	if len(r.Services) > 0 && !(len(r.Services) == 1 && r.Services[0] == "*") {
		parts = append(parts, "s="+strings.Join(r.Services, ":"))
	}
	if len(r.Flags) > 0 {
		parts = append(parts, "t="+strings.Join(r.Flags, ":"))
	}

	pk := r.Pubkey
	if len(pk) == 0 && r.PublicKey != nil {
		var err error
		pk, err = marshalPublicKey(r.PublicKey)
		if err != nil {
			return "", err
		}
	}
	parts = append(parts, "p="+base64.StdEncoding.EncodeToString(pk))

	return strings.Join(parts, "; "), nil
}

// marshalPublicKey serializes a public key for the p= tag.
func marshalPublicKey(key any) ([]byte, error) {
	switch k := key.(type) {
	case *rsa.PublicKey:
		return x509.MarshalPKIXPublicKey(k)
	case ed25519.PublicKey:
		return []byte(k), nil
	default:
		return nil, fmt.Errorf("unsupported public key type: %T", key)
	}
}

// ParseRecord parses a DKIM key record from a TXT record string.
// The second return value reports whether the string looks like a DKIM
// record at all, so callers can skip unrelated TXT records at the same name.
func ParseRecord(txt string) (*Record, bool, error) {
	record := &Record{
		Version:  "DKIM1",
		Key:      "rsa",
		Services: []string{"*"},
	}

	seen := make(map[string]bool)
	isDKIM := false

	for _, part := range strings.Split(txt, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tag, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		tag = strings.TrimSpace(tag)
		value = strings.TrimSpace(value)

		if seen[tag] {
			if isDKIM {
				return nil, true, fmt.Errorf("%w: duplicate tag %s", ErrSyntax, tag)
			}
			continue
		}
		seen[tag] = true

		switch tag {
		case "v":
			if value != "DKIM1" {
				return nil, false, fmt.Errorf("not a DKIM1 record")
			}
			record.Version = value
			isDKIM = true

		case "h":
			for _, h := range strings.Split(value, ":") {
				if h = strings.TrimSpace(h); h != "" {
					record.Hashes = append(record.Hashes, h)
				}
			}
			isDKIM = true

		case "k":
			record.Key = strings.ToLower(value)
			isDKIM = true

		case "p":
			cleaned := stripWSP(value)
			if cleaned != "" {
				decoded, err := base64.StdEncoding.DecodeString(cleaned)
				if err != nil {
					return nil, isDKIM, fmt.Errorf("%w: invalid public key encoding: %v", ErrSyntax, err)
				}
				record.Pubkey = decoded
			}
			isDKIM = true

		case "s":
			record.Services = nil
			for _, s := range strings.Split(value, ":") {
				if s = strings.TrimSpace(s); s != "" {
					record.Services = append(record.Services, s)
				}
			}
			isDKIM = true

		case "t":
			for _, f := range strings.Split(value, ":") {
				if f = strings.TrimSpace(f); f != "" {
					record.Flags = append(record.Flags, f)
				}
			}
			isDKIM = true
		}
	}

	if !isDKIM {
		return nil, false, fmt.Errorf("not a DKIM record")
	}
	if !seen["p"] {
		return nil, true, fmt.Errorf("%w: missing public key (p=)", ErrSyntax)
	}

	if len(record.Pubkey) > 0 {
		pk, err := parsePublicKey(record.Key, record.Pubkey)
		if err != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		record.PublicKey = pk
	}

	return record, true, nil
}

// parsePublicKey decodes key data according to the declared key type.
func parsePublicKey(keyType string, data []byte) (any, error) {
	switch strings.ToLower(keyType) {
	case "", "rsa":
		pk, err := x509.ParsePKIXPublicKey(data)
		if err != nil {
			return nil, fmt.Errorf("invalid RSA public key: %w", err)
		}
		rsaPK, ok := pk.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("expected RSA public key, got %T", pk)
		}
		return rsaPK, nil

	case "ed25519":
		if len(data) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid Ed25519 public key size: %d", len(data))
		}
		return ed25519.PublicKey(data), nil

	default:
		return nil, fmt.Errorf("unsupported key type: %s", keyType)
	}
}
