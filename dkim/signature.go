package dkim

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Signature is a parsed DKIM-Signature header (RFC 6376 Section 3.5).
type Signature struct {
	// Required tags.
	Version       int      // v= version, must be 1
	Algorithm     string   // a= algorithm (e.g. "rsa-sha256")
	Signature     []byte   // b= signature data
	BodyHash      []byte   // bh= body hash
	Domain        string   // d= signing domain
	SignedHeaders []string // h= signed header fields, in order
	Selector      string   // s= selector

	// Optional tags.
	Canonicalization string // c= canonicalization pair (e.g. "relaxed/simple")
	Identity         string // i= agent or user identifier
	Length           int64  // l= body length limit (-1 if not set)
	SignTime         int64  // t= signature timestamp (-1 if not set)
	ExpireTime       int64  // x= signature expiration (-1 if not set)
}

// NewSignature returns a Signature with RFC 6376 defaults.
func NewSignature() *Signature {
	return &Signature{
		Version:          1,
		Canonicalization: "simple/simple",
		Length:           -1,
		SignTime:         -1,
		ExpireTime:       -1,
	}
}

// AlgorithmSign returns the signing part of the algorithm, e.g. "rsa".
func (s *Signature) AlgorithmSign() string {
	alg, _, _ := strings.Cut(s.Algorithm, "-")
	return alg
}

// AlgorithmHash returns the hash part of the algorithm, e.g. "sha256".
func (s *Signature) AlgorithmHash() string {
	_, hash, _ := strings.Cut(s.Algorithm, "-")
	return hash
}

// HeaderCanon returns the header canonicalization algorithm.
func (s *Signature) HeaderCanon() Canonicalization {
	head, _, _ := strings.Cut(s.Canonicalization, "/")
	if head == "" {
		return CanonSimple
	}
	return Canonicalization(strings.ToLower(head))
}

// BodyCanon returns the body canonicalization algorithm. The default when
// the c= tag names only the header algorithm is "simple".
func (s *Signature) BodyCanon() Canonicalization {
	_, body, ok := strings.Cut(s.Canonicalization, "/")
	if !ok || body == "" {
		return CanonSimple
	}
	return Canonicalization(strings.ToLower(body))
}

// IsExpired reports whether the signature has expired.
func (s *Signature) IsExpired() bool {
	return s.ExpireTime >= 0 && timeNow().Unix() > s.ExpireTime
}

// mandatoryTags are the tags that must be present per RFC 6376.
var mandatoryTags = []string{"v", "a", "b", "bh", "d", "h", "s"}

// bValueRe matches the b= tag value so it can be emptied before the
// signature header is fed back into header canonicalization. The leading
// separator distinguishes b= from bh=.
var bValueRe = regexp.MustCompile(`([;:][ \t\r\n]*)b[ \t\r\n]*=[^;]*`)

// ParseSignature parses a raw DKIM-Signature header, name included.
//
// It returns the parsed signature and the original header bytes with the
// b= value removed, which is the form of the header covered by the
// signature itself.
func ParseSignature(header []byte) (*Signature, []byte, error) {
	unfolded := unfold(strings.TrimSuffix(string(header), "\r\n"))

	name, value, ok := strings.Cut(unfolded, ":")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), "DKIM-Signature") {
		return nil, nil, fmt.Errorf("%w: not a DKIM-Signature header", ErrMalformedHeader)
	}

	sig := NewSignature()
	seen := make(map[string]bool)

	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tag, tagValue, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		tag = strings.TrimSpace(tag)
		tagValue = strings.TrimSpace(tagValue)

		if seen[tag] {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateTag, tag)
		}
		seen[tag] = true

		if err := sig.setTag(tag, tagValue); err != nil {
			return nil, nil, err
		}
	}

	for _, tag := range mandatoryTags {
		if !seen[tag] {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingTag, tag)
		}
	}

	if err := sig.validate(); err != nil {
		return nil, nil, err
	}

	// Strip the b= value from the original header, folding preserved.
	stripped := bValueRe.ReplaceAll(header, []byte("${1}b="))
	stripped = []byte(strings.TrimSuffix(string(stripped), "\r\n"))

	return sig, stripped, nil
}

// setTag assigns one tag=value pair. Unknown tags are ignored per RFC 6376.
func (s *Signature) setTag(tag, value string) error {
	switch tag {
	case "v":
		v, err := strconv.Atoi(value)
		if err != nil || v != 1 {
			return fmt.Errorf("%w: %q", ErrInvalidVersion, value)
		}
		s.Version = v

	case "a":
		s.Algorithm = strings.ToLower(value)

	case "b":
		decoded, err := base64.StdEncoding.DecodeString(stripWSP(value))
		if err != nil {
			return fmt.Errorf("%w: invalid b= encoding: %v", ErrMalformedHeader, err)
		}
		s.Signature = decoded

	case "bh":
		decoded, err := base64.StdEncoding.DecodeString(stripWSP(value))
		if err != nil {
			return fmt.Errorf("%w: invalid bh= encoding: %v", ErrMalformedHeader, err)
		}
		s.BodyHash = decoded

	case "c":
		s.Canonicalization = strings.ToLower(value)

	case "d":
		s.Domain = strings.ToLower(value)

	case "h":
		for _, h := range strings.Split(value, ":") {
			if h = strings.TrimSpace(h); h != "" {
				s.SignedHeaders = append(s.SignedHeaders, h)
			}
		}

	case "i":
		s.Identity = value

	case "l":
		l, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid l= value: %v", ErrMalformedHeader, err)
		}
		s.Length = l

	case "s":
		s.Selector = strings.ToLower(value)

	case "t":
		t, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid t= value: %v", ErrMalformedHeader, err)
		}
		s.SignTime = t

	case "x":
		x, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid x= value: %v", ErrMalformedHeader, err)
		}
		s.ExpireTime = x
	}
	return nil
}

// validate applies cross-tag consistency checks.
func (s *Signature) validate() error {
	// Body hash length must match the declared hash algorithm.
	switch s.AlgorithmHash() {
	case "sha1":
		if len(s.BodyHash) != 20 {
			return fmt.Errorf("%w: bh= length %d, want 20 for sha1", ErrMalformedHeader, len(s.BodyHash))
		}
	case "sha256":
		if len(s.BodyHash) != 32 {
			return fmt.Errorf("%w: bh= length %d, want 32 for sha256", ErrMalformedHeader, len(s.BodyHash))
		}
	}

	if s.SignTime >= 0 && s.ExpireTime >= 0 && s.SignTime >= s.ExpireTime {
		return fmt.Errorf("%w: sign time >= expire time", ErrSigExpired)
	}

	// The i= domain must be the d= domain or a subdomain of it.
	if s.Identity != "" {
		if at := strings.LastIndex(s.Identity, "@"); at >= 0 {
			idDomain := strings.ToLower(s.Identity[at+1:])
			if idDomain != s.Domain && !strings.HasSuffix(idDomain, "."+s.Domain) {
				return fmt.Errorf("%w: identity domain %s not under signing domain %s",
					ErrMalformedHeader, idDomain, s.Domain)
			}
		}
	}
	return nil
}

// stripWSP removes all whitespace, as allowed inside base64 tag values.
func stripWSP(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
}

// headerWriter builds DKIM-Signature headers with RFC 5322 folding.
type headerWriter struct {
	b        strings.Builder
	lineLen  int
	nonfirst bool
}

// add appends text, folding to the next line when it exceeds maxLen.
func (w *headerWriter) add(sep, text string) {
	const maxLen = 76

	if w.nonfirst && w.lineLen > 1 && w.lineLen+len(sep)+len(text) > maxLen {
		w.b.WriteString("\r\n\t")
		w.lineLen = 1
	} else if w.nonfirst && sep != "" {
		w.b.WriteString(sep)
		w.lineLen += len(sep)
	}
	w.b.WriteString(text)
	w.lineLen += len(text)
	w.nonfirst = true
}

// addf formats and appends text.
func (w *headerWriter) addf(sep, format string, args ...any) {
	w.add(sep, fmt.Sprintf(format, args...))
}

// addWrap appends data that may be broken at any position, like base64.
func (w *headerWriter) addWrap(data []byte) {
	const maxLen = 76

	for len(data) > 0 {
		n := maxLen - w.lineLen
		if n <= 0 {
			w.b.WriteString("\r\n\t")
			w.lineLen = 1
			n = maxLen - 1
		}
		if n > len(data) {
			n = len(data)
		}
		w.b.Write(data[:n])
		w.lineLen += n
		data = data[n:]
	}
}

// Header renders the DKIM-Signature header, without a trailing CRLF.
// When includeSignature is false the b= value is left empty, which is the
// form hashed during signing and verification.
func (s *Signature) Header(includeSignature bool) string {
	w := &headerWriter{}

	w.addf("", "DKIM-Signature: v=%d;", s.Version)
	w.addf(" ", "d=%s;", s.Domain)
	w.addf(" ", "s=%s;", s.Selector)
	w.addf(" ", "a=%s;", s.Algorithm)

	if s.Canonicalization != "" && !strings.EqualFold(s.Canonicalization, "simple/simple") {
		w.addf(" ", "c=%s;", s.Canonicalization)
	}
	if s.Identity != "" {
		w.addf(" ", "i=%s;", s.Identity)
	}
	if s.SignTime >= 0 {
		w.addf(" ", "t=%d;", s.SignTime)
	}
	if s.ExpireTime >= 0 {
		w.addf(" ", "x=%d;", s.ExpireTime)
	}
	if s.Length >= 0 {
		w.addf(" ", "l=%d;", s.Length)
	}

	for i, h := range s.SignedHeaders {
		sep := ""
		if i == 0 {
			h = "h=" + h
			sep = " "
		}
		if i < len(s.SignedHeaders)-1 {
			h += ":"
		} else {
			h += ";"
		}
		w.add(sep, h)
	}

	w.addf(" ", "bh=%s;", base64.StdEncoding.EncodeToString(s.BodyHash))

	w.add(" ", "b=")
	if includeSignature && len(s.Signature) > 0 {
		w.addWrap([]byte(base64.StdEncoding.EncodeToString(s.Signature)))
	}

	return w.b.String()
}
