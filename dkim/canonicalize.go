package dkim

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BananaLF/relayer-utils/email"
)

var crlf = []byte("\r\n")

// CanonicalizeBody returns the canonical form of a message body.
//
// Simple mode leaves lines untouched apart from guaranteeing CRLF line
// endings and collapsing trailing empty lines into a single CRLF; an empty
// body becomes a single CRLF. Relaxed mode additionally strips trailing
// whitespace from each line, compresses interior whitespace runs to a
// single space, and leaves an empty body empty.
//
// Bare LF line endings are accepted and normalized to CRLF, so a message
// with mixed endings canonicalizes the same as its CRLF form.
func CanonicalizeBody(body []byte, mode Canonicalization) ([]byte, error) {
	if mode != CanonSimple && mode != CanonRelaxed {
		return nil, fmt.Errorf("%w: body %s", ErrCanonicalizationUnknown, mode)
	}

	var out bytes.Buffer

	// Empty lines are buffered so a trailing run can be dropped.
	pendingEmpty := 0
	wroteAny := false

	rest := body
	for len(rest) > 0 {
		line, n := splitLine(rest)
		rest = rest[n:]

		line = trimLineEnding(line)
		if mode == CanonRelaxed {
			line = bytes.TrimRight(line, " \t")
			line = compressWSP(line)
		}

		if len(line) == 0 {
			pendingEmpty++
			continue
		}

		for i := 0; i < pendingEmpty; i++ {
			out.Write(crlf)
		}
		pendingEmpty = 0

		out.Write(line)
		out.Write(crlf)
		wroteAny = true
	}

	if !wroteAny {
		if mode == CanonSimple {
			return []byte("\r\n"), nil
		}
		return []byte{}, nil
	}
	return out.Bytes(), nil
}

// CanonicalizeHeaders returns the canonical bytes of the signed headers,
// selected from fields by the names in signed, in that order.
//
// Repeated header names are consumed from the bottom of the header block
// upward, per the RFC 6376 rule that the instance closest to the body is
// signed first. A signed name with no remaining field in the message fails
// with ErrMissingHeader.
func CanonicalizeHeaders(fields []email.HeaderField, mode Canonicalization, signed []string) ([]byte, error) {
	if mode != CanonSimple && mode != CanonRelaxed {
		return nil, fmt.Errorf("%w: header %s", ErrCanonicalizationUnknown, mode)
	}

	// Stack the fields per name, bottom of the header block first.
	byName := make(map[string][]email.HeaderField)
	for i := len(fields) - 1; i >= 0; i-- {
		byName[fields[i].LName] = append(byName[fields[i].LName], fields[i])
	}

	var out bytes.Buffer
	for _, name := range signed {
		lname := strings.ToLower(name)
		stack := byName[lname]
		if len(stack) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingHeader, name)
		}
		field := stack[0]
		byName[lname] = stack[1:]

		canonical, err := canonicalizeHeaderField(field.Raw, mode)
		if err != nil {
			return nil, err
		}
		out.Write(canonical)
		out.Write(crlf)
	}

	return out.Bytes(), nil
}

// canonicalizeHeaderField canonicalizes one raw header field. The result
// carries no trailing CRLF.
func canonicalizeHeaderField(raw []byte, mode Canonicalization) ([]byte, error) {
	if mode == CanonSimple {
		// Unchanged, except line endings are guaranteed to be CRLF.
		return normalizeLineEndings(bytes.TrimSuffix(bytes.TrimSuffix(raw, []byte("\n")), []byte("\r"))), nil
	}
	return relaxedHeaderField(raw)
}

// relaxedHeaderField applies relaxed header canonicalization:
// lowercase the name, unfold, compress WSP runs, trim the value.
func relaxedHeaderField(raw []byte) ([]byte, error) {
	colon := bytes.IndexByte(raw, ':')
	if colon == -1 {
		return nil, fmt.Errorf("%w: header field without colon", ErrMalformedHeader)
	}

	name := strings.ToLower(strings.TrimRight(string(raw[:colon]), " \t"))
	value := unfold(string(raw[colon+1:]))
	value = string(compressWSP([]byte(value)))
	value = strings.Trim(value, " \t")

	return []byte(name + ":" + value), nil
}

// unfold removes line breaks, turning folded FWS into a single space.
func unfold(s string) string {
	s = strings.ReplaceAll(s, "\r\n\t", " ")
	s = strings.ReplaceAll(s, "\r\n ", " ")
	s = strings.ReplaceAll(s, "\n\t", " ")
	s = strings.ReplaceAll(s, "\n ", " ")
	// A trailing line break carries no fold; drop it.
	s = strings.TrimRight(s, "\r\n")
	return s
}

// compressWSP collapses runs of spaces and tabs into a single space.
func compressWSP(b []byte) []byte {
	var out []byte
	prevWS := false
	for _, c := range b {
		if c == ' ' || c == '\t' {
			if !prevWS {
				out = append(out, ' ')
				prevWS = true
			}
		} else {
			out = append(out, c)
			prevWS = false
		}
	}
	return out
}

// splitLine returns the first line of b including its terminator and the
// number of bytes consumed.
func splitLine(b []byte) ([]byte, int) {
	idx := bytes.IndexByte(b, '\n')
	if idx == -1 {
		return b, len(b)
	}
	return b[:idx+1], idx + 1
}

// trimLineEnding strips a trailing CRLF or LF.
func trimLineEnding(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line
}

// normalizeLineEndings rewrites bare LF line endings as CRLF, leaving
// existing CRLF pairs alone.
func normalizeLineEndings(b []byte) []byte {
	var out []byte
	for i := 0; i < len(b); i++ {
		if b[i] == '\n' && (i == 0 || b[i-1] != '\r') {
			out = append(out, '\r')
		}
		out = append(out, b[i])
	}
	return out
}

// dataToSign builds the canonical header block covered by the signature:
// the signed headers followed by the canonicalized DKIM-Signature header
// itself (with an empty b= value), without a trailing CRLF.
func dataToSign(fields []email.HeaderField, mode Canonicalization, signed []string, sigHeader []byte) ([]byte, error) {
	out, err := CanonicalizeHeaders(fields, mode, signed)
	if err != nil {
		return nil, err
	}

	sig := bytes.TrimSuffix(bytes.TrimSuffix(sigHeader, []byte("\n")), []byte("\r"))
	canonical, err := canonicalizeHeaderField(sig, mode)
	if err != nil {
		return nil, err
	}
	return append(out, canonical...), nil
}
