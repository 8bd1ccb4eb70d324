// Package email implements a minimal RFC 5322 message parser that preserves
// the exact bytes of every header field.
//
// DKIM verification and circuit input generation both need the original
// on-the-wire form of each header: "simple" canonicalization hashes header
// bytes untouched, and the witness builder indexes into the canonical header
// block. The parser therefore records the raw byte span of every field and
// never normalizes whitespace, folding, or line endings. Concatenating the
// raw header bytes, the separator, and the body reconstructs the input
// exactly.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedHeader is returned when the message has no header/body
// separator or a header line is neither a continuation nor "name: value".
var ErrMalformedHeader = errors.New("email: malformed header")

// HeaderField is a single logical header field, folding included.
type HeaderField struct {
	// Name is the field name with its original case.
	Name string

	// LName is the lowercased field name, used for matching.
	LName string

	// Value is everything after the colon, with folding and whitespace
	// preserved. Continuation lines keep their leading WSP.
	Value string

	// Raw is the complete field as received, including the name, colon,
	// folding, and original line endings.
	Raw []byte
}

// ParsedEmail is an immutable view of a parsed message.
type ParsedEmail struct {
	// Headers holds the logical header fields in message order.
	Headers []HeaderField

	// Body is the message body exactly as received.
	Body []byte

	// separator is the blank line between header block and body.
	separator []byte
}

// Parse splits a raw message into header fields and body.
//
// The header block ends at the first blank line. Both CRLF and bare LF line
// endings are accepted, and may be mixed; the original bytes are preserved
// either way. A message without a blank-line separator, or with a
// non-continuation header line lacking a colon, fails with
// ErrMalformedHeader.
func Parse(raw []byte) (*ParsedEmail, error) {
	p := &ParsedEmail{}

	var (
		current  *HeaderField
		offset   int
		foundSep bool
	)

	flush := func() {
		if current != nil {
			p.Headers = append(p.Headers, *current)
			current = nil
		}
	}

	for offset < len(raw) {
		line, n := nextLine(raw[offset:])

		if isBlankLine(line) {
			flush()
			p.separator = line
			p.Body = raw[offset+n:]
			foundSep = true
			break
		}

		if line[0] == ' ' || line[0] == '\t' {
			// Folded continuation of the previous field.
			if current == nil {
				return nil, fmt.Errorf("%w: continuation line before first field", ErrMalformedHeader)
			}
			current.Value += string(line)
			current.Raw = append(current.Raw, line...)
			offset += n
			continue
		}

		flush()

		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			return nil, fmt.Errorf("%w: header line without colon", ErrMalformedHeader)
		}

		name := string(bytes.TrimRight(line[:colon], " \t"))
		if err := checkFieldName(name); err != nil {
			return nil, err
		}

		current = &HeaderField{
			Name:  name,
			LName: strings.ToLower(name),
			Value: string(line[colon+1:]),
			Raw:   append([]byte(nil), line...),
		}
		offset += n
	}

	if !foundSep {
		return nil, fmt.Errorf("%w: no blank line between header and body", ErrMalformedHeader)
	}

	return p, nil
}

// Raw reconstructs the original message bytes.
func (p *ParsedEmail) Raw() []byte {
	var buf bytes.Buffer
	for _, h := range p.Headers {
		buf.Write(h.Raw)
	}
	buf.Write(p.separator)
	buf.Write(p.Body)
	return buf.Bytes()
}

// All returns every field with the given name, case-insensitive, in
// message order.
func (p *ParsedEmail) All(name string) []HeaderField {
	lname := strings.ToLower(name)
	var out []HeaderField
	for _, h := range p.Headers {
		if h.LName == lname {
			out = append(out, h)
		}
	}
	return out
}

// First returns the first field with the given name.
func (p *ParsedEmail) First(name string) (HeaderField, bool) {
	lname := strings.ToLower(name)
	for _, h := range p.Headers {
		if h.LName == lname {
			return h, true
		}
	}
	return HeaderField{}, false
}

// Last returns the field with the given name closest to the body.
func (p *ParsedEmail) Last(name string) (HeaderField, bool) {
	lname := strings.ToLower(name)
	for i := len(p.Headers) - 1; i >= 0; i-- {
		if p.Headers[i].LName == lname {
			return p.Headers[i], true
		}
	}
	return HeaderField{}, false
}

// nextLine returns the next line of b including its terminator, and the
// number of bytes consumed. The final line may be unterminated.
func nextLine(b []byte) ([]byte, int) {
	idx := bytes.IndexByte(b, '\n')
	if idx == -1 {
		return b, len(b)
	}
	return b[:idx+1], idx + 1
}

// isBlankLine reports whether line is an empty line (CRLF or LF only).
func isBlankLine(line []byte) bool {
	return bytes.Equal(line, []byte("\r\n")) || bytes.Equal(line, []byte("\n"))
}

// checkFieldName validates a header field name per RFC 5322: printable
// US-ASCII excluding colon.
func checkFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty field name", ErrMalformedHeader)
	}
	for _, c := range name {
		if c <= ' ' || c >= 0x7f {
			return fmt.Errorf("%w: invalid character in field name %q", ErrMalformedHeader, name)
		}
	}
	return nil
}
