package dkim

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/BananaLF/relayer-utils/email"
)

func TestCanonicalizeBodySimple(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "empty body becomes CRLF",
			body: "",
			want: "\r\n",
		},
		{
			name: "trailing empty lines collapse",
			body: "hello\r\nworld\r\n\r\n\r\n",
			want: "hello\r\nworld\r\n",
		},
		{
			name: "missing final CRLF added",
			body: "hello",
			want: "hello\r\n",
		},
		{
			name: "interior whitespace preserved",
			body: "a  b\t c\r\n",
			want: "a  b\t c\r\n",
		},
		{
			name: "interior blank lines preserved",
			body: "a\r\n\r\nb\r\n",
			want: "a\r\n\r\nb\r\n",
		},
		{
			name: "LF endings normalized",
			body: "a\nb\n",
			want: "a\r\nb\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalizeBody([]byte(tt.body), CanonSimple)
			if err != nil {
				t.Fatalf("CanonicalizeBody() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCanonicalizeBodyRelaxed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "empty body stays empty",
			body: "",
			want: "",
		},
		{
			name: "whitespace-only body becomes empty",
			body: " \t\r\n\r\n",
			want: "",
		},
		{
			name: "trailing whitespace stripped",
			body: "hello \t\r\nworld\t\r\n",
			want: "hello\r\nworld\r\n",
		},
		{
			name: "whitespace runs compressed",
			body: "a  b\t\tc\r\n",
			want: "a b c\r\n",
		},
		{
			name: "trailing empty lines collapse",
			body: "hello\r\n\r\n\r\n",
			want: "hello\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalizeBody([]byte(tt.body), CanonRelaxed)
			if err != nil {
				t.Fatalf("CanonicalizeBody() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// Canonicalization must be idempotent: canonical input passes through
// unchanged.
func TestCanonicalizeBodyIdempotent(t *testing.T) {
	bodies := []string{
		"",
		"hello world\r\n",
		"a\r\n\r\nb  c\t\r\n trailing \r\n\r\n",
	}

	for _, mode := range []Canonicalization{CanonSimple, CanonRelaxed} {
		for _, body := range bodies {
			once, err := CanonicalizeBody([]byte(body), mode)
			if err != nil {
				t.Fatal(err)
			}
			twice, err := CanonicalizeBody(once, mode)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(once, twice) {
				t.Errorf("%s: not idempotent for %q: %q != %q", mode, body, once, twice)
			}
		}
	}
}

func TestCanonicalizeBodyUnknownMode(t *testing.T) {
	if _, err := CanonicalizeBody([]byte("x"), "nofws"); !errors.Is(err, ErrCanonicalizationUnknown) {
		t.Errorf("expected ErrCanonicalizationUnknown, got %v", err)
	}
}

func parseTestEmail(t *testing.T, raw string) *email.ParsedEmail {
	t.Helper()
	parsed, err := email.Parse([]byte(strings.ReplaceAll(raw, "\n", "\r\n")))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	return parsed
}

func TestCanonicalizeHeadersRelaxed(t *testing.T) {
	parsed := parseTestEmail(t, `From:  Alice <alice@example.com>
SUBJECT: hello
	world
To: bob@example.com

body
`)

	got, err := CanonicalizeHeaders(parsed.Headers, CanonRelaxed, []string{"From", "Subject"})
	if err != nil {
		t.Fatalf("CanonicalizeHeaders() error = %v", err)
	}

	want := "from:Alice <alice@example.com>\r\nsubject:hello world\r\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCanonicalizeHeadersSimple(t *testing.T) {
	parsed := parseTestEmail(t, `From: alice@example.com
Subject: hello
	world

body
`)

	got, err := CanonicalizeHeaders(parsed.Headers, CanonSimple, []string{"Subject"})
	if err != nil {
		t.Fatalf("CanonicalizeHeaders() error = %v", err)
	}

	// Simple mode keeps the original bytes, folding included.
	want := "Subject: hello\r\n\tworld\r\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// Repeated signed names select instances from the bottom of the header
// block, closest to the body first.
func TestCanonicalizeHeadersRepeated(t *testing.T) {
	parsed := parseTestEmail(t, `Received: first
Received: second
Received: third
From: alice@example.com

body
`)

	got, err := CanonicalizeHeaders(parsed.Headers, CanonRelaxed,
		[]string{"Received", "Received"})
	if err != nil {
		t.Fatalf("CanonicalizeHeaders() error = %v", err)
	}

	want := "received:third\r\nreceived:second\r\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCanonicalizeHeadersMissing(t *testing.T) {
	parsed := parseTestEmail(t, `From: alice@example.com

body
`)

	_, err := CanonicalizeHeaders(parsed.Headers, CanonRelaxed, []string{"From", "Subject"})
	if !errors.Is(err, ErrMissingHeader) {
		t.Errorf("expected ErrMissingHeader, got %v", err)
	}

	// More signed instances than present fails the same way.
	_, err = CanonicalizeHeaders(parsed.Headers, CanonRelaxed, []string{"From", "From"})
	if !errors.Is(err, ErrMissingHeader) {
		t.Errorf("expected ErrMissingHeader for oversigned name, got %v", err)
	}
}
