// Package dns provides TXT record resolution for DKIM key records, with
// optional DNSSEC validation and a mock resolver for tests.
package dns

import (
	"context"
	"errors"
)

// Result holds DNS lookup results along with DNSSEC validation status.
type Result[T any] struct {
	// Records contains the records returned by the lookup.
	Records []T

	// Authentic reports whether the response was DNSSEC-validated.
	// Always false for resolvers without DNSSEC support.
	Authentic bool
}

// Resolver performs the DNS lookups needed for key record retrieval.
type Resolver interface {
	// LookupTXT retrieves TXT records for the given name. Multi-string
	// TXT records are joined into a single string per record.
	LookupTXT(ctx context.Context, name string) (Result[string], error)
}

// Lookup failure classes. Resolvers return these so callers can
// distinguish a definitive miss from a transient server problem.
var (
	ErrDNSNotFound = errors.New("dns: record not found")
	ErrDNSTimeout  = errors.New("dns: query timed out")
	ErrDNSServFail = errors.New("dns: server failure")
	ErrDNSRefused  = errors.New("dns: query refused")
	ErrDNSBogus    = errors.New("dns: DNSSEC validation failed")
)

// IsNotFound reports whether the error is a definitive NXDOMAIN or
// empty-answer miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDNSNotFound)
}

// IsTemporary reports whether the error may succeed on retry.
func IsTemporary(err error) bool {
	return errors.Is(err, ErrDNSTimeout) ||
		errors.Is(err, ErrDNSServFail) ||
		errors.Is(err, ErrDNSRefused)
}

// IsTimeout reports whether the error is a query timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrDNSTimeout)
}

// IsServFail reports whether the error is a server failure.
func IsServFail(err error) bool {
	return errors.Is(err, ErrDNSServFail)
}
