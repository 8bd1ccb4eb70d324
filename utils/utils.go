package utils

import (
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// ContainsNonASCII checks if a string contains any non-ASCII characters
// (bytes > 127).
func ContainsNonASCII(s string) bool {
	for _, v := range s {
		if v >= utf8.RuneSelf {
			return true
		}
	}
	return false
}

// GenerateID creates a unique, lexicographically sortable request
// identifier.
func GenerateID() string {
	return ulid.Make().String()
}
