// Package codec converts between the legacy CHAR(32) hex representation of a
// row key and its native 128-bit UUID value. Both directions are pure; the
// round-trip laws Decode(Encode(u)) == u and Encode(Decode(s)) == s hold for
// every valid input.
package codec

import (
	"fmt"

	"github.com/google/uuid"
)

// LegacyKeyLength is the exact length of a legacy hex key: 32 hex characters,
// no hyphens.
const LegacyKeyLength = 32

// FormatError reports a value that is not a valid 32-character hex key.
// It is unrecoverable for the row that carries the value.
type FormatError struct {
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("codec: %q is not a 32-character hex key", e.Value)
}

// Decode converts a legacy 32-character hex string to its UUID value.
// It returns a *FormatError if the input has the wrong length or contains
// non-hex characters.
func Decode(legacy string) (uuid.UUID, error) {
	if len(legacy) != LegacyKeyLength {
		return uuid.Nil, &FormatError{Value: legacy}
	}
	u, err := uuid.Parse(legacy)
	if err != nil {
		return uuid.Nil, &FormatError{Value: legacy}
	}
	return u, nil
}

// Encode converts a UUID value to its legacy 32-character lowercase hex
// representation. It is total over all 128-bit values.
func Encode(u uuid.UUID) string {
	buf := make([]byte, 0, LegacyKeyLength)
	const hexdigits = "0123456789abcdef"
	for _, b := range u {
		buf = append(buf, hexdigits[b>>4], hexdigits[b&0x0f])
	}
	return string(buf)
}
