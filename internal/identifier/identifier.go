// Package identifier generates and validates the stable sync identifiers that
// join local documents to their remote counterparts. Identifiers are canonical
// 36-character hyphenated UUIDv4 tokens. All functions are pure.
package identifier

import (
	"fmt"
	"strings"

	"github.com/akaplins/paperkeep/internal/common"
	"github.com/google/uuid"
)

// Generate returns a new random identifier in canonical lower-case form.
func Generate() string {
	return uuid.NewString()
}

// Validate reports whether token is a canonical hyphenated UUID with the
// version-4 and RFC 4122 variant nibbles. Unlike uuid.Parse it rejects the
// urn:, braced and unhyphenated forms: only the exact wire format used as a
// database key is accepted.
func Validate(token string) bool {
	if len(token) != 36 {
		return false
	}
	for i, c := range token {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			if !isHex(byte(c)) {
				return false
			}
		}
	}
	if token[14] != '4' {
		return false
	}
	switch token[19] {
	case '8', '9', 'a', 'b', 'A', 'B':
		return true
	}
	return false
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Normalize lower-cases token and re-validates it, returning the canonical
// form or common.ErrInvalidIdentifier.
func Normalize(token string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	if !Validate(normalized) {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidIdentifier, token)
	}
	return normalized, nil
}
