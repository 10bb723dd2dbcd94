package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// Normalize concatenates the pair's text after cleaning each side.
// It trims whitespace, lowercases, and normalizes line endings for each side
// before joining them.
func Normalize(p domain.Pair) string {
	normalizeSide := func(side string) string {
		s := strings.ToLower(side)
		s = strings.ReplaceAll(s, "\r\n", "\n")
		return strings.TrimSpace(s)
	}

	// A newline keeps "ab"+"c" and "a"+"bc" apart.
	return normalizeSide(p.Front) + "\n" + normalizeSide(p.Back)
}

// Hash returns the SHA-256 of the normalized pair as a hex string. Pairs
// that differ only in case or surrounding whitespace share a hash.
func Hash(p domain.Pair) string {
	sum := sha256.Sum256([]byte(Normalize(p)))
	return fmt.Sprintf("%x", sum)
}
