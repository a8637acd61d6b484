package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AnonymousDonorKey is the grouping key for blank donor names.
const AnonymousDonorKey = "anonymous"

// Boilerplate the intake forms prepend to donor names. Stripped before
// grouping so "Transferencia: María" and "maria" land on the same key.
var donorNamePrefixes = []string{
	"transferencia:",
	"transfer:",
	"sobre:",
	"envelope:",
}

// Transformers carry state, so each call builds its own chain; sharing one
// across goroutines races.
func diacriticFolder() transform.Transformer {
	return transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
}

// NormalizeDonorName canonicalizes a donor display name into a stable
// aggregation key. Case, accents, surrounding whitespace and role-prefix
// boilerplate never split a donor into two profiles. Pure function.
func NormalizeDonorName(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))

	for _, prefix := range donorNamePrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}

	if folded, _, err := transform.String(diacriticFolder(), s); err == nil {
		s = folded
	}

	// collapse runs of inner whitespace
	s = strings.Join(strings.Fields(s), " ")

	if s == "" {
		return AnonymousDonorKey
	}
	return s
}
