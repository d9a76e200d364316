// Package pseudonym provides deterministic one-way hashing of contact
// identifiers. Raw addresses never reach durable logs; the digest is
// stable, so equal inputs can still be matched for deduplication.
package pseudonym

import (
	"crypto/sha256"
	"encoding/hex"
)

// shortLen is the number of hex characters kept by Short. Enough to
// make collisions between patients of a single practice implausible
// while keeping audit lines compact.
const shortLen = 16

// Hash returns the full SHA-256 digest of the identifier as lowercase hex.
func Hash(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])
}

// Short returns a truncated digest suitable for audit log lines.
func Short(identifier string) string {
	return Hash(identifier)[:shortLen]
}
