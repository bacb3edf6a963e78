package resumable

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// sanitizePath strips everything outside [0-9A-Za-z_-] so the fingerprint
// input is stable across platforms and path separators.
func sanitizePath(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	for _, r := range path {
		switch {
		case r >= '0' && r <= '9',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fingerprint computes the default unique identifier for an item: a blake2b
// digest over the size and the sanitized relative path. The same item always
// yields the same identifier, which is what makes transfers resumable across
// sessions.
func Fingerprint(size int64, relativePath string) string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%d-%s", size, sanitizePath(relativePath))))
	return hex.EncodeToString(sum[:16])
}

// identifierFor resolves an item's identifier through the configured
// generator, falling back to Fingerprint.
func (c *Client) identifierFor(item Item) (string, error) {
	if c.opts.GenerateIdentifier != nil {
		return c.opts.GenerateIdentifier(item)
	}
	return Fingerprint(item.Size(), item.RelativePath()), nil
}
