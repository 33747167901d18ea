// Package sanitize provides shared identifier sanitization and path
// validation.
//
// Branch slugs must match ^[a-z0-9_][a-z0-9_-]*$ so they are valid git ref
// components; repo-relative file paths must stay inside the working tree
// and outside the .git directory.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaxSlugLength caps branch slugs well under the git ref name limit.
const MaxSlugLength = 100

// Slug sanitizes a string for use as a git branch component: lowercase,
// runs of invalid characters become a single hyphen, no leading or
// trailing hyphens, truncated to MaxSlugLength with a hash suffix when
// too long. Returns "" when nothing survives, so callers pick their own
// fallback.
//
//	"PROJ-123"     -> "proj-123"
//	"My Ticket!!"  -> "my-ticket"
//	"" or "###"    -> ""
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	sep := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			if sep && b.Len() > 0 {
				b.WriteByte('-')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}

	slug := b.String()
	if len(slug) > MaxSlugLength {
		slug = truncateWithHash(slug)
	}
	return slug
}

// truncateWithHash shortens a slug to MaxSlugLength, replacing the tail
// with an 8-character hash of the full input so distinct long inputs
// stay distinct.
func truncateWithHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	suffix := "-" + hex.EncodeToString(sum[:4])

	keep := strings.TrimRight(s[:MaxSlugLength-len(suffix)], "-")
	return keep + suffix
}
