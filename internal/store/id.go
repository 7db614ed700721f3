package store

import (
	"strings"

	"github.com/google/uuid"
)

// NewRecordID generates a fresh 128-bit record identifier, rendered as a
// stable hyphenated hex string (RFC 4122 form, e.g.
// "f47ac10b-58cc-4372-a567-0e02b2c3d479").
func NewRecordID() string {
	return uuid.NewString()
}

// ValidRecordID reports whether id is a well-formed record identifier.
func ValidRecordID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// normalizeIDOrPrefix lowercases and strips hyphens from an id or id prefix
// so matching is insensitive to formatting. The stored id itself keeps its
// canonical hyphenated form; only comparison is normalized.
func normalizeIDOrPrefix(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "-", ""))
}

// matchesIDOrPrefix reports whether candidate id matches the full id or
// hex prefix idOrPrefix, comparing on the hyphen-stripped lowercase form.
func matchesIDOrPrefix(id, idOrPrefix string) bool {
	normID := normalizeIDOrPrefix(id)
	normPrefix := normalizeIDOrPrefix(idOrPrefix)
	if len(normPrefix) == len(normID) {
		return normID == normPrefix
	}
	return strings.HasPrefix(normID, normPrefix)
}

// minPrefixLen is the shortest hex prefix accepted by delete/update. Shorter
// inputs are rejected outright rather than risking a silent wrong-record
// match.
const minPrefixLen = 8
