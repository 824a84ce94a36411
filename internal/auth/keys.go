package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Cache key prefixes. Raw tokens never appear in keys; token-scoped
// entries are keyed by a truncated hash.
const (
	keyPrefixUser      = "user:"
	keyPrefixUserEmail = "user:email:"
	keyPrefixRefresh   = "auth:refresh:"
	keyPrefixToken     = "auth:token:"
)

// UserKey returns the cache key for a user-info record.
func UserKey(userID int64) string {
	return keyPrefixUser + strconv.FormatInt(userID, 10)
}

// UserEmailKey returns the cache key for the email-to-id lookup.
// Emails are lowercased so the key is case-insensitive like the
// durable unique index.
func UserEmailKey(email string) string {
	return keyPrefixUserEmail + strings.ToLower(email)
}

// RefreshKey returns the cache key for a user's refresh record.
func RefreshKey(userID int64) string {
	return keyPrefixRefresh + strconv.FormatInt(userID, 10)
}

// TokenKey returns the cache key for a token-validation record.
func TokenKey(token string) string {
	return keyPrefixToken + HashToken(token)
}

// HashToken derives a fixed-width fingerprint of a token: the first 16
// hex characters of its SHA-256. Short enough to keep keys compact,
// wide enough that collisions are not a practical concern at cache
// scale.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:16]
}
