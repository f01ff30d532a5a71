package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashRefreshToken returns the hex SHA-256 of an opaque refresh token. Session rows store
// only this hash; the raw value travels as the refresh JWT's jti.
func HashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// RefreshTokenHashEqual performs a constant-time comparison of the provided token's hash
// with the stored hash. An empty stored hash (consumed or never set) never matches.
func RefreshTokenHashEqual(providedToken, storedHash string) bool {
	if storedHash == "" || providedToken == "" {
		return false
	}
	providedHash := HashRefreshToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
