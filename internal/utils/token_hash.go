package utils

import (
    "crypto/sha256"
    "encoding/hex"
)

// HashRefreshToken returns the hex SHA-256 of a refresh token. Only this
// digest is persisted, so a leaked refresh_tokens table cannot be replayed.
func HashRefreshToken(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}
