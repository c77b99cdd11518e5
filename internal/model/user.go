package model

import "time"

// User represents an account row in the `users` table. Handlers define
// their own response types; this struct is used by repositories and services.
type User struct {
    ID           uint64    // users.id
    Username     string    // users.username
    PasswordHash string    // users.password_hash
    CreatedAt    time.Time // users.created_at
}

// RefreshToken models the single credential record a user may hold in
// `refresh_tokens`. Saving a new token for the same user overwrites the row,
// which is what invalidates the previous refresh token on rotation.
type RefreshToken struct {
    UserID    uint64    // refresh_tokens.user_id (primary key)
    TokenHash string    // refresh_tokens.token_hash, hex SHA-256 of the token
    ExpiresAt time.Time // refresh_tokens.expires_at
    CreatedAt time.Time // refresh_tokens.created_at
}

// Expired reports whether the record is no longer usable at now.
func (t RefreshToken) Expired(now time.Time) bool {
    return !now.Before(t.ExpiresAt)
}
