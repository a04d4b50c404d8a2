package models

import "time"

// Session is one logged-in device, keyed by its current refresh token.
type Session struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"userId"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	AccessToken  string    `db:"access_token" json:"-"`
	UserAgent    string    `db:"user_agent" json:"userAgent"`
	IPAddress    string    `db:"ip_address" json:"ipAddress"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
	ExpiresAt    time.Time `db:"expires_at" json:"expiresAt"`
}

// SessionSnapshot holds the token values a rotation replaced.
type SessionSnapshot struct {
	ID           string `db:"id"`
	RefreshToken string `db:"refresh_token"`
	AccessToken  string `db:"access_token"`
}

// SessionMetadata describes the client that opened or rotated a session.
type SessionMetadata struct {
	UserAgent string
	IPAddress string
}
