package auth

import (
	"time"
)

// AccessClaims represents the claims stored in a PASETO access token.
// These are encrypted in v4.local tokens, so they're not readable without the key.
type AccessClaims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	IsRoot    bool   `json:"is_root"`
	SessionID string `json:"session_id"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// ClientInfo is what a client reports about itself when it signs in.
// It is stored on the session and shown back to the user on the
// active-sessions page. Everything is optional; a bare browser login
// just shows up as an unnamed client.
type ClientInfo struct {
	ClientName    string `json:"client_name,omitempty"`    // Stacks Web, Stacks Mobile, stacksctl
	ClientVersion string `json:"client_version,omitempty"` // 1.4.0
	DeviceName    string `json:"device_name,omitempty"`    // Living Room PC, Dana's Laptop
}
