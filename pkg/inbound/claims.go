package inbound

import "time"

// Claims is the authenticated identity bound to a message. A nil *Claims
// means the message is anonymous.
type Claims struct {
	Issuer     string    `json:"iss,omitempty"`
	Subject    string    `json:"sub,omitempty"`
	ClientID   string    `json:"client_id,omitempty"`
	TokenID    string    `json:"jti,omitempty"`
	Scopes     []string  `json:"scopes,omitempty"`
	IssuedAt   time.Time `json:"iat,omitempty"`
	Expiration time.Time `json:"exp,omitempty"`
}

// Expired reports whether the claims carry an expiration at or before now.
func (c *Claims) Expired(now time.Time) bool {
	if c == nil || c.Expiration.IsZero() {
		return false
	}
	return !now.Before(c.Expiration)
}

func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
