package models

import (
	"fmt"
	"time"
)

// Credential is the current OAuth2 grant for the Strava API. Exactly
// one credential is current per token file; it is replaced wholesale on
// every refresh.
type Credential struct {
	TokenType    string `json:"token_type"`
	ExpiresAt    int64  `json:"expires_at"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// Validate checks that the fields a refresh response must carry are
// present.
func (c *Credential) Validate() error {
	if c.AccessToken == "" {
		return fmt.Errorf("access_token is required")
	}
	if c.RefreshToken == "" {
		return fmt.Errorf("refresh_token is required")
	}
	if c.ExpiresAt == 0 {
		return fmt.Errorf("expires_at is required")
	}
	return nil
}

// ExpiresAtTime returns the expiry as an absolute instant.
func (c *Credential) ExpiresAtTime() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// Remaining returns the time left until expiry relative to now.
func (c *Credential) Remaining(now time.Time) time.Duration {
	return c.ExpiresAtTime().Sub(now)
}

// Redacted returns a truncated prefix of a secret suitable for logging.
// Raw token values must never reach the log output.
func Redacted(secret string) string {
	if len(secret) <= 8 {
		return "..."
	}
	return secret[:8] + "..."
}
