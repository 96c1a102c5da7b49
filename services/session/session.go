// Package session issues, validates, rotates and revokes bearer credentials.
//
// A credential is an HS256 JWT whose only authority comes from its mirror entry in the
// token store: a correctly signed token without an entry is treated as expired.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/models"
)

// Config holds signing and lifetime settings shared by Issuer and Validator
type Config struct {
	Secret           []byte
	TTL              time.Duration
	RefreshThreshold time.Duration

	// Clock overrides time.Now, for tests
	Clock func() time.Time
}

func (c Config) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// Claims is the signed payload of a credential
type Claims struct {
	UserID string `json:"userId"`
	OpenID string `json:"openid"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller attached to a request
type Principal struct {
	SubjectID    uuid.UUID
	ExternalID   string
	IssuedAs     string
	Token        string
	ExpiresAt    time.Time
	NeedsRefresh bool
}

// IsAdmin reports whether the credential was issued with the admin type
func (p *Principal) IsAdmin() bool {
	return p.IssuedAs == models.SessionTypeAdmin
}

// Record returns the token store value that backs this principal
func (p *Principal) Record() models.SessionRecord {
	return models.SessionRecord{
		UserID: p.SubjectID.String(),
		OpenID: p.ExternalID,
		Type:   p.IssuedAs,
	}
}

// IssuedToken is a freshly minted credential
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
