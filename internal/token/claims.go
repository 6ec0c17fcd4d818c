package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"icomnet.org/internal/identity"
)

// Claims is the signed payload carried by every token: the registered JWT
// fields plus the platform's custom fields.
type Claims struct {
	TenantID    string               `json:"tenant_id"`
	Realm       identity.Realm       `json:"realm"`
	AppID       string               `json:"app_id"`
	NetworkID   string               `json:"network_id,omitempty"`
	NetworkType identity.NetworkType `json:"network_type"`
	Mode        identity.Mode        `json:"mode"`
	Scopes      []string             `json:"scopes"`
	ActorID     string               `json:"actor_id,omitempty"`
	jwt.RegisteredClaims
}

// FromPrincipal derives the custom claim fields from a principal. Registered
// fields (iss/aud/iat/nbf/exp/jti) are filled by Service.Sign.
func FromPrincipal(p identity.Principal) Claims {
	return Claims{
		TenantID:    p.TenantID,
		Realm:       p.Realm,
		AppID:       p.AppID,
		NetworkID:   p.NetworkID,
		NetworkType: p.NetworkType,
		Mode:        p.Mode,
		Scopes:      append([]string(nil), p.Scopes...),
		ActorID:     p.ActorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: p.Key(),
		},
	}
}

// stamp fills the issuance fields, preserving nbf <= iat <= exp. The not-before
// grace window absorbs clock skew between issuer and verifier.
func (c *Claims) stamp(issuer, audience string, now time.Time, ttl time.Duration) {
	c.Issuer = issuer
	c.Audience = jwt.ClaimStrings{audience}
	c.IssuedAt = jwt.NewNumericDate(now)
	c.NotBefore = jwt.NewNumericDate(now.Add(-notBeforeGrace))
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	c.ID = uuid.NewString()
}

// ExpiresIn returns the remaining lifetime relative to now, never negative.
func (c Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
