package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTTL     = 2 * time.Hour
	notBeforeGrace = 5 * time.Second

	algHS256 = "HS256"
)

// Header is the decoded first segment of a token.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid,omitempty"`
}

// Service signs and verifies bearer tokens with HS256.
type Service struct {
	secret   []byte
	issuer   string
	audience string
	keyID    string
	ttl      time.Duration
	now      func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithIssuer overrides the issuer claim minted into and required from tokens.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithAudience overrides the audience claim minted into and required from tokens.
func WithAudience(audience string) Option {
	return func(s *Service) {
		if audience = strings.TrimSpace(audience); audience != "" {
			s.audience = audience
		}
	}
}

// WithKeyID sets the key identifier embedded into token headers.
func WithKeyID(kid string) Option {
	return func(s *Service) { s.keyID = strings.TrimSpace(kid) }
}

// WithTTL configures token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service around a shared HMAC secret.
func NewService(secret []byte, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}
	s := &Service{
		secret:   secret,
		issuer:   "icomnet",
		audience: "icomnet-platform",
		keyID:    "hs256-main",
		ttl:      defaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign stamps the issuance fields (iat, nbf, exp, jti, iss, aud) and returns
// the canonical three-segment token. Every call mints a fresh token; claims
// passed in are not mutated.
func (s *Service) Sign(claims Claims) (string, Claims, error) {
	now := s.now().UTC()
	claims.stamp(s.issuer, s.audience, now, s.ttl)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	tok.Header["kid"] = s.keyID
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, claims, nil
}

// Verify checks the token structurally, cryptographically, and semantically,
// in that order, so malformed input never reaches claim validation. It
// returns the claims only when every check passes.
func (s *Service) Verify(raw string) (Claims, error) {
	segments := strings.Split(strings.TrimSpace(raw), ".")
	if len(segments) != 3 || segments[0] == "" || segments[1] == "" || segments[2] == "" {
		return Claims{}, ErrInvalidFormat
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: header", ErrInvalidJSON)
	}
	claimsJSON, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: claims", ErrInvalidJSON)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Claims{}, fmt.Errorf("%w: header", ErrInvalidJSON)
	}
	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: claims", ErrInvalidJSON)
	}

	if header.Alg != algHS256 {
		return Claims{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, header.Alg)
	}

	signature, err := base64.RawURLEncoding.DecodeString(segments[2])
	if err != nil {
		return Claims{}, ErrInvalidSignature
	}
	expected := s.sign(segments[0] + "." + segments[1])
	if subtle.ConstantTimeCompare(signature, expected) != 1 {
		return Claims{}, ErrInvalidSignature
	}

	if claims.Issuer != s.issuer {
		return Claims{}, fmt.Errorf("%w: %q", ErrInvalidIssuer, claims.Issuer)
	}
	if !audienceContains(claims.Audience, s.audience) {
		return Claims{}, ErrInvalidAudience
	}

	now := s.now().UTC()
	if claims.ExpiresAt == nil || now.After(claims.ExpiresAt.Time) {
		return Claims{}, ErrExpired
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return Claims{}, ErrNotYetValid
	}
	return claims, nil
}

// Decode parses header and claims without verifying the signature. For
// inspection and debugging only; authorization decisions must go through
// Verify.
func (s *Service) Decode(raw string) (Header, Claims, error) {
	segments := strings.Split(strings.TrimSpace(raw), ".")
	if len(segments) != 3 {
		return Header{}, Claims{}, ErrInvalidFormat
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		return Header{}, Claims{}, fmt.Errorf("%w: header", ErrInvalidJSON)
	}
	claimsJSON, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return Header{}, Claims{}, fmt.Errorf("%w: claims", ErrInvalidJSON)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, Claims{}, fmt.Errorf("%w: header", ErrInvalidJSON)
	}
	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return Header{}, Claims{}, fmt.Errorf("%w: claims", ErrInvalidJSON)
	}
	return header, claims, nil
}

func (s *Service) sign(signingString string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(signingString))
	return mac.Sum(nil)
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
