package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"icomnet.org/internal/identity"
)

var testPrincipal = identity.Principal{
	TenantID:    "tn-01",
	AppID:       "app-chat",
	NetworkID:   "net-7",
	NetworkType: identity.NetworkCommercial,
	Realm:       identity.RealmCitizen,
	Mode:        identity.ModeService,
	Scopes:      []string{"icom:*", "inbox:read"},
}

func newTestService(t *testing.T, now *time.Time, opts ...Option) *Service {
	t.Helper()
	base := []Option{WithClock(func() time.Time { return *now })}
	svc, err := NewService([]byte("test-secret"), append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestSignVerifyRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	signed, minted, err := svc.Sign(FromPrincipal(testPrincipal))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if strings.Count(signed, ".") != 2 {
		t.Fatalf("expected three segments, got %q", signed)
	}
	if minted.ID == "" {
		t.Fatalf("expected jti to be minted")
	}
	if !minted.NotBefore.Time.Equal(now.Add(-5 * time.Second)) {
		t.Fatalf("unexpected nbf: %v", minted.NotBefore.Time)
	}
	if !minted.ExpiresAt.Time.Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("unexpected exp: %v", minted.ExpiresAt.Time)
	}

	claims, err := svc.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.TenantID != testPrincipal.TenantID || claims.AppID != testPrincipal.AppID {
		t.Fatalf("custom claims not preserved: %+v", claims)
	}
	if claims.Realm != identity.RealmCitizen || claims.NetworkType != identity.NetworkCommercial {
		t.Fatalf("realm/network claims not preserved: %+v", claims)
	}
	if claims.ID != minted.ID {
		t.Fatalf("jti mismatch: %s vs %s", claims.ID, minted.ID)
	}
	if len(claims.Scopes) != 2 || claims.Scopes[0] != "icom:*" {
		t.Fatalf("scopes not preserved: %v", claims.Scopes)
	}
}

func TestEachSignMintsFreshJTI(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	_, first, err := svc.Sign(FromPrincipal(testPrincipal))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	_, second, err := svc.Sign(FromPrincipal(testPrincipal))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("jti must be unique per issuance")
	}
}

func TestVerifyOrderedFailures(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	if _, err := svc.Verify("only.two"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected INVALID_FORMAT, got %v", err)
	}
	if _, err := svc.Verify("a.b.c"); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("expected INVALID_JSON, got %v", err)
	}

	signed, _, err := svc.Sign(FromPrincipal(testPrincipal))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	segments := strings.Split(signed, ".")

	// Unsupported algorithm must be rejected before any signature work.
	noneHeader := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	forged := noneHeader + "." + segments[1] + "." + segments[2]
	if _, err := svc.Verify(forged); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("expected UNSUPPORTED_ALGORITHM, got %v", err)
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)
	signed, _, err := svc.Sign(FromPrincipal(testPrincipal))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	segments := strings.Split(signed, ".")

	sig, err := base64.RawURLEncoding.DecodeString(segments[2])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	for i := range sig {
		flipped := append([]byte(nil), sig...)
		flipped[i] ^= 0x01
		tampered := segments[0] + "." + segments[1] + "." + base64.RawURLEncoding.EncodeToString(flipped)
		if _, err := svc.Verify(tampered); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("flipping signature byte %d: expected INVALID_SIGNATURE, got %v", i, err)
		}
	}
}

func TestVerifyTamperedClaims(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)
	signed, _, err := svc.Sign(FromPrincipal(testPrincipal))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	segments := strings.Split(signed, ".")

	claimsJSON, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	escalated := strings.Replace(string(claimsJSON), `"citizen"`, `"platform"`, 1)
	if escalated == string(claimsJSON) {
		t.Fatalf("expected to rewrite realm claim")
	}
	tampered := segments[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(escalated)) + "." + segments[2]
	if _, err := svc.Verify(tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected INVALID_SIGNATURE for altered claims, got %v", err)
	}
}

func TestVerifyExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)
	signed, _, err := svc.Sign(FromPrincipal(testPrincipal))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	now = now.Add(2*time.Hour + time.Second)
	if _, err := svc.Verify(signed); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected TOKEN_EXPIRED, got %v", err)
	}
}

func TestVerifyNotYetValid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	now = now.Add(time.Hour)
	signed, _, err := svc.Sign(FromPrincipal(testPrincipal))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	now = now.Add(-time.Hour)
	if _, err := svc.Verify(signed); !errors.Is(err, ErrNotYetValid) {
		t.Fatalf("expected TOKEN_NOT_YET_VALID, got %v", err)
	}
}

func TestVerifyIssuerAndAudience(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)
	signed, _, err := svc.Sign(FromPrincipal(testPrincipal))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	other := newTestService(t, &now, WithIssuer("someone-else"))
	if _, err := other.Verify(signed); !errors.Is(err, ErrInvalidIssuer) {
		t.Fatalf("expected INVALID_ISSUER, got %v", err)
	}

	other = newTestService(t, &now, WithAudience("other-audience"))
	if _, err := other.Verify(signed); !errors.Is(err, ErrInvalidAudience) {
		t.Fatalf("expected INVALID_AUDIENCE, got %v", err)
	}
}

func TestDecodeWithoutVerification(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)
	signed, _, err := svc.Sign(FromPrincipal(testPrincipal))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	segments := strings.Split(signed, ".")

	// Decode must work even with a garbage signature.
	header, claims, err := svc.Decode(segments[0] + "." + segments[1] + ".AAAA")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if header.Alg != "HS256" || header.Typ != "JWT" || header.Kid == "" {
		t.Fatalf("unexpected header: %+v", header)
	}
	if claims.TenantID != testPrincipal.TenantID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestCodeOf(t *testing.T) {
	if code := CodeOf(ErrExpired); code != CodeExpired {
		t.Fatalf("CodeOf(ErrExpired)=%s", code)
	}
	if code := CodeOf(errors.New("plain")); code != "" {
		t.Fatalf("expected empty code for foreign error, got %s", code)
	}
}
