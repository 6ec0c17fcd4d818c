package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"icomnet.org/internal/identity"
	"icomnet.org/internal/revocation"
	"icomnet.org/internal/token"
)

const defaultRefreshThreshold = 10 * time.Minute

// RefreshResult says what a Refresh call actually did.
type RefreshResult string

const (
	// RefreshNoop: enough lifetime remained, the session is unchanged.
	RefreshNoop RefreshResult = "noop"
	// RefreshRotated: a replacement token was minted and stored.
	RefreshRotated RefreshResult = "rotated"
	// RefreshLostRace: a concurrent refresh won; its session was adopted.
	RefreshLostRace RefreshResult = "lost_race"
)

// Info is the answer to a session query: the stored session, its verified
// claims, and the remaining token lifetime.
type Info struct {
	Session   Session
	Claims    token.Claims
	ExpiresIn time.Duration
}

// Manager orchestrates the token service, the revocation store, and the
// session store into login / validate / refresh / logout semantics. It owns
// one session slot at a time; a new login replaces the previous slot.
type Manager struct {
	tokens      *token.Service
	revocations revocation.Store
	sessions    Store

	refreshThreshold time.Duration
	now              func() time.Time

	mu  sync.Mutex
	key string
}

// ManagerOption configures Manager.
type ManagerOption func(*Manager)

// WithRefreshThreshold sets the remaining-lifetime threshold below which
// Refresh mints a replacement token.
func WithRefreshThreshold(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.refreshThreshold = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewManager wires the manager's collaborators. All three are required.
func NewManager(tokens *token.Service, revocations revocation.Store, sessions Store, opts ...ManagerOption) (*Manager, error) {
	if tokens == nil {
		return nil, errors.New("session: token service is required")
	}
	if revocations == nil {
		return nil, errors.New("session: revocation store is required")
	}
	if sessions == nil {
		return nil, errors.New("session: session store is required")
	}
	m := &Manager{
		tokens:           tokens,
		revocations:      revocations,
		sessions:         sessions,
		refreshThreshold: defaultRefreshThreshold,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// RefreshThreshold reports the configured refresh threshold so the calling
// layer can schedule its refresh timer at (expiresIn - threshold).
func (m *Manager) RefreshThreshold() time.Duration { return m.refreshThreshold }

// Login authenticates the principal into a fresh session, replacing any
// prior one in the slot.
func (m *Manager) Login(ctx context.Context, principal identity.Principal) (Info, error) {
	if err := principal.Validate(); err != nil {
		return Info{}, err
	}
	signed, claims, err := m.tokens.Sign(token.FromPrincipal(principal))
	if err != nil {
		return Info{}, err
	}
	sess := Session{Token: signed, CreatedAt: m.now().UTC(), Claims: claims}
	if _, err := m.sessions.Replace(ctx, principal.Key(), sess); err != nil {
		return Info{}, fmt.Errorf("session: store login: %w", err)
	}
	m.mu.Lock()
	m.key = principal.Key()
	m.mu.Unlock()
	return Info{Session: sess, Claims: claims, ExpiresIn: claims.ExpiresIn(m.now().UTC())}, nil
}

// GetSession loads and re-validates the current session. Any trust failure
// (malformed, forged, expired, not-yet-valid, or revoked token) tears the
// session down before the error is returned: there is no partial trust.
func (m *Manager) GetSession(ctx context.Context) (Info, error) {
	info, _, err := m.load(ctx)
	return info, err
}

// load is GetSession plus the record version, for the refresh CAS.
func (m *Manager) load(ctx context.Context) (Info, int64, error) {
	key := m.currentKey()
	if key == "" {
		return Info{}, 0, ErrNoSession
	}
	rec, err := m.sessions.Load(ctx, key)
	if err != nil {
		return Info{}, 0, err
	}
	claims, err := m.tokens.Verify(rec.Session.Token)
	if err != nil {
		_ = m.sessions.Delete(ctx, key)
		return Info{}, 0, err
	}
	revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Info{}, 0, fmt.Errorf("session: revocation lookup: %w", err)
	}
	if revoked {
		_ = m.sessions.Delete(ctx, key)
		return Info{}, 0, token.ErrRevoked
	}
	return Info{
		Session:   rec.Session,
		Claims:    claims,
		ExpiresIn: claims.ExpiresIn(m.now().UTC()),
	}, rec.Version, nil
}

// Refresh re-validates the session and, once the remaining lifetime drops to
// the threshold or below, revokes the current token and mints a replacement
// carrying the same claims with fresh issuance fields. Above the threshold
// it returns the session unchanged. Concurrent refreshes of the same slot
// converge on a single winner; the loser revokes its own mint and adopts the
// winner's session.
func (m *Manager) Refresh(ctx context.Context) (Info, RefreshResult, error) {
	info, version, err := m.load(ctx)
	if err != nil {
		return Info{}, "", err
	}
	if info.ExpiresIn > m.refreshThreshold {
		return info, RefreshNoop, nil
	}

	signed, claims, err := m.tokens.Sign(stripIssuance(info.Claims))
	if err != nil {
		return Info{}, "", err
	}
	sess := Session{Token: signed, CreatedAt: m.now().UTC(), Claims: claims}

	key := m.currentKey()
	if _, err := m.sessions.Save(ctx, key, sess, version); err != nil {
		if !errors.Is(err, ErrVersionConflict) {
			return Info{}, "", fmt.Errorf("session: store refresh: %w", err)
		}
		// Lost the race. Drop our mint and adopt whatever won.
		if rerr := m.revocations.Revoke(ctx, claims.ID); rerr != nil {
			return Info{}, "", fmt.Errorf("session: revoke losing refresh: %w", rerr)
		}
		winner, _, err := m.load(ctx)
		if err != nil {
			return Info{}, "", err
		}
		return winner, RefreshLostRace, nil
	}

	if err := m.revocations.Revoke(ctx, info.Claims.ID); err != nil {
		return Info{}, "", fmt.Errorf("session: revoke replaced token: %w", err)
	}
	return Info{Session: sess, Claims: claims, ExpiresIn: claims.ExpiresIn(m.now().UTC())}, RefreshRotated, nil
}

// Logout revokes the current token, if any, and clears the slot. Logging out
// of an empty slot is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	key := m.currentKey()
	if key == "" {
		return nil
	}
	rec, err := m.sessions.Load(ctx, key)
	if err == nil && rec.Session.Claims.ID != "" {
		if err := m.revocations.Revoke(ctx, rec.Session.Claims.ID); err != nil {
			return fmt.Errorf("session: revoke on logout: %w", err)
		}
	}
	return m.sessions.Delete(ctx, key)
}

// RevokeCurrentToken is the operational variant of Logout: it requires an
// active session, revokes its token, and clears the slot.
func (m *Manager) RevokeCurrentToken(ctx context.Context) error {
	key := m.currentKey()
	if key == "" {
		return ErrNoSession
	}
	rec, err := m.sessions.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := m.revocations.Revoke(ctx, rec.Session.Claims.ID); err != nil {
		return fmt.Errorf("session: revoke current token: %w", err)
	}
	return m.sessions.Delete(ctx, key)
}

func (m *Manager) currentKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

// stripIssuance clears the fields Sign restamps so a refresh carries the
// original custom claims forward with a fresh iat/nbf/exp/jti. Refresh never
// re-derives privileges; changed entitlements require a new login.
func stripIssuance(c token.Claims) token.Claims {
	c.IssuedAt = nil
	c.NotBefore = nil
	c.ExpiresAt = nil
	c.ID = ""
	return c
}
