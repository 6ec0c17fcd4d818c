package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"icomnet.org/internal/revocation"
	"icomnet.org/internal/session"
	"icomnet.org/internal/token"
)

// defaultRetention bounds how long revocations are kept. Anything older than
// the longest token TTL is unreferencable, so pruning is safe.
const defaultRetention = 24 * time.Hour

// Store backs the revocation list and the session slots with Postgres, for
// deployments where multiple replicas share one access-control core.
type Store struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
}

var (
	_ revocation.Store = (*Store)(nil)
	_ session.Store    = (*Store)(nil)
)

// Option configures Store.
type Option func(*Store)

// WithRetention overrides how long revocation entries are kept.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// Open connects to Postgres via the pgx stdlib driver.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db, opts...), nil
}

// New wraps an existing database handle.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, retention: defaultRetention, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping reports backend reachability for readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Revoke records the identifier. Re-revoking is a no-op; stale entries past
// the retention window are pruned opportunistically on write.
func (s *Store) Revoke(ctx context.Context, jti string) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return revocation.ErrInvalidJTI
	}
	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		insert into revoked_tokens(jti, revoked_at)
		values ($1, $2)
		on conflict (jti) do nothing
	`, jti, now); err != nil {
		return fmt.Errorf("pg: revoke: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`delete from revoked_tokens where revoked_at < $1`,
		now.Add(-s.retention),
	); err != nil {
		return fmt.Errorf("pg: prune revocations: %w", err)
	}
	return nil
}

// IsRevoked reports whether the identifier is on the revocation list.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, revocation.ErrInvalidJTI
	}
	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from revoked_tokens where jti = $1)`,
		jti,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("pg: revocation lookup: %w", err)
	}
	return revoked, nil
}

// Load returns the session slot under key.
func (s *Store) Load(ctx context.Context, key string) (session.Record, error) {
	var (
		tok        string
		createdAt  time.Time
		claimsJSON []byte
		version    int64
	)
	err := s.db.QueryRowContext(ctx, `
		select token, created_at, claims, version
		from sessions where key = $1
	`, key).Scan(&tok, &createdAt, &claimsJSON, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Record{}, session.ErrNoSession
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("pg: load session: %w", err)
	}
	var claims token.Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return session.Record{}, fmt.Errorf("pg: decode session claims: %w", err)
	}
	return session.Record{
		Session: session.Session{Token: tok, CreatedAt: createdAt, Claims: claims},
		Version: version,
	}, nil
}

// Save writes the slot only when its stored version still equals expect, so
// concurrent refreshes resolve to a single winner.
func (s *Store) Save(ctx context.Context, key string, sess session.Session, expect int64) (session.Record, error) {
	claimsJSON, err := json.Marshal(sess.Claims)
	if err != nil {
		return session.Record{}, fmt.Errorf("pg: encode session claims: %w", err)
	}

	var res sql.Result
	if expect == 0 {
		res, err = s.db.ExecContext(ctx, `
			insert into sessions(key, token, created_at, claims, version)
			values ($1, $2, $3, $4, 1)
			on conflict (key) do nothing
		`, key, sess.Token, sess.CreatedAt, claimsJSON)
	} else {
		res, err = s.db.ExecContext(ctx, `
			update sessions
			set token = $2, created_at = $3, claims = $4, version = version + 1
			where key = $1 and version = $5
		`, key, sess.Token, sess.CreatedAt, claimsJSON, expect)
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("pg: save session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return session.Record{}, fmt.Errorf("pg: save session: %w", err)
	}
	if affected == 0 {
		return session.Record{}, session.ErrVersionConflict
	}
	return session.Record{Session: sess, Version: expect + 1}, nil
}

// Replace writes the slot unconditionally, superseding any stored session.
func (s *Store) Replace(ctx context.Context, key string, sess session.Session) (session.Record, error) {
	claimsJSON, err := json.Marshal(sess.Claims)
	if err != nil {
		return session.Record{}, fmt.Errorf("pg: encode session claims: %w", err)
	}
	var version int64
	err = s.db.QueryRowContext(ctx, `
		insert into sessions(key, token, created_at, claims, version)
		values ($1, $2, $3, $4, 1)
		on conflict (key) do update
		set token = excluded.token,
		    created_at = excluded.created_at,
		    claims = excluded.claims,
		    version = sessions.version + 1
		returning version
	`, key, sess.Token, sess.CreatedAt, claimsJSON).Scan(&version)
	if err != nil {
		return session.Record{}, fmt.Errorf("pg: replace session: %w", err)
	}
	return session.Record{Session: sess, Version: version}, nil
}

// Delete clears the slot. Deleting an empty slot is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `delete from sessions where key = $1`, key); err != nil {
		return fmt.Errorf("pg: delete session: %w", err)
	}
	return nil
}
