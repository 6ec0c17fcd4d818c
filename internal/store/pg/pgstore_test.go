package pg

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"icomnet.org/internal/revocation"
	"icomnet.org/internal/session"
	"icomnet.org/internal/token"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := New(db, WithClock(func() time.Time { return now }))
	return store, mock
}

func TestRevokeInsertsAndPrunes(t *testing.T) {
	store, mock := newMockStore(t)
	now := store.now().UTC()

	mock.ExpectExec("insert into revoked_tokens").
		WithArgs("jti-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from revoked_tokens where revoked_at").
		WithArgs(now.Add(-defaultRetention)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Revoke(context.Background(), "jti-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
}

func TestRevokeRejectsBlankJTI(t *testing.T) {
	store, _ := newMockStore(t)
	if err := store.Revoke(context.Background(), "  "); !errors.Is(err, revocation.ErrInvalidJTI) {
		t.Fatalf("expected ErrInvalidJTI, got %v", err)
	}
}

func TestIsRevoked(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select exists").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	revoked, err := store.IsRevoked(context.Background(), "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Fatalf("expected revoked")
	}

	mock.ExpectQuery("select exists").
		WithArgs("jti-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	revoked, err = store.IsRevoked(context.Background(), "jti-2")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatalf("expected not revoked")
	}
}

func TestLoadSession(t *testing.T) {
	store, mock := newMockStore(t)
	createdAt := store.now().UTC()
	claims := token.Claims{TenantID: "tn-01", AppID: "app-chat"}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}

	mock.ExpectQuery("select token, created_at, claims, version").
		WithArgs("tn-01/app-chat").
		WillReturnRows(sqlmock.NewRows([]string{"token", "created_at", "claims", "version"}).
			AddRow("signed-token", createdAt, claimsJSON, int64(3)))

	rec, err := store.Load(context.Background(), "tn-01/app-chat")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Version != 3 {
		t.Fatalf("version=%d, want 3", rec.Version)
	}
	if rec.Session.Token != "signed-token" || rec.Session.Claims.TenantID != "tn-01" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestLoadMissingSession(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select token, created_at, claims, version").
		WithArgs("tn-01/app-chat").
		WillReturnRows(sqlmock.NewRows([]string{"token", "created_at", "claims", "version"}))

	if _, err := store.Load(context.Background(), "tn-01/app-chat"); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestSaveInsertsEmptySlot(t *testing.T) {
	store, mock := newMockStore(t)
	sess := session.Session{Token: "signed-token", CreatedAt: store.now().UTC()}

	mock.ExpectExec("insert into sessions").
		WithArgs("tn-01/app-chat", sess.Token, sess.CreatedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := store.Save(context.Background(), "tn-01/app-chat", sess, 0)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.Version != 1 {
		t.Fatalf("version=%d, want 1", rec.Version)
	}
}

func TestSaveUpdatesMatchingVersion(t *testing.T) {
	store, mock := newMockStore(t)
	sess := session.Session{Token: "signed-token", CreatedAt: store.now().UTC()}

	mock.ExpectExec("update sessions").
		WithArgs("tn-01/app-chat", sess.Token, sess.CreatedAt, sqlmock.AnyArg(), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := store.Save(context.Background(), "tn-01/app-chat", sess, 2)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.Version != 3 {
		t.Fatalf("version=%d, want 3", rec.Version)
	}
}

func TestSaveVersionConflict(t *testing.T) {
	store, mock := newMockStore(t)
	sess := session.Session{Token: "signed-token", CreatedAt: store.now().UTC()}

	mock.ExpectExec("update sessions").
		WithArgs("tn-01/app-chat", sess.Token, sess.CreatedAt, sqlmock.AnyArg(), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := store.Save(context.Background(), "tn-01/app-chat", sess, 2); !errors.Is(err, session.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	mock.ExpectExec("insert into sessions").
		WithArgs("tn-01/app-chat", sess.Token, sess.CreatedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := store.Save(context.Background(), "tn-01/app-chat", sess, 0); !errors.Is(err, session.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on occupied slot, got %v", err)
	}
}

func TestReplaceSession(t *testing.T) {
	store, mock := newMockStore(t)
	sess := session.Session{Token: "signed-token", CreatedAt: store.now().UTC()}

	mock.ExpectQuery("insert into sessions").
		WithArgs("tn-01/app-chat", sess.Token, sess.CreatedAt, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(4)))

	rec, err := store.Replace(context.Background(), "tn-01/app-chat", sess)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if rec.Version != 4 {
		t.Fatalf("version=%d, want 4", rec.Version)
	}
}

func TestDeleteSession(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from sessions").
		WithArgs("tn-01/app-chat").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Delete(context.Background(), "tn-01/app-chat"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
