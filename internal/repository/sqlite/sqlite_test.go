package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sakif/starblog/internal/apperror"
	"github.com/sakif/starblog/internal/model"
	"github.com/sakif/starblog/internal/repository"
)

// newTestDB opens a fresh in-memory database with all migrations applied.
// Each call gets its own database because the pool holds one connection.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Name: strPtr("user " + email)}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

func createTestPost(t *testing.T, db *DB, authorID *int64, title string) *model.Post {
	t.Helper()
	p := &model.Post{AuthorID: authorID, Title: title, Content: "body of " + title}
	if err := db.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("failed to create test post: %v", err)
	}
	return p
}

func TestNew_MigratesSchema(t *testing.T) {
	db := newTestDB(t)

	for _, table := range []string{"users", "posts", "likes", "comments", "goose_db_version"} {
		var n int
		err := db.db.GetContext(context.Background(), &n,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if n != 1 {
			t.Errorf("table %s missing after migrations", table)
		}
	}
}

func TestNew_ForeignKeysEnabled(t *testing.T) {
	db := newTestDB(t)

	var on int
	if err := db.db.GetContext(context.Background(), &on, `PRAGMA foreign_keys`); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if on != 1 {
		t.Errorf("foreign_keys = %d, want 1", on)
	}
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blog.db")
	ctx := context.Background()

	first, err := New(ctx, path)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	u := &model.User{Email: "keep@example.com"}
	if err := first.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	first.Close()

	second, err := New(ctx, path)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer second.Close()

	got, err := second.GetUserByEmail(ctx, "keep@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() after reopen error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID after reopen = %d, want %d", got.ID, u.ID)
	}
}

func TestInUserTx_PanicRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("InUserTx() swallowed the panic")
			}
		}()
		_ = db.InUserTx(ctx, func(tx repository.UserStore) error {
			if err := tx.CreateUser(ctx, &model.User{Email: "ghost@example.com"}); err != nil {
				t.Fatalf("CreateUser() in tx error = %v", err)
			}
			panic("boom")
		})
	}()

	if _, err := db.GetUserByEmail(ctx, "ghost@example.com"); !errors.Is(err, apperror.ErrUserNotFound) {
		t.Fatalf("user written before the panic survived: err = %v", err)
	}
}

func TestInUserTx_ErrorRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sentinel := errors.New("stop")

	err := db.InUserTx(ctx, func(tx repository.UserStore) error {
		if err := tx.CreateUser(ctx, &model.User{Email: "ghost@example.com"}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("InUserTx() error = %v, want %v", err, sentinel)
	}
	if _, err := db.GetUserByEmail(ctx, "ghost@example.com"); !errors.Is(err, apperror.ErrUserNotFound) {
		t.Fatalf("user written before the error survived: err = %v", err)
	}
}
