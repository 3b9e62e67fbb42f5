package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sakif/todolists/internal/apperror"
	"github.com/sakif/todolists/internal/model"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

// newTestStore connects to TEST_POSTGRES_DSN, skipping when it isn't set.
// Each test gets freshly truncated tables.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := s.pool.Exec(ctx, `TRUNCATE list_sharees, items, lists, users`); err != nil {
		t.Fatalf("truncating: %v", err)
	}
	return s
}

func TestStore_ListLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := &model.User{Email: "edith@example.com"}
	if err := s.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := s.CreateUser(ctx, &model.User{Email: "edith@example.com"}); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("CreateUser() duplicate error = %v, want ErrConflict", err)
	}

	list := &model.List{Owner: owner}
	if err := s.CreateList(ctx, list, &model.Item{Text: "Buy milk"}); err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}
	if err := s.AddItem(ctx, &model.Item{ListID: list.ID, Text: "Buy milk"}); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("AddItem() duplicate error = %v, want ErrConflict", err)
	}

	oni := &model.User{Email: "oni@example.com"}
	if err := s.CreateUser(ctx, oni); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.AddSharee(ctx, list.ID, oni.ID); err != nil {
			t.Fatalf("AddSharee() error = %v", err)
		}
	}

	visible, err := s.ListsVisibleTo(ctx, oni.ID)
	if err != nil {
		t.Fatalf("ListsVisibleTo() error = %v", err)
	}
	if len(visible) != 1 || visible[0].Name() != "Buy milk" || len(visible[0].SharedWith) != 1 {
		t.Fatalf("ListsVisibleTo() = %+v", visible)
	}

	deleted, err := s.DeleteItem(ctx, list.ID, list.Items[0].ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteItem() = %v, %v; want true, nil", deleted, err)
	}
	if _, err := s.GetList(ctx, list.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetList() after cascade error = %v, want ErrNotFound", err)
	}
}
