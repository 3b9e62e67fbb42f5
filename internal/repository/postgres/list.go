package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/todolists/internal/apperror"
	"github.com/sakif/todolists/internal/model"
)

func (s *Store) CreateList(ctx context.Context, list *model.List, first *model.Item) error {
	now := time.Now().UTC()
	list.ID = xid.New().String()
	list.CreatedAt = now

	var ownerID *string
	if list.Owner != nil {
		ownerID = &list.Owner.ID
	}

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO lists (id, owner_id, created_at) VALUES ($1, $2, $3)`,
			list.ID, ownerID, list.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres: inserting list: %w", err)
		}
		first.ListID = list.ID
		return insertItem(ctx, tx, first, now)
	})
	if err != nil {
		list.ID = ""
		return err
	}

	list.Items = []model.Item{*first}
	return nil
}

func (s *Store) AddItem(ctx context.Context, item *model.Item) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		// Lock the list row so a concurrent DeleteItem can't remove it mid-insert.
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM lists WHERE id = $1 FOR UPDATE`, item.ListID).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperror.NotFound("list", item.ListID)
			}
			return fmt.Errorf("postgres: checking list %s: %w", item.ListID, err)
		}
		return insertItem(ctx, tx, item, time.Now().UTC())
	})
}

func insertItem(ctx context.Context, tx pgx.Tx, item *model.Item, now time.Time) error {
	item.ID = xid.New().String()
	item.CreatedAt = now

	err := tx.QueryRow(ctx,
		`INSERT INTO items (id, list_id, text, created_at) VALUES ($1, $2, $3, $4) RETURNING seq`,
		item.ID, item.ListID, item.Text, item.CreatedAt,
	).Scan(&item.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("item", "text")
		}
		return fmt.Errorf("postgres: inserting item: %w", err)
	}
	return nil
}

func (s *Store) GetList(ctx context.Context, id string) (*model.List, error) {
	var (
		list    model.List
		ownerID *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, created_at FROM lists WHERE id = $1`, id,
	).Scan(&list.ID, &ownerID, &list.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("list", id)
		}
		return nil, fmt.Errorf("postgres: getting list %s: %w", id, err)
	}

	if ownerID != nil {
		owner, err := s.GetUserByID(ctx, *ownerID)
		if err != nil {
			return nil, fmt.Errorf("postgres: loading owner of list %s: %w", id, err)
		}
		list.Owner = owner
	}

	if list.Items, err = s.listItems(ctx, id); err != nil {
		return nil, err
	}
	if list.SharedWith, err = s.listSharees(ctx, id); err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *Store) listItems(ctx context.Context, listID string) ([]model.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT seq, id, list_id, text, created_at FROM items WHERE list_id = $1 ORDER BY seq`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing items of %s: %w", listID, err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Item, error) {
		var it model.Item
		err := row.Scan(&it.Seq, &it.ID, &it.ListID, &it.Text, &it.CreatedAt)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scanning items: %w", err)
	}
	return items, nil
}

func (s *Store) listSharees(ctx context.Context, listID string) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.email, u.password_hash, u.created_at
		 FROM list_sharees sh JOIN users u ON u.id = sh.user_id
		 WHERE sh.list_id = $1
		 ORDER BY u.email`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing sharees of %s: %w", listID, err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.User, error) {
		var u model.User
		err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scanning sharees: %w", err)
	}
	return users, nil
}

func (s *Store) ListsVisibleTo(ctx context.Context, userID string) ([]model.List, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.id FROM lists l
		 WHERE l.owner_id = $1
		    OR EXISTS (SELECT 1 FROM list_sharees sh WHERE sh.list_id = l.id AND sh.user_id = $1)
		 ORDER BY l.created_at, l.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing lists for %s: %w", userID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scanning list ids: %w", err)
	}

	lists := make([]model.List, 0, len(ids))
	for _, id := range ids {
		l, err := s.GetList(ctx, id)
		if err != nil {
			return nil, err
		}
		lists = append(lists, *l)
	}
	return lists, nil
}

func (s *Store) AddSharee(ctx context.Context, listID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO list_sharees (list_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		listID, userID,
	)
	if err != nil {
		return fmt.Errorf("postgres: sharing list %s with %s: %w", listID, userID, err)
	}
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, listID, itemID string) (bool, error) {
	listDeleted := false

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM lists WHERE id = $1 FOR UPDATE`, listID); err != nil {
			return fmt.Errorf("postgres: locking list %s: %w", listID, err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM items WHERE id = $1 AND list_id = $2`, itemID, listID)
		if err != nil {
			return fmt.Errorf("postgres: deleting item %s: %w", itemID, err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.NotFound("item", itemID)
		}

		var remaining int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE list_id = $1`, listID).Scan(&remaining); err != nil {
			return fmt.Errorf("postgres: counting items of %s: %w", listID, err)
		}
		if remaining > 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `DELETE FROM lists WHERE id = $1`, listID); err != nil {
			return fmt.Errorf("postgres: deleting empty list %s: %w", listID, err)
		}
		listDeleted = true
		return nil
	})

	return listDeleted, err
}
