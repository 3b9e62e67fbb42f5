package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/todolists/internal/apperror"
	"github.com/sakif/todolists/internal/model"
)

// CreateList inserts the list row and its first item in one transaction, so
// a list can never exist without at least one item.
func (db *DB) CreateList(ctx context.Context, list *model.List, first *model.Item) error {
	now := time.Now().UTC()
	list.ID = xid.New().String()
	list.CreatedAt = now

	var ownerID sql.NullString
	if list.Owner != nil {
		ownerID = sql.NullString{String: list.Owner.ID, Valid: true}
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lists (id, owner_id, created_at) VALUES (?, ?, ?)`,
			list.ID, ownerID, list.CreatedAt,
		); err != nil {
			return fmt.Errorf("sqlite: inserting list: %w", err)
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

// AddItem appends an item to an existing list.
func (db *DB) AddItem(ctx context.Context, item *model.Item) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM lists WHERE id = ?`, item.ListID).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("list", item.ListID)
			}
			return fmt.Errorf("sqlite: checking list %s: %w", item.ListID, err)
		}
		return insertItem(ctx, tx, item, time.Now().UTC())
	})
}

func insertItem(ctx context.Context, tx *sql.Tx, item *model.Item, now time.Time) error {
	item.ID = xid.New().String()
	item.CreatedAt = now

	res, err := tx.ExecContext(ctx,
		`INSERT INTO items (id, list_id, text, created_at) VALUES (?, ?, ?, ?)`,
		item.ID, item.ListID, item.Text, item.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("item", "text")
		}
		return fmt.Errorf("sqlite: inserting item: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading item seq: %w", err)
	}
	item.Seq = seq
	return nil
}

// GetList loads a list with its owner, items and sharees.
//
// Each query's rows are fully drained and closed before the next one starts;
// an in-memory database has exactly one connection and nested queries would
// wait on themselves.
func (db *DB) GetList(ctx context.Context, id string) (*model.List, error) {
	var (
		list    model.List
		ownerID sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, owner_id, created_at FROM lists WHERE id = ?`, id,
	).Scan(&list.ID, &ownerID, &list.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("list", id)
		}
		return nil, fmt.Errorf("sqlite: getting list %s: %w", id, err)
	}

	if ownerID.Valid {
		owner, err := db.GetUserByID(ctx, ownerID.String)
		if err != nil {
			return nil, fmt.Errorf("sqlite: loading owner of list %s: %w", id, err)
		}
		list.Owner = owner
	}

	if list.Items, err = db.listItems(ctx, id); err != nil {
		return nil, err
	}
	if list.SharedWith, err = db.listSharees(ctx, id); err != nil {
		return nil, err
	}

	return &list, nil
}

func (db *DB) listItems(ctx context.Context, listID string) ([]model.Item, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT seq, id, list_id, text, created_at FROM items WHERE list_id = ? ORDER BY seq`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing items of %s: %w", listID, err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.Seq, &it.ID, &it.ListID, &it.Text, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating items: %w", err)
	}
	return items, nil
}

func (db *DB) listSharees(ctx context.Context, listID string) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.email, u.password_hash, u.created_at
		 FROM list_sharees s JOIN users u ON u.id = s.user_id
		 WHERE s.list_id = ?
		 ORDER BY u.email`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing sharees of %s: %w", listID, err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning sharee: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating sharees: %w", err)
	}
	return users, nil
}

// ListsVisibleTo returns the lists userID owns or has been shared, oldest first.
func (db *DB) ListsVisibleTo(ctx context.Context, userID string) ([]model.List, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT l.id FROM lists l
		 WHERE l.owner_id = ?
		    OR EXISTS (SELECT 1 FROM list_sharees s WHERE s.list_id = l.id AND s.user_id = ?)
		 ORDER BY l.created_at, l.rowid`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing lists for %s: %w", userID, err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning list id: %w", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("sqlite: iterating lists: %w", err)
	}

	lists := make([]model.List, 0, len(ids))
	for _, id := range ids {
		l, err := db.GetList(ctx, id)
		if err != nil {
			return nil, err
		}
		lists = append(lists, *l)
	}
	return lists, nil
}

// AddSharee grants userID access to listID. INSERT OR IGNORE makes it idempotent.
func (db *DB) AddSharee(ctx context.Context, listID, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO list_sharees (list_id, user_id) VALUES (?, ?)`,
		listID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: sharing list %s with %s: %w", listID, userID, err)
	}
	return nil
}

// DeleteItem removes an item, and the list too if the item was its last.
func (db *DB) DeleteItem(ctx context.Context, listID, itemID string) (bool, error) {
	listDeleted := false

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM items WHERE id = ? AND list_id = ?`, itemID, listID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: deleting item %s: %w", itemID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("item", itemID)
		}

		var remaining int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM items WHERE list_id = ?`, listID,
		).Scan(&remaining); err != nil {
			return fmt.Errorf("sqlite: counting items of %s: %w", listID, err)
		}
		if remaining > 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, listID); err != nil {
			return fmt.Errorf("sqlite: deleting empty list %s: %w", listID, err)
		}
		listDeleted = true
		return nil
	})

	return listDeleted, err
}
