// Package repository declares the storage contracts the services depend on.
//
// Two backends implement them: repository/sqlite (the default, an embedded
// file) and repository/postgres. Both enforce the uniqueness of users.email
// and of (items.list_id, items.text) in the schema itself, and both report a
// violation as apperror.ErrConflict so services can turn it into the right
// validation message even when an application-level pre-check lost a race.
package repository

import (
	"context"

	"github.com/sakif/todolists/internal/model"
)

// UserRepository stores accounts. Email lookups are exact-match.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// ListRepository stores lists, their items and who they are shared with.
//
// Returned lists are fully loaded: Owner (nil for anonymous lists), Items in
// creation order, and SharedWith ordered by email.
type ListRepository interface {
	// CreateList persists list and its first item in one transaction.
	// Both get IDs and timestamps; first.ListID is set to list.ID.
	CreateList(ctx context.Context, list *model.List, first *model.Item) error

	// AddItem appends item to the list named by item.ListID.
	// Returns ErrNotFound for an unknown list, ErrConflict for a duplicate text.
	AddItem(ctx context.Context, item *model.Item) error

	GetList(ctx context.Context, id string) (*model.List, error)

	// ListsVisibleTo returns every list userID owns or is a sharee of,
	// oldest first, each list once.
	ListsVisibleTo(ctx context.Context, userID string) ([]model.List, error)

	// AddSharee grants userID access to listID. Granting twice is a no-op.
	AddSharee(ctx context.Context, listID, userID string) error

	// DeleteItem removes one item. When it was the list's last item the list
	// is removed in the same transaction and listDeleted is true.
	DeleteItem(ctx context.Context, listID, itemID string) (listDeleted bool, err error)
}

// Store is a complete storage backend.
type Store interface {
	UserRepository
	ListRepository
	Close() error
}
