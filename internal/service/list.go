// Package service contains the business rules of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services take repository interfaces, not concrete stores, so tests pass
// in-memory fakes and the server picks SQLite or Postgres in one place.
// Validation failures come back as *validation.Failure, which unwraps to
// apperror.ErrValidation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/todolists/internal/apperror"
	"github.com/sakif/todolists/internal/metrics"
	"github.com/sakif/todolists/internal/model"
	"github.com/sakif/todolists/internal/repository"
	"github.com/sakif/todolists/internal/validation"
)

// ListService handles lists and their items.
type ListService struct {
	repo    repository.ListRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewListService creates a ListService. m may be nil.
func NewListService(repo repository.ListRepository, m *metrics.Metrics, logger *slog.Logger) *ListService {
	return &ListService{repo: repo, metrics: m, logger: logger}
}

// CreateList starts a new list whose first item is text. owner is nil for
// anonymous visitors. The list and its item are saved together or not at all.
func (s *ListService) CreateList(ctx context.Context, text string, owner *model.User) (*model.List, error) {
	text = validation.Clean(text)
	if errs := validation.Item(text, nil); !errs.OK() {
		s.metrics.ValidationFailed("item")
		return nil, errs.Err()
	}

	list := &model.List{Owner: owner}
	if err := s.repo.CreateList(ctx, list, &model.Item{Text: text}); err != nil {
		return nil, fmt.Errorf("service/list: creating list: %w", err)
	}

	s.metrics.ListCreated()
	s.logger.Info("list created",
		slog.String("listID", list.ID),
		slog.Bool("anonymous", owner == nil),
	)
	return list, nil
}

// AddItem appends text to the list. A blank or repeated text is a validation
// failure and nothing is saved.
func (s *ListService) AddItem(ctx context.Context, listID, text string) (*model.Item, error) {
	list, err := s.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}

	text = validation.Clean(text)
	if errs := validation.Item(text, list.ItemTexts()); !errs.OK() {
		s.metrics.ValidationFailed("item")
		return nil, errs.Err()
	}

	item := &model.Item{ListID: listID, Text: text}
	if err := s.repo.AddItem(ctx, item); err != nil {
		// Another request added the same text after our duplicate check.
		if errors.Is(err, apperror.ErrConflict) {
			s.metrics.ValidationFailed("item")
			return nil, validation.Single(validation.FieldText, validation.Duplicate, validation.DuplicateItemError)
		}
		return nil, fmt.Errorf("service/list: adding item to %s: %w", listID, err)
	}

	s.metrics.ItemAdded()
	s.logger.Debug("item added", slog.String("listID", listID), slog.String("itemID", item.ID))
	return item, nil
}

// GetList returns the list with its owner, items and sharees.
func (s *ListService) GetList(ctx context.Context, id string) (*model.List, error) {
	if id == "" {
		return nil, apperror.NotFound("list", id)
	}
	list, err := s.repo.GetList(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/list: fetching list %s: %w", id, err)
	}
	return list, nil
}

// ListsVisibleTo returns the lists user owns or has been shared, oldest first.
func (s *ListService) ListsVisibleTo(ctx context.Context, user *model.User) ([]model.List, error) {
	if user == nil {
		return []model.List{}, nil
	}
	lists, err := s.repo.ListsVisibleTo(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/list: listing lists for %s: %w", user.ID, err)
	}
	return lists, nil
}

// DeleteItem removes one item. Removing a list's last item removes the list,
// reported by listDeleted.
func (s *ListService) DeleteItem(ctx context.Context, listID, itemID string) (listDeleted bool, err error) {
	listDeleted, err = s.repo.DeleteItem(ctx, listID, itemID)
	if err != nil {
		return false, fmt.Errorf("service/list: deleting item %s from %s: %w", itemID, listID, err)
	}

	s.metrics.ItemDeleted(listDeleted)
	s.logger.Info("item deleted",
		slog.String("listID", listID),
		slog.String("itemID", itemID),
		slog.Bool("listDeleted", listDeleted),
	)
	return listDeleted, nil
}
