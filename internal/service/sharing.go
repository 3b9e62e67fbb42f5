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

// SharingOptions tunes who may share a list.
type SharingOptions struct {
	// OwnerOnly restricts sharing to the list's owner. When false any
	// logged-in user who can see the list may share it.
	OwnerOnly bool
}

// SharingService grants other registered users access to a list.
type SharingService struct {
	users   repository.UserRepository
	lists   repository.ListRepository
	opts    SharingOptions
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewSharingService(
	users repository.UserRepository,
	lists repository.ListRepository,
	opts SharingOptions,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SharingService {
	return &SharingService{users: users, lists: lists, opts: opts, metrics: m, logger: logger}
}

// ShareList adds the account registered under shareeEmail to the list's
// sharees and returns the updated list. Sharing twice with the same person
// is not an error.
func (s *SharingService) ShareList(ctx context.Context, listID, shareeEmail string, sharer *model.User) (*model.List, error) {
	if sharer == nil {
		return nil, apperror.AuthRequired("share a list")
	}

	shareeEmail = validation.Clean(shareeEmail)
	if errs := validation.Check(validation.ShareRules, map[string]string{validation.FieldSharee: shareeEmail}); !errs.OK() {
		s.metrics.ValidationFailed("share")
		return nil, errs.Err()
	}

	list, err := s.lists.GetList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("service/sharing: fetching list %s: %w", listID, err)
	}

	if s.opts.OwnerOnly && !list.IsOwnedBy(sharer.ID) {
		return nil, apperror.Forbidden("only the owner of a list can share it")
	}

	sharee, err := s.users.GetUserByEmail(ctx, shareeEmail)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.metrics.ValidationFailed("share")
			return nil, validation.Single(validation.FieldSharee, validation.Unknown, validation.UnknownShareeError)
		}
		return nil, fmt.Errorf("service/sharing: looking up sharee: %w", err)
	}

	if sharee.Email == sharer.Email {
		s.metrics.ValidationFailed("share")
		return nil, validation.Single(validation.FieldSharee, validation.Invalid, validation.SelfShareError)
	}

	if err := s.lists.AddSharee(ctx, list.ID, sharee.ID); err != nil {
		return nil, fmt.Errorf("service/sharing: %w", err)
	}

	s.metrics.ListShared()
	s.logger.Info("list shared",
		slog.String("listID", list.ID),
		slog.String("sharerID", sharer.ID),
		slog.String("shareeID", sharee.ID),
	)

	list, err = s.lists.GetList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("service/sharing: reloading list %s: %w", listID, err)
	}
	return list, nil
}
