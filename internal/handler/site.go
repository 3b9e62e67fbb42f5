package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/todolists/internal/apperror"
	"github.com/sakif/todolists/internal/auth"
	"github.com/sakif/todolists/internal/model"
	"github.com/sakif/todolists/internal/service"
)

// LoginURL is where anonymous visitors are sent when an action needs an
// account.
const LoginURL = "/login/"

// Site is the state shared by every HTML handler: the templates and a way
// to turn the session's user ID into an account.
type Site struct {
	render        *Renderer
	users         *service.AuthService
	githubEnabled bool
	logger        *slog.Logger
}

func NewSite(render *Renderer, users *service.AuthService, githubEnabled bool, logger *slog.Logger) *Site {
	return &Site{render: render, users: users, githubEnabled: githubEnabled, logger: logger}
}

// currentUser returns the logged-in account, or nil for anonymous requests.
// A session whose account no longer exists counts as anonymous.
func (s *Site) currentUser(r *http.Request) (*model.User, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, nil
	}
	user, err := s.users.UserByID(r.Context(), id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

func (s *Site) page(user *model.User, title, header string) *Page {
	return &Page{
		Title:         title,
		Header:        header,
		User:          user,
		GitHubEnabled: s.githubEnabled,
	}
}

// fail turns a service error that is not a validation problem into a
// response.
func (s *Site) fail(w http.ResponseWriter, r *http.Request, user *model.User, err error) {
	var appErr *apperror.AppError
	errors.As(err, &appErr)

	switch {
	case errors.Is(err, apperror.ErrNotFound):
		s.render.RenderError(w, http.StatusNotFound, user, "We couldn't find that page.")
	case errors.Is(err, apperror.ErrAuthRequired):
		http.Redirect(w, r, LoginURL, http.StatusFound)
	case errors.Is(err, apperror.ErrForbidden):
		msg := "You are not allowed to do that."
		if appErr != nil {
			msg = appErr.Message
		}
		s.render.RenderError(w, http.StatusForbidden, user, msg)
	default:
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		s.render.RenderError(w, http.StatusInternalServerError, user, "Something went wrong on our side. Please try again.")
	}
}

// pathParam returns the unescaped chi URL parameter key.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func listURL(listID string) string {
	return (&model.List{ID: listID}).URL()
}
