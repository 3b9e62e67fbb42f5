package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/todolists/internal/apperror"
	"github.com/sakif/todolists/internal/service"
	"github.com/sakif/todolists/internal/validation"
)

// APIHandler is the read-only JSON view of lists.
//
//   - HandleGetList   → GET /api/lists/{listID}
//   - HandleUserLists → GET /api/users/{email}/lists
type APIHandler struct {
	lists  *service.ListService
	users  *service.AuthService
	logger *slog.Logger
}

func NewAPIHandler(lists *service.ListService, users *service.AuthService, logger *slog.Logger) *APIHandler {
	return &APIHandler{lists: lists, users: users, logger: logger}
}

func (h *APIHandler) HandleGetList(w http.ResponseWriter, r *http.Request) {
	list, err := h.lists.GetList(r.Context(), pathParam(r, "listID"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleUserLists returns the lists the user owns or has been shared,
// oldest first.
func (h *APIHandler) HandleUserLists(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.UserByEmail(r.Context(), validation.Clean(pathParam(r, "email")))
	if err != nil {
		h.error(w, r, err)
		return
	}
	lists, err := h.lists.ListsVisibleTo(r.Context(), user)
	if err != nil {
		h.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (h *APIHandler) error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		h.logger.Error("api request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err)
}
