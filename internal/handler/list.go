package handler

import (
	"net/http"

	"github.com/sakif/todolists/internal/form"
	"github.com/sakif/todolists/internal/model"
	"github.com/sakif/todolists/internal/service"
	"github.com/sakif/todolists/internal/validation"
)

// ListHandler serves the home page, the list pages and the per-user list
// index.
//
//   - HandleHome       → GET  /
//   - HandleNewList    → POST /lists/new/
//   - HandleViewList   → GET  /lists/{listID}/
//   - HandleAddItem    → POST /lists/{listID}/
//   - HandleShareList  → POST /lists/{listID}/share/   (login required)
//   - HandleDeleteItem → POST /lists/{listID}/items/{itemID}/delete/
//   - HandleMyLists    → GET  /lists/users/{email}/
type ListHandler struct {
	*Site
	lists   *service.ListService
	sharing *service.SharingService
}

func NewListHandler(site *Site, lists *service.ListService, sharing *service.SharingService) *ListHandler {
	return &ListHandler{Site: site, lists: lists, sharing: sharing}
}

func (h *ListHandler) homePage(user *model.User, f *form.Form) *Page {
	p := h.page(user, "Start a new list", "Start a new To-Do list")
	p.Form = f
	return p
}

func (h *ListHandler) listPage(user *model.User, list *model.List, itemForm, shareForm *form.Form) *Page {
	p := h.page(user, list.Name(), "Your To-Do list")
	p.List = list
	p.Form = itemForm
	p.ShareForm = shareForm
	return p
}

// HandleHome serves the empty item form that starts a new list.
func (h *ListHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	h.render.Render(w, http.StatusOK, "home", h.homePage(user, form.New()))
}

// HandleNewList creates a list from its first item. A logged-in visitor
// becomes the owner; anonymous lists have none.
func (h *ListHandler) HandleNewList(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	list, err := h.lists.CreateList(r.Context(), r.PostForm.Get(validation.FieldText), user)
	if err != nil {
		if errs, ok := validation.FromError(err); ok {
			f := form.FromValues(r.PostForm).WithErrors(errs)
			h.render.Render(w, http.StatusOK, "home", h.homePage(user, f))
			return
		}
		h.fail(w, r, user, err)
		return
	}

	http.Redirect(w, r, list.URL(), http.StatusFound)
}

// HandleViewList shows a list with its items, owner and sharees.
func (h *ListHandler) HandleViewList(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}

	list, err := h.lists.GetList(r.Context(), pathParam(r, "listID"))
	if err != nil {
		h.fail(w, r, user, err)
		return
	}
	h.render.Render(w, http.StatusOK, "list", h.listPage(user, list, form.New(), form.New()))
}

// HandleAddItem appends an item. On a validation error the list page is
// shown again with the submitted text kept in the box.
func (h *ListHandler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	listID := pathParam(r, "listID")
	if _, err := h.lists.AddItem(r.Context(), listID, r.PostForm.Get(validation.FieldText)); err != nil {
		errs, ok := validation.FromError(err)
		if !ok {
			h.fail(w, r, user, err)
			return
		}
		list, err := h.lists.GetList(r.Context(), listID)
		if err != nil {
			h.fail(w, r, user, err)
			return
		}
		f := form.FromValues(r.PostForm).WithErrors(errs)
		h.render.Render(w, http.StatusOK, "list", h.listPage(user, list, f, form.New()))
		return
	}

	http.Redirect(w, r, listURL(listID), http.StatusFound)
}

// HandleShareList shares the list with the account named in the "sharee"
// field. Mounted behind auth.RequireLogin.
func (h *ListHandler) HandleShareList(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	listID := pathParam(r, "listID")
	if _, err := h.sharing.ShareList(r.Context(), listID, r.PostForm.Get(validation.FieldSharee), user); err != nil {
		errs, ok := validation.FromError(err)
		if !ok {
			h.fail(w, r, user, err)
			return
		}
		list, err := h.lists.GetList(r.Context(), listID)
		if err != nil {
			h.fail(w, r, user, err)
			return
		}
		f := form.FromValues(r.PostForm).WithErrors(errs)
		h.render.Render(w, http.StatusOK, "list", h.listPage(user, list, form.New(), f))
		return
	}

	http.Redirect(w, r, listURL(listID), http.StatusFound)
}

// HandleDeleteItem removes one item. Removing the last item removes the
// list, so the visitor is sent home instead.
func (h *ListHandler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}

	listID := pathParam(r, "listID")
	listDeleted, err := h.lists.DeleteItem(r.Context(), listID, pathParam(r, "itemID"))
	if err != nil {
		h.fail(w, r, user, err)
		return
	}

	if listDeleted {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	http.Redirect(w, r, listURL(listID), http.StatusFound)
}

// HandleMyLists shows every list the named user owns or has been shared.
func (h *ListHandler) HandleMyLists(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}

	owner, err := h.users.UserByEmail(r.Context(), validation.Clean(pathParam(r, "email")))
	if err != nil {
		h.fail(w, r, user, err)
		return
	}
	lists, err := h.lists.ListsVisibleTo(r.Context(), owner)
	if err != nil {
		h.fail(w, r, user, err)
		return
	}

	p := h.page(user, "My lists", "My lists")
	p.Owner = owner
	p.Lists = lists
	h.render.Render(w, http.StatusOK, "my_lists", p)
}
