// Package handler contains the HTTP request handlers.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (path params, form fields, cookies)
//  2. Call a service
//  3. Turn the outcome into a response: a redirect, a rendered page, or JSON
//
// Handlers hold no business rules. Everything they know about an error comes
// from the apperror sentinels and validation.FromError.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/todolists/internal/form"
	"github.com/sakif/todolists/internal/model"
)

// Page is the data every template receives. Handlers fill in what the page
// needs and leave the rest zero.
type Page struct {
	Title  string
	Header string

	// User is the logged-in visitor, nil for anonymous requests.
	User          *model.User
	GitHubEnabled bool

	Form      *form.Form
	ShareForm *form.Form

	List  *model.List
	Owner *model.User
	Lists []model.List

	Message string
}

// itemFormData is what the shared "item_form" template renders.
type itemFormData struct {
	Action string
	Form   *form.Form
}

var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"itemForm": func(action string, f *form.Form) itemFormData {
		return itemFormData{Action: action, Form: f}
	},
}

var pageNames = []string{"home", "list", "my_lists", "login", "signup", "error"}

// Renderer executes the page templates. Each page is parsed once, at
// startup, together with base.html; a page may override base's "form" block.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses base.html plus one file per page from fsys.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, "base.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages, logger: logger}, nil
}

// Render writes page with the given status. The page is rendered into a
// buffer first so a template error becomes a clean 500 instead of half a page.
func (rn *Renderer) Render(w http.ResponseWriter, status int, page string, data *Page) {
	tmpl, ok := rn.pages[page]
	if !ok {
		rn.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rn.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		rn.logger.Warn("writing page", slog.String("page", page), slog.String("error", err.Error()))
	}
}

// RenderError shows the error page.
func (rn *Renderer) RenderError(w http.ResponseWriter, status int, user *model.User, message string) {
	rn.Render(w, status, "error", &Page{
		Title:   http.StatusText(status),
		Header:  http.StatusText(status),
		User:    user,
		Message: message,
	})
}
