package handler

import (
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/todolists/internal/auth"
	"github.com/sakif/todolists/internal/logging"
	"github.com/sakif/todolists/internal/repository/sqlite"
	"github.com/sakif/todolists/internal/service"
	"github.com/sakif/todolists/web"
)

const testPassword = "correct-horse-battery"

type testApp struct {
	router   http.Handler
	users    *service.AuthService
	lists    *service.ListService
	authH    *AuthHandler
	sessions *auth.Sessions
}

// newTestApp wires the handlers to an in-memory database with the same
// routes the server mounts.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logging.Discard()
	users := service.NewAuthService(db, auth.NewPasswordServiceWithCost(bcrypt.MinCost), auth.NewPasswordPolicy(), nil, logger)
	lists := service.NewListService(db, nil, logger)
	sharing := service.NewSharingService(db, db, service.SharingOptions{}, nil, logger)

	render, err := NewRenderer(web.Templates(), logger)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("handler-test-secret-0123", time.Hour)
	require.NoError(t, err)
	sessions := auth.NewSessions(tokens, auth.NewMemoryRevocations(), false)

	site := NewSite(render, users, false, logger)
	listH := NewListHandler(site, lists, sharing)
	authH := NewAuthHandler(site, sessions, nil)
	apiH := NewAPIHandler(lists, users, logger)

	r := chi.NewRouter()
	r.Use(auth.LoadSession(sessions, logger))
	r.Get("/", listH.HandleHome)
	r.Post("/lists/new/", listH.HandleNewList)
	r.Get("/lists/{listID}/", listH.HandleViewList)
	r.Post("/lists/{listID}/", listH.HandleAddItem)
	r.With(auth.RequireLogin(LoginURL)).Post("/lists/{listID}/share/", listH.HandleShareList)
	r.Post("/lists/{listID}/items/{itemID}/delete/", listH.HandleDeleteItem)
	r.Get("/lists/users/{email}/", listH.HandleMyLists)
	r.Get("/login/", authH.HandleLoginPage)
	r.Post("/login/", authH.HandleLogin)
	r.Get("/logout/", authH.HandleLogout)
	r.Get("/signup/", authH.HandleSignupPage)
	r.Post("/signup/", authH.HandleSignup)
	r.Get("/api/lists/{listID}", apiH.HandleGetList)
	r.Get("/api/users/{email}/lists", apiH.HandleUserLists)

	return &testApp{router: r, users: users, lists: lists, authH: authH, sessions: sessions}
}

func (a *testApp) get(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) post(t *testing.T, path string, values url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// login signs email up and logs in through the form, returning the session
// cookie.
func (a *testApp) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	_, err := a.users.Signup(t.Context(), service.SignupRequest{
		Email: email, Password: testPassword, PasswordConfirmation: testPassword,
	})
	require.NoError(t, err)

	rec := a.post(t, "/login/", url.Values{"email": {email}, "password": {testPassword}})
	require.Equal(t, http.StatusFound, rec.Code)
	c := sessionCookie(rec)
	require.NotNil(t, c, "login did not set the session cookie")
	return c
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

// newList creates a list through the form and returns its URL.
func (a *testApp) newList(t *testing.T, text string, cookies ...*http.Cookie) string {
	t.Helper()
	rec := a.post(t, "/lists/new/", url.Values{"text": {text}}, cookies...)
	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/lists/"), "Location = %q", loc)
	return loc
}

// escaped is how html/template renders msg.
func escaped(msg string) string {
	return html.EscapeString(msg)
}
