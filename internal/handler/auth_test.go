package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/todolists/internal/validation"
)

func TestSignup_RedirectsToLogin(t *testing.T) {
	app := newTestApp(t)

	rec := app.post(t, "/signup/", url.Values{
		"email":                 {"edith@example.com"},
		"password":              {testPassword},
		"password_confirmation": {testPassword},
	})

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, LoginURL, rec.Header().Get("Location"))
	assert.Nil(t, sessionCookie(rec), "signup must not log in")

	_, err := app.users.UserByEmail(t.Context(), "edith@example.com")
	assert.NoError(t, err)
}

func TestSignup_MismatchRerendersForm(t *testing.T) {
	app := newTestApp(t)

	rec := app.post(t, "/signup/", url.Values{
		"email":                 {"edith@example.com"},
		"password":              {testPassword},
		"password_confirmation": {"something-else-entirely"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, escaped(validation.PasswordMismatchError))
	assert.Contains(t, body, `value="edith@example.com"`)
	assert.NotContains(t, body, testPassword)
}

func TestSignup_PasswordOverBcryptLimitRerendersForm(t *testing.T) {
	app := newTestApp(t)
	long := strings.Repeat("correct-horse-", 6) // 84 bytes

	rec := app.post(t, "/signup/", url.Values{
		"email":                 {"edith@example.com"},
		"password":              {long},
		"password_confirmation": {long},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), escaped(validation.PasswordTooLongError))

	_, err := app.users.UserByEmail(t.Context(), "edith@example.com")
	assert.Error(t, err, "nothing saved")
}

func TestLogin_WrongPasswordShowsNonFieldError(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "edith@example.com")

	rec := app.post(t, "/login/", url.Values{"email": {"edith@example.com"}, "password": {"wrong-password"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), escaped(validation.InvalidLoginError))
	assert.Nil(t, sessionCookie(rec))
}

func TestLogin_UnknownEmailLooksLikeWrongPassword(t *testing.T) {
	app := newTestApp(t)

	rec := app.post(t, "/login/", url.Values{"email": {"ghost@example.com"}, "password": {testPassword}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), escaped(validation.InvalidLoginError))
}

func TestLogin_ShowsUserInNavbar(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, "edith@example.com")

	body := app.get(t, "/", cookie).Body.String()

	assert.Contains(t, body, "Logged in as edith@example.com")
	assert.Contains(t, body, `href="/lists/users/edith@example.com/"`)
}

func TestLogout_RevokesSession(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, "edith@example.com")

	rec := app.get(t, "/logout/", cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	// replaying the old cookie no longer works
	body := app.get(t, "/", cookie).Body.String()
	assert.NotContains(t, body, "Logged in as")
	loc := app.newList(t, "Buy milk")
	rec = app.post(t, loc+"share/", url.Values{"sharee": {"edith@example.com"}}, cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, LoginURL, rec.Header().Get("Location"))
}

func TestGitHubCallback_RejectsBadState(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		cookie *http.Cookie
		query  string
	}{
		{"no cookie", nil, "?state=abc&code=x"},
		{"mismatch", &http.Cookie{Name: oauthStateCookie, Value: "abc"}, "?state=xyz&code=x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/login/github/callback/"+tt.query, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()

			app.authH.HandleGitHubCallback(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGitHubCallback_DeniedShowsLoginForm(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/login/github/callback/?state=abc&error=access_denied", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "abc"})
	rec := httptest.NewRecorder()

	app.authH.HandleGitHubCallback(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "GitHub sign-in was cancelled.")
}
