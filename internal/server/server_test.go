package server

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/todolists/internal/config"
	"github.com/sakif/todolists/internal/logging"
)

// newTestServer runs the fully wired app over an in-memory database.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Path = ":memory:"
	cfg.Auth.JWTSecret = "server-test-secret-0123456789"
	cfg.Auth.BcryptCost = bcrypt.MinCost

	s, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// browser is an HTTP client with its own cookie jar, like one visitor's
// browser. It follows redirects.
func browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body(t, resp))
}

func TestStaticAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/static/style.css")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "#to-do_items")

	// make one list so the counter is non-zero
	resp, err = http.PostForm(ts.URL+"/lists/new/", url.Values{"text": {"Buy milk"}})
	require.NoError(t, err)
	body(t, resp)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	metrics := body(t, resp)
	assert.Contains(t, metrics, "todolists_lists_created_total 1")
	assert.Contains(t, metrics, `route="/lists/new/"`)
}

func TestEdithStartsAList(t *testing.T) {
	ts := newTestServer(t)
	edith := browser(t)

	resp, err := edith.PostForm(ts.URL+"/lists/new/", url.Values{"text": {"Buy peacock feathers"}})
	require.NoError(t, err)
	listURL := resp.Request.URL.String()
	assert.Contains(t, body(t, resp), "1: Buy peacock feathers")

	resp, err = edith.PostForm(listURL, url.Values{"text": {"Use peacock feathers to make a fly"}})
	require.NoError(t, err)
	page := body(t, resp)
	assert.Contains(t, page, "1: Buy peacock feathers")
	assert.Contains(t, page, "2: Use peacock feathers to make a fly")

	// a duplicate is refused and not saved
	resp, err = edith.PostForm(listURL, url.Values{"text": {"Buy peacock feathers"}})
	require.NoError(t, err)
	page = body(t, resp)
	assert.Contains(t, page, "You can&#39;t save a duplicate item")
	assert.Equal(t, 2, strings.Count(page, "<tr>"))

	// Francis, in another browser, gets a list of their own
	francis := browser(t)
	resp, err = francis.PostForm(ts.URL+"/lists/new/", url.Values{"text": {"Buy milk"}})
	require.NoError(t, err)
	assert.NotEqual(t, listURL, resp.Request.URL.String())
	page = body(t, resp)
	assert.Contains(t, page, "1: Buy milk")
	assert.NotContains(t, page, "peacock")
}

func TestSignupLoginShareLogout(t *testing.T) {
	ts := newTestServer(t)
	const password = "correct-horse-battery"

	signup := func(c *http.Client, email string) {
		resp, err := c.PostForm(ts.URL+"/signup/", url.Values{
			"email": {email}, "password": {password}, "password_confirmation": {password},
		})
		require.NoError(t, err)
		assert.Equal(t, "/login/", resp.Request.URL.Path)
		body(t, resp)
	}
	login := func(c *http.Client, email string) {
		resp, err := c.PostForm(ts.URL+"/login/", url.Values{"email": {email}, "password": {password}})
		require.NoError(t, err)
		assert.Equal(t, "/", resp.Request.URL.Path)
		assert.Contains(t, body(t, resp), "Logged in as "+email)
	}

	edith, oni := browser(t), browser(t)
	signup(edith, "edith@example.com")
	signup(oni, "oni@example.com")
	login(edith, "edith@example.com")
	login(oni, "oni@example.com")

	resp, err := edith.PostForm(ts.URL+"/lists/new/", url.Values{"text": {"Get help"}})
	require.NoError(t, err)
	listURL := resp.Request.URL.String()
	assert.Contains(t, body(t, resp), `<span id="list-owner">edith@example.com</span>`)

	resp, err = edith.PostForm(listURL+"share/", url.Values{"sharee": {"oni@example.com"}})
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), `<li class="list-sharee">oni@example.com</li>`)

	resp, err = oni.Get(ts.URL + "/lists/users/oni@example.com/")
	require.NoError(t, err)
	page := body(t, resp)
	assert.Contains(t, page, "<h1>My lists</h1>")
	assert.Contains(t, page, "Get help")

	// after logout the share form sends Edith to the login page
	resp, err = edith.Get(ts.URL + "/logout/")
	require.NoError(t, err)
	assert.NotContains(t, body(t, resp), "Logged in as")

	resp, err = edith.PostForm(listURL+"share/", url.Values{"sharee": {"oni@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, "/login/", resp.Request.URL.Path)
	body(t, resp)
}

func TestAPIWithCORS(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = ":memory:"
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Server.AllowedOrigins = []string{"https://app.example.com"}

	s, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	req := httptest.NewRequest(http.MethodGet, "/api/lists/nope", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "mysql"

	_, err := New(cfg, logging.Discard())
	assert.ErrorContains(t, err, "unknown database driver")
}
