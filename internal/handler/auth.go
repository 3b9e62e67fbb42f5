package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/todolists/internal/apperror"
	"github.com/sakif/todolists/internal/auth"
	"github.com/sakif/todolists/internal/form"
	"github.com/sakif/todolists/internal/model"
	"github.com/sakif/todolists/internal/service"
	"github.com/sakif/todolists/internal/validation"
)

const oauthStateCookie = "oauth_state"

// AuthHandler manages signup, password login, GitHub login and logout.
//
//   - HandleLoginPage / HandleLogin   → GET/POST /login/
//   - HandleLogout                    → GET /logout/
//   - HandleSignupPage / HandleSignup → GET/POST /signup/
//   - HandleGitHubLogin               → GET /login/github/
//   - HandleGitHubCallback            → GET /login/github/callback/
//
// github is nil when no OAuth app is configured; the server then leaves the
// GitHub routes unmounted.
type AuthHandler struct {
	*Site
	sessions *auth.Sessions
	github   *auth.GitHubProvider
}

func NewAuthHandler(site *Site, sessions *auth.Sessions, github *auth.GitHubProvider) *AuthHandler {
	return &AuthHandler{Site: site, sessions: sessions, github: github}
}

func (h *AuthHandler) loginPage(user *model.User, f *form.Form) *Page {
	p := h.page(user, "Log in", "Log in")
	p.Form = f
	return p
}

func (h *AuthHandler) signupPage(user *model.User, f *form.Form) *Page {
	p := h.page(user, "Sign up", "Sign up")
	p.Form = f
	return p
}

// loginWithMessage re-renders the login form with a single non-field error.
func (h *AuthHandler) loginWithMessage(w http.ResponseWriter, msg string) {
	errs := validation.New()
	errs.Add(validation.NonField, validation.Credentials, msg)
	h.render.Render(w, http.StatusOK, "login", h.loginPage(nil, form.New().WithErrors(errs)))
}

func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	h.render.Render(w, http.StatusOK, "login", h.loginPage(user, form.New()))
}

// HandleLogin checks the submitted credentials and starts a session.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	user, err := h.users.Login(r.Context(),
		r.PostForm.Get(validation.FieldEmail),
		r.PostForm.Get(validation.FieldPassword),
	)
	if err != nil {
		if errs, ok := validation.FromError(err); ok {
			f := form.FromValues(r.PostForm).WithErrors(errs)
			h.render.Render(w, http.StatusOK, "login", h.loginPage(nil, f))
			return
		}
		h.fail(w, r, nil, err)
		return
	}

	if err := h.sessions.Issue(w, user.ID); err != nil {
		h.fail(w, r, nil, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout ends the session. The token is revoked, not just forgotten
// by the browser, so a copied cookie stops working too.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(w, r); err != nil {
		h.logger.Error("revoking session", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *AuthHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	h.render.Render(w, http.StatusOK, "signup", h.signupPage(user, form.New()))
}

// HandleSignup creates an account and sends the visitor to the login page.
// Signing up does not log in.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	_, err := h.users.Signup(r.Context(), service.SignupRequest{
		Email:                r.PostForm.Get(validation.FieldEmail),
		Password:             r.PostForm.Get(validation.FieldPassword),
		PasswordConfirmation: r.PostForm.Get(validation.FieldPasswordConfirmation),
	})
	if err != nil {
		if errs, ok := validation.FromError(err); ok {
			f := form.FromValues(r.PostForm).WithErrors(errs)
			h.render.Render(w, http.StatusOK, "signup", h.signupPage(nil, f))
			return
		}
		h.fail(w, r, nil, err)
		return
	}

	http.Redirect(w, r, LoginURL, http.StatusFound)
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived cookie and into the authorization
// URL. The callback only proceeds when both match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the account's verified primary email
//  3. Find the existing account with that email
//  4. Start a session and go home
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("github callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		h.loginWithMessage(w, "GitHub sign-in was cancelled.")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	email, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrNoVerifiedEmail) {
			h.loginWithMessage(w, "Your GitHub account has no verified email address.")
			return
		}
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	user, err := h.users.LoginGitHub(r.Context(), email)
	if err != nil {
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrUnauthenticated) && errors.As(err, &appErr) {
			h.loginWithMessage(w, appErr.Message)
			return
		}
		h.fail(w, r, nil, err)
		return
	}

	if err := h.sessions.Issue(w, user.ID); err != nil {
		h.fail(w, r, nil, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
