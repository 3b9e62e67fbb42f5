package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// CookieName is the cookie that carries the session token.
const CookieName = "token"

// ErrNoSession means the request carries no usable session: no cookie, a bad
// or expired token, or a revoked one.
var ErrNoSession = errors.New("auth: no session")

// Sessions ties tokens, revocations and the session cookie together.
type Sessions struct {
	tokens  *TokenService
	revoked RevocationStore
	secure  bool
}

// NewSessions builds a session manager. secure sets the cookie's Secure flag;
// enable it whenever the site is served over HTTPS.
func NewSessions(tokens *TokenService, revoked RevocationStore, secure bool) *Sessions {
	return &Sessions{tokens: tokens, revoked: revoked, secure: secure}
}

// Issue starts a session for userID by setting the session cookie on w.
func (s *Sessions) Issue(w http.ResponseWriter, userID string) error {
	token, claims, err := s.tokens.Generate(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Resolve returns the claims of the session on r. Any reason the session is
// unusable yields ErrNoSession; only a failing revocation backend is reported
// as a different error.
func (s *Sessions) Resolve(r *http.Request) (*Claims, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	claims, err := s.tokens.Validate(cookie.Value)
	if err != nil {
		return nil, ErrNoSession
	}

	revoked, err := s.revoked.IsRevoked(r.Context(), claims.TokenID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrNoSession
	}
	return claims, nil
}

// End logs the request's session out. It always clears the cookie, and is a
// no-op for anonymous requests, so calling it twice is harmless.
func (s *Sessions) End(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	claims, err := s.Resolve(r)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.revoked.Revoke(r.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("auth: ending session: %w", err)
	}
	return nil
}
