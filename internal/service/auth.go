package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/todolists/internal/apperror"
	"github.com/sakif/todolists/internal/auth"
	"github.com/sakif/todolists/internal/metrics"
	"github.com/sakif/todolists/internal/model"
	"github.com/sakif/todolists/internal/repository"
	"github.com/sakif/todolists/internal/validation"
)

// AuthService handles accounts: signing up and checking credentials.
// Sessions (cookies, revocation) are an HTTP concern and live in auth.Sessions.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	policy    validation.PasswordChecker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewAuthService wires an AuthService. policy and m may be nil.
func NewAuthService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	policy validation.PasswordChecker,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		policy:    policy,
		metrics:   m,
		logger:    logger,
	}
}

// SignupRequest is what the signup form submits.
type SignupRequest struct {
	Email                string
	Password             string
	PasswordConfirmation string
}

// Signup creates an account. It does not log the new user in.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*model.User, error) {
	email := validation.Clean(req.Email)

	taken := false
	if email != "" {
		_, err := s.users.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			taken = true
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, fmt.Errorf("service/auth: checking email: %w", err)
		}
	}

	errs := validation.Signup(validation.SignupInput{
		Email:                email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		EmailTaken:           taken,
	}, s.policy)
	if !errs.OK() {
		s.metrics.ValidationFailed("signup")
		return nil, errs.Err()
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.metrics.ValidationFailed("signup")
			return nil, validation.Single(validation.FieldEmail, validation.Duplicate, validation.DuplicateEmailError)
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.metrics.SignedUp()
	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return user, nil
}

// Login checks email and password. Any mismatch, including an unknown
// email, yields the same non-field error so the form doesn't reveal which
// accounts exist. The error matches both apperror.ErrValidation and
// apperror.ErrUnauthenticated.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = validation.Clean(email)
	if errs := validation.Check(validation.LoginRules, map[string]string{
		validation.FieldEmail:    email,
		validation.FieldPassword: password,
	}); !errs.OK() {
		s.metrics.LoginAttempt("password", false)
		return nil, errs.Err()
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}
	if err == nil {
		err = s.passwords.Verify(user.PasswordHash, password)
		if err != nil && !errors.Is(err, auth.ErrWrongPassword) {
			return nil, fmt.Errorf("service/auth: %w", err)
		}
	}
	if err != nil {
		s.metrics.LoginAttempt("password", false)
		s.logger.Info("login failed")
		return nil, invalidLogin()
	}

	s.metrics.LoginAttempt("password", true)
	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return user, nil
}

// LoginGitHub signs in the existing account whose email is the verified
// GitHub email. It never creates accounts.
func (s *AuthService) LoginGitHub(ctx context.Context, githubEmail string) (*model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, githubEmail)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.metrics.LoginAttempt("github", false)
			return nil, apperror.Unauthenticated("No account uses your GitHub email address. Sign up first.")
		}
		return nil, fmt.Errorf("service/auth: looking up GitHub user: %w", err)
	}

	s.metrics.LoginAttempt("github", true)
	s.logger.Info("user logged in via GitHub", slog.String("userID", user.ID))
	return user, nil
}

// UserByID returns the account with the given ID.
func (s *AuthService) UserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.NotFound("user", id)
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// UserByEmail returns the account registered under email.
func (s *AuthService) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user by email: %w", err)
	}
	return user, nil
}

func invalidLogin() error {
	errs := validation.New()
	errs.Add(validation.NonField, validation.Credentials, validation.InvalidLoginError)
	return errs.ErrCausedBy(apperror.ErrUnauthenticated)
}
