package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/ean_catalog/internal/hash"
	"github.com/Skotchmaster/ean_catalog/internal/logging"
	"github.com/Skotchmaster/ean_catalog/internal/models"
	"github.com/Skotchmaster/ean_catalog/internal/repo"
	"github.com/Skotchmaster/ean_catalog/internal/session"
)

type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUserIfNotExists(ctx context.Context, u *models.User) error
}

type AuthService struct {
	Repo     UserStore
	Sessions *session.Manager
}

type LoginResult struct {
	Token   string
	Session *session.Session
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	user, err := s.Repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "reason", "unknown user")
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "reason", "user lookup failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !hash.CheckPassword(user.Password, password) {
		l.Warn("login_failed", "reason", "password mismatch")
		return nil, ErrInvalidCredentials
	}

	token, sess, err := s.Sessions.Issue(user.ID, user.Username, user.Nome)
	if err != nil {
		l.Error("login_failed", "reason", "cannot issue session", "error", err)
		return nil, err
	}

	return &LoginResult{Token: token, Session: sess}, nil
}

// SeedUser creates the user unless the username is taken. With hashed set the
// password is stored as a bcrypt hash instead of plaintext.
func (s *AuthService) SeedUser(ctx context.Context, username, password, nome string, hashed bool) (*models.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	stored := password
	if hashed {
		h, err := hash.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		stored = h
	}

	u := &models.User{Username: username, Password: stored, Nome: nome}
	if err := s.Repo.CreateUserIfNotExists(ctx, u); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			return nil, fmt.Errorf("%w: user %q", ErrConflict, username)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return u, nil
}
