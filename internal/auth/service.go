package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/pharmapos/pharmapos/internal/shared"
	"github.com/pharmapos/pharmapos/internal/users"
)

// CredentialsPort resolves accounts for login.
type CredentialsPort interface {
	FindByUsername(ctx context.Context, username string) (users.Credentials, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo CredentialsPort
}

// NewService constructs a new Service.
func NewService(repo CredentialsPort) *Service {
	return &Service{repo: repo}
}

// Authenticate validates username/password credentials. Every failure path
// returns the same error so callers cannot probe for valid usernames.
func (s *Service) Authenticate(ctx context.Context, username, password string) (users.User, error) {
	creds, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !creds.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return creds.User, nil
}
