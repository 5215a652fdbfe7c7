package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pharmapos/pharmapos/internal/rbac"
	"github.com/pharmapos/pharmapos/internal/shared"
)

const minPasswordLength = 8

// AuditPort records account mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps staff account business rules.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService constructs a new Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns accounts with pagination metadata.
func (s *Service) List(ctx context.Context, search string, page, perPage int) ([]User, shared.Pagination, error) {
	users, total, err := s.repo.List(ctx, search, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(page, perPage, total), nil
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Create registers a new staff account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, input CreateInput, actorID int64) (User, error) {
	if strings.TrimSpace(input.Username) == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if strings.TrimSpace(input.Name) == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(input.Password) < minPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	role, err := normalizeRole(input.Role)
	if err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user, err := s.repo.Create(ctx, User{
		Username: strings.TrimSpace(input.Username),
		Name:     strings.TrimSpace(input.Name),
		Role:     role,
		IsActive: true,
	}, string(hash))
	if err != nil {
		return User{}, err
	}

	s.recordAudit(ctx, actorID, "users:create", user.ID)
	return user, nil
}

// Update rewrites account fields, rehashing the password when one is given.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, actorID int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	role, err := normalizeRole(input.Role)
	if err != nil {
		return err
	}

	if err := s.repo.Update(ctx, id, User{
		Name:     strings.TrimSpace(input.Name),
		Role:     role,
		IsActive: input.IsActive,
	}); err != nil {
		return err
	}

	if input.Password != "" {
		if len(input.Password) < minPasswordLength {
			return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if err := s.repo.SetPassword(ctx, id, string(hash)); err != nil {
			return err
		}
	}

	s.recordAudit(ctx, actorID, "users:update", id)
	return nil
}

// Deactivate disables an account without deleting its history.
func (s *Service) Deactivate(ctx context.Context, id, actorID int64) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	user.IsActive = false
	if err := s.repo.Update(ctx, id, user); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "users:deactivate", id)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", userID),
	})
}

func normalizeRole(role string) (string, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	switch role {
	case rbac.RoleAdmin, rbac.RoleCashier:
		return role, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
}
