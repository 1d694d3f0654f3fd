package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/expense-approvals/internal/application/dispatcher"
	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/event"
	"github.com/garyjia/expense-approvals/pkg/utils"
)

// Identity is the authenticated caller
type Identity struct {
	UserID    string
	CompanyID string
	Role      entity.Role
	Email     string
}

// IsAdmin reports whether the caller administers their company
func (i *Identity) IsAdmin() bool {
	return i.Role == entity.RoleAdmin
}

// AuthService resolves callers and handles password recovery
type AuthService interface {
	// Authenticate resolves an Authorization header value ("Bearer <token>")
	Authenticate(ctx context.Context, authorization string) (*Identity, error)

	// Recover issues a temporary password for email and hands it to the notifiers.
	// The password is never returned.
	Recover(ctx context.Context, email string) error
}

type authServiceImpl struct {
	provider   port.IdentityProvider
	userRepo   port.UserRepository
	dispatcher dispatcher.Dispatcher
	generate   func() (string, error)
	logger     Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	provider port.IdentityProvider,
	userRepo port.UserRepository,
	d dispatcher.Dispatcher,
	logger Logger,
) AuthService {
	return &authServiceImpl{
		provider:   provider,
		userRepo:   userRepo,
		dispatcher: d,
		generate:   utils.GenerateTempPassword,
		logger:     orNop(logger),
	}
}

func (s *authServiceImpl) Authenticate(ctx context.Context, authorization string) (*Identity, error) {
	token, ok := bearerToken(authorization)
	if !ok {
		return nil, Unauthorized("Unauthorized")
	}
	if s.provider == nil {
		return nil, Unauthorized("Unauthorized")
	}

	resolved, err := s.provider.Resolve(ctx, token)
	if errors.Is(err, port.ErrInvalidToken) {
		return nil, Unauthorized("Unauthorized")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	user, err := s.userRepo.GetByID(ctx, resolved.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, NotFound("User profile not found")
	}

	return &Identity{
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Role:      user.Role,
		Email:     user.Email,
	}, nil
}

func (s *authServiceImpl) Recover(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return BadRequest("Email is required")
	}

	password, err := s.generate()
	if err != nil {
		return fmt.Errorf("failed to generate temporary password: %w", err)
	}

	s.logger.Info("Temporary password issued", "email", email)
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypePasswordReset, "", "", map[string]interface{}{
			event.KeyEmail:        email,
			event.KeyTempPassword: password,
		}))
	}
	return nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
