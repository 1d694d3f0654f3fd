package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/google/uuid"
)

// DefaultCurrency is used for signups from countries without a mapping
const DefaultCurrency = "USD"

type signupCountry struct {
	code     string
	currency string
}

var signupCountries = map[string]signupCountry{
	"USA":            {"US", "USD"},
	"United States":  {"US", "USD"},
	"United Kingdom": {"GB", "GBP"},
	"Germany":        {"DE", "EUR"},
	"France":         {"FR", "EUR"},
	"Spain":          {"ES", "EUR"},
	"Italy":          {"IT", "EUR"},
	"Japan":          {"JP", "JPY"},
	"China":          {"CN", "CNY"},
	"India":          {"IN", "INR"},
	"Brazil":         {"BR", "BRL"},
	"Mexico":         {"MX", "MXN"},
	"Singapore":      {"SG", "SGD"},
	"Canada":         {"CA", "CAD"},
	"Australia":      {"AU", "AUD"},
}

// CurrencyForCountry maps a country name to its currency, defaulting to USD
func CurrencyForCountry(country string) string {
	if c, ok := signupCountries[strings.TrimSpace(country)]; ok {
		return c.currency
	}
	return DefaultCurrency
}

// countryCodeFor returns the ISO code of a known country name, or "" otherwise
func countryCodeFor(country string) string {
	return signupCountries[strings.TrimSpace(country)].code
}

// UserView is a user with the display name of their manager
type UserView struct {
	*entity.User
	ManagerName *string `json:"managerName"`
}

// UserProfile pairs a user with their company
type UserProfile struct {
	User    *entity.User    `json:"user"`
	Company *entity.Company `json:"company"`
}

// CreateUserInput describes a new company member
type CreateUserInput struct {
	CompanyID string
	Name      string
	Email     string
	Role      entity.Role
	ManagerID string
}

// BootstrapInput creates a company together with its first admin
type BootstrapInput struct {
	CompanyName     string
	CountryCode     string
	DefaultCurrency string
	Name            string
	Email           string
}

// SignupInput is a self-service company registration
type SignupInput struct {
	CompanyName string
	Country     string
	Name        string
	Email       string
}

// UserService manages companies and their members
type UserService interface {
	ListUsers(ctx context.Context, companyID string) ([]UserView, error)
	LookupByEmail(ctx context.Context, companyID, email string) (*UserProfile, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*entity.User, error)
	Bootstrap(ctx context.Context, input BootstrapInput) (*UserProfile, error)
	Signup(ctx context.Context, input SignupInput) (*UserProfile, error)
	Profile(ctx context.Context, userID string) (*UserProfile, error)
}

type userServiceImpl struct {
	companyRepo port.CompanyRepository
	userRepo    port.UserRepository
	txManager   port.TransactionManager
	logger      Logger
}

// NewUserService creates a new UserService
func NewUserService(
	companyRepo port.CompanyRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	logger Logger,
) UserService {
	return &userServiceImpl{
		companyRepo: companyRepo,
		userRepo:    userRepo,
		txManager:   txManager,
		logger:      orNop(logger),
	}
}

func (s *userServiceImpl) ListUsers(ctx context.Context, companyID string) ([]UserView, error) {
	if companyID == "" {
		return []UserView{}, nil
	}

	users, err := s.userRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		view := UserView{User: u}
		if u.ManagerID != nil {
			if name, ok := names[*u.ManagerID]; ok {
				view.ManagerName = &name
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *userServiceImpl) LookupByEmail(ctx context.Context, companyID, email string) (*UserProfile, error) {
	company, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	if company == nil {
		return nil, NotFound("Company not found")
	}

	user, err := s.userRepo.GetByEmail(ctx, companyID, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, NotFound("User not found")
	}

	return &UserProfile{User: user, Company: company}, nil
}

func (s *userServiceImpl) CreateUser(ctx context.Context, input CreateUserInput) (*entity.User, error) {
	if !input.Role.IsValid() {
		return nil, BadRequest("role must be admin, manager or employee")
	}

	var created *entity.User
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		company, err := s.companyRepo.GetByID(txCtx, input.CompanyID)
		if err != nil {
			return fmt.Errorf("failed to get company: %w", err)
		}
		if company == nil {
			return NotFound("Company not found")
		}

		user := &entity.User{
			ID:        uuid.NewString(),
			CompanyID: company.ID,
			Name:      strings.TrimSpace(input.Name),
			Email:     strings.TrimSpace(input.Email),
			Role:      input.Role,
		}

		if input.ManagerID != "" {
			manager, err := s.userRepo.GetByID(txCtx, input.ManagerID)
			if err != nil {
				return fmt.Errorf("failed to get manager: %w", err)
			}
			if manager == nil || manager.CompanyID != company.ID {
				return BadRequest("Manager must belong to the same company")
			}
			managerID := manager.ID
			user.ManagerID = &managerID
		}

		if err := s.insertUser(txCtx, user); err != nil {
			return err
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User created", "user_id", created.ID, "company_id", created.CompanyID, "role", created.Role)
	return created, nil
}

func (s *userServiceImpl) Bootstrap(ctx context.Context, input BootstrapInput) (*UserProfile, error) {
	currency := strings.ToUpper(strings.TrimSpace(input.DefaultCurrency))
	if currency == "" {
		currency = DefaultCurrency
	}

	company := &entity.Company{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(input.CompanyName),
		CountryCode:     strings.ToUpper(strings.TrimSpace(input.CountryCode)),
		DefaultCurrency: currency,
	}
	admin := &entity.User{
		ID:        uuid.NewString(),
		CompanyID: company.ID,
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.TrimSpace(input.Email),
		Role:      entity.RoleAdmin,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.companyRepo.Create(txCtx, company); err != nil {
			return fmt.Errorf("failed to create company: %w", err)
		}
		return s.insertUser(txCtx, admin)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Company bootstrapped", "company_id", company.ID, "admin_id", admin.ID)
	return &UserProfile{User: admin, Company: company}, nil
}

func (s *userServiceImpl) Signup(ctx context.Context, input SignupInput) (*UserProfile, error) {
	return s.Bootstrap(ctx, BootstrapInput{
		CompanyName:     input.CompanyName,
		CountryCode:     countryCodeFor(input.Country),
		DefaultCurrency: CurrencyForCountry(input.Country),
		Name:            input.Name,
		Email:           input.Email,
	})
}

func (s *userServiceImpl) Profile(ctx context.Context, userID string) (*UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, NotFound("User profile not found")
	}

	company, err := s.companyRepo.GetByID(ctx, user.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	if company == nil {
		return nil, NotFound("Company not found")
	}

	return &UserProfile{User: user, Company: company}, nil
}

// insertUser enforces email uniqueness within the company before writing
func (s *userServiceImpl) insertUser(ctx context.Context, user *entity.User) error {
	existing, err := s.userRepo.GetByEmail(ctx, user.CompanyID, user.Email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return Conflict("A user with this email already exists", nil)
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}
