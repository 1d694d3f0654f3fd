package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const userColumns = `id, company_id, name, email, role, manager_id, created_at`

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a user; duplicate emails within a company violate a unique key
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		user.ID,
		user.CompanyID,
		user.Name,
		user.Email,
		string(user.Role),
		nullString(user.ManagerID),
		user.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID returns nil, nil when the user does not exist
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail matches email case-insensitively within one company
func (r *UserRepository) GetByEmail(ctx context.Context, companyID, email string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE company_id = ? AND email = ? COLLATE NOCASE`

	user, err := scanUser(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, companyID, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by email", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListByEmail returns every user with email, in any company
func (r *UserRepository) ListByEmail(ctx context.Context, email string) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? COLLATE NOCASE ORDER BY rowid ASC`
	return r.list(ctx, query, email)
}

// ListByCompany returns users in insertion order
func (r *UserRepository) ListByCompany(ctx context.Context, companyID string) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE company_id = ? ORDER BY rowid ASC`
	return r.list(ctx, query, companyID)
}

// ListByManager returns the direct reports of managerID
func (r *UserRepository) ListByManager(ctx context.Context, managerID string) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE manager_id = ? ORDER BY rowid ASC`
	return r.list(ctx, query, managerID)
}

func (r *UserRepository) list(ctx context.Context, query string, arg string) ([]*entity.User, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, arg)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*entity.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func scanUser(row rowScanner) (*entity.User, error) {
	var user entity.User
	var role string
	var managerID sql.NullString

	if err := row.Scan(
		&user.ID,
		&user.CompanyID,
		&user.Name,
		&user.Email,
		&role,
		&managerID,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}

	user.Role = entity.Role(role)
	user.ManagerID = stringPtr(managerID)
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
