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

// CompanyRepository implements port.CompanyRepository
type CompanyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sql.DB, logger *zap.Logger) port.CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a company, assigning an id and creation time when absent
func (r *CompanyRepository) Create(ctx context.Context, company *entity.Company) error {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	if company.CreatedAt.IsZero() {
		company.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO companies (id, name, country_code, default_currency, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		company.ID,
		company.Name,
		company.CountryCode,
		company.DefaultCurrency,
		company.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create company", zap.String("id", company.ID), zap.Error(err))
		return fmt.Errorf("failed to create company: %w", err)
	}

	return nil
}

// GetByID returns nil, nil when the company does not exist
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	query := `
		SELECT id, name, country_code, default_currency, created_at
		FROM companies
		WHERE id = ?
	`

	var company entity.Company
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&company.ID,
		&company.Name,
		&company.CountryCode,
		&company.DefaultCurrency,
		&company.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	company.CreatedAt = company.CreatedAt.UTC()
	return &company, nil
}

var _ port.CompanyRepository = (*CompanyRepository)(nil)
