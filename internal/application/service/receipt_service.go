package service

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/pkg/utils"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// DefaultCategories are always offered to the category suggester
var DefaultCategories = []string{"Travel", "Meals", "Lodging", "Transport", "Software", "Office Supplies", "Other"}

// UploadReceiptInput is one uploaded receipt file
type UploadReceiptInput struct {
	CompanyID string
	Filename  string
	Content   []byte
}

// ReceiptResult is returned to the client after an upload
type ReceiptResult struct {
	ReceiptName       string  `json:"receiptName"`
	SuggestedCategory string  `json:"suggestedCategory,omitempty"`
	Confidence        float64 `json:"confidence,omitempty"`
}

// ReceiptService stores receipt files and proposes categories for them
type ReceiptService interface {
	Upload(ctx context.Context, input UploadReceiptInput) (*ReceiptResult, error)
	// Open returns a stored receipt of the company
	Open(ctx context.Context, companyID, receiptName string) (*ReceiptFile, error)
}

// ReceiptFile is a stored receipt read back for download
type ReceiptFile struct {
	Name    string
	Content []byte
}

type receiptServiceImpl struct {
	companyRepo port.CompanyRepository
	expenseRepo port.ExpenseRepository
	storage     port.FileStorage
	extractor   port.ReceiptTextExtractor
	suggester   port.CategorySuggester
	maxBytes    int64
	logger      Logger
}

// ReceiptDeps groups ReceiptService collaborators.
// Extractor and Suggester are optional.
type ReceiptDeps struct {
	CompanyRepo port.CompanyRepository
	ExpenseRepo port.ExpenseRepository
	Storage     port.FileStorage
	Extractor   port.ReceiptTextExtractor
	Suggester   port.CategorySuggester
	MaxBytes    int64
	Logger      Logger
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(deps ReceiptDeps) ReceiptService {
	return &receiptServiceImpl{
		companyRepo: deps.CompanyRepo,
		expenseRepo: deps.ExpenseRepo,
		storage:     deps.Storage,
		extractor:   deps.Extractor,
		suggester:   deps.Suggester,
		maxBytes:    deps.MaxBytes,
		logger:      orNop(deps.Logger),
	}
}

// ReceiptPath is the storage location of a receipt name within a company
func ReceiptPath(companyID, receiptName string) string {
	return path.Join("receipts", companyID, receiptName)
}

func (s *receiptServiceImpl) Upload(ctx context.Context, input UploadReceiptInput) (*ReceiptResult, error) {
	if len(input.Content) == 0 {
		return nil, BadRequest("file is required")
	}
	if s.maxBytes > 0 && int64(len(input.Content)) > s.maxBytes {
		return nil, BadRequest(fmt.Sprintf("Receipt exceeds the %d byte limit", s.maxBytes))
	}

	company, err := s.companyRepo.GetByID(ctx, input.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	if company == nil {
		return nil, NotFound("Company not found")
	}

	filename := utils.SanitizeFilename(input.Filename)
	name := uuid.NewString() + "-" + filename
	relPath := ReceiptPath(company.ID, name)

	if err := s.storage.Save(ctx, relPath, input.Content); err != nil {
		return nil, fmt.Errorf("failed to store receipt: %w", err)
	}
	s.logger.Info("Receipt stored", "company_id", company.ID, "receipt_name", name, "size", len(input.Content))

	result := &ReceiptResult{ReceiptName: name}
	if s.suggester == nil {
		return result, nil
	}

	text := s.extractText(ctx, relPath)
	if strings.TrimSpace(text) == "" {
		text = "Receipt file name: " + filename
	}

	categories, err := s.knownCategories(ctx, company.ID)
	if err != nil {
		if delErr := s.storage.Delete(ctx, relPath); delErr != nil {
			s.logger.Error("Failed to remove orphaned receipt", "path", relPath, "error", delErr)
		}
		return nil, err
	}

	suggestion, err := s.suggester.SuggestCategory(ctx, text, categories)
	if err != nil {
		// The receipt is stored; a failed suggestion only loses the hint
		s.logger.Error("Category suggestion failed", "company_id", company.ID, "receipt_name", name, "error", err)
		return result, nil
	}
	if suggestion != nil {
		result.SuggestedCategory = suggestion.Category
		result.Confidence = suggestion.Confidence
	}
	return result, nil
}

func (s *receiptServiceImpl) Open(ctx context.Context, companyID, receiptName string) (*ReceiptFile, error) {
	if companyID == "" || receiptName == "" {
		return nil, BadRequest("companyId and receipt name are required")
	}
	if receiptName != utils.SanitizeFilename(receiptName) || companyID != utils.SanitizeFilename(companyID) {
		return nil, BadRequest("Invalid receipt name")
	}

	relPath := ReceiptPath(companyID, receiptName)
	if !s.storage.Exists(ctx, relPath) {
		return nil, NotFound("Receipt not found")
	}

	content, err := s.storage.Read(ctx, relPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}
	return &ReceiptFile{Name: receiptName, Content: content}, nil
}

func (s *receiptServiceImpl) extractText(ctx context.Context, relPath string) string {
	if s.extractor == nil {
		return ""
	}
	text, err := s.extractor.ExtractText(ctx, s.storage.GetFullPath(relPath))
	if err != nil {
		s.logger.Error("Receipt text extraction failed", "path", relPath, "error", err)
		return ""
	}
	return text
}

// knownCategories merges categories already used by the company with the defaults
func (s *receiptServiceImpl) knownCategories(ctx context.Context, companyID string) ([]string, error) {
	expenses, err := s.expenseRepo.List(ctx, companyID, port.ExpenseFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	fold := cases.Fold()
	seen := make(map[string]struct{})
	var out []string
	add := func(c string) {
		c = strings.TrimSpace(c)
		key := fold.String(c)
		if c == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}

	for _, c := range DefaultCategories {
		add(c)
	}
	used := make([]string, 0, len(expenses))
	for _, e := range expenses {
		used = append(used, e.Category)
	}
	sort.Strings(used)
	for _, c := range used {
		add(c)
	}
	return out, nil
}
