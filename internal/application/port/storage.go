package port

import (
	"context"
	"io"
)

// FileStorage stores files under a base directory addressed by relative paths
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}

// ReportRow is one expense line of an exported report
type ReportRow struct {
	ExpenseDate       string
	Employee          string
	Category          string
	Vendor            string
	Description       string
	Amount            float64
	Currency          string
	ConvertedAmount   float64
	ConvertedCurrency string
	Status            string
}

// ReportWriter renders report rows to w
type ReportWriter interface {
	WriteExpenseReport(ctx context.Context, w io.Writer, title string, rows []ReportRow) error
	ContentType() string
	FileExtension() string
}
