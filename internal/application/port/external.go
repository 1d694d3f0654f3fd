package port

import (
	"context"
	"errors"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// ErrInvalidToken is returned by an IdentityProvider for unknown or malformed credentials
var ErrInvalidToken = errors.New("invalid bearer token")

// Identity is what an IdentityProvider knows about a credential
type Identity struct {
	UserID string
}

// IdentityProvider resolves bearer credentials issued by the external auth provider
type IdentityProvider interface {
	Resolve(ctx context.Context, token string) (*Identity, error)
}

// CountryDirectory lists reference countries with their currencies
type CountryDirectory interface {
	List(ctx context.Context) ([]entity.Country, error)
	// Refresh reloads the list from the upstream source regardless of cache age
	Refresh(ctx context.Context) error
}

// Notifier delivers a short text message to a person identified by email
type Notifier interface {
	Notify(ctx context.Context, email, message string) error
}

// ReceiptTextExtractor pulls plain text out of a stored receipt file.
// It returns ("", nil) for formats it does not read.
type ReceiptTextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// CategorySuggestion is the outcome of a category suggestion request
type CategorySuggestion struct {
	Category   string
	Confidence float64
}

// CategorySuggester proposes an expense category from receipt content
type CategorySuggester interface {
	SuggestCategory(ctx context.Context, text string, categories []string) (*CategorySuggestion, error)
}
