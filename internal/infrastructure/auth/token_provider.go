// Package auth resolves bearer tokens issued by the external identity provider.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"go.uber.org/zap"
)

type tokenEntry struct {
	digest [sha256.Size]byte
	userID string
}

// StaticTokenProvider maps configured tokens to user ids
type StaticTokenProvider struct {
	entries []tokenEntry
	logger  *zap.Logger
}

// NewStaticTokenProvider creates a provider from a token to user id table.
// Blank tokens and user ids are ignored.
func NewStaticTokenProvider(tokens map[string]string, logger *zap.Logger) *StaticTokenProvider {
	p := &StaticTokenProvider{logger: logger}
	for token, userID := range tokens {
		token = strings.TrimSpace(token)
		userID = strings.TrimSpace(userID)
		if token == "" || userID == "" {
			continue
		}
		p.entries = append(p.entries, tokenEntry{digest: sha256.Sum256([]byte(token)), userID: userID})
	}
	return p
}

// Resolve compares token against every entry so timing does not depend on which one matches
func (p *StaticTokenProvider) Resolve(_ context.Context, token string) (*port.Identity, error) {
	if token == "" {
		return nil, port.ErrInvalidToken
	}

	digest := sha256.Sum256([]byte(token))
	userID := ""
	for _, e := range p.entries {
		if subtle.ConstantTimeCompare(digest[:], e.digest[:]) == 1 {
			userID = e.userID
		}
	}

	if userID == "" {
		p.logger.Debug("Unknown bearer token")
		return nil, port.ErrInvalidToken
	}
	return &port.Identity{UserID: userID}, nil
}

// Len returns the number of configured tokens
func (p *StaticTokenProvider) Len() int {
	return len(p.entries)
}

var _ port.IdentityProvider = (*StaticTokenProvider)(nil)
