package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active API key matches the given hash.
var ErrKeyNotFound = errors.New("api key not found")

// Scopes granted to API keys. User-facing endpoints authenticate via the
// upstream auth proxy instead; API keys cover machine collaborators.
const (
	// ScopeConfirmPayment lets the payment gateway signal payment success.
	ScopeConfirmPayment = "confirm_payment"
	// ScopeManageStock lets back-office tooling adjust stock counts.
	ScopeManageStock = "manage_stock"
)

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key grants the given scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
