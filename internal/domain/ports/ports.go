// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"
	"time"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

// PersistentStore is a key/value store that survives store reconstruction.
// Each store instance is one scope (device or session); keys are not shared across scopes.
type PersistentStore interface {
	// Get returns the value for key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set overwrites the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// TokenSource mints short-lived bearer credentials.
type TokenSource interface {
	// Token returns a credential for the current principal, or
	// entities.ErrUnauthenticated when nobody is signed in.
	Token(ctx context.Context) (string, error)
}

// IdentitySource supplies the signed-in principal.
type IdentitySource interface {
	TokenSource

	// Principal returns the current principal, or nil when signed out.
	Principal() *entities.Principal

	// Known is closed once the identity source has determined whether a
	// principal exists. Before that, Principal may return nil spuriously,
	// so usecases wait on it before treating nil as signed out.
	Known() <-chan struct{}
}

// AssistantService is the conversational product-search assistant.
type AssistantService interface {
	Ask(ctx context.Context, query string) (*entities.AssistantReply, error)
}

// HistoryService returns the stored conversation turns of the principal.
type HistoryService interface {
	ChatHistory(ctx context.Context) ([]entities.HistoryTurn, error)
}

// CatalogService lists the full product catalog.
type CatalogService interface {
	Products(ctx context.Context) ([]entities.Product, error)
}

// CheckoutService places an order for the given cart lines.
type CheckoutService interface {
	Checkout(ctx context.Context, items []entities.CartItem) (*entities.Order, error)
}

// Clock provides the current instant (for testability).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
