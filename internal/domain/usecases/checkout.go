package usecases

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
	"github.com/0xcro3dile/chatcart/internal/domain/ports"
)

// Checkout places an order for the cart and empties it on success.
type Checkout struct {
	cart     *CartStore
	service  ports.CheckoutService
	identity ports.IdentitySource
	logger   *zap.Logger
}

// NewCheckout creates a Checkout with injected dependencies.
func NewCheckout(cart *CartStore, service ports.CheckoutService, identity ports.IdentitySource, logger *zap.Logger) *Checkout {
	return &Checkout{
		cart:     cart,
		service:  service,
		identity: identity,
		logger:   orNop(logger),
	}
}

// PlaceOrder submits the cart. An empty cart or a missing principal is
// rejected before any network call. The cart is kept when the order fails.
func (uc *Checkout) PlaceOrder(ctx context.Context) (*entities.Order, error) {
	items := uc.cart.Items()
	if len(items) == 0 {
		return nil, entities.ErrEmptyCart
	}
	if currentPrincipal(ctx, uc.identity) == nil {
		return nil, entities.ErrUnauthenticated
	}

	order, err := uc.service.Checkout(ctx, items)
	if err != nil {
		uc.logger.Warn("checkout failed", zap.Int("lines", len(items)), zap.Error(err))
		return nil, fmt.Errorf("checkout: %w", err)
	}

	uc.cart.Clear(ctx)
	uc.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.Float64("total_amount", order.TotalAmount))
	return order, nil
}
