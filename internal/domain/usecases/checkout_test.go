package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

func TestCheckout_EmptyCart(t *testing.T) {
	service := &fakeCheckout{}
	uc := NewCheckout(newTestCart(t, newMemStore()), service, signedIn(), nil)

	_, err := uc.PlaceOrder(context.Background())

	assert.ErrorIs(t, err, entities.ErrEmptyCart)
	assert.Equal(t, "Your cart is empty!", entities.DisplayMessage(err))
	assert.Nil(t, service.got)
}

func TestCheckout_RequiresPrincipal(t *testing.T) {
	ctx := context.Background()
	cart := newTestCart(t, newMemStore())
	cart.AddItem(ctx, entities.Product{ID: "1", Price: 10})
	service := &fakeCheckout{}
	uc := NewCheckout(cart, service, &fakeIdentity{}, nil)

	_, err := uc.PlaceOrder(ctx)

	assert.ErrorIs(t, err, entities.ErrUnauthenticated)
	assert.Nil(t, service.got)
	assert.Equal(t, 1, cart.ItemCount())
}

func TestCheckout_SuccessClearsCart(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cart := newTestCart(t, store)
	cart.AddItem(ctx, entities.Product{ID: "1", Name: "Laptop Pro X", Price: 1200})
	cart.AddItem(ctx, entities.Product{ID: "3", Name: "Wireless Mouse", Price: 25})
	service := &fakeCheckout{order: &entities.Order{ID: "17", TotalAmount: 1225, Message: "Order placed successfully!"}}
	uc := NewCheckout(cart, service, signedIn(), nil)

	order, err := uc.PlaceOrder(ctx)

	require.NoError(t, err)
	assert.Equal(t, entities.ID("17"), order.ID)
	assert.Len(t, service.got, 2)
	assert.Empty(t, cart.Items())
	_, persisted := store.raw(CartKey)
	assert.False(t, persisted)
}

func TestCheckout_FailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	cart := newTestCart(t, newMemStore())
	cart.AddItem(ctx, entities.Product{ID: "1", Price: 10})
	uc := NewCheckout(cart, &fakeCheckout{err: &entities.RemoteError{Status: 400, Message: "Product 1 not found."}}, signedIn(), nil)

	_, err := uc.PlaceOrder(ctx)

	var remote *entities.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Product 1 not found.", entities.DisplayMessage(err))
	assert.Equal(t, 1, cart.ItemCount())
}
