package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/chatcart/internal/adapters/kvstore"
	"github.com/0xcro3dile/chatcart/internal/domain/entities"
	"github.com/0xcro3dile/chatcart/internal/domain/usecases"
)

type fakeIdentity struct{ principal *entities.Principal }

func (f *fakeIdentity) Token(ctx context.Context) (string, error) {
	if f.principal == nil {
		return "", entities.ErrUnauthenticated
	}
	return "t", nil
}
func (f *fakeIdentity) Principal() *entities.Principal { return f.principal }
func (f *fakeIdentity) Known() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeBackend implements every storefront port for testing
type fakeBackend struct {
	reply       *entities.AssistantReply
	turns       []entities.HistoryTurn
	products    []entities.Product
	checkoutErr error
}

func (f *fakeBackend) Ask(ctx context.Context, query string) (*entities.AssistantReply, error) {
	if f.reply == nil {
		return &entities.AssistantReply{Response: "ok"}, nil
	}
	return f.reply, nil
}

func (f *fakeBackend) ChatHistory(ctx context.Context) ([]entities.HistoryTurn, error) {
	return f.turns, nil
}

func (f *fakeBackend) Products(ctx context.Context) ([]entities.Product, error) {
	return f.products, nil
}

func (f *fakeBackend) Checkout(ctx context.Context, items []entities.CartItem) (*entities.Order, error) {
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return &entities.Order{ID: "9", TotalAmount: 10, Message: "Order placed successfully!"}, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, backend *fakeBackend, id *fakeIdentity) (*httptest.Server, *usecases.CartStore) {
	t.Helper()
	clock := fixedClock{testNow}
	cart := usecases.NewCartStore(kvstore.NewMemoryStore(), clock, nil)
	chat := usecases.NewChatSession(kvstore.NewMemoryStore(), id, backend, backend, clock, nil)
	chat.Initialize(context.Background(), "Hi there")
	catalog := usecases.NewCatalog(chat, backend, id, nil)
	checkout := usecases.NewCheckout(cart, backend, id, nil)

	srv := NewServer(cart, chat, catalog, checkout, id, clock, nil, Options{Greeting: "Hi there"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, cart
}

func signedIn() *fakeIdentity {
	return &fakeIdentity{principal: &entities.Principal{UID: "u-1"}}
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBackend{}, signedIn())

	resp, body := do(t, http.MethodGet, ts.URL+"/api/health", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["signed_in"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_CartFlow(t *testing.T) {
	ts, cart := newTestServer(t, &fakeBackend{}, signedIn())

	resp, _ := do(t, http.MethodPost, ts.URL+"/cart/items", `{"id":1,"name":"Notebook","price":9.99}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	do(t, http.MethodPost, ts.URL+"/cart/items", `{"id":1,"name":"Notebook","price":9.99}`)

	_, body := do(t, http.MethodGet, ts.URL+"/cart", "")
	assert.Equal(t, "19.98", body["total"])
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, float64(1), body["lines"])

	_, body = do(t, http.MethodPut, ts.URL+"/cart/items/1", `{"quantity":"5"}`)
	assert.Equal(t, float64(5), body["count"])

	_, body = do(t, http.MethodPut, ts.URL+"/cart/items/1", `{"quantity":0}`)
	assert.Equal(t, float64(0), body["count"])
	assert.Empty(t, cart.Items())
}

func TestServer_AddItemValidation(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBackend{}, signedIn())

	resp, body := do(t, http.MethodPost, ts.URL+"/cart/items", `{"name":"no id"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = do(t, http.MethodPut, ts.URL+"/cart/items/1", `{"quantity":1.5}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_SetQuantityClampsHugeValues(t *testing.T) {
	ts, cart := newTestServer(t, &fakeBackend{}, signedIn())

	do(t, http.MethodPost, ts.URL+"/cart/items", `{"id":1,"name":"Notebook","price":1}`)
	resp, body := do(t, http.MethodPut, ts.URL+"/cart/items/1", `{"quantity":9223372036854775807}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(usecases.MaxQuantity), body["count"])

	do(t, http.MethodPost, ts.URL+"/cart/items", `{"id":1,"name":"Notebook","price":1}`)
	require.Len(t, cart.Items(), 1)
	assert.Equal(t, usecases.MaxQuantity, cart.Items()[0].Quantity)
}

func TestServer_CheckoutEmptyCart(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBackend{}, signedIn())

	resp, body := do(t, http.MethodPost, ts.URL+"/cart/checkout", "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Your cart is empty!", body["error"])
}

func TestServer_CheckoutRemoteFailure(t *testing.T) {
	backend := &fakeBackend{checkoutErr: &entities.RemoteError{Status: 400, Message: "Product 1 not found."}}
	ts, cart := newTestServer(t, backend, signedIn())
	cart.AddItem(context.Background(), entities.Product{ID: "1", Price: 10})

	resp, body := do(t, http.MethodPost, ts.URL+"/cart/checkout", "")

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "Checkout failed: Product 1 not found.", body["error"])
	assert.Equal(t, 1, cart.ItemCount())
}

func TestServer_CheckoutSuccess(t *testing.T) {
	ts, cart := newTestServer(t, &fakeBackend{}, signedIn())
	cart.AddItem(context.Background(), entities.Product{ID: "1", Price: 10})

	resp, body := do(t, http.MethodPost, ts.URL+"/cart/checkout", "")

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(9), body["order_id"])
	assert.Empty(t, cart.Items())
}

func TestServer_ChatSendAndSelectProducts(t *testing.T) {
	backend := &fakeBackend{reply: &entities.AssistantReply{
		Response: "Found these",
		Products: []entities.Product{{ID: "3", Name: "Wireless Mouse", Category: "Electronics", Price: 25}},
	}}
	ts, _ := newTestServer(t, backend, signedIn())

	resp, body := do(t, http.MethodPost, ts.URL+"/chat/messages", `{"text":"mouse"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 4)
	link := msgs[3].(map[string]any)
	assert.Equal(t, "products_link", link["type"])
	assert.Equal(t, float64(1), link["productsCount"])

	resp, _ = do(t, http.MethodPost, ts.URL+"/chat/messages/3/products", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = do(t, http.MethodGet, ts.URL+"/catalog?sort=price&order=desc", "")
	assert.Equal(t, float64(1), body["total"])

	resp, _ = do(t, http.MethodPost, ts.URL+"/chat/messages/1/products", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ChatEmptyMessage(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBackend{}, signedIn())

	resp, body := do(t, http.MethodPost, ts.URL+"/chat/messages", `{"text":"   "}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Please type a message.", body["error"])
}

func TestServer_ChatReset(t *testing.T) {
	backend := &fakeBackend{reply: &entities.AssistantReply{Response: "ok"}}
	ts, _ := newTestServer(t, backend, signedIn())
	do(t, http.MethodPost, ts.URL+"/chat/messages", `{"text":"hello"}`)

	_, body := do(t, http.MethodPost, ts.URL+"/chat/reset", "")

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi there", msgs[0].(map[string]any)["text"])
}

func TestServer_HistoryGroupsByDay(t *testing.T) {
	backend := &fakeBackend{turns: []entities.HistoryTurn{
		{Query: "a", Response: "b", Timestamp: "2024-05-01T10:00:00"},
		{Query: "c", Response: "d", Timestamp: "2024-05-02T09:00:00"},
	}}
	ts, _ := newTestServer(t, backend, signedIn())

	_, body := do(t, http.MethodGet, ts.URL+"/chat/history", "")

	assert.Equal(t, "loaded", body["state"])
	assert.Equal(t, true, body["visible"])
	items := body["items"].([]any)
	require.Len(t, items, 6)
	assert.Equal(t, "Yesterday", items[0].(map[string]any)["label"])
	assert.Equal(t, "Today", items[3].(map[string]any)["label"])

	resp, _ := do(t, http.MethodDelete, ts.URL+"/chat/history", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServer_HistorySignedOut(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBackend{}, &fakeIdentity{})

	_, body := do(t, http.MethodGet, ts.URL+"/chat/history", "")

	assert.Equal(t, "failed", body["state"])
	assert.Equal(t, "Please log in to view your past chat history.", body["error"])
}

func TestServer_CatalogFallsBackToFullList(t *testing.T) {
	backend := &fakeBackend{products: []entities.Product{
		{ID: "1", Name: "Laptop Pro X", Category: "Electronics", Price: 1200},
		{ID: "4", Name: "Python Programming Book", Category: "Books", Price: 45.99},
	}}
	ts, _ := newTestServer(t, backend, signedIn())

	_, body := do(t, http.MethodGet, ts.URL+"/catalog?category=Books", "")
	assert.Len(t, body["products"], 1)
	assert.Equal(t, []any{"Books", "Electronics"}, body["categories"])

	resp, body := do(t, http.MethodGet, ts.URL+"/catalog/4", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Python Programming Book", body["name"])

	resp, _ = do(t, http.MethodGet, ts.URL+"/catalog?min=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/catalog", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServer_CatalogSignedOut(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBackend{}, &fakeIdentity{})

	resp, body := do(t, http.MethodGet, ts.URL+"/catalog", "")

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Please log in to continue.", body["error"])
}
