package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

// memStore implements ports.PersistentStore for testing
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet bool
	failGet bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errors.New("disk unavailable")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("quota exceeded")
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) raw(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return string(v), ok
}

// fakeIdentity implements ports.IdentitySource for testing
type fakeIdentity struct {
	principal *entities.Principal
	known     chan struct{} // nil means already known
}

func signedIn() *fakeIdentity {
	return &fakeIdentity{principal: &entities.Principal{UID: "u-1", Email: "ada@example.com"}}
}

func (f *fakeIdentity) Token(ctx context.Context) (string, error) {
	if f.principal == nil {
		return "", entities.ErrUnauthenticated
	}
	return "token", nil
}

func (f *fakeIdentity) Principal() *entities.Principal { return f.principal }

func (f *fakeIdentity) Known() <-chan struct{} {
	if f.known != nil {
		return f.known
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeAssistant implements ports.AssistantService for testing
type fakeAssistant struct {
	reply *entities.AssistantReply
	err   error
	gate  chan struct{}

	mu      sync.Mutex
	queries []string
}

func (f *fakeAssistant) Ask(ctx context.Context, query string) (*entities.AssistantReply, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.reply != nil {
		return f.reply, nil
	}
	return &entities.AssistantReply{Response: "mocked answer"}, nil
}

// fakeHistory implements ports.HistoryService for testing
type fakeHistory struct {
	turns   []entities.HistoryTurn
	err     error
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeHistory) ChatHistory(ctx context.Context) ([]entities.HistoryTurn, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.turns, f.err
}

// fakeCatalog implements ports.CatalogService for testing
type fakeCatalog struct {
	products []entities.Product
	err      error
	calls    int
}

func (f *fakeCatalog) Products(ctx context.Context) ([]entities.Product, error) {
	f.calls++
	return f.products, f.err
}

// fakeCheckout implements ports.CheckoutService for testing
type fakeCheckout struct {
	order *entities.Order
	err   error
	got   []entities.CartItem
}

func (f *fakeCheckout) Checkout(ctx context.Context, items []entities.CartItem) (*entities.Order, error) {
	f.got = items
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2024, 5, 2, 15, 30, 0, 0, time.UTC)
