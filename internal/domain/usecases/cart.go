// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/cockroachdb/apd/v3"
	"go.uber.org/zap"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
	"github.com/0xcro3dile/chatcart/internal/domain/ports"
)

// CartKey is the device-scoped key the cart is persisted under.
const CartKey = "shoppingCart"

// MaxQuantity caps a single cart line. Larger requests are clamped.
const MaxQuantity = math.MaxInt32

// moneyContext rounds like the storefront's price display.
var moneyContext = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// CartStore owns the shopping cart. Every mutation is persisted synchronously.
// Use Load once after construction to rehydrate the saved cart.
type CartStore struct {
	mu    sync.Mutex
	items []entities.CartItem
	snap  *snapshot
}

// NewCartStore creates an empty cart backed by store.
func NewCartStore(store ports.PersistentStore, clock ports.Clock, logger *zap.Logger) *CartStore {
	return &CartStore{
		snap: newSnapshot(store, CartKey, orSystemClock(clock), orNop(logger)),
	}
}

// Load replaces the in-memory cart with the persisted one.
// Missing or unusable data yields an empty cart; the problem is logged, not returned.
func (c *CartStore) Load(ctx context.Context) LoadResult {
	var saved []entities.CartItem
	res := c.snap.load(ctx, &saved, func() error { return validateCart(saved) })
	if res.Corrupt || res.Err != nil {
		saved = nil
	}
	for i := range saved {
		saved[i].Quantity = min(saved[i].Quantity, MaxQuantity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = saved
	return res
}

func validateCart(items []entities.CartItem) error {
	seen := make(map[entities.ID]struct{}, len(items))
	for _, it := range items {
		if it.ID == "" {
			return fmt.Errorf("cart item without id")
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("duplicate cart item %s", it.ID)
		}
		seen[it.ID] = struct{}{}
		if it.Quantity < 1 {
			return fmt.Errorf("cart item %s has quantity %d", it.ID, it.Quantity)
		}
		if it.Price < 0 || math.IsNaN(it.Price) || math.IsInf(it.Price, 0) {
			return fmt.Errorf("cart item %s has price %v", it.ID, it.Price)
		}
	}
	return nil
}

// AddItem adds one unit of product, inserting a new line if needed.
func (c *CartStore) AddItem(ctx context.Context, p entities.Product) entities.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.cloneLocked()
	idx := indexOf(next, p.ID)
	if idx >= 0 {
		if next[idx].Quantity < MaxQuantity {
			next[idx].Quantity++
		}
	} else {
		next = append(next, entities.CartItem{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			Price:       p.Price,
			Quantity:    1,
		})
		idx = len(next) - 1
	}
	c.commitLocked(ctx, next)
	return next[idx]
}

// RemoveItem deletes the line for id. Removing an absent id is a no-op.
func (c *CartStore) RemoveItem(ctx context.Context, id entities.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if indexOf(c.items, id) < 0 {
		return
	}
	next := make([]entities.CartItem, 0, len(c.items)-1)
	for _, it := range c.items {
		if it.ID != id {
			next = append(next, it)
		}
	}
	c.commitLocked(ctx, next)
}

// SetQuantity overwrites the quantity of id. A quantity below 1 removes the
// line; one above MaxQuantity is clamped.
func (c *CartStore) SetQuantity(ctx context.Context, id entities.ID, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(ctx, id)
		return
	}
	quantity = min(quantity, MaxQuantity)

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := indexOf(c.items, id)
	if idx < 0 {
		return
	}
	next := c.cloneLocked()
	next[idx].Quantity = quantity
	c.commitLocked(ctx, next)
}

// SetQuantityText applies a quantity typed into a form field. Only the
// leading integer counts; text without one removes the line.
func (c *CartStore) SetQuantityText(ctx context.Context, id entities.ID, raw string) {
	n, ok := parseLeadingInt(raw)
	if !ok {
		n = 0
	}
	c.SetQuantity(ctx, id, n)
}

// Clear empties the cart and erases its persisted copy.
func (c *CartStore) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.snap.erase(ctx)
}

// Items returns a copy of the cart lines in insertion order.
func (c *CartStore) Items() []entities.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cloneLocked()
}

// Len returns the number of distinct lines.
func (c *CartStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// ItemCount returns the total number of units, as shown on the cart badge.
// The count saturates at math.MaxInt.
func (c *CartStore) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, it := range c.items {
		if it.Quantity > math.MaxInt-n {
			return math.MaxInt
		}
		n += it.Quantity
	}
	return n
}

// Total returns the sum of price times quantity with exactly two decimals.
func (c *CartStore) Total() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return formatTotal(c.items)
}

// LastWrite reports the most recent persistence outcome.
func (c *CartStore) LastWrite() WriteStatus {
	return c.snap.lastWrite()
}

func (c *CartStore) cloneLocked() []entities.CartItem {
	if len(c.items) == 0 {
		return nil
	}
	out := make([]entities.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// commitLocked swaps in the new lines and persists them.
func (c *CartStore) commitLocked(ctx context.Context, next []entities.CartItem) {
	c.items = next
	saved := next
	if saved == nil {
		saved = []entities.CartItem{}
	}
	c.snap.save(ctx, saved)
}

func indexOf(items []entities.CartItem, id entities.ID) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func formatTotal(items []entities.CartItem) string {
	total := apd.New(0, 0)
	for _, it := range items {
		price, err := new(apd.Decimal).SetFloat64(it.Price)
		if err != nil {
			continue
		}
		var line apd.Decimal
		if _, err := moneyContext.Mul(&line, price, apd.New(int64(it.Quantity), 0)); err != nil {
			continue
		}
		if _, err := moneyContext.Add(total, total, &line); err != nil {
			continue
		}
	}
	var rounded apd.Decimal
	if _, err := moneyContext.Quantize(&rounded, total, -2); err != nil {
		return "0.00"
	}
	return rounded.Text('f')
}

// parseLeadingInt reads an optionally signed integer prefix, ignoring
// leading whitespace and anything after the digits.
func parseLeadingInt(raw string) (int, bool) {
	s := strings.TrimLeft(raw, " \t\r\n")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		if n > (MaxQuantity-9)/10 {
			n = MaxQuantity
		} else {
			n = n*10 + int(r-'0')
		}
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
