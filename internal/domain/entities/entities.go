// Package entities contains core business entities.
// These are pure domain objects with no knowledge of storage or transport.
package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ID identifies a product or an order.
// The backend hands out numeric ids, but older clients stored them as strings,
// so an ID accepts both and always compares by its string form.
type ID string

// String returns the id in its canonical text form.
func (id ID) String() string { return string(id) }

// MarshalJSON writes numeric ids as JSON numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if isNumeric(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON number or string.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// isNumeric reports whether s is exactly a JSON number, with no padding,
// so that writing it bare reads back as the same string.
func isNumeric(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	if c := s[0]; c != '-' && (c < '0' || c > '9') {
		return false
	}
	return json.Valid([]byte(s))
}

// Product is a catalog entry as served by the storefront backend.
type Product struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
}

// CartItem is one line of the shopping cart.
// Quantity is always >= 1; a cart never holds two items with the same ID.
type CartItem struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// Sender is who authored a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// MessageKind distinguishes plain text from the synthetic products link.
type MessageKind string

const (
	KindText         MessageKind = "text"
	KindProductsLink MessageKind = "products_link"
)

// ChatMessage is one entry of the conversation transcript.
// ProductsCount and Products are set only for KindProductsLink messages.
type ChatMessage struct {
	Sender        Sender      `json:"sender"`
	Kind          MessageKind `json:"type,omitempty"`
	Text          string      `json:"text"`
	Timestamp     time.Time   `json:"timestamp"`
	ProductsCount *int        `json:"productsCount,omitempty"`
	Products      []Product   `json:"productsData,omitempty"`
}

// IsProductsLink reports whether the message carries a product result set.
func (m ChatMessage) IsProductsLink() bool {
	return m.Kind == KindProductsLink
}

// Validate checks the sender and the products-link invariant.
func (m ChatMessage) Validate() error {
	switch m.Sender {
	case SenderUser, SenderBot:
	default:
		return fmt.Errorf("unknown sender %q", m.Sender)
	}
	switch m.Kind {
	case KindText, "":
		if m.ProductsCount != nil || m.Products != nil {
			return fmt.Errorf("text message carries products")
		}
	case KindProductsLink:
		if m.ProductsCount == nil || m.Products == nil {
			return fmt.Errorf("products link without products")
		}
		if *m.ProductsCount != len(m.Products) {
			return fmt.Errorf("products count %d does not match payload of %d", *m.ProductsCount, len(m.Products))
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Kind)
	}
	return nil
}

// HistoryTurn is one stored query/response pair from the backend.
// Timestamp is kept as sent; the backend omits the zone offset.
type HistoryTurn struct {
	Query     string `json:"query"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// AssistantReply is the assistant's answer to one query.
type AssistantReply struct {
	Response string    `json:"response"`
	Products []Product `json:"products,omitempty"`
}

// Order is the result of a successful checkout.
type Order struct {
	ID          ID      `json:"order_id"`
	TotalAmount float64 `json:"total_amount"`
	Message     string  `json:"message,omitempty"`
}

// Principal is the signed-in user as described by the bearer token.
type Principal struct {
	UID       string
	Email     string
	ExpiresAt time.Time
}

// SortKey selects the product ordering.
type SortKey string

const (
	SortByName     SortKey = "name"
	SortByPrice    SortKey = "price"
	SortByCategory SortKey = "category"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// DefaultMaxPrice is the upper bound of the catalog price filter.
const DefaultMaxPrice = 10000

// FilterCriteria drives the catalog view. It is transient and never persisted.
type FilterCriteria struct {
	SearchTerm         string
	SelectedCategories []string
	MinPrice           float64
	MaxPrice           float64
	SortKey            SortKey
	SortDirection      SortDirection
}

// DefaultFilterCriteria returns the criteria of a freshly opened catalog view.
func DefaultFilterCriteria() FilterCriteria {
	return FilterCriteria{
		MinPrice:      0,
		MaxPrice:      DefaultMaxPrice,
		SortKey:       SortByName,
		SortDirection: SortAsc,
	}
}

// Validate rejects unknown sort settings and inverted price ranges.
func (c FilterCriteria) Validate() error {
	switch c.SortKey {
	case SortByName, SortByPrice, SortByCategory:
	default:
		return fmt.Errorf("%w: sort key %q", ErrInvalidCriteria, c.SortKey)
	}
	switch c.SortDirection {
	case SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: sort direction %q", ErrInvalidCriteria, c.SortDirection)
	}
	if c.MinPrice > c.MaxPrice {
		return fmt.Errorf("%w: min price %.2f above max price %.2f", ErrInvalidCriteria, c.MinPrice, c.MaxPrice)
	}
	return nil
}
