package usecases

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
	"github.com/0xcro3dile/chatcart/internal/domain/ports"
)

// ErrProductNotFound is returned for an id missing from the current products.
var ErrProductNotFound = errors.New("product not found")

// CatalogView is what the catalog page renders.
type CatalogView struct {
	Products   []entities.Product `json:"products"`
	Categories []string           `json:"categories"`
	Total      int                `json:"total"`
}

// Catalog serves the product dashboard. It shows the assistant's current
// results and falls back to the full catalog when there are none.
type Catalog struct {
	chat     *ChatSession
	catalog  ports.CatalogService
	identity ports.IdentitySource
	logger   *zap.Logger
}

// NewCatalog creates the catalog view over chat's product results.
func NewCatalog(chat *ChatSession, catalog ports.CatalogService, identity ports.IdentitySource, logger *zap.Logger) *Catalog {
	return &Catalog{
		chat:     chat,
		catalog:  catalog,
		identity: identity,
		logger:   orNop(logger),
	}
}

// View returns the filtered, sorted products for criteria.
func (c *Catalog) View(ctx context.Context, criteria entities.FilterCriteria) (*CatalogView, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	products := c.chat.CurrentProducts()
	if len(products) == 0 {
		fetched, err := c.fetchAll(ctx)
		if err != nil {
			return nil, err
		}
		products = fetched
	}
	return &CatalogView{
		Products:   ApplyFilters(products, criteria),
		Categories: UniqueCategories(products),
		Total:      len(products),
	}, nil
}

func (c *Catalog) fetchAll(ctx context.Context) ([]entities.Product, error) {
	if currentPrincipal(ctx, c.identity) == nil {
		return nil, entities.ErrUnauthenticated
	}
	products, err := c.catalog.Products(ctx)
	if err != nil {
		c.logger.Warn("fetching catalog failed", zap.Error(err))
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	c.chat.SetCurrentProducts(products)
	c.logger.Debug("catalog fetched", zap.Int("products", len(products)))
	return products, nil
}

// Product looks up id among the current products.
func (c *Catalog) Product(id entities.ID) (*entities.Product, error) {
	for _, p := range c.chat.CurrentProducts() {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrProductNotFound)
}

// Reset clears the current products so the next view shows the full catalog.
func (c *Catalog) Reset() {
	c.chat.SetCurrentProducts(nil)
}
