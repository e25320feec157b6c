// Package storefront provides the storefront backend adapter.
// Clean Architecture: Adapter implementing ports.AssistantService,
// ports.HistoryService, ports.CatalogService and ports.CheckoutService.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
	"github.com/0xcro3dile/chatcart/internal/domain/ports"
)

const (
	pathChatbot     = "/api/chatbot"
	pathChatHistory = "/api/chat_history"
	pathProducts    = "/api/products"
	pathCheckout    = "/api/checkout"

	// maxErrorBody caps how much of a failed response is read for its message.
	maxErrorBody = 64 << 10
)

// Client talks to the storefront backend with a bearer credential.
type Client struct {
	baseURL string
	tokens  ports.TokenSource
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a storefront client.
func NewClient(baseURL string, tokens ports.TokenSource, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type chatbotRequest struct {
	Query string `json:"query"`
}

type checkoutRequest struct {
	CartItems []entities.CartItem `json:"cartItems"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Ask sends one query to the assistant.
func (c *Client) Ask(ctx context.Context, query string) (*entities.AssistantReply, error) {
	var reply entities.AssistantReply
	if err := c.do(ctx, http.MethodPost, pathChatbot, chatbotRequest{Query: query}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// ChatHistory returns the stored turns of the signed-in user.
func (c *Client) ChatHistory(ctx context.Context) ([]entities.HistoryTurn, error) {
	var turns []entities.HistoryTurn
	if err := c.do(ctx, http.MethodGet, pathChatHistory, nil, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// Products lists the full catalog.
func (c *Client) Products(ctx context.Context) ([]entities.Product, error) {
	var products []entities.Product
	if err := c.do(ctx, http.MethodGet, pathProducts, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Checkout places an order for items.
func (c *Client) Checkout(ctx context.Context, items []entities.CartItem) (*entities.Order, error) {
	var order entities.Order
	if err := c.do(ctx, http.MethodPost, pathCheckout, checkoutRequest{CartItems: items}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// do performs one authenticated JSON call. Failures are returned as
// *entities.RemoteError, except a missing credential which is
// entities.ErrUnauthenticated.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.tokens == nil {
		return entities.ErrUnauthenticated
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if errors.Is(err, entities.ErrUnauthenticated) {
			return err
		}
		return fmt.Errorf("minting token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("storefront call failed", zap.String("path", path), zap.Error(err))
		return &entities.RemoteError{Err: fmt.Errorf("calling %s: %w", path, err)}
	}
	defer resp.Body.Close()

	c.logger.Debug("storefront call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return remoteError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &entities.RemoteError{Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// remoteError reads the backend's {message} body, falling back to the status text.
func remoteError(resp *http.Response) *entities.RemoteError {
	rerr := &entities.RemoteError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return rerr
	}
	var body errorResponse
	if json.Unmarshal(raw, &body) == nil {
		rerr.Message = strings.TrimSpace(body.Message)
	}
	return rerr
}
