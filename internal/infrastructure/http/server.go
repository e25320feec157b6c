// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
	"github.com/0xcro3dile/chatcart/internal/domain/ports"
	"github.com/0xcro3dile/chatcart/internal/domain/usecases"
)

// Options configures the server.
type Options struct {
	Addr          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	AllowedOrigin string
	Greeting      string
}

// Server is the local presentation API over one client session.
type Server struct {
	cart     *usecases.CartStore
	chat     *usecases.ChatSession
	catalog  *usecases.Catalog
	checkout *usecases.Checkout
	identity ports.IdentitySource
	clock    ports.Clock
	logger   *zap.Logger
	opts     Options
}

// NewServer creates a new HTTP server.
func NewServer(
	cart *usecases.CartStore,
	chat *usecases.ChatSession,
	catalog *usecases.Catalog,
	checkout *usecases.Checkout,
	identity ports.IdentitySource,
	clock ports.Clock,
	logger *zap.Logger,
	opts Options,
) *Server {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8080"
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	return &Server{
		cart:     cart,
		chat:     chat,
		catalog:  catalog,
		checkout: checkout,
		identity: identity,
		clock:    clock,
		logger:   logger,
		opts:     opts,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/cart", s.handleGetCart).Methods(http.MethodGet)
	r.HandleFunc("/cart", s.handleClearCart).Methods(http.MethodDelete)
	r.HandleFunc("/cart/items", s.handleAddItem).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id}", s.handleSetQuantity).Methods(http.MethodPut)
	r.HandleFunc("/cart/items/{id}", s.handleRemoveItem).Methods(http.MethodDelete)
	r.HandleFunc("/cart/checkout", s.handleCheckout).Methods(http.MethodPost)

	r.HandleFunc("/chat/messages", s.handleGetMessages).Methods(http.MethodGet)
	r.HandleFunc("/chat/messages", s.handleSendMessage).Methods(http.MethodPost)
	r.HandleFunc("/chat/messages/{index:[0-9]+}/products", s.handleSelectProducts).Methods(http.MethodPost)
	r.HandleFunc("/chat/reset", s.handleResetChat).Methods(http.MethodPost)
	r.HandleFunc("/chat/history", s.handleShowHistory).Methods(http.MethodGet)
	r.HandleFunc("/chat/history", s.handleHideHistory).Methods(http.MethodDelete)

	r.HandleFunc("/catalog", s.handleCatalog).Methods(http.MethodGet)
	r.HandleFunc("/catalog", s.handleResetCatalog).Methods(http.MethodDelete)
	r.HandleFunc("/catalog/{id}", s.handleProduct).Methods(http.MethodGet)

	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	return r
}

// Start runs the HTTP server until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	s.logger.Info("chatcart server starting", zap.String("addr", s.opts.Addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type cartView struct {
	Items []entities.CartItem `json:"items"`
	Total string              `json:"total"`
	Count int                 `json:"count"`
	Lines int                 `json:"lines"`
}

func (s *Server) cartView() cartView {
	return cartView{Items: s.cart.Items(), Total: s.cart.Total(), Count: s.cart.ItemCount(), Lines: s.cart.Len()}
}

type messagesView struct {
	Messages []entities.ChatMessage `json:"messages"`
}

type historyView struct {
	Visible bool                   `json:"visible"`
	State   usecases.HistoryState  `json:"state"`
	Error   string                 `json:"error,omitempty"`
	Items   []usecases.HistoryItem `json:"items"`
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	signedIn := s.identity != nil && s.identity.Principal() != nil
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "signed_in": signedIn})
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	s.cart.Clear(r.Context())
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var p entities.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid product: %v", entities.ErrValidation, err))
		return
	}
	if p.ID == "" {
		s.writeError(w, fmt.Errorf("%w: product id required", entities.ErrValidation))
		return
	}
	if p.Price < 0 {
		s.writeError(w, fmt.Errorf("%w: negative price", entities.ErrValidation))
		return
	}
	line := s.cart.AddItem(r.Context(), p)
	writeJSON(w, http.StatusCreated, line)
}

// handleSetQuantity accepts {"quantity": 3} or the raw field text {"quantity": "3"}.
func (s *Server) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	id := entities.ID(mux.Vars(r)["id"])
	var req struct {
		Quantity json.RawMessage `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Quantity) == 0 {
		s.writeError(w, fmt.Errorf("%w: quantity required", entities.ErrValidation))
		return
	}

	var text string
	if err := json.Unmarshal(req.Quantity, &text); err == nil {
		s.cart.SetQuantityText(r.Context(), id, text)
	} else {
		var n int
		if err := json.Unmarshal(req.Quantity, &n); err != nil {
			s.writeError(w, fmt.Errorf("%w: quantity must be an integer", entities.ErrValidation))
			return
		}
		s.cart.SetQuantity(r.Context(), id, n)
	}
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.cart.RemoveItem(r.Context(), entities.ID(mux.Vars(r)["id"]))
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	order, err := s.checkout.PlaceOrder(r.Context())
	if err != nil {
		var remote *entities.RemoteError
		if errors.As(err, &remote) {
			writeJSON(w, statusFor(err), map[string]string{"error": "Checkout failed: " + remote.Error()})
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messagesView{Messages: s.chat.Messages()})
}

// handleSendMessage waits for the reply so the response carries it. The
// assistant call is detached from the request so a dropped client does not
// lose the reply.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid body: %v", entities.ErrValidation, err))
		return
	}

	pending, err := s.chat.SendUserMessage(context.WithoutCancel(r.Context()), req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := pending.Wait(r.Context()); err != nil {
		s.logger.Debug("reply finished with error", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, messagesView{Messages: s.chat.Messages()})
}

func (s *Server) handleSelectProducts(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: bad index", entities.ErrValidation))
		return
	}
	products, err := s.chat.SelectProductsLink(index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleResetChat(w http.ResponseWriter, r *http.Request) {
	s.chat.Reset(r.Context(), s.opts.Greeting)
	writeJSON(w, http.StatusOK, messagesView{Messages: s.chat.Messages()})
}

// handleShowHistory opens and loads the history panel. Load failures are
// part of the returned panel state rather than an HTTP error.
func (s *Server) handleShowHistory(w http.ResponseWriter, r *http.Request) {
	err := s.chat.ShowHistory(r.Context())
	if errors.Is(err, usecases.ErrSuperseded) {
		s.writeError(w, err)
		return
	}
	view := s.chat.History()
	writeJSON(w, http.StatusOK, historyView{
		Visible: view.Visible,
		State:   view.State,
		Error:   view.Error,
		Items:   usecases.GroupHistory(view.Messages, s.clock.Now()),
	})
}

func (s *Server) handleHideHistory(w http.ResponseWriter, r *http.Request) {
	s.chat.HideHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	view, err := s.catalog.View(r.Context(), criteria)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleResetCatalog(w http.ResponseWriter, r *http.Request) {
	s.catalog.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Product(entities.ID(mux.Vars(r)["id"]))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// parseCriteria reads q, category (repeatable), min, max, sort and order.
func parseCriteria(r *http.Request) (entities.FilterCriteria, error) {
	q := r.URL.Query()
	c := entities.DefaultFilterCriteria()
	c.SearchTerm = q.Get("q")
	for _, v := range q["category"] {
		for _, cat := range strings.Split(v, ",") {
			if cat = strings.TrimSpace(cat); cat != "" {
				c.SelectedCategories = append(c.SelectedCategories, cat)
			}
		}
	}
	var err error
	if v := q.Get("min"); v != "" {
		if c.MinPrice, err = strconv.ParseFloat(v, 64); err != nil {
			return c, fmt.Errorf("%w: min price %q", entities.ErrInvalidCriteria, v)
		}
	}
	if v := q.Get("max"); v != "" {
		if c.MaxPrice, err = strconv.ParseFloat(v, 64); err != nil {
			return c, fmt.Errorf("%w: max price %q", entities.ErrInvalidCriteria, v)
		}
	}
	if v := q.Get("sort"); v != "" {
		c.SortKey = entities.SortKey(v)
	}
	if v := q.Get("order"); v != "" {
		c.SortDirection = entities.SortDirection(v)
	}
	return c, nil
}

func statusFor(err error) int {
	var remote *entities.RemoteError
	switch {
	case errors.Is(err, entities.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, usecases.ErrProductNotFound), errors.Is(err, usecases.ErrNotProductsLink):
		return http.StatusNotFound
	case errors.Is(err, usecases.ErrSuperseded):
		return http.StatusConflict
	case errors.As(err, &remote):
		if remote.Unauthorized() {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": entities.DisplayMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.opts.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
