package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
	"github.com/0xcro3dile/chatcart/internal/domain/ports"
)

// ChatKey is the session-scoped key the transcript is persisted under.
const ChatKey = "chatMessages"

// DefaultGreeting opens every new conversation.
const DefaultGreeting = "Hello! How can I help you today?"

const (
	loginPrompt     = "Please log in to use the chatbot."
	sessionExpired  = "Your session has expired or you are unauthorized. Please log in again."
	historyLogin    = "Please log in to view your past chat history."
	productsLinkFmt = "Found %d products. Click below to view them!"
)

var (
	// ErrNotProductsLink is returned when selecting a message that carries no products.
	ErrNotProductsLink = errors.New("message is not a products link")

	// ErrSuperseded is returned by a history load whose result was dropped
	// because a newer request or a hide happened meanwhile.
	ErrSuperseded = errors.New("history request superseded")
)

// HistoryState is the lifecycle of the past-conversations panel.
type HistoryState string

const (
	HistoryNotRequested HistoryState = "not_requested"
	HistoryLoading      HistoryState = "loading"
	HistoryLoaded       HistoryState = "loaded"
	HistoryFailed       HistoryState = "failed"
)

// HistoryView is a snapshot of the past-conversations panel.
type HistoryView struct {
	Visible  bool                   `json:"visible"`
	State    HistoryState           `json:"state"`
	Messages []entities.ChatMessage `json:"messages"`
	Error    string                 `json:"error,omitempty"`
}

type historyPanel struct {
	visible    bool
	state      HistoryState
	messages   []entities.ChatMessage
	err        string
	generation uint64
}

// PendingReply is the outcome of an assistant call started by SendUserMessage.
// It resolves after the reply (or the failure notice) has been appended.
type PendingReply struct {
	done chan struct{}
	err  error
}

func newPendingReply() *PendingReply {
	return &PendingReply{done: make(chan struct{})}
}

func (p *PendingReply) resolve(err error) {
	p.err = err
	close(p.done)
}

// Done is closed once the reply has been applied.
func (p *PendingReply) Done() <-chan struct{} { return p.done }

// Err returns the outcome. Only meaningful after Done is closed.
func (p *PendingReply) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the reply is applied or ctx ends.
func (p *PendingReply) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ChatSession owns the live transcript, the current product results shown
// on the catalog, and the past-conversations panel.
type ChatSession struct {
	identity  ports.IdentitySource
	assistant ports.AssistantService
	history   ports.HistoryService
	clock     ports.Clock
	logger    *zap.Logger
	snap      *snapshot

	mu       sync.Mutex
	messages []entities.ChatMessage
	current  []entities.Product
	panel    historyPanel
}

// NewChatSession creates a session with an empty transcript.
// Call Initialize before use to rehydrate or seed it.
func NewChatSession(
	store ports.PersistentStore,
	identity ports.IdentitySource,
	assistant ports.AssistantService,
	history ports.HistoryService,
	clock ports.Clock,
	logger *zap.Logger,
) *ChatSession {
	clock = orSystemClock(clock)
	logger = orNop(logger)
	return &ChatSession{
		identity:  identity,
		assistant: assistant,
		history:   history,
		clock:     clock,
		logger:    logger,
		snap:      newSnapshot(store, ChatKey, clock, logger),
		panel:     historyPanel{state: HistoryNotRequested},
	}
}

// Initialize restores the persisted transcript, or seeds it with greeting
// when nothing usable is stored.
func (s *ChatSession) Initialize(ctx context.Context, greeting string) LoadResult {
	var saved []entities.ChatMessage
	res := s.snap.load(ctx, &saved, func() error { return validateTranscript(saved) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if res.Corrupt || res.Err != nil || len(saved) == 0 {
		s.messages = []entities.ChatMessage{s.greeting(greeting)}
		return res
	}
	for i := range saved {
		if saved[i].Kind == "" {
			saved[i].Kind = entities.KindText
		}
	}
	s.messages = saved
	return res
}

func validateTranscript(msgs []entities.ChatMessage) error {
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

func (s *ChatSession) greeting(text string) entities.ChatMessage {
	if text == "" {
		text = DefaultGreeting
	}
	return s.botText(text)
}

func (s *ChatSession) botText(text string) entities.ChatMessage {
	return entities.ChatMessage{
		Sender:    entities.SenderBot,
		Kind:      entities.KindText,
		Text:      text,
		Timestamp: s.clock.Now(),
	}
}

// SendUserMessage appends the user's message and starts the assistant call.
// Blank text is rejected with entities.ErrEmptyMessage and changes nothing.
// The user message is appended before this returns, so replies can never
// precede a later message.
func (s *ChatSession) SendUserMessage(ctx context.Context, text string) (*PendingReply, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, entities.ErrEmptyMessage
	}

	s.mu.Lock()
	s.appendLocked(ctx, entities.ChatMessage{
		Sender:    entities.SenderUser,
		Kind:      entities.KindText,
		Text:      query,
		Timestamp: s.clock.Now(),
	})
	s.current = nil
	s.mu.Unlock()

	pending := newPendingReply()
	if currentPrincipal(ctx, s.identity) == nil {
		s.appendBot(ctx, loginPrompt)
		pending.resolve(entities.ErrUnauthenticated)
		return pending, nil
	}

	go func() {
		pending.resolve(s.ask(ctx, query))
	}()
	return pending, nil
}

func (s *ChatSession) ask(ctx context.Context, query string) error {
	if s.assistant == nil {
		err := &entities.RemoteError{Err: errors.New("assistant unavailable")}
		s.applyFailure(ctx, err)
		return err
	}
	reply, err := s.assistant.Ask(ctx, query)
	if err != nil {
		s.logger.Warn("assistant call failed", zap.Error(err))
		s.applyFailure(ctx, err)
		return fmt.Errorf("asking assistant: %w", err)
	}
	if reply == nil {
		err := &entities.RemoteError{Err: errors.New("empty assistant reply")}
		s.applyFailure(ctx, err)
		return err
	}
	s.ReceiveAssistantReply(ctx, reply.Response, reply.Products)
	return nil
}

// applyFailure appends the failure notice and clears the product results.
func (s *ChatSession) applyFailure(ctx context.Context, err error) {
	var notices []entities.ChatMessage
	var remote *entities.RemoteError
	switch {
	case errors.Is(err, entities.ErrUnauthenticated):
		notices = append(notices, s.botText(loginPrompt))
	case errors.As(err, &remote) && remote.Unauthorized():
		notices = append(notices,
			s.botText(sessionExpired),
			s.botText(errorNotice(remote.Error())))
	default:
		notices = append(notices, s.botText(errorNotice(entities.DisplayMessage(err))))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(ctx, notices...)
	s.current = nil
}

func errorNotice(msg string) string {
	return fmt.Sprintf("Error: %s. Please try again.", strings.TrimRight(msg, ". "))
}

// ReceiveAssistantReply appends the assistant's answer. When products is not
// empty a products link carrying the whole result set follows it, so the set
// can be reopened later regardless of subsequent turns.
func (s *ChatSession) ReceiveAssistantReply(ctx context.Context, text string, products []entities.Product) {
	msgs := []entities.ChatMessage{s.botText(text)}
	if len(products) > 0 {
		n := len(products)
		msgs = append(msgs, entities.ChatMessage{
			Sender:        entities.SenderBot,
			Kind:          entities.KindProductsLink,
			Text:          fmt.Sprintf(productsLinkFmt, n),
			Timestamp:     s.clock.Now(),
			ProductsCount: &n,
			Products:      cloneProducts(products),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(ctx, msgs...)
}

func (s *ChatSession) appendBot(ctx context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(ctx, s.botText(text))
}

// appendLocked extends the transcript in one step and persists it.
func (s *ChatSession) appendLocked(ctx context.Context, msgs ...entities.ChatMessage) {
	next := make([]entities.ChatMessage, 0, len(s.messages)+len(msgs))
	next = append(next, s.messages...)
	next = append(next, msgs...)
	s.messages = next
	s.snap.save(ctx, next)
}

// Reset replaces the transcript with a fresh greeting, erases the session
// copy, clears the product results and closes the history panel.
func (s *ChatSession) Reset(ctx context.Context, greeting string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = []entities.ChatMessage{s.greeting(greeting)}
	s.snap.erase(ctx)
	s.current = nil
	s.panel = historyPanel{state: HistoryNotRequested, generation: s.panel.generation + 1}
}

// Messages returns a copy of the transcript.
func (s *ChatSession) Messages() []entities.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// CurrentProducts returns the product results currently shown on the catalog.
func (s *ChatSession) CurrentProducts() []entities.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProducts(s.current)
}

// SetCurrentProducts replaces the product results, e.g. with the full catalog.
func (s *ChatSession) SetCurrentProducts(products []entities.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = cloneProducts(products)
}

// SelectProductsLink shows the result set carried by the message at index.
func (s *ChatSession) SelectProductsLink(index int) ([]entities.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.messages) {
		return nil, fmt.Errorf("message %d: %w", index, ErrNotProductsLink)
	}
	msg := s.messages[index]
	if !msg.IsProductsLink() {
		return nil, fmt.Errorf("message %d: %w", index, ErrNotProductsLink)
	}
	s.current = cloneProducts(msg.Products)
	return cloneProducts(msg.Products), nil
}

// ShowHistory opens the past-conversations panel and loads it.
func (s *ChatSession) ShowHistory(ctx context.Context) error {
	s.mu.Lock()
	s.panel.visible = true
	s.mu.Unlock()
	return s.LoadPastHistory(ctx)
}

// HideHistory closes the panel. A load still in flight is dropped when it lands.
func (s *ChatSession) HideHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panel.visible = false
	s.panel.generation++
}

// LoadPastHistory fetches the stored turns and flattens them into the panel.
// Only the most recent request may update the panel; older ones return ErrSuperseded.
func (s *ChatSession) LoadPastHistory(ctx context.Context) error {
	signedIn := currentPrincipal(ctx, s.identity) != nil

	s.mu.Lock()
	s.panel.generation++
	gen := s.panel.generation
	if !signedIn {
		s.panel.state = HistoryFailed
		s.panel.messages = nil
		s.panel.err = historyLogin
		s.mu.Unlock()
		return entities.ErrUnauthenticated
	}
	s.panel.state = HistoryLoading
	s.panel.err = ""
	s.mu.Unlock()

	var turns []entities.HistoryTurn
	var err error
	if s.history == nil {
		err = &entities.RemoteError{Err: errors.New("history unavailable")}
	} else {
		turns, err = s.history.ChatHistory(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.panel.generation {
		s.logger.Debug("dropping stale history result", zap.Uint64("generation", gen))
		return ErrSuperseded
	}
	if err != nil {
		s.logger.Warn("loading chat history failed", zap.Error(err))
		s.panel.state = HistoryFailed
		s.panel.messages = nil
		s.panel.err = fmt.Sprintf("Failed to load history: %s.", strings.TrimRight(entities.DisplayMessage(err), ". "))
		return fmt.Errorf("loading chat history: %w", err)
	}
	s.panel.state = HistoryLoaded
	s.panel.messages = FlattenHistory(turns, s.clock.Now().Location())
	return nil
}

// History returns a snapshot of the past-conversations panel.
func (s *ChatSession) History() HistoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]entities.ChatMessage, len(s.panel.messages))
	copy(msgs, s.panel.messages)
	return HistoryView{
		Visible:  s.panel.visible,
		State:    s.panel.state,
		Messages: msgs,
		Error:    s.panel.err,
	}
}

// LastWrite reports the most recent persistence outcome.
func (s *ChatSession) LastWrite() WriteStatus {
	return s.snap.lastWrite()
}

// currentPrincipal waits until identity has settled and returns the
// principal. It returns nil when signed out or when ctx ends first.
func currentPrincipal(ctx context.Context, identity ports.IdentitySource) *entities.Principal {
	if identity == nil {
		return nil
	}
	select {
	case <-identity.Known():
	case <-ctx.Done():
		return nil
	}
	return identity.Principal()
}

func cloneProducts(in []entities.Product) []entities.Product {
	if len(in) == 0 {
		return nil
	}
	out := make([]entities.Product, len(in))
	copy(out, in)
	return out
}
