package identity

import (
	"context"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

// StaticSource serves one fixed token for the life of the process.
// An empty token means nobody is signed in.
type StaticSource struct {
	token     string
	principal *entities.Principal
	known     chan struct{}
}

// NewStaticSource creates a source for token.
func NewStaticSource(token string) (*StaticSource, error) {
	s := &StaticSource{known: make(chan struct{})}
	close(s.known)
	if token == "" {
		return s, nil
	}
	p, err := PrincipalFromToken(token)
	if err != nil {
		return nil, err
	}
	s.token = token
	s.principal = p
	return s, nil
}

// Token returns the fixed token.
func (s *StaticSource) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", entities.ErrUnauthenticated
	}
	return s.token, nil
}

// Principal returns the token's principal, or nil.
func (s *StaticSource) Principal() *entities.Principal {
	if s.principal == nil {
		return nil
	}
	p := *s.principal
	return &p
}

// Known is always closed.
func (s *StaticSource) Known() <-chan struct{} { return s.known }
