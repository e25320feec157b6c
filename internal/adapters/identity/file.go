package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
	"github.com/0xcro3dile/chatcart/internal/domain/ports"
)

// DefaultExpirySkew refreshes a token this long before it expires.
const DefaultExpirySkew = 30 * time.Second

// FileSource reads the bearer token from a file that an external login
// flow keeps current. Reloads happen on demand when the cached token is
// about to expire, and on every change to the file while Watch runs.
type FileSource struct {
	path   string
	clock  ports.Clock
	skew   time.Duration
	logger *zap.Logger
	group  singleflight.Group

	mu        sync.RWMutex
	token     string
	principal *entities.Principal

	known     chan struct{}
	knownOnce sync.Once
}

// NewFileSource creates a source for the token file at path.
// Call Reload (or Watch) to read it.
func NewFileSource(path string, clock ports.Clock, logger *zap.Logger) *FileSource {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{
		path:   filepath.Clean(path),
		clock:  clock,
		skew:   DefaultExpirySkew,
		logger: logger,
		known:  make(chan struct{}),
	}
}

// Reload rereads the token file. A missing or empty file signs the user out.
// Concurrent callers share one read.
func (s *FileSource) Reload(ctx context.Context) error {
	_, err, _ := s.group.Do("reload", func() (any, error) {
		return nil, s.reload()
	})
	return err
}

func (s *FileSource) reload() error {
	defer s.knownOnce.Do(func() { close(s.known) })

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.set("", nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading token file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		s.set("", nil)
		return nil
	}
	p, err := PrincipalFromToken(raw)
	if err != nil {
		s.set("", nil)
		return err
	}
	if expired(p, s.clock.Now(), 0) {
		s.logger.Info("token in file has expired", zap.String("uid", p.UID))
		s.set("", nil)
		return nil
	}
	s.set(raw, p)
	return nil
}

func (s *FileSource) set(token string, p *entities.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if (s.principal == nil) != (p == nil) {
		if p == nil {
			s.logger.Info("signed out")
		} else {
			s.logger.Info("signed in", zap.String("uid", p.UID), zap.String("email", p.Email))
		}
	}
	s.token = token
	s.principal = p
}

// Token returns the current token, rereading the file when the cached one
// is within the expiry skew.
func (s *FileSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token, p := s.token, s.principal
	s.mu.RUnlock()

	if p != nil && !expired(p, s.clock.Now(), s.skew) {
		return token, nil
	}
	if err := s.Reload(ctx); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return "", entities.ErrUnauthenticated
	}
	return s.token, nil
}

// Principal returns the signed-in principal, or nil.
func (s *FileSource) Principal() *entities.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return nil
	}
	p := *s.principal
	return &p
}

// Known is closed after the first reload.
func (s *FileSource) Known() <-chan struct{} { return s.known }

// Watch reloads the token whenever the file changes, until ctx is done.
// The parent directory is watched so atomic replacements are seen.
func (s *FileSource) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}
	if err := s.Reload(ctx); err != nil {
		s.logger.Warn("loading token failed", zap.String("path", s.path), zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(ctx); err != nil {
				s.logger.Warn("reloading token failed", zap.String("path", s.path), zap.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("token watcher error", zap.Error(err))
		}
	}
}
