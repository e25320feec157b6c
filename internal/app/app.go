// Package app wires configuration, adapters and usecases into one session.
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xcro3dile/chatcart/internal/adapters/identity"
	"github.com/0xcro3dile/chatcart/internal/adapters/kvstore"
	"github.com/0xcro3dile/chatcart/internal/adapters/storefront"
	"github.com/0xcro3dile/chatcart/internal/config"
	"github.com/0xcro3dile/chatcart/internal/domain/ports"
	"github.com/0xcro3dile/chatcart/internal/domain/usecases"
)

// App is one running client session: the device-wide cart plus the
// conversation of a single session scope.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	SessionID string

	Identity ports.IdentitySource
	Cart     *usecases.CartStore
	Chat     *usecases.ChatSession
	Catalog  *usecases.Catalog
	Checkout *usecases.Checkout

	fileIdentity *identity.FileSource
	db           *kvstore.SQLiteStore
	ephemeral    bool
}

// New builds the session. An empty sessionID starts a fresh session whose
// scope is dropped on Close; a given one resumes that session and keeps it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, sessionID string) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	if sessionID == "" {
		a.SessionID = uuid.NewString()
		a.ephemeral = true
	} else {
		id, err := uuid.Parse(sessionID)
		if err != nil {
			return nil, fmt.Errorf("invalid session id %q: %w", sessionID, err)
		}
		a.SessionID = id.String()
	}

	ident, err := a.buildIdentity(ctx)
	if err != nil {
		return nil, err
	}
	a.Identity = ident

	deviceStore, sessionStore, err := a.buildStores(ctx)
	if err != nil {
		return nil, err
	}

	client := storefront.NewClient(cfg.Backend.BaseURL, ident, cfg.GetBackendTimeout(), logger.Named("storefront"))
	clock := ports.SystemClock{}

	a.Cart = usecases.NewCartStore(deviceStore, clock, logger.Named("cart"))
	a.Chat = usecases.NewChatSession(sessionStore, ident, client, client, clock, logger.Named("chat"))
	a.Catalog = usecases.NewCatalog(a.Chat, client, ident, logger.Named("catalog"))
	a.Checkout = usecases.NewCheckout(a.Cart, client, ident, logger.Named("checkout"))

	if res := a.Cart.Load(ctx); res.Corrupt {
		logger.Warn("stored cart was unusable, starting empty")
	}
	if res := a.Chat.Initialize(ctx, cfg.Chat.Greeting); res.Corrupt {
		logger.Warn("stored conversation was unusable, starting fresh")
	}

	logger.Info("session ready",
		zap.String("session", a.SessionID),
		zap.Bool("resumed", !a.ephemeral),
		zap.Bool("signed_in", ident.Principal() != nil))
	return a, nil
}

func (a *App) buildIdentity(ctx context.Context) (ports.IdentitySource, error) {
	cfg := a.Config.Identity
	if cfg.TokenFile != "" {
		fs := identity.NewFileSource(cfg.TokenFile, nil, a.Logger.Named("identity"))
		if err := fs.Reload(ctx); err != nil {
			a.Logger.Warn("loading token file failed", zap.String("path", cfg.TokenFile), zap.Error(err))
		}
		a.fileIdentity = fs
		return fs, nil
	}
	src, err := identity.NewStaticSource(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("reading configured token: %w", err)
	}
	return src, nil
}

func (a *App) buildStores(ctx context.Context) (device, session ports.PersistentStore, err error) {
	if a.Config.Storage.Path == "" {
		return kvstore.NewMemoryStore(), kvstore.NewMemoryStore(), nil
	}

	db, err := kvstore.NewSQLiteStore(a.Config.Storage.Path, nil)
	if err != nil {
		return nil, nil, err
	}
	a.db = db

	if n, err := db.PurgeSessions(ctx, a.Config.GetSessionTTL()); err != nil {
		a.Logger.Warn("purging idle sessions failed", zap.Error(err))
	} else if n > 0 {
		a.Logger.Debug("purged idle sessions", zap.Int("count", n))
	}

	return db.Scope(kvstore.DeviceScope), db.Scope(kvstore.SessionScope(a.SessionID)), nil
}

// Watch keeps the identity current until ctx is done. It returns at once
// when the token does not come from a file.
func (a *App) Watch(ctx context.Context) error {
	if a.fileIdentity == nil {
		return nil
	}
	return a.fileIdentity.Watch(ctx)
}

// Sessions lists the resumable session ids.
func (a *App) Sessions(ctx context.Context) ([]string, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.Sessions(ctx)
}

// Close releases storage. A fresh session's scope is dropped, like a
// browser tab's session storage.
func (a *App) Close(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	if a.ephemeral {
		if err := a.db.DropScope(ctx, kvstore.SessionScope(a.SessionID)); err != nil {
			a.Logger.Warn("dropping session failed", zap.Error(err))
		}
	}
	return a.db.Close()
}
