package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/chatcart/internal/domain/ports"
	chathttp "github.com/0xcro3dile/chatcart/internal/infrastructure/http"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session over the local HTTP API",
		Long: `Start the local presentation API.

Without --session every run is a fresh browsing session whose conversation is
discarded on exit; the cart is kept.

Example:
  chatcart serve --addr 127.0.0.1:8080
  chatcart serve --session 7f1c1b8e-4a4e-4bd4-9a5e-1f3f7b0e2c11`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := openApp(ctx, opts.RootOptions, false)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := a.Config
	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	server := chathttp.NewServer(a.Cart, a.Chat, a.Catalog, a.Checkout, a.Identity, ports.SystemClock{}, a.Logger.Named("http"), chathttp.Options{
		Addr:          addr,
		ReadTimeout:   cfg.GetReadTimeout(),
		WriteTimeout:  cfg.GetWriteTimeout(),
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Greeting:      cfg.Chat.Greeting,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	g.Go(func() error { return a.Watch(gctx) })
	return g.Wait()
}
