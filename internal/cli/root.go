// Package cli implements the chatcart command line.
package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/chatcart/internal/app"
	"github.com/0xcro3dile/chatcart/internal/config"
	"github.com/0xcro3dile/chatcart/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Session    string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the chatcart CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chatcart",
		Short: "chatcart - conversational storefront client",
		Long: `chatcart keeps a shopping cart and an assistant conversation for a
conversational storefront, persists both locally, and serves them over a
local HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "chatcart.yaml", "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Session, "session", "", "session id to resume")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewChatCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewProductsCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewSessionsCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// openApp loads configuration and builds the session. When keepSession is
// set and no --session was given, a new id is minted and kept so later
// commands can resume it.
func openApp(ctx context.Context, opts *RootOptions, keepSession bool) (*app.App, func(), error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging, opts.Verbose)
	if err != nil {
		return nil, nil, err
	}

	session := opts.Session
	if session == "" && keepSession {
		session = uuid.NewString()
		logger.Info("started session", zap.String("session", session))
	}

	a, err := app.New(ctx, cfg, logger, session)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Warn("closing storage failed", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return a, cleanup, nil
}
