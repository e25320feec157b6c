package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/chatcart/internal/app"
	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

type chatOutput struct {
	Session  string                 `json:"session"`
	Messages []entities.ChatMessage `json:"messages"`
}

// NewChatCommand creates the chat command group.
func NewChatCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the shopping assistant",
		Long: `Talk to the shopping assistant.

Conversations belong to a session. Without --session a new one is started and
its id printed, so it can be resumed:

  chatcart chat send "show me laptops under 1500"
  chatcart --session <id> chat send "only the red ones"`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "send <message...>",
		Short: "Send a message and wait for the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChat(cmd, opts, func(a *app.App) error {
				pending, err := a.Chat.SendUserMessage(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				// the outcome is already in the transcript
				_ = pending.Wait(cmd.Context())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChat(cmd, opts, func(a *app.App) error { return nil })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Start the conversation over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChat(cmd, opts, func(a *app.App) error {
				a.Chat.Reset(cmd.Context(), a.Config.Chat.Greeting)
				return nil
			})
		},
	})

	return cmd
}

func withChat(cmd *cobra.Command, opts *RootOptions, run func(a *app.App) error) error {
	a, cleanup, err := openApp(cmd.Context(), opts, true)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := run(a); err != nil {
		return err
	}

	out := chatOutput{Session: a.SessionID, Messages: a.Chat.Messages()}
	return newFormatter(opts, cmd.OutOrStdout()).Emit(out, func(w io.Writer) {
		printMessages(w, out.Messages)
		if opts.Session == "" {
			io.WriteString(w, "session: "+a.SessionID+"\n")
		}
	})
}
