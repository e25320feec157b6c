package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
	"github.com/0xcro3dile/chatcart/internal/domain/usecases"
)

type historyOutput struct {
	State usecases.HistoryState  `json:"state"`
	Error string                 `json:"error,omitempty"`
	Items []usecases.HistoryItem `json:"items"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show past conversations grouped by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer cleanup()

			loadErr := a.Chat.ShowHistory(cmd.Context())
			view := a.Chat.History()
			out := historyOutput{
				State: view.State,
				Error: view.Error,
				Items: usecases.GroupHistory(view.Messages, time.Now()),
			}
			if err := newFormatter(opts, cmd.OutOrStdout()).Emit(out, func(w io.Writer) {
				if out.Error != "" {
					fmt.Fprintln(w, out.Error)
					return
				}
				if len(out.Items) == 0 {
					fmt.Fprintln(w, "No past conversations.")
					return
				}
				printHistory(w, out.Items)
			}); err != nil {
				return err
			}
			if errors.Is(loadErr, entities.ErrUnauthenticated) {
				return loadErr
			}
			return nil
		},
	}
}
