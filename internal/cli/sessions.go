package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List resumable sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer cleanup()

			ids, err := a.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			// the session opened for this command is not listed
			out := make([]string, 0, len(ids))
			for _, id := range ids {
				if id != a.SessionID {
					out = append(out, id)
				}
			}
			return newFormatter(opts, cmd.OutOrStdout()).Emit(out, func(w io.Writer) {
				for _, id := range out {
					fmt.Fprintln(w, id)
				}
			})
		},
	}
}
