package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/chatcart/internal/app"
	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

type cartOutput struct {
	Items []entities.CartItem `json:"items"`
	Total string              `json:"total"`
	Count int                 `json:"count"`
	Lines int                 `json:"lines"`
}

// NewCartCommand creates the cart command group.
func NewCartCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit the shopping cart",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "List cart lines and the total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(cmd, opts, func(a cartEditor) error { return nil })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a catalog product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(cmd, opts, func(a cartEditor) error {
				p, err := a.lookup(cmd, entities.ID(args[0]))
				if err != nil {
					return err
				}
				a.Cart.AddItem(cmd.Context(), *p)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(cmd, opts, func(a cartEditor) error {
				a.Cart.RemoveItem(cmd.Context(), entities.ID(args[0]))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Set a line's quantity; zero or less removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(cmd, opts, func(a cartEditor) error {
				a.Cart.SetQuantityText(cmd.Context(), entities.ID(args[0]), args[1])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(cmd, opts, func(a cartEditor) error {
				a.Cart.Clear(cmd.Context())
				return nil
			})
		},
	})

	return cmd
}

// withCart opens the session, applies edit and prints the resulting cart.
func withCart(cmd *cobra.Command, opts *RootOptions, edit func(a cartEditor) error) error {
	a, cleanup, err := openApp(cmd.Context(), opts, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := edit(cartEditor{a}); err != nil {
		return err
	}
	if status := a.Cart.LastWrite(); status.Err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: cart not saved: %v\n", status.Err)
	}

	out := cartOutput{Items: a.Cart.Items(), Total: a.Cart.Total(), Count: a.Cart.ItemCount(), Lines: a.Cart.Len()}
	return newFormatter(opts, cmd.OutOrStdout()).Emit(out, func(w io.Writer) {
		printCart(w, out)
	})
}

type cartEditor struct {
	*app.App
}

// lookup finds id in the full catalog.
func (a cartEditor) lookup(cmd *cobra.Command, id entities.ID) (*entities.Product, error) {
	if _, err := a.Catalog.View(cmd.Context(), entities.DefaultFilterCriteria()); err != nil {
		return nil, err
	}
	return a.Catalog.Product(id)
}
