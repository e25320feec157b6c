package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer cleanup()

			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Proceed to checkout with %d items for a total of $%s? Re-run with --yes to confirm.\n",
					len(a.Cart.Items()), a.Cart.Total())
				return nil
			}

			order, err := a.Checkout.PlaceOrder(cmd.Context())
			if err != nil {
				var remote *entities.RemoteError
				if errors.As(err, &remote) {
					return fmt.Errorf("Checkout failed: %s", remote.Error())
				}
				return err
			}
			return newFormatter(opts, cmd.OutOrStdout()).Emit(order, func(w io.Writer) {
				fmt.Fprintf(w, "Order placed successfully! Order ID: %s\n", order.ID)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the order")

	return cmd
}
