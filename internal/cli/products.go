package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

// ProductsOptions holds flags for the products command.
type ProductsOptions struct {
	*RootOptions
	Search     string
	Categories []string
	Min        float64
	Max        float64
	Sort       string
	Order      string
	Link       int
}

// NewProductsCommand creates the products command.
func NewProductsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProductsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse products",
		Long: `Browse products, filtered and sorted.

By default the full catalog is listed. With --link the product set of an
assistant reply in the session's conversation is listed instead.

Example:
  chatcart products --category Electronics --max 100 --sort price
  chatcart --session <id> products --link 3 --order desc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProducts(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Search, "query", "q", "", "search name and description")
	cmd.Flags().StringSliceVar(&opts.Categories, "category", nil, "only these categories (repeatable)")
	cmd.Flags().Float64Var(&opts.Min, "min", 0, "minimum price")
	cmd.Flags().Float64Var(&opts.Max, "max", entities.DefaultMaxPrice, "maximum price")
	cmd.Flags().StringVar(&opts.Sort, "sort", string(entities.SortByName), "sort key (name|price|category)")
	cmd.Flags().StringVar(&opts.Order, "order", string(entities.SortAsc), "sort direction (asc|desc)")
	cmd.Flags().IntVar(&opts.Link, "link", -1, "index of a products message in the conversation")

	return cmd
}

func runProducts(cmd *cobra.Command, opts *ProductsOptions) error {
	if opts.Link >= 0 && opts.Session == "" {
		return fmt.Errorf("--link needs --session")
	}

	a, cleanup, err := openApp(cmd.Context(), opts.RootOptions, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.Link >= 0 {
		if _, err := a.Chat.SelectProductsLink(opts.Link); err != nil {
			return err
		}
	}

	criteria := entities.FilterCriteria{
		SearchTerm:         opts.Search,
		SelectedCategories: opts.Categories,
		MinPrice:           opts.Min,
		MaxPrice:           opts.Max,
		SortKey:            entities.SortKey(opts.Sort),
		SortDirection:      entities.SortDirection(opts.Order),
	}
	view, err := a.Catalog.View(cmd.Context(), criteria)
	if err != nil {
		return err
	}

	return newFormatter(opts.RootOptions, cmd.OutOrStdout()).Emit(view, func(w io.Writer) {
		printProducts(w, view.Products)
		fmt.Fprintf(w, "%d of %d products; categories: %v\n", len(view.Products), view.Total, view.Categories)
	})
}

