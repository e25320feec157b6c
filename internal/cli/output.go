package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
	"github.com/0xcro3dile/chatcart/internal/domain/usecases"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func newFormatter(opts *RootOptions, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w}
}

// Emit writes v as JSON, or calls text for the text format.
func (f *OutputFormatter) Emit(v any, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(f.Writer)
	return nil
}

func printCart(w io.Writer, cart cartOutput) {
	if cart.Lines == 0 {
		fmt.Fprintln(w, "Your cart is empty.")
		return
	}
	for _, it := range cart.Items {
		fmt.Fprintf(w, "%-6s %-32s %3d x %10.2f\n", it.ID, it.Name, it.Quantity, it.Price)
	}
	fmt.Fprintf(w, "%d items in %d lines, total $%s\n", cart.Count, cart.Lines, cart.Total)
}

func printMessages(w io.Writer, msgs []entities.ChatMessage) {
	for i, m := range msgs {
		who := "you"
		if m.Sender == entities.SenderBot {
			who = "bot"
		}
		line := fmt.Sprintf("[%d] %s %s: %s", i, m.Timestamp.Local().Format("15:04"), who, m.Text)
		if m.IsProductsLink() {
			line += fmt.Sprintf("  (chatcart products --link %d)", i)
		}
		fmt.Fprintln(w, line)
	}
}

func printHistory(w io.Writer, items []usecases.HistoryItem) {
	for _, it := range items {
		if it.Kind == usecases.HistoryHeader {
			label := it.Label
			if label == "" {
				label = "Unknown date"
			}
			fmt.Fprintf(w, "-- %s --\n", label)
			continue
		}
		who := "you"
		if it.Message.Sender == entities.SenderBot {
			who = "bot"
		}
		fmt.Fprintf(w, "  %s: %s\n", who, it.Message.Text)
	}
}

func printProducts(w io.Writer, products []entities.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, "No products found matching your criteria.")
		return
	}
	for _, p := range products {
		fmt.Fprintf(w, "%-6s %-32s %-14s %10.2f\n", p.ID, p.Name, p.Category, p.Price)
		if d := strings.TrimSpace(p.Description); d != "" {
			fmt.Fprintf(w, "       %s\n", d)
		}
	}
}
