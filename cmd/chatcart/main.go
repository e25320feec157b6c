// Command chatcart is the conversational storefront client.
package main

import (
	"fmt"
	"os"

	"github.com/0xcro3dile/chatcart/internal/cli"
	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", entities.DisplayMessage(err))
		os.Exit(1)
	}
}
