// Command docchat serves the chat-with-your-PDF API and offers operator and
// terminal-chat subcommands against it.
package main

import (
	"fmt"
	"os"

	"docchat/cmd/docchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
