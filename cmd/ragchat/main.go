// Command ragchat answers questions about a documentation corpus. It embeds
// the question, retrieves matching chunks from a vector index and streams a
// grounded model answer, either over HTTP (serve) or to the terminal (ask).
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragchat-go/cmd/ragchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
