// Command consolectl drives a replayconsole server from the shell.
package main

import (
	"os"

	"github.com/snehjoshi/replayconsole/cmd/consolectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
