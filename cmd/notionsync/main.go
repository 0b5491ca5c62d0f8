// Command notionsync mirrors a Notion page or database tree into SQLite.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/notionsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "notionsync:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
