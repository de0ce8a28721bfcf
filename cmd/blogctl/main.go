// Command blogctl is the operator tool for a starblog database.
package main

import (
	"os"

	"github.com/sakif/starblog/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
