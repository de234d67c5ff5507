package main

import (
	"os"

	"github.com/existflow/goalpost/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
