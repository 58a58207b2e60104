package main

import (
	"os"

	"github.com/kirillkom/docflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
