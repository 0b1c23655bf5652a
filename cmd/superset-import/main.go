package main

import (
	"os"

	"github.com/majorcontext/superset-import/cmd/superset-import/cli"
	"github.com/majorcontext/superset-import/internal/ui"
)

func main() {
	if err := cli.Execute(); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}
