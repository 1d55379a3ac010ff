package main

import (
	"fmt"
	"os"

	"github.com/lumeno-study/lumeno/internal/configuration"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := configuration.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
