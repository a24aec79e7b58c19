// Package main provides the entry point for the meilihook CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/meilihook/cmd/meilihook/cmd"
	"github.com/Aman-CERP/meilihook/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
		os.Exit(1)
	}
}
