// Command enginehostd is the process entry point. All logic lives in
// internal/cli; this file only wires panic recovery around it.
package main

import (
	"fmt"
	"os"

	"github.com/ChuLiYu/beaver-engine/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := cli.BuildCLI().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
