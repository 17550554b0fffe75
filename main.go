package main

import (
	"os"

	"github.com/imishinist/markercheck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
