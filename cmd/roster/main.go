package main

import (
	"os"

	"github.com/grovetools/roster/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
