package main

import (
	"os"

	"github.com/seedforge/seedforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
