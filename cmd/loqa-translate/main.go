package main

import (
	"os"

	"github.com/loqalabs/loqa-translate/cmd/loqa-translate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
