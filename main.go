package main

import (
	"fmt"
	"os"

	"github.com/fridgecat/fridgecat-go/cmd"
	"github.com/fridgecat/fridgecat-go/internal/conf"
	"github.com/fridgecat/fridgecat-go/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
