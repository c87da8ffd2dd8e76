package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fridgecat/fridgecat-go/cmd/crawl"
	"github.com/fridgecat/fridgecat-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fridgecat",
		Short: "FridgeCat catalog ingestion CLI",
	}

	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "enable debug output")

	rootCmd.AddCommand(crawl.Command(settings))

	return rootCmd
}
