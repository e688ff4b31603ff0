package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiwec/neosu-sub001/cmd/assetcore/commands"
	"github.com/kiwec/neosu-sub001/logger"
)

var rootCmd = &cobra.Command{
	Use:   "assetcore",
	Short: "assetcore - async resource I/O subsystem diagnostics",
	Long: `assetcore exercises the async file I/O engine, resource loader pool,
image decode/upload pipeline, and bounded asset caches from the command
line, without needing a running game client.

Available commands:
  io       - read files through the async I/O engine
  image    - decode an image file through the pipeline
  scan     - extract a beatmap's background filename
  config   - inspect and edit cvar configuration
  version  - show build information`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.IOCmd)
	rootCmd.AddCommand(commands.ImageCmd)
	rootCmd.AddCommand(commands.ScanCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
