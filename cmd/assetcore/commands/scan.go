package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiwec/neosu-sub001/cache/background"
)

// ScanCmd exercises the beatmap background-filename scanner.
var ScanCmd = &cobra.Command{
	Use:   "scan PATH",
	Short: "extract a beatmap's background filename",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	path := args[0]
	s := background.NewScanner(path)
	if err := s.InitAsync(func() bool { return false }); err != nil {
		return err
	}
	if s.Filename == "" {
		fmt.Printf("%s: no background found\n", path)
		return nil
	}
	fmt.Printf("%s: background = %s\n", path, s.Filename)
	return nil
}
