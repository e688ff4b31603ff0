package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiwec/neosu-sub001/ioengine"
)

// IOCmd exercises the async I/O engine from the command line.
var IOCmd = &cobra.Command{
	Use:   "io",
	Short: "read files through the async I/O engine",
}

var ioReadCmd = &cobra.Command{
	Use:   "read PATH",
	Short: "read a file through the async I/O engine and report its size",
	Args:  cobra.ExactArgs(1),
	RunE:  runIORead,
}

func init() {
	IOCmd.AddCommand(ioReadCmd)
}

func runIORead(cmd *cobra.Command, args []string) error {
	path := args[0]
	eng := ioengine.New(1)
	defer eng.Shutdown()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	if !eng.Read(path, func(data []byte, err error) {
		done <- result{len(data), err}
	}) {
		return fmt.Errorf("read was rejected: %s", path)
	}

	deadline := time.After(10 * time.Second)
	for {
		eng.Update()
		select {
		case r := <-done:
			if r.err != nil {
				return r.err
			}
			fmt.Printf("%s: %d bytes\n", path, r.n)
			return nil
		case <-deadline:
			return fmt.Errorf("timed out waiting for read: %s", path)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
