package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiwec/neosu-sub001/imagepipe"
)

// ImageCmd exercises the decode pipeline from the command line.
var ImageCmd = &cobra.Command{
	Use:   "image",
	Short: "decode an image file through the image pipeline",
}

var imageDecodeCmd = &cobra.Command{
	Use:   "decode PATH",
	Short: "decode an image and print its dimensions and pixel format",
	Args:  cobra.ExactArgs(1),
	RunE:  runImageDecode,
}

func init() {
	ImageCmd.AddCommand(imageDecodeCmd)
}

func runImageDecode(cmd *cobra.Command, args []string) error {
	path := args[0]
	img, err := imagepipe.Decode(path, nil)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %dx%d, %d bytes decoded\n", path, img.Width, img.Height, len(img.Pixels))
	return nil
}
