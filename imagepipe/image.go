// Package imagepipe decodes image files (or raw pixel buffers) into an
// owned RGBA byte buffer on a worker goroutine, with coarse-grained
// interruption support and the client's transparency-shortcut optimization.
package imagepipe

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/kiwec/neosu-sub001/errors"
	"github.com/kiwec/neosu-sub001/logger"
)

// MaxDimension caps both width and height; anything larger is rejected.
const MaxDimension = 8192

// Image owns a decoded RGBA pixel buffer. Zero value is not usable; build
// one via Decode or New.
type Image struct {
	Width, Height int
	Pixels        []byte // RGBA, row-major, width*height*4 bytes

	// EntirelyTransparent is set when every alpha byte decoded to zero for a
	// PNG whose color type indicates an alpha channel. Such images can skip
	// GPU upload entirely.
	EntirelyTransparent bool
}

// New allocates a blank width x height RGBA image. debugFill controls whether
// pixels start zeroed (production) or magenta (debug, to make missing
// textures visually obvious).
func New(width, height int, debugFill bool) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Newf("invalid image dimensions %dx%d", width, height)
	}
	if width > MaxDimension || height > MaxDimension {
		return nil, errors.Wrapf(errors.ErrOversize, "image dimensions %dx%d exceed cap %d", width, height, MaxDimension)
	}

	pixels := make([]byte, width*height*4)
	if debugFill {
		for i := 0; i < len(pixels); i += 4 {
			pixels[i] = 0xFF   // R
			pixels[i+1] = 0x00 // G
			pixels[i+2] = 0xFF // B
			pixels[i+3] = 0xFF // A
		}
	}

	return &Image{Width: width, Height: height, Pixels: pixels}, nil
}

// Interrupted is polled between decode stages; returning true aborts the
// decode with no error and no logging (an interruption is not a failure).
type Interrupted func() bool

// errAbortedByInterrupt short-circuits decode internally; it is never
// surfaced to callers, who instead get (nil, nil) on interruption.
var errAbortedByInterrupt = errors.New("decode interrupted")

// Decode reads path's full contents and decodes it into an RGBA Image.
// Returns (nil, nil) if interrupted mid-decode, per contract: interruption
// is not an error.
func Decode(path string, interrupted Interrupted) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading image file: %s", path)
	}
	if len(data) == 0 {
		return nil, errors.Wrapf(errors.ErrOversize, "empty image file: %s", path)
	}

	img, err := decodeBytes(data, interrupted)
	if err != nil {
		if errors.Is(err, errAbortedByInterrupt) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "decoding image: %s", path)
	}
	return img, nil
}

// DecodeBytes decodes an already-in-memory payload, for callers (such as a
// remote image cache) that fetch bytes themselves via AsyncIOEngine or the
// network client instead of handing Decode a path.
func DecodeBytes(data []byte, interrupted Interrupted) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(errors.ErrOversize, "empty image payload")
	}
	img, err := decodeBytes(data, interrupted)
	if err != nil {
		if errors.Is(err, errAbortedByInterrupt) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "decoding image payload")
	}
	return img, nil
}

func decodeBytes(data []byte, interrupted Interrupted) (*Image, error) {
	if interrupted != nil && interrupted() {
		return nil, errAbortedByInterrupt
	}

	switch detectFormat(data) {
	case formatPNG:
		return decodePNG(data, interrupted)
	case formatJPEG:
		return decodeJPEG(data, interrupted)
	default:
		return decodeFallback(data, interrupted)
	}
}

type format int

const (
	formatUnknown format = iota
	formatPNG
	formatJPEG
)

func detectFormat(data []byte) format {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return formatPNG
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return formatJPEG
	default:
		return formatUnknown
	}
}

func decodePNG(data []byte, interrupted Interrupted) (*Image, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "png: decoding header")
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	if interrupted != nil && interrupted() {
		return nil, errAbortedByInterrupt
	}

	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Logger.Debugw("png decode warning", logger.FieldError, err)
		return nil, errors.Wrap(err, "png: decoding image")
	}

	if interrupted != nil && interrupted() {
		return nil, errAbortedByInterrupt
	}

	hasAlpha := colorModelHasAlpha(cfg.ColorModel)
	return toRGBA(src, hasAlpha), nil
}

func decodeJPEG(data []byte, interrupted Interrupted) (*Image, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "jpeg: decoding header")
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	if interrupted != nil && interrupted() {
		return nil, errAbortedByInterrupt
	}

	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "jpeg: decoding image")
	}
	return toRGBA(src, false), nil
}

// decodeFallback handles any format the two primary decoders don't claim:
// BMP and TIFF, via golang.org/x/image. JPEG/PNG are already handled above
// by magic bytes, so image.Decode's own format sniffing is sufficient here.
func decodeFallback(data []byte, interrupted Interrupted) (*Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Try the two registered fallback formats explicitly in case the
		// generic registry lookup above didn't have them registered by the
		// caller's import graph.
		if bmpImg, bmpErr := bmp.Decode(bytes.NewReader(data)); bmpErr == nil {
			src = bmpImg
		} else if tiffImg, tiffErr := tiff.Decode(bytes.NewReader(data)); tiffErr == nil {
			src = tiffImg
		} else {
			return nil, errors.Wrap(err, "fallback: unrecognized image format")
		}
	}

	bounds := src.Bounds()
	if err := checkDimensions(bounds.Dx(), bounds.Dy()); err != nil {
		return nil, err
	}
	if interrupted != nil && interrupted() {
		return nil, errAbortedByInterrupt
	}

	return toRGBA(src, false), nil
}

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Newf("invalid image dimensions %dx%d", width, height)
	}
	if width > MaxDimension || height > MaxDimension {
		return errors.Wrapf(errors.ErrOversize, "image dimensions %dx%d exceed cap %d", width, height, MaxDimension)
	}
	return nil
}

func colorModelHasAlpha(model color.Model) bool {
	switch model {
	case color.NRGBAModel, color.RGBAModel, color.NRGBA64Model, color.RGBA64Model, color.AlphaModel, color.Alpha16Model:
		return true
	default:
		return false
	}
}

// toRGBA copies src into a tightly packed RGBA buffer, row by row, and
// (for formats that can carry an alpha channel) detects full transparency.
func toRGBA(src image.Image, checkTransparency bool) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, w*h*4)

	allTransparent := checkTransparency
	for y := 0; y < h; y++ {
		rowOff := y * w * 4
		for x := 0; x < w; x++ {
			r, g, b, a := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := rowOff + x*4
			pixels[i] = byte(r >> 8)
			pixels[i+1] = byte(g >> 8)
			pixels[i+2] = byte(b >> 8)
			pixels[i+3] = byte(a >> 8)
			if pixels[i+3] != 0 {
				allTransparent = false
			}
		}
	}

	return &Image{Width: w, Height: h, Pixels: pixels, EntirelyTransparent: allTransparent}
}

// GetPixel returns the ARGB value at (x, y).
func (img *Image) GetPixel(x, y int) (a, r, g, b byte) {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return 0, 0, 0, 0
	}
	i := (y*img.Width + x) * 4
	return img.Pixels[i+3], img.Pixels[i], img.Pixels[i+1], img.Pixels[i+2]
}

// SetPixel overwrites a single RGBA quad at (x, y) and clears the
// transparency-optimization flag if the buffer was not already all
// transparent.
func (img *Image) SetPixel(x, y int, r, g, b, a byte) {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return
	}
	i := (y*img.Width + x) * 4
	img.Pixels[i] = r
	img.Pixels[i+1] = g
	img.Pixels[i+2] = b
	img.Pixels[i+3] = a
	img.clearTransparencyFlag()
}

// SetPixels bulk-replaces the entire pixel buffer. data must be exactly
// Width*Height*4 bytes.
func (img *Image) SetPixels(data []byte) error {
	if len(data) != len(img.Pixels) {
		return errors.Newf("pixel buffer size mismatch: got %d, want %d", len(data), len(img.Pixels))
	}
	copy(img.Pixels, data)
	img.clearTransparencyFlag()
	return nil
}

func (img *Image) clearTransparencyFlag() {
	if img.EntirelyTransparent {
		img.EntirelyTransparent = false
	}
}
