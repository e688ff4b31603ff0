package imagepipe

// Decoder adapts a decode-from-bytes call into a resource.Lifecycle, so
// image decoding runs on a resource.Manager worker goroutine instead of
// wherever the caller that fetched the bytes happens to call Update — in
// particular, never on the goroutine draining an ioengine or netclient
// completion queue.
type Decoder struct {
	data []byte

	// Image is populated once InitAsync succeeds. Read it only after the
	// owning resource.Handle reports IsAsyncReady or IsReady.
	Image *Image
}

// NewDecoder builds a Decoder over an already-fetched payload.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// InitAsync decodes the payload on the worker goroutine.
func (d *Decoder) InitAsync(interrupted func() bool) error {
	img, err := DecodeBytes(d.data, Interrupted(interrupted))
	if err != nil {
		return err
	}
	d.Image = img
	return nil
}

// Init is a no-op: the decoded pixels are handed to the GPU uploader
// directly by the caller, not finalized here.
func (d *Decoder) Init() error { return nil }

// Destroy drops the reference to the decoded pixel buffer so it can be
// collected once the caller has enqueued (or abandoned) the GPU upload.
func (d *Decoder) Destroy() { d.data = nil; d.Image = nil }
