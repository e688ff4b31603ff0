package background

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kiwec/neosu-sub001/gpuupload"
	"github.com/kiwec/neosu-sub001/imagepipe"
	"github.com/kiwec/neosu-sub001/ioengine"
	"github.com/kiwec/neosu-sub001/logger"
	"github.com/kiwec/neosu-sub001/resource"
)

// DefaultDelay is how long a schedule waits before the scan/load actually
// starts, giving a beatmap a chance to scroll past without doing any work.
const DefaultDelay = 100 * time.Millisecond

// DefaultEvictionFrames is how many frames an unused entry survives before
// being torn down.
const DefaultEvictionFrames = int64(300)

// Beatmap is the minimal seam this cache needs into the beatmap domain
// model: where its files live, and whether its background filename has
// already been parsed out.
type Beatmap interface {
	BeatmapFilePath() string
	FolderPath() string
	BackgroundFilename() (string, bool)
	SetBackgroundFilename(name string)
}

type entryState int

const (
	stateScheduled entryState = iota
	stateScanning
	stateImageLoading
	stateReady
	stateFailed
)

type entry struct {
	beatmap Beatmap

	state         entryState
	scheduledAt   time.Time
	evictionFrame int64
	usedLastFrame bool

	scanName    string
	scanner     *resource.Handle
	scannerImpl *Scanner

	materializing bool
	decodeName    string
	decoder       *resource.Handle
	decoderImpl   *imagepipe.Decoder
	uploadQueued  bool
	slot          *gpuupload.Slot
	texture       *gpuupload.Texture
}

// Config wires a Cache to the subsystems it depends on.
type Config struct {
	MaxLoaded      int
	Delay          time.Duration
	EvictionFrames int64
	IO             *ioengine.Engine
	Resources      *resource.Manager
	Uploader       *gpuupload.Uploader
}

// Cache is the BackgroundImageCache: a frame-driven, two-stage (scan, then
// load) cache of beatmap background images, keyed by an opaque ID the
// caller chooses (typically a beatmap set+diff identifier).
type Cache[ID comparable] struct {
	log *zap.SugaredLogger
	cfg Config

	mu      sync.Mutex
	entries map[ID]*entry
	frame   int64
	freeze  bool
}

// New builds a Cache with the given configuration.
func New[ID comparable](cfg Config) *Cache[ID] {
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.EvictionFrames == 0 {
		cfg.EvictionFrames = DefaultEvictionFrames
	}
	return &Cache[ID]{
		log:     logger.ComponentLogger("cache.background"),
		cfg:     cfg,
		entries: make(map[ID]*entry),
	}
}

// GetLoad marks id as used this frame, scheduling its first load if this is
// the first request, and returns its texture if and only if it is already
// loaded. Never blocks.
func (c *Cache[ID]) GetLoad(id ID, bm Beatmap) (*gpuupload.Texture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[id]
	if !exists {
		if c.cfg.MaxLoaded > 0 && len(c.entries) >= c.cfg.MaxLoaded {
			c.evictScheduledOnlyLocked()
		}
		e = &entry{
			beatmap:     bm,
			state:       stateScheduled,
			scheduledAt: time.Now().Add(c.cfg.Delay),
		}
		c.entries[id] = e
	}
	e.usedLastFrame = true
	e.evictionFrame = c.frame + c.cfg.EvictionFrames

	return e.texture, e.state == stateReady && e.texture != nil
}

// evictScheduledOnlyLocked drops every entry that is still in
// "scheduled but not yet loading" state, on the assumption a speculative
// request that never advanced is no longer wanted. Caller holds c.mu.
func (c *Cache[ID]) evictScheduledOnlyLocked() {
	for id, e := range c.entries {
		if e.state == stateScheduled {
			delete(c.entries, id)
		}
	}
}

// Freeze prevents eviction for the next Update call, so assets scheduled
// for destruction survive a scene's first frame of use across a switch.
func (c *Cache[ID]) Freeze() {
	c.mu.Lock()
	c.freeze = true
	c.mu.Unlock()
}

// Update advances every entry's state machine by one frame: kicking off
// scans/loads whose scheduled time has arrived, promoting finished scans,
// and evicting anything unused past its eviction frame.
func (c *Cache[ID]) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Resources != nil {
		c.cfg.Resources.Update()
	}

	now := time.Now()
	for id, e := range c.entries {
		switch e.state {
		case stateScheduled:
			if e.usedLastFrame && now.After(e.scheduledAt) {
				if fn, ok := e.beatmap.BackgroundFilename(); ok && fn != "" {
					c.startImageLoadLocked(id, e, fn)
				} else {
					c.startScanLocked(id, e)
				}
			}
		case stateScanning:
			if e.scanner == nil {
				continue
			}
			if e.scanner.IsReady() {
				fn := e.scannerImpl.Filename
				if fn == "" {
					e.state = stateFailed
				} else {
					e.beatmap.SetBackgroundFilename(fn)
					c.startImageLoadLocked(id, e, fn)
				}
			} else if e.scanner.IsFailed() {
				e.state = stateFailed
			}
		case stateImageLoading:
			if e.decoder != nil && !e.uploadQueued {
				if e.decoder.IsFailed() {
					e.state = stateFailed
					c.releaseDecoderLocked(e)
				} else if e.decoder.IsReady() {
					c.enqueueUploadLocked(id, e)
				}
			}
			if e.slot != nil && e.slot.State() == gpuupload.Ready {
				e.texture = e.slot.Texture()
				if e.texture != nil {
					e.state = stateReady
				} else {
					e.state = stateFailed
				}
			}
		}
	}

	c.evictLocked()

	for _, e := range c.entries {
		e.usedLastFrame = false
	}
	c.frame++
	c.freeze = false
}

func (c *Cache[ID]) startScanLocked(id ID, e *entry) {
	if c.cfg.Resources == nil {
		e.state = stateFailed
		return
	}
	scanner := NewScanner(e.beatmap.BeatmapFilePath())
	name := fmt.Sprintf("bg-scan:%v", id)
	handle, err := c.cfg.Resources.Load(name, func() resource.Lifecycle { return scanner })
	if err != nil {
		c.log.Debugw("failed to schedule background scan", logger.FieldResource, name, "error", err)
		e.state = stateFailed
		return
	}
	e.scanName = name
	e.scanner = handle
	e.scannerImpl = scanner
	e.state = stateScanning
}

func (c *Cache[ID]) startImageLoadLocked(id ID, e *entry, filename string) {
	e.state = stateImageLoading
	path := filepath.Join(e.beatmap.FolderPath(), filename)

	if e.materializing || c.cfg.IO == nil {
		return
	}
	e.materializing = true

	c.cfg.IO.Read(path, func(data []byte, err error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		cur, ok := c.entries[id]
		if !ok || cur != e {
			return
		}
		if err != nil {
			e.state = stateFailed
			return
		}
		if c.cfg.Resources == nil {
			e.state = stateFailed
			return
		}

		decoder := imagepipe.NewDecoder(data)
		name := fmt.Sprintf("bg-decode:%v", id)
		handle, loadErr := c.cfg.Resources.Load(name, func() resource.Lifecycle { return decoder })
		if loadErr != nil {
			c.log.Debugw("failed to schedule background decode", logger.FieldResource, name, "error", loadErr)
			e.state = stateFailed
			return
		}
		e.decodeName = name
		e.decoder = handle
		e.decoderImpl = decoder
	})
}

// enqueueUploadLocked hands a successfully decoded image off to the GPU
// uploader and releases the now-finished decode resource. Caller holds c.mu.
func (c *Cache[ID]) enqueueUploadLocked(id ID, e *entry) {
	e.uploadQueued = true
	img := e.decoderImpl.Image
	if img == nil {
		e.state = stateFailed
		c.releaseDecoderLocked(e)
		return
	}

	slot := &gpuupload.Slot{}
	e.slot = slot
	if c.cfg.Uploader != nil {
		c.cfg.Uploader.Enqueue(&gpuupload.Request{
			Pixels: img.Pixels,
			Width:  img.Width,
			Height: img.Height,
			Slot:   slot,
		})
	}
	c.releaseDecoderLocked(e)
}

// releaseDecoderLocked tears down a finished (or abandoned) decode handle.
// Caller holds c.mu.
func (c *Cache[ID]) releaseDecoderLocked(e *entry) {
	if e.decoder == nil {
		return
	}
	e.decoder.Destroy()
	if c.cfg.Resources != nil {
		c.cfg.Resources.Release(e.decodeName)
	}
	e.decoder = nil
	e.decoderImpl = nil
}

// evictLocked tears down and removes every entry not used last frame whose
// eviction frame has arrived. Caller holds c.mu.
func (c *Cache[ID]) evictLocked() {
	if c.freeze {
		return
	}
	for id, e := range c.entries {
		if e.usedLastFrame || c.frame < e.evictionFrame {
			continue
		}
		c.destroyEntryLocked(id, e)
	}
}

func (c *Cache[ID]) destroyEntryLocked(id ID, e *entry) {
	if e.scanner != nil {
		e.scanner.Destroy()
		if c.cfg.Resources != nil {
			c.cfg.Resources.Release(e.scanName)
		}
	}
	c.releaseDecoderLocked(e)
	e.texture.Release()
	delete(c.entries, id)
}

// Clear tears down every entry and resets the frame counter.
func (c *Cache[ID]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		c.destroyEntryLocked(id, e)
	}
	c.entries = make(map[ID]*entry)
	c.frame = 0
	c.freeze = false
}
