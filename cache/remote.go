// Package cache implements the bounded, refcounted remote-image cache
// shared by avatars and thumbnails: a generic template instantiated once
// per identifier type, since both caches follow exactly the same state
// machine over "does this id have a local copy, and is it decoded and
// GPU-resident yet."
package cache

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kiwec/neosu-sub001/gpuupload"
	"github.com/kiwec/neosu-sub001/imagepipe"
	"github.com/kiwec/neosu-sub001/ioengine"
	"github.com/kiwec/neosu-sub001/logger"
	"github.com/kiwec/neosu-sub001/netclient"
	"github.com/kiwec/neosu-sub001/resource"
)

// ItemsPerTick bounds how many queued identifiers update() advances per
// call, so a large backlog never stalls a single frame.
const ItemsPerTick = 4

// StaleAfter is how old a cached file on disk may be before it is
// re-downloaded instead of reused.
const StaleAfter = 7 * 24 * time.Hour

// Config wires a Cache to the subsystems it depends on. DiskPath and
// RemoteURL are the only per-instantiation (avatar vs thumbnail) logic.
type Config[ID comparable] struct {
	Name       string
	MaxLoaded  int
	DiskPath   func(id ID) string
	RemoteURL  func(id ID) string
	IO         *ioengine.Engine
	Net        *netclient.Client
	Resources  *resource.Manager
	Uploader   *gpuupload.Uploader
	StaleAfter time.Duration
}

type entry struct {
	filePath      string
	lastAccess    time.Time
	materializing bool
	decodeFailed  bool
	decodeName    string
	decoder       *resource.Handle
	decoderImpl   *imagepipe.Decoder
	slot          *gpuupload.Slot
	texture       *gpuupload.Texture
}

// Cache is the AvatarCache/ThumbnailCache template: request/discard govern
// a refcount, try_get lazily materializes the decoded+uploaded image, and
// Update drives the disk-check/download/prune cycle once per tick.
type Cache[ID comparable] struct {
	log *zap.SugaredLogger
	cfg Config[ID]

	mu          sync.Mutex
	entries     map[ID]*entry
	refcounts   map[ID]*atomic.Uint32
	loadQueue   []ID
	inQueue     map[ID]bool
	blacklist   map[ID]bool
	downloading map[ID]bool

	lastCheckedIndex int
}

// New builds a Cache. cfg.Name identifies it in log lines ("avatar", "thumbnail").
func New[ID comparable](cfg Config[ID]) *Cache[ID] {
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = StaleAfter
	}
	return &Cache[ID]{
		log:         logger.ComponentLogger("cache." + cfg.Name),
		cfg:         cfg,
		entries:     make(map[ID]*entry),
		refcounts:   make(map[ID]*atomic.Uint32),
		inQueue:     make(map[ID]bool),
		blacklist:   make(map[ID]bool),
		downloading: make(map[ID]bool),
	}
}

// Request increments id's refcount. The first reference enqueues a load
// unless id is already cached or blacklisted; later references are no-ops
// beyond the refcount bump.
func (c *Cache[ID]) Request(id ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rc := c.refcounts[id]
	if rc == nil {
		rc = &atomic.Uint32{}
		c.refcounts[id] = rc
	}
	if rc.Add(1) > 1 {
		return
	}
	if _, cached := c.entries[id]; cached {
		return
	}
	if c.blacklist[id] {
		return
	}
	if !c.inQueue[id] {
		c.loadQueue = append(c.loadQueue, id)
		c.inQueue[id] = true
	}
}

// Discard decrements id's refcount. If it reaches zero and id is still
// queued (never loaded), it is dequeued; already-loaded entries are only
// ever removed by age-based pruning.
func (c *Cache[ID]) Discard(id ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rc := c.refcounts[id]
	if rc == nil {
		return
	}
	if rc.Add(^uint32(0)) != 0 {
		return
	}
	if c.inQueue[id] {
		c.removeFromQueueLocked(id)
	}
}

// TryGet returns the GPU-resident texture for id, if and only if it is
// loaded and upload-ready. Never blocks: a miss lazily kicks off
// materialization (disk read, decode, GPU enqueue) for next time.
func (c *Cache[ID]) TryGet(id ID) (*gpuupload.Texture, bool) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	e.lastAccess = time.Now()

	if e.texture != nil {
		tex := e.texture
		c.mu.Unlock()
		return tex, true
	}
	if e.slot != nil && e.slot.State() == gpuupload.Ready {
		e.texture = e.slot.Texture()
		tex := e.texture
		c.mu.Unlock()
		return tex, true
	}
	needsMaterialize := e.slot == nil && !e.materializing && !e.decodeFailed
	if needsMaterialize {
		e.materializing = true
	}
	filePath := e.filePath
	c.mu.Unlock()

	if needsMaterialize {
		c.materialize(id, filePath)
	}
	return nil, false
}

// materialize kicks off an async read-then-decode for id. Decoding runs on a
// resource.Manager worker goroutine (via a Decoder Lifecycle), not inline in
// this IO completion callback, so it never blocks whatever goroutine calls
// Update.
func (c *Cache[ID]) materialize(id ID, filePath string) {
	if c.cfg.IO == nil {
		return
	}
	c.cfg.IO.Read(filePath, func(data []byte, err error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		e := c.entries[id]
		if e == nil {
			return
		}
		if err != nil {
			c.log.Debugw("materialize read failed", logger.FieldPath, filePath, "error", err)
			e.decodeFailed = true
			e.materializing = false
			return
		}
		if c.cfg.Resources == nil {
			e.decodeFailed = true
			e.materializing = false
			return
		}

		decoder := imagepipe.NewDecoder(data)
		name := fmt.Sprintf("%s-decode:%v", c.cfg.Name, id)
		handle, loadErr := c.cfg.Resources.Load(name, func() resource.Lifecycle { return decoder })
		if loadErr != nil {
			c.log.Debugw("failed to schedule decode", logger.FieldResource, name, "error", loadErr)
			e.decodeFailed = true
			e.materializing = false
			return
		}
		e.decodeName = name
		e.decoder = handle
		e.decoderImpl = decoder
	})
}

// pollDecodesLocked finishes any decode that became ready since the last
// Update, handing its pixels to the GPU uploader and releasing the decode
// resource. Caller holds c.mu.
func (c *Cache[ID]) pollDecodesLocked() {
	for _, e := range c.entries {
		if e.decoder == nil {
			continue
		}
		if e.decoder.IsFailed() {
			e.decodeFailed = true
			e.materializing = false
			c.releaseDecoderLocked(e)
			continue
		}
		if !e.decoder.IsReady() {
			continue
		}

		img := e.decoderImpl.Image
		if img == nil {
			e.decodeFailed = true
		} else {
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
		}
		e.materializing = false
		c.releaseDecoderLocked(e)
	}
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

// Clear destroys every image and resets all state.
func (c *Cache[ID]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		c.releaseDecoderLocked(e)
		e.texture.Release()
	}
	c.entries = make(map[ID]*entry)
	c.refcounts = make(map[ID]*atomic.Uint32)
	c.loadQueue = nil
	c.inQueue = make(map[ID]bool)
	c.blacklist = make(map[ID]bool)
	c.downloading = make(map[ID]bool)
	c.lastCheckedIndex = 0
}

// Update runs one tick of the disk-check/download/prune cycle. Call it
// once per frame while not in critical gameplay.
func (c *Cache[ID]) Update() {
	c.mu.Lock()
	if c.cfg.Resources != nil {
		c.cfg.Resources.Update()
	}
	c.pollDecodesLocked()
	c.pruneLocked()
	if len(c.loadQueue) == 0 {
		c.mu.Unlock()
		return
	}

	c.lastCheckedIndex %= len(c.loadQueue)
	n := ItemsPerTick
	if n > len(c.loadQueue) {
		n = len(c.loadQueue)
	}

	ids := make([]ID, 0, n)
	idx := c.lastCheckedIndex
	for i := 0; i < n; i++ {
		if idx >= len(c.loadQueue) {
			break
		}
		ids = append(ids, c.loadQueue[idx])
		idx++
	}
	c.lastCheckedIndex = idx
	c.mu.Unlock()

	for _, id := range ids {
		c.processQueued(id)
	}
}

func (c *Cache[ID]) processQueued(id ID) {
	c.mu.Lock()
	if !c.inQueue[id] {
		c.mu.Unlock()
		return
	}
	if c.downloading[id] {
		c.mu.Unlock()
		return
	}
	path := c.cfg.DiskPath(id)
	c.mu.Unlock()

	if info, err := os.Stat(path); err == nil {
		if time.Since(info.ModTime()) < c.cfg.StaleAfter {
			c.mu.Lock()
			c.entries[id] = &entry{filePath: path, lastAccess: time.Now()}
			c.removeFromQueueLocked(id)
			c.mu.Unlock()
			return
		}
	}

	c.startDownload(id, path)
}

func (c *Cache[ID]) startDownload(id ID, path string) {
	if c.cfg.Net == nil || c.cfg.RemoteURL == nil {
		return
	}
	c.mu.Lock()
	c.downloading[id] = true
	c.removeFromQueueLocked(id)
	c.mu.Unlock()

	url := c.cfg.RemoteURL(id)
	c.cfg.Net.Send(&netclient.Request{
		Method: "GET",
		URL:    url,
		OnProgress: func(received, total int64) {
			if received == -1 {
				c.mu.Lock()
				c.blacklist[id] = true
				delete(c.downloading, id)
				c.mu.Unlock()
			}
		},
		OnComplete: func(resp *netclient.Response) {
			c.mu.Lock()
			delete(c.downloading, id)
			c.mu.Unlock()

			if resp == nil || !resp.Success || len(resp.Body) == 0 {
				c.mu.Lock()
				c.blacklist[id] = true
				c.mu.Unlock()
				return
			}

			if c.cfg.IO == nil {
				return
			}
			payload := resp.Body
			c.cfg.IO.Write(path, payload, func(err error) {
				if err != nil {
					c.log.Debugw("cache write failed", logger.FieldPath, path, "error", err)
					return
				}
				c.mu.Lock()
				if _, alive := c.refcounts[id]; alive {
					c.entries[id] = &entry{filePath: path, lastAccess: time.Now()}
				}
				c.mu.Unlock()
			})
		},
	})
}

// removeFromQueueLocked removes id from loadQueue. Caller holds c.mu.
func (c *Cache[ID]) removeFromQueueLocked(id ID) {
	if !c.inQueue[id] {
		return
	}
	delete(c.inQueue, id)
	for i, q := range c.loadQueue {
		if q == id {
			c.loadQueue = append(c.loadQueue[:i], c.loadQueue[i+1:]...)
			if c.lastCheckedIndex > i {
				c.lastCheckedIndex--
			}
			return
		}
	}
}

// pruneLocked unloads the oldest quarter of loaded entries once MAX_LOADED
// is exceeded, capped at half the loaded set. Caller holds c.mu.
func (c *Cache[ID]) pruneLocked() {
	if c.cfg.MaxLoaded <= 0 || len(c.entries) <= c.cfg.MaxLoaded {
		return
	}

	type aged struct {
		id ID
		at time.Time
	}
	loaded := make([]aged, 0, len(c.entries))
	for id, e := range c.entries {
		loaded = append(loaded, aged{id, e.lastAccess})
	}
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].at.Before(loaded[j].at) })

	evictCount := len(loaded) / 4
	if half := len(loaded) / 2; evictCount > half {
		evictCount = half
	}
	for i := 0; i < evictCount; i++ {
		id := loaded[i].id
		c.releaseDecoderLocked(c.entries[id])
		c.entries[id].texture.Release()
		delete(c.entries, id)
	}
}
