package gpuupload

import (
	"github.com/gogpu/wgpu"
)

// FilterMode mirrors the request's sampling configuration; it is a thin
// rename over wgpu's type so callers of this package don't need to import
// wgpu directly just to build a Request.
type FilterMode = wgpu.FilterMode

// WrapMode mirrors the request's addressing configuration.
type WrapMode = wgpu.AddressMode

// Texture is the finalized GPU handle an Image takes ownership of once its
// Slot reaches Ready. Release must be called exactly once, from the main
// thread, when the owning resource is destroyed.
type Texture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
	Width   int
	Height  int
}

// Release destroys the underlying GPU objects. Safe to call on a nil
// receiver (no-op), matching the "destroy must be repeat-safe" contract.
func (t *Texture) Release() {
	if t == nil {
		return
	}
	if t.sampler != nil {
		t.sampler.Release()
	}
	if t.view != nil {
		t.view.Release()
	}
	if t.texture != nil {
		t.texture.Release()
	}
}
