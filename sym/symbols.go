// Package sym defines the canonical glyph prefixes used by logger to group
// log lines by subsystem. The symbols are stable across log output so they
// can be grepped or filtered on regardless of the surrounding message text.
package sym

// Subsystem glyphs, one per core component.
const (
	AsyncIO    = "⇄" // async file I/O engine
	Resource   = "◉" // resource lifecycle / loader pool
	GPU        = "▲" // GPU uploader
	Network    = "☍" // network client
	Cache      = "▤" // avatar/thumbnail/background caches
	CVar       = "≡" // cvar registry
	PathResolv = "⌁" // path resolver

	// Opening/closing pair, reused across subsystems for start/stop pairs
	// the way a daemon logs "started" vs "stopped".
	Opening = "✿"
	Closing = "❀"
)
