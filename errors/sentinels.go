package errors

// Sentinel errors for the error taxonomy in spec section 7. These are kinds,
// not exhaustive leaf errors — components wrap them with Wrapf to add
// context, and callers compare with Is.
var (
	// ErrNotFound covers a missing file, path, URL, or identifier. Logged at
	// debug, not error: it is an expected outcome for optional assets.
	ErrNotFound = New("not found")

	// ErrInterrupted means a cancellation was observed at a checkpoint. It is
	// not a failure and callers must not log it as one.
	ErrInterrupted = New("interrupted")

	// ErrVersionUnsupported means a binary database's version header is
	// newer than this client understands; the caller skips that file.
	ErrVersionUnsupported = New("unsupported database version")

	// ErrOversize covers a file above the read cap, an image dimension above
	// the decode cap, or a read request that would overflow the ring buffer.
	ErrOversize = New("oversize")

	// ErrSingleFlight is returned synchronously when a second operation is
	// submitted for a key (path, resource name, identifier) that already has
	// one in flight.
	ErrSingleFlight = New("operation already in flight")

	// ErrClosed is returned by any engine/pool/cache operation submitted
	// after Shutdown/Close/cleanup has returned.
	ErrClosed = New("closed")
)
