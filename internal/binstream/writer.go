package binstream

import (
	"encoding/binary"
	"os"

	"github.com/kiwec/neosu-sub001/errors"
)

// WriteBufferSize is the Writer's flush threshold.
const WriteBufferSize = 4 * 1024 * 1024

// Writer buffers writes to a temp sibling file (path + ".tmp") and promotes
// it atomically (remove-then-rename) on Close, provided no error latched.
// It holds an exclusive lock on the path's hash slot for its lifetime.
type Writer struct {
	path    string
	tmpPath string
	file    *os.File

	buffer []byte
	pos    int

	errFlag bool
	lastErr error
}

// NewWriter opens path+".tmp" for buffered writing and acquires an
// exclusive lock on the path's hash slot.
func NewWriter(path string) *Writer {
	w := &Writer{
		path:    path,
		tmpPath: path + ".tmp",
		buffer:  make([]byte, WriteBufferSize),
	}

	stripeFor(path).Lock()

	f, err := os.Create(w.tmpPath)
	if err != nil {
		w.setError(errors.Wrapf(err, "failed to open file for writing: %s", w.tmpPath))
		return w
	}
	w.file = f

	return w
}

// Good reports whether no error has latched yet.
func (w *Writer) Good() bool { return !w.errFlag }

// Err returns the first latched error, or nil.
func (w *Writer) Err() error { return w.lastErr }

func (w *Writer) setError(err error) {
	if !w.errFlag {
		w.errFlag = true
		w.lastErr = err
	}
}

// Flush writes the buffered prefix to the temp file and resets the buffer
// position.
func (w *Writer) Flush() {
	if w.errFlag || w.file == nil {
		return
	}
	if _, err := w.file.Write(w.buffer[:w.pos]); err != nil {
		w.setError(errors.Wrap(err, "failed to write to file"))
		return
	}
	w.pos = 0
}

// WriteBytes appends n bytes to the buffer, flushing first if they would
// overflow it.
func (w *Writer) WriteBytes(b []byte) {
	if w.errFlag || w.file == nil {
		return
	}
	n := len(b)
	if w.pos+n > WriteBufferSize {
		w.Flush()
		if w.errFlag {
			return
		}
	}
	if w.pos+n > WriteBufferSize {
		w.setError(errors.Newf("attempted to write %d bytes (exceeding buffer size %d)", n, WriteBufferSize))
		return
	}
	copy(w.buffer[w.pos:], b)
	w.pos += n
}

// Write appends the little-endian bytes of v.
func Write[T FixedWidth](w *Writer, v T) {
	buf := make([]byte, binary.Size(v))
	_ = binary.Write(sliceWriter{buf}, binary.LittleEndian, v)
	w.WriteBytes(buf)
}

type sliceWriter struct{ b []byte }

func (s sliceWriter) Write(p []byte) (int, error) {
	n := copy(s.b, p)
	return n, nil
}

// WriteULEB128 writes num as 7-bit groups, high bit set on every byte but
// the last.
func (w *Writer) WriteULEB128(num uint32) {
	if w.errFlag {
		return
	}
	if num == 0 {
		Write[uint8](w, 0)
		return
	}
	for num != 0 {
		next := uint8(num & 0x7f)
		num >>= 7
		if num != 0 {
			next |= 0x80
		}
		Write[uint8](w, next)
	}
}

// WriteString writes a u8 presence tag (0 empty, 0x0B present), then a
// ULEB128 length and the raw bytes, for any non-empty string. An empty
// string writes only the zero tag.
func (w *Writer) WriteString(s string) {
	if w.errFlag {
		return
	}
	if len(s) == 0 {
		Write[uint8](w, 0)
		return
	}
	Write[uint8](w, 0x0B)
	w.WriteULEB128(uint32(len(s)))
	w.WriteBytes([]byte(s))
}

// WriteVersionHeader writes the leading u32 version field every binary
// database file starts with, matching ReadVersionHeader on the read side.
func (w *Writer) WriteVersionHeader(version uint32) {
	Write[uint32](w, version)
}

// WriteHashDigest writes the presence tag, the fixed length (32), and the
// digest bytes. hash must be exactly HashDigestSize bytes.
func (w *Writer) WriteHashDigest(hash []byte) {
	if w.errFlag {
		return
	}
	Write[uint8](w, 0x0B)
	Write[uint8](w, HashDigestSize)
	w.WriteBytes(hash[:HashDigestSize])
}

// Close flushes any buffered bytes, closes the temp file, and — provided no
// error ever latched — atomically promotes it over the target path. If an
// error did latch, the temp file is left on disk (safe to delete) and the
// target path is untouched.
func (w *Writer) Close() error {
	defer stripeFor(w.path).Unlock()

	if w.file == nil {
		return w.lastErr
	}

	w.Flush()
	closeErr := w.file.Close()
	w.file = nil

	if w.errFlag {
		return w.lastErr
	}
	if closeErr != nil {
		w.setError(errors.Wrap(closeErr, "failed to close temp file"))
		return w.lastErr
	}

	_ = os.Remove(w.path) // best effort; rename below overwrites on most platforms anyway
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		// Can't meaningfully retry in a destructor-equivalent; surface it.
		return errors.Wrapf(err, "failed to rename temporary file %s to %s", w.tmpPath, w.path)
	}
	return nil
}
