package binstream

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/kiwec/neosu-sub001/errors"
	"github.com/kiwec/neosu-sub001/logger"
)

var log = logger.ComponentLogger("binstream")

// ReadBufferSize is the ring buffer capacity. Reads larger than this are
// rejected as oversize; the buffer refills lazily in up to two segments to
// handle wraparound.
const ReadBufferSize = 4 * 1024 * 1024

// Reader is a buffered, ring-backed reader for the binary database format.
// It holds a shared lock on the path's hash slot for its lifetime: callers
// must not open a Writer on the same path while a Reader is live, or they
// will deadlock (mirrors the original engine's documented contract).
//
// Once an error occurs it latches: every subsequent read/skip returns zeros
// (or a no-op) and preserves the first error message.
type Reader struct {
	file *os.File
	path string

	buffer        []byte
	readPos       int
	writePos      int
	bufferedBytes int

	TotalSize int64
	TotalPos  int64

	errFlag bool
	lastErr error

	closed bool
}

// NewReader opens path for buffered reading and acquires a shared lock on
// its hash slot.
func NewReader(path string) *Reader {
	r := &Reader{
		path:   path,
		buffer: make([]byte, ReadBufferSize),
	}

	stripeFor(path).RLock()

	f, err := os.Open(path)
	if err != nil {
		r.setError(errors.Wrapf(err, "failed to open file for reading: %s", path))
		return r
	}
	r.file = f

	info, err := f.Stat()
	if err != nil {
		r.setError(errors.Wrapf(err, "failed to stat file: %s", path))
		return r
	}
	r.TotalSize = info.Size()

	return r
}

// Close releases the underlying file handle and the path's shared lock.
// Safe to call multiple times.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var err error
	if r.file != nil {
		err = r.file.Close()
		r.file = nil
	}
	stripeFor(r.path).RUnlock()
	return err
}

// Good reports whether no error has latched yet.
func (r *Reader) Good() bool { return !r.errFlag }

// Err returns the first latched error, or nil.
func (r *Reader) Err() error { return r.lastErr }

func (r *Reader) setError(err error) {
	if !r.errFlag { // only the first error is kept
		r.errFlag = true
		r.lastErr = err
	}
}

// ReadBytes copies up to len(out) bytes from the ring into out, refilling
// from the file as needed. It returns the number of bytes actually served;
// a short read (including zero) means the stream ended or is in an error
// state, and out is zeroed in that case.
func (r *Reader) ReadBytes(out []byte) int {
	n := len(out)
	if r.errFlag {
		zero(out)
		return 0
	}
	if n > ReadBufferSize {
		r.setError(errors.Newf("attempted to read %d bytes (exceeding buffer size %d)", n, ReadBufferSize))
		zero(out)
		return 0
	}

	if r.bufferedBytes < n {
		r.refill()
	}

	if r.bufferedBytes < n {
		zero(out)
		return 0
	}

	if out != nil {
		if r.readPos+n <= ReadBufferSize {
			copy(out, r.buffer[r.readPos:r.readPos+n])
		} else {
			first := ReadBufferSize - r.readPos
			second := n - first
			copy(out[:first], r.buffer[r.readPos:])
			copy(out[first:], r.buffer[:second])
		}
	}

	r.readPos = (r.readPos + n) % ReadBufferSize
	r.bufferedBytes -= n
	r.TotalPos += int64(n)
	return n
}

// refill tops the ring buffer up to capacity, reading in up to two segments
// across the wrap boundary.
func (r *Reader) refill() {
	available := ReadBufferSize - r.bufferedBytes
	toRead := available

	if r.writePos+toRead <= ReadBufferSize {
		n, _ := io.ReadFull(r.file, r.buffer[r.writePos:r.writePos+toRead])
		r.writePos = (r.writePos + n) % ReadBufferSize
		r.bufferedBytes += n
		return
	}

	firstPart := ReadBufferSize - r.writePos
	n1, _ := io.ReadFull(r.file, r.buffer[r.writePos:ReadBufferSize])
	read := n1
	if n1 == firstPart && toRead > firstPart {
		secondPart := toRead - firstPart
		n2, _ := io.ReadFull(r.file, r.buffer[0:secondPart])
		read += n2
		r.writePos = n2
	} else {
		r.writePos = (r.writePos + n1) % ReadBufferSize
	}
	r.bufferedBytes += read
}

func zero(out []byte) {
	for i := range out {
		out[i] = 0
	}
}

// Read copies sizeof(T) bytes, little-endian, into a value of type T. The T
// type parameter mirrors the original's templated read<T>(); only
// fixed-size numeric types make sense here.
func Read[T FixedWidth](r *Reader) T {
	var v T
	buf := make([]byte, binary.Size(v))
	if r.ReadBytes(buf) != len(buf) {
		return v
	}
	_ = binary.Read(bytes.NewReader(buf), binary.LittleEndian, &v)
	return v
}

// FixedWidth constrains Read/Skip to fixed-size numeric types, matching the
// original's sizeof(T) based template.
type FixedWidth interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// SkipBytes advances the stream by n bytes, either adjusting ring pointers
// (cheap) or seeking the underlying file and invalidating the buffer (when
// n exceeds what's currently buffered).
func (r *Reader) SkipBytes(n int) {
	if r.errFlag {
		return
	}

	if n <= r.bufferedBytes {
		r.readPos = (r.readPos + n) % ReadBufferSize
		r.bufferedBytes -= n
		r.TotalPos += int64(n)
		return
	}

	skipFromBuffer := r.bufferedBytes
	skipFromFile := n - skipFromBuffer
	r.TotalPos += int64(skipFromBuffer)

	if _, err := r.file.Seek(int64(skipFromFile), io.SeekCurrent); err != nil {
		r.setError(errors.Wrapf(err, "failed to seek %d bytes", skipFromFile))
		return
	}
	r.TotalPos += int64(skipFromFile)

	r.readPos = 0
	r.writePos = 0
	r.bufferedBytes = 0
}

// ReadULEB128 reads 7-bit groups until the high bit clears.
func (r *Reader) ReadULEB128() uint32 {
	if r.errFlag {
		return 0
	}
	var result uint32
	var shift uint32
	for {
		b := Read[uint8](r)
		result |= uint32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	return result
}

// ReadString reads a u8 presence tag (0 empty, 0x0B present) followed by a
// ULEB128 length and that many raw bytes.
func (r *Reader) ReadString() string {
	if r.errFlag {
		return ""
	}
	tag := Read[uint8](r)
	if tag == 0 {
		return ""
	}
	n := r.ReadULEB128()
	buf := make([]byte, n)
	if uint32(r.ReadBytes(buf)) != n {
		r.setError(errors.Newf("failed to read %d bytes for string", n))
		return ""
	}
	return string(buf)
}

// HashDigestSize is the fixed payload length of a hash digest field.
const HashDigestSize = 32

// ReadHashDigest reads a presence tag, a ULEB128 length, and up to
// HashDigestSize bytes into out (which must be HashDigestSize long). If the
// recorded length exceeds HashDigestSize, only HashDigestSize bytes are
// read and the remainder is skipped with a warning, not an error — this is
// deliberately lenient, matching the original engine.
func (r *Reader) ReadHashDigest(out []byte) {
	if r.errFlag {
		return
	}
	tag := Read[uint8](r)
	if tag == 0 {
		return
	}

	length := r.ReadULEB128()
	extra := uint32(0)
	if length > HashDigestSize {
		log.Warnw("hash digest longer than expected, truncating", logger.FieldPath, r.path, logger.FieldSize, length)
		extra = length - HashDigestSize
		length = HashDigestSize
	}

	if uint32(r.ReadBytes(out[:length])) != length {
		extra = length
	}
	r.SkipBytes(int(extra))
}

// ReadVersionHeader reads the leading u32 version field every binary
// database file starts with, returning ErrVersionUnsupported (without
// reading further) if it exceeds maxVersion — the caller's signal to skip
// the whole file rather than misparse records written by a newer format.
func (r *Reader) ReadVersionHeader(maxVersion uint32) (uint32, error) {
	v := Read[uint32](r)
	if r.errFlag {
		return 0, r.lastErr
	}
	if v > maxVersion {
		return v, errors.Wrapf(errors.ErrVersionUnsupported, "database version %d exceeds supported %d: %s", v, maxVersion, r.path)
	}
	return v, nil
}
