// Package ioengine decouples callers from synchronous filesystem access: a
// small worker pool performs reads and writes off the caller's goroutine,
// and completions are delivered only when the caller calls Update — never
// from a worker goroutine directly. This mirrors the client's contract that
// callbacks run exactly once, on the caller's thread, after a pump observes
// the completion.
package ioengine

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kiwec/neosu-sub001/errors"
	"github.com/kiwec/neosu-sub001/logger"
)

// MaxReadSize rejects reads of files above 2 GiB, matching the contract cap.
const MaxReadSize = 2 << 30

// ShutdownTimeout bounds how long Shutdown waits for in-flight files and
// running callbacks to quiesce.
const ShutdownTimeout = 10 * time.Second

// ReadCallback receives the file's full contents, or an error.
type ReadCallback func(data []byte, err error)

// WriteCallback receives nil on success, or the write error.
type WriteCallback func(err error)

type request struct {
	opID    string // correlates log lines for this operation end to end
	path    string
	data    []byte // write payload; nil for reads
	isWrite bool
	onRead  ReadCallback
	onWrite WriteCallback
}

type completion struct {
	req  request
	data []byte
	err  error
}

// Engine runs a fixed pool of workers servicing read/write requests,
// delivering completions through Update on the caller's goroutine.
type Engine struct {
	log *zap.SugaredLogger

	requests    chan request
	completions chan completion

	mu       sync.Mutex
	inFlight map[string]struct{}

	runningCallbacks atomic.Int64
	wg               sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// New starts an Engine with the given number of workers (clamped to at
// least 1).
func New(workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		log:         logger.ComponentLogger("ioengine"),
		requests:    make(chan request, 256),
		completions: make(chan completion, 256),
		inFlight:    make(map[string]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}

	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.runWorker()
	}

	return e
}

func (e *Engine) runWorker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case req, ok := <-e.requests:
			if !ok {
				return
			}
			e.process(req)
		}
	}
}

func (e *Engine) process(req request) {
	if req.isWrite {
		err := os.WriteFile(req.path, req.data, 0o644)
		if err != nil {
			e.log.Debugw("write failed", logger.FieldRequestID, req.opID, logger.FieldPath, req.path, logger.FieldError, err)
		}
		e.complete(completion{req: req, err: err})
		return
	}

	info, statErr := os.Stat(req.path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			e.log.Debugw("read failed: file does not exist", logger.FieldRequestID, req.opID, logger.FieldPath, req.path)
		} else {
			e.log.Debugw("read failed: stat error", logger.FieldRequestID, req.opID, logger.FieldPath, req.path, logger.FieldError, statErr)
		}
		e.complete(completion{req: req, err: errors.Wrapf(errors.ErrNotFound, "read %s", req.path)})
		return
	}

	if info.Size() == 0 {
		e.log.Warnw("read refused: zero-size file", logger.FieldRequestID, req.opID, logger.FieldPath, req.path)
		e.complete(completion{req: req, err: errors.Wrapf(errors.ErrOversize, "zero-size file: %s", req.path)})
		return
	}
	if info.Size() > MaxReadSize {
		e.log.Debugw("read refused: oversize file", logger.FieldRequestID, req.opID, logger.FieldPath, req.path, logger.FieldSize, info.Size())
		e.complete(completion{req: req, err: errors.Wrapf(errors.ErrOversize, "file exceeds %d bytes: %s", MaxReadSize, req.path)})
		return
	}

	data, err := os.ReadFile(req.path)
	e.complete(completion{req: req, data: data, err: err})
}

func (e *Engine) complete(c completion) {
	select {
	case e.completions <- c:
	case <-e.ctx.Done():
	}
}

// Read queues an asynchronous read of path. It returns false, invoking
// callback synchronously with a failure, if an operation on path is already
// in flight or the engine is shut down.
func (e *Engine) Read(path string, callback ReadCallback) bool {
	return e.submit(request{opID: uuid.New().String(), path: path, onRead: callback})
}

// Write queues an asynchronous write of data to path. It returns false,
// invoking callback synchronously with a failure, under the same conditions
// as Read.
func (e *Engine) Write(path string, data []byte, callback WriteCallback) bool {
	return e.submit(request{opID: uuid.New().String(), path: path, data: data, isWrite: true, onWrite: callback})
}

func (e *Engine) submit(req request) bool {
	if e.closed.Load() {
		e.rejectSync(req, errors.Wrap(errors.ErrClosed, "ioengine is shut down"))
		return false
	}

	e.mu.Lock()
	if _, busy := e.inFlight[req.path]; busy {
		e.mu.Unlock()
		e.rejectSync(req, errors.Wrapf(errors.ErrSingleFlight, "operation already in flight for %s", req.path))
		return false
	}
	e.inFlight[req.path] = struct{}{}
	e.mu.Unlock()

	select {
	case e.requests <- req:
		return true
	case <-e.ctx.Done():
		e.mu.Lock()
		delete(e.inFlight, req.path)
		e.mu.Unlock()
		e.rejectSync(req, errors.Wrap(errors.ErrClosed, "ioengine is shut down"))
		return false
	}
}

func (e *Engine) rejectSync(req request, err error) {
	if req.isWrite {
		if req.onWrite != nil {
			req.onWrite(err)
		}
		return
	}
	if req.onRead != nil {
		req.onRead(nil, err)
	}
}

// Update drains completed operations and invokes their callbacks on the
// calling goroutine. It is non-blocking: it processes only what is already
// queued.
func (e *Engine) Update() {
	for {
		select {
		case c := <-e.completions:
			e.deliver(c)
		default:
			return
		}
	}
}

func (e *Engine) deliver(c completion) {
	e.mu.Lock()
	delete(e.inFlight, c.req.path)
	e.mu.Unlock()

	e.runningCallbacks.Add(1)
	defer e.runningCallbacks.Add(-1)

	if c.req.isWrite {
		if c.req.onWrite != nil {
			c.req.onWrite(c.err)
		}
		return
	}
	if c.req.onRead != nil {
		c.req.onRead(c.data, c.err)
	}
}

// Shutdown stops accepting new requests, waits (bounded by ShutdownTimeout)
// for in-flight files and running callbacks to quiesce, and stops workers.
// While it waits, Shutdown calls Update itself, so pending callbacks run on
// the calling goroutine. Any operation submitted once Shutdown has begun,
// including one submitted from such a callback, is rejected with ErrClosed.
func (e *Engine) Shutdown() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	deadline := time.Now().Add(ShutdownTimeout)
	for time.Now().Before(deadline) {
		e.Update()
		e.mu.Lock()
		quiescent := len(e.inFlight) == 0 && e.runningCallbacks.Load() == 0
		e.mu.Unlock()
		if quiescent {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	e.cancel()
	close(e.requests)
	e.wg.Wait()
	e.Update()

	return nil
}
