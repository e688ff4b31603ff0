package resource

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kiwec/neosu-sub001/errors"
	"github.com/kiwec/neosu-sub001/logger"
)

// DefaultQueueCapacity bounds the pending-load FIFO.
const DefaultQueueCapacity = 256

// ShutdownTimeout bounds how long Shutdown waits for workers to drain.
const ShutdownTimeout = 10 * time.Second

// Manager owns a pool of loader goroutines and the completed-queue drain
// that finalizes resources on the caller's goroutine.
type Manager struct {
	log *zap.SugaredLogger

	pending   chan *Handle
	completed chan *Handle

	mu      sync.Mutex
	byName  map[string]*Handle

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewManager starts a Manager with the given worker count. When workers <= 0
// it uses runtime.NumCPU() clamped to [1, 8].
func NewManager(workers int) *Manager {
	if workers <= 0 {
		workers = clamp(runtime.NumCPU(), 1, 8)
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		log:       logger.ComponentLogger("resource"),
		pending:   make(chan *Handle, DefaultQueueCapacity),
		completed: make(chan *Handle, DefaultQueueCapacity),
		byName:    make(map[string]*Handle),
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.runWorker()
	}

	return m
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (m *Manager) runWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case h, ok := <-m.pending:
			if !ok {
				return
			}
			h.runAsync()
			select {
			case m.completed <- h:
			case <-m.ctx.Done():
				return
			}
		}
	}
}

// Load returns the Handle for name, creating and enqueuing one via factory
// if this is the first request. A second call for a name already loading or
// loaded returns the same Handle (single-flight per resource name).
func (m *Manager) Load(name string, factory func() Lifecycle) (*Handle, error) {
	m.mu.Lock()
	if existing, ok := m.byName[name]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	if m.closed {
		m.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrClosed, "resource manager is shut down: %s", name)
	}

	h := &Handle{name: name, impl: factory()}
	h.state.Store(int32(stateLoading))
	m.byName[name] = h
	m.mu.Unlock()

	select {
	case m.pending <- h:
		return h, nil
	default:
		m.log.Warnw("pending queue full, dropping load request", logger.FieldResource, name)
		m.mu.Lock()
		delete(m.byName, name)
		m.mu.Unlock()
		return nil, errors.Newf("resource pending queue is full: %s", name)
	}
}

// Reload releases h and resubmits it for a fresh two-phase load.
func (m *Manager) Reload(h *Handle) error {
	h.Destroy()
	h.state.Store(int32(stateLoading))

	select {
	case m.pending <- h:
		return nil
	default:
		return errors.Newf("resource pending queue is full: %s", h.name)
	}
}

// Update drains the completed queue, running Init for each resource whose
// async phase succeeded and marking it ready or failed. Call once per
// frame from the main thread.
func (m *Manager) Update() {
	for {
		select {
		case h := <-m.completed:
			if h.IsAsyncReady() {
				h.finalize()
			}
		default:
			return
		}
	}
}

// Release drops name from the manager's tracking table (after the caller
// has destroyed the handle), so a future Load starts fresh.
func (m *Manager) Release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byName, name)
}

// Shutdown stops accepting new loads, waits (bounded by ShutdownTimeout) for
// in-flight workers to drain, and stops the worker pool.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	close(m.pending)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		m.log.Warnw("shutdown timed out waiting for workers to drain")
	}

	m.cancel()
	return nil
}
