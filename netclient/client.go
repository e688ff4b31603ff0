// Package netclient services all outbound HTTP and WebSocket traffic from a
// single background goroutine, so neither the render loop nor decode
// workers ever block on the network. Completions of Send are delivered only
// when the caller calls Update, matching the engine-wide "callback runs on
// the caller's thread" contract used throughout this module; SendSync
// completions and progress callbacks run on the network goroutine.
package netclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kiwec/neosu-sub001/errors"
	"github.com/kiwec/neosu-sub001/logger"
)

// QueueCapacity bounds the pending-request channel.
const QueueCapacity = 256

// ShutdownTimeout bounds how long Shutdown waits for the worker goroutine.
const ShutdownTimeout = 10 * time.Second

// ProgressCallback reports transfer progress. It runs on the network
// goroutine rather than via Update, as does the completion of a SendSync
// request.
type ProgressCallback func(bytesReceived, bytesTotal int64)

// ResponseCallback receives the completed Response.
type ResponseCallback func(resp *Response)

// Request describes one HTTP call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte

	OnComplete ResponseCallback
	OnProgress ProgressCallback

	requestID string // correlates log lines for this request end to end
	isSync    bool   // resolved directly on the network goroutine by service, bypassing completions
	resp      *Response
}

// Response mirrors the contract's error mapping: both transport failures
// and HTTP 4xx/5xx set Success=false with the numeric code, while Body and
// Headers are still populated whenever a response was actually received.
type Response struct {
	Success    bool
	StatusCode int
	Body       []byte
	Headers    http.Header
	Err        error
}

// Client owns the single network goroutine and its HTTP transport.
type Client struct {
	log *zap.SugaredLogger

	http    *http.Client
	limiter *rate.Limiter

	requests    chan *Request
	completions chan *Request

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.Mutex
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithRateLimit throttles outbound requests to at most n per second, with
// burst allowance b.
func WithRateLimit(n float64, b int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(n), b) }
}

// New starts a Client with one background goroutine servicing requests.
func New(opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		log: logger.ComponentLogger("netclient"),
		http: &http.Client{
			Timeout:       30 * time.Second,
			Transport:     newSaferTransport(),
			CheckRedirect: checkRedirect,
		},
		requests:    make(chan *Request, QueueCapacity),
		completions: make(chan *Request, QueueCapacity),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(1)
	go c.run()

	return c
}

func (c *Client) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case req, ok := <-c.requests:
			if !ok {
				return
			}
			c.service(req)
		}
	}
}

func (c *Client) service(req *Request) *Response {
	if c.limiter != nil {
		_ = c.limiter.Wait(c.ctx)
	}

	resp := c.do(req)
	req.resp = resp

	if req.OnComplete != nil {
		if req.isSync {
			// A sync request's waiter blocks on this call returning, so it
			// must run here on the network goroutine rather than wait for
			// some other goroutine to drain completions via Update.
			req.OnComplete(resp)
		} else {
			select {
			case c.completions <- req:
			case <-c.ctx.Done():
			}
		}
	}
	return resp
}

func (c *Client) do(req *Request) *Response {
	parsed, err := url.Parse(req.URL)
	if err != nil {
		return &Response{Err: errors.Wrapf(err, "invalid URL: %s", req.URL)}
	}
	if err := validateURL(parsed); err != nil {
		return &Response{Err: err}
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(c.ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return &Response{Err: errors.Wrap(err, "building request")}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Debugw("request failed", logger.FieldRequestID, req.requestID, logger.FieldPath, req.URL, logger.FieldError, err)
		return &Response{Success: false, Err: errors.Wrap(err, "transport error")}
	}
	defer httpResp.Body.Close()

	total := httpResp.ContentLength
	var buf bytes.Buffer
	var received int64
	chunk := make([]byte, 32*1024)
	for {
		n, readErr := httpResp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			received += int64(n)
			if req.OnProgress != nil {
				req.OnProgress(received, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if req.OnProgress != nil {
				req.OnProgress(-1, total)
			}
			return &Response{Success: false, StatusCode: httpResp.StatusCode, Body: buf.Bytes(), Headers: httpResp.Header, Err: errors.Wrap(readErr, "reading response body")}
		}
	}

	success := httpResp.StatusCode >= 200 && httpResp.StatusCode < 300
	return &Response{
		Success:    success,
		StatusCode: httpResp.StatusCode,
		Body:       buf.Bytes(),
		Headers:    httpResp.Header,
	}
}

// Send enqueues req for asynchronous processing. Returns false if the
// client is shut down or the queue is full.
func (c *Client) Send(req *Request) bool {
	if req.requestID == "" {
		req.requestID = uuid.New().String()
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false
	}

	select {
	case c.requests <- req:
		return true
	default:
		c.log.Warnw("request queue full, dropping request", logger.FieldRequestID, req.requestID, logger.FieldPath, req.URL)
		return false
	}
}

// SendSync blocks the caller until req completes or timeout elapses,
// emulating the original's condition-variable-keyed-by-request-pointer
// wait with a single-element buffered channel. Unlike Send, the completion
// is resolved directly on the network goroutine (req.isSync) rather than
// waiting for some other goroutine to call Update.
func (c *Client) SendSync(req *Request, timeout time.Duration) (*Response, error) {
	req.isSync = true
	done := make(chan *Response, 1)
	userCallback := req.OnComplete
	req.OnComplete = func(resp *Response) {
		if userCallback != nil {
			userCallback(resp)
		}
		done <- resp
	}

	if !c.Send(req) {
		return nil, errors.Wrap(errors.ErrClosed, "netclient is shut down")
	}

	select {
	case resp := <-done:
		return resp, nil
	case <-time.After(timeout):
		return nil, errors.Newf("request to %s timed out after %s", req.URL, timeout)
	}
}

// Update drains completed requests and invokes their OnComplete callbacks
// on the calling goroutine. Non-blocking.
func (c *Client) Update() {
	for {
		select {
		case req := <-c.completions:
			if req.OnComplete != nil {
				req.OnComplete(req.resp)
			}
		default:
			return
		}
	}
}

// Shutdown stops accepting new requests and waits (bounded) for the
// in-flight request and worker goroutine to finish.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.requests)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		c.log.Warnw("shutdown timed out waiting for network goroutine")
	}

	c.cancel()
	c.Update()
	return nil
}
