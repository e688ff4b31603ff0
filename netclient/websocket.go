package netclient

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kiwec/neosu-sub001/errors"
)

// SocketReceiveBufferSize caps how many inbound frames a Socket accumulates
// between Poll calls before it starts dropping the oldest.
const SocketReceiveBufferSize = 256

// SocketSendBufferSize caps how many outbound frames a Socket queues before
// Send starts rejecting new ones.
const SocketSendBufferSize = 256

// Socket is a WebSocket connection whose read pump runs on its own
// goroutine, accumulating inbound frames into a bounded buffer the caller
// drains via Poll each update(), and whose writes are queued through Send
// and flushed by a dedicated write pump.
type Socket struct {
	conn *websocket.Conn

	inbox  chan []byte
	outbox chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// Connect performs the WebSocket handshake, blocking the calling goroutine
// until it completes, and starts the read/write pumps.
func Connect(url string, headers http.Header) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, headers)
	if err != nil {
		return nil, errors.Wrapf(err, "websocket handshake failed: %s", url)
	}

	s := &Socket{
		conn:   conn,
		inbox:  make(chan []byte, SocketReceiveBufferSize),
		outbox: make(chan []byte, SocketSendBufferSize),
		done:   make(chan struct{}),
	}

	go s.readPump()
	go s.writePump()

	return s, nil
}

func (s *Socket) readPump() {
	defer close(s.inbox)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case s.inbox <- data:
		default:
			// Receive buffer full: drop the oldest frame to make room,
			// matching a capped accumulation buffer rather than blocking
			// the read pump indefinitely.
			select {
			case <-s.inbox:
			default:
			}
			select {
			case s.inbox <- data:
			default:
			}
		}
	}
}

func (s *Socket) writePump() {
	for {
		select {
		case <-s.done:
			return
		case data, ok := <-s.outbox:
			if !ok {
				return
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	}
}

// Send queues data for the write pump. Returns false if the outbound
// buffer is full or the socket is closed.
func (s *Socket) Send(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbox <- data:
		return true
	default:
		return false
	}
}

// Poll drains every inbound frame accumulated since the last call. Call
// once per tick from the main thread.
func (s *Socket) Poll() [][]byte {
	var frames [][]byte
	for {
		select {
		case data, ok := <-s.inbox:
			if !ok {
				return frames
			}
			frames = append(frames, data)
		default:
			return frames
		}
	}
}

// Close shuts the socket down. Safe to call more than once.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = s.conn.Close()
	})
	return err
}

// ConnectAsync performs the handshake on a throwaway goroutine (the
// handshake itself may block, same as any other network request) and
// delivers the resulting Socket through onConnect via Update, so the
// caller's callback still runs on the caller's thread.
func (c *Client) ConnectAsync(url string, headers http.Header, onConnect func(*Socket, error)) bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		onConnect(nil, errors.Wrap(errors.ErrClosed, "netclient is shut down"))
		return false
	}

	go func() {
		sock, err := Connect(url, headers)
		deliver := &Request{OnComplete: func(*Response) { onConnect(sock, err) }}
		select {
		case c.completions <- deliver:
		case <-c.ctx.Done():
		}
	}()
	return true
}
