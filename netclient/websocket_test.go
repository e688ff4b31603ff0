package netclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestSocketEcho(t *testing.T) {
	t.Run("sent frames are echoed back through Poll", func(t *testing.T) {
		srv := echoServer(t)
		defer srv.Close()

		sock, err := Connect(wsURL(srv.URL), nil)
		require.NoError(t, err)
		defer sock.Close()

		require.True(t, sock.Send([]byte("hello")))

		deadline := time.After(2 * time.Second)
		for {
			frames := sock.Poll()
			if len(frames) > 0 {
				assert.Equal(t, "hello", string(frames[0]))
				return
			}
			select {
			case <-deadline:
				t.Fatal("timed out waiting for echo")
			default:
				time.Sleep(time.Millisecond)
			}
		}
	})

	t.Run("Close is safe to call twice", func(t *testing.T) {
		srv := echoServer(t)
		defer srv.Close()

		sock, err := Connect(wsURL(srv.URL), nil)
		require.NoError(t, err)

		assert.NoError(t, sock.Close())
		assert.NoError(t, sock.Close())
	})
}

func TestClientConnectAsync(t *testing.T) {
	t.Run("successful handshake delivers a Socket via Update", func(t *testing.T) {
		srv := echoServer(t)
		defer srv.Close()

		c := New()
		defer c.Shutdown()

		done := make(chan struct{})
		var sock *Socket
		var connectErr error
		ok := c.ConnectAsync(wsURL(srv.URL), nil, func(s *Socket, err error) {
			sock = s
			connectErr = err
			close(done)
		})
		require.True(t, ok)
		waitForClientUpdate(t, c, done)

		require.NoError(t, connectErr)
		require.NotNil(t, sock)
		sock.Close()
	})

	t.Run("shutdown rejects new connection attempts", func(t *testing.T) {
		c := New()
		require.NoError(t, c.Shutdown())

		var gotErr error
		ok := c.ConnectAsync("ws://example.invalid", nil, func(_ *Socket, err error) {
			gotErr = err
		})
		assert.False(t, ok)
		assert.Error(t, gotErr)
	})
}
