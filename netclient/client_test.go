package netclient

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForClientUpdate(t *testing.T, c *Client, done <-chan struct{}) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("timed out waiting for callback")
		default:
			c.Update()
			time.Sleep(time.Millisecond)
		}
	}
}

func TestClientRequest(t *testing.T) {
	t.Run("successful GET delivers the body via Update", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("avatar-bytes"))
		}))
		defer srv.Close()

		c := New()
		c.http.Transport = http.DefaultTransport // httptest binds to loopback; the hardened transport is exercised separately in TestIsPrivateIP
		defer c.Shutdown()

		done := make(chan struct{})
		var got *Response
		ok := c.Send(&Request{
			Method: http.MethodGet,
			URL:    srv.URL,
			OnComplete: func(resp *Response) {
				got = resp
				close(done)
			},
		})
		require.True(t, ok)
		waitForClientUpdate(t, c, done)

		require.NotNil(t, got)
		assert.True(t, got.Success)
		assert.Equal(t, http.StatusOK, got.StatusCode)
		assert.Equal(t, "avatar-bytes", string(got.Body))
	})

	t.Run("HTTP 404 maps to success=false with the status code preserved", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		c := New()
		c.http.Transport = http.DefaultTransport
		defer c.Shutdown()

		done := make(chan struct{})
		var got *Response
		c.Send(&Request{
			Method: http.MethodGet,
			URL:    srv.URL,
			OnComplete: func(resp *Response) {
				got = resp
				close(done)
			},
		})
		waitForClientUpdate(t, c, done)

		assert.False(t, got.Success)
		assert.Equal(t, http.StatusNotFound, got.StatusCode)
	})

	t.Run("SendSync blocks until completion without any caller ever invoking Update", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := New()
		c.http.Transport = http.DefaultTransport
		defer c.Shutdown()

		// No goroutine pumps c.Update here: SendSync must resolve on its own
		// via the network goroutine's sync fast path, not by waiting for
		// completions to be drained.
		resp, err := c.SendSync(&Request{Method: http.MethodGet, URL: srv.URL}, time.Second)
		require.NoError(t, err)
		assert.True(t, resp.Success)
	})

	t.Run("shutdown rejects new requests", func(t *testing.T) {
		c := New()
		require.NoError(t, c.Shutdown())

		ok := c.Send(&Request{Method: http.MethodGet, URL: "http://example.invalid"})
		assert.False(t, ok)
	})
}

func TestValidateURL(t *testing.T) {
	t.Run("rejects credential-injection URLs", func(t *testing.T) {
		u, err := url.Parse("http://evil.com@localhost/")
		require.NoError(t, err)
		assert.Error(t, validateURL(u))
	})

	t.Run("accepts a plain https URL", func(t *testing.T) {
		u, err := url.Parse("https://assets.example.com/avatar.png")
		require.NoError(t, err)
		assert.NoError(t, validateURL(u))
	})

	t.Run("rejects a non-HTTP scheme", func(t *testing.T) {
		u, err := url.Parse("file:///etc/passwd")
		require.NoError(t, err)
		assert.Error(t, validateURL(u))
	})
}

func TestIsPrivateIP(t *testing.T) {
	t.Run("loopback and RFC1918 ranges are blocked", func(t *testing.T) {
		for _, raw := range []string{"127.0.0.1", "10.1.2.3", "172.16.0.5", "192.168.1.1", "169.254.1.1"} {
			ip := net.ParseIP(raw)
			require.NotNil(t, ip)
			assert.True(t, isPrivateIP(ip), "expected %s to be blocked", raw)
		}
	})

	t.Run("public addresses are allowed", func(t *testing.T) {
		ip := net.ParseIP("8.8.8.8")
		require.NotNil(t, ip)
		assert.False(t, isPrivateIP(ip))
	})
}
