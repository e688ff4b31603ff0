package ioengine

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForUpdate(t *testing.T, e *Engine, done <-chan struct{}) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("timed out waiting for callback")
		default:
			e.Update()
			time.Sleep(time.Millisecond)
		}
	}
}

func TestEngineReadWrite(t *testing.T) {
	t.Run("write then read round-trips the payload", func(t *testing.T) {
		e := New(2)
		defer e.Shutdown()

		dir := t.TempDir()
		path := filepath.Join(dir, "state.bin")
		payload := []byte("hello asset core")

		writeDone := make(chan struct{})
		ok := e.Write(path, payload, func(err error) {
			require.NoError(t, err)
			close(writeDone)
		})
		require.True(t, ok)
		waitForUpdate(t, e, writeDone)

		readDone := make(chan struct{})
		var got []byte
		ok = e.Read(path, func(data []byte, err error) {
			require.NoError(t, err)
			got = data
			close(readDone)
		})
		require.True(t, ok)
		waitForUpdate(t, e, readDone)

		assert.Equal(t, payload, got)
	})

	t.Run("reading a missing file fails without panicking", func(t *testing.T) {
		e := New(1)
		defer e.Shutdown()

		done := make(chan struct{})
		var callErr error
		e.Read(filepath.Join(t.TempDir(), "nope.bin"), func(data []byte, err error) {
			callErr = err
			close(done)
		})
		waitForUpdate(t, e, done)
		assert.Error(t, callErr)
	})

	t.Run("reading a zero-size file fails", func(t *testing.T) {
		e := New(1)
		defer e.Shutdown()

		dir := t.TempDir()
		path := filepath.Join(dir, "empty.bin")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		done := make(chan struct{})
		var callErr error
		e.Read(path, func(data []byte, err error) {
			callErr = err
			close(done)
		})
		waitForUpdate(t, e, done)
		assert.Error(t, callErr)
	})

	t.Run("second operation on the same path is rejected synchronously", func(t *testing.T) {
		e := New(1)
		defer e.Shutdown()

		dir := t.TempDir()
		path := filepath.Join(dir, "busy.bin")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		var mu sync.Mutex
		firstDone := false
		ok1 := e.Read(path, func(data []byte, err error) {
			mu.Lock()
			firstDone = true
			mu.Unlock()
		})
		require.True(t, ok1)

		var secondErr error
		secondCalled := false
		ok2 := e.Read(path, func(data []byte, err error) {
			secondErr = err
			secondCalled = true
		})
		assert.False(t, ok2)
		assert.True(t, secondCalled, "rejection callback must fire synchronously")
		assert.Error(t, secondErr)

		deadline := time.After(2 * time.Second)
		for {
			e.Update()
			mu.Lock()
			done := firstDone
			mu.Unlock()
			if done {
				break
			}
			select {
			case <-deadline:
				t.Fatal("first read never completed")
			default:
				time.Sleep(time.Millisecond)
			}
		}
	})

	t.Run("shutdown rejects new operations", func(t *testing.T) {
		e := New(1)
		require.NoError(t, e.Shutdown())

		called := false
		var callErr error
		ok := e.Write(filepath.Join(t.TempDir(), "x.bin"), []byte("x"), func(err error) {
			called = true
			callErr = err
		})
		assert.False(t, ok)
		assert.True(t, called)
		assert.Error(t, callErr)
	})
}
