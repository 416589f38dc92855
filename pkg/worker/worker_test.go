// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// meterIterator counts steps and optionally pauses on odd steps.
type meterIterator struct {
	max      int
	meter    int
	calls    []int
	pauseOdd bool
	err      error
}

func (it *meterIterator) Next(ctx context.Context) (Result, error) {
	if it.meter >= it.max {
		return Exhausted, nil
	}
	it.calls = append(it.calls, it.meter)
	if it.err != nil {
		return Result{}, it.err
	}
	m := it.meter
	it.meter++
	if it.pauseOdd && m%2 == 1 {
		return Pause(2 * time.Second), nil
	}
	return Advanced, nil
}

type scriptedAcceptor struct {
	conns []net.Conn
	calls int
}

func (a *scriptedAcceptor) Accept() (net.Conn, error) {
	a.calls++
	if len(a.conns) > 0 {
		c := a.conns[0]
		a.conns = a.conns[1:]
		return c, nil
	}
	return nil, syscall.EAGAIN
}

type fakeSupervisor struct {
	notifies     int
	parentChecks int
	parentDead   bool
}

func (s *fakeSupervisor) Notify() { s.notifies++ }

func (s *fakeSupervisor) ParentAlive() bool {
	s.parentChecks++
	return !s.parentDead
}

type recordingWaiter struct {
	timeouts []time.Duration
	onWait   func() error
}

func (w *recordingWaiter) Wait(ctx context.Context, timeout time.Duration) error {
	w.timeouts = append(w.timeouts, timeout)
	if w.onWait != nil {
		return w.onWait()
	}
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(t *testing.T, opts Options) *Worker {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	w, err := New(opts)
	require.NoError(t, err)
	return w
}

// closedPipe returns the server end of a pipe whose client already left.
func closedPipe() net.Conn {
	server, client := net.Pipe()
	client.Close()
	return server
}

func TestRun_ExhaustsWithoutWaiting(t *testing.T) {
	it := &meterIterator{max: 10}
	sup := &fakeSupervisor{}
	waiter := &recordingWaiter{}

	w := newTestWorker(t, Options{Acceptor: &scriptedAcceptor{}, Iterator: it, Supervisor: sup, Waiter: waiter})
	err := w.Run(context.Background())

	assert.ErrorIs(t, err, ErrIterationExhausted)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, it.calls)
	assert.Empty(t, waiter.timeouts)
	assert.Equal(t, 0, sup.parentChecks)
	assert.Equal(t, 11, sup.notifies)
}

func TestRun_AlternatingPauses(t *testing.T) {
	it := &meterIterator{max: 10, pauseOdd: true}
	sup := &fakeSupervisor{}
	waiter := &recordingWaiter{}
	acc := &scriptedAcceptor{conns: []net.Conn{closedPipe()}}

	w := newTestWorker(t, Options{Acceptor: acc, Iterator: it, Supervisor: sup, Waiter: waiter})
	err := w.Run(context.Background())

	assert.ErrorIs(t, err, ErrIterationExhausted)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, it.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second}, waiter.timeouts)
	assert.Equal(t, 5, sup.parentChecks)
	assert.Equal(t, 12, sup.notifies)
	assert.Equal(t, 12, acc.calls)
}

func TestRun_ParentDead(t *testing.T) {
	it := &meterIterator{max: 10, pauseOdd: true}
	sup := &fakeSupervisor{parentDead: true}
	waiter := &recordingWaiter{}

	w := newTestWorker(t, Options{Acceptor: &scriptedAcceptor{}, Iterator: it, Supervisor: sup, Waiter: waiter})
	err := w.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []int{0, 1}, it.calls)
	assert.Empty(t, waiter.timeouts)
	assert.Equal(t, 1, sup.parentChecks)
	assert.Equal(t, 2, sup.notifies)
}

func TestRun_IterationError(t *testing.T) {
	boom := errors.New("boom")
	it := &meterIterator{max: 10, err: boom}
	sup := &fakeSupervisor{}
	waiter := &recordingWaiter{}

	w := newTestWorker(t, Options{Acceptor: &scriptedAcceptor{}, Iterator: it, Supervisor: sup, Waiter: waiter})
	err := w.Run(context.Background())

	require.ErrorIs(t, err, boom)
	var iterErr *IterationError
	require.ErrorAs(t, err, &iterErr)
	assert.Len(t, it.calls, 1)
	assert.Empty(t, waiter.timeouts)
	assert.Equal(t, 1, sup.notifies)
}

func TestRun_PauseFallsBackToTimeout(t *testing.T) {
	steps := []Result{Pause(0), Advanced, Exhausted}
	it := IteratorFunc(func(ctx context.Context) (Result, error) {
		r := steps[0]
		steps = steps[1:]
		return r, nil
	})
	waiter := &recordingWaiter{}

	w := newTestWorker(t, Options{
		Acceptor:   &scriptedAcceptor{},
		Iterator:   it,
		Supervisor: &fakeSupervisor{},
		Waiter:     waiter,
		Timeout:    5 * time.Second,
	})
	assert.ErrorIs(t, w.Run(context.Background()), ErrIterationExhausted)
	assert.Equal(t, []time.Duration{5 * time.Second}, waiter.timeouts)
}

func TestRun_StopAndShutdown(t *testing.T) {
	pauseForever := IteratorFunc(func(ctx context.Context) (Result, error) {
		return Pause(time.Second), nil
	})

	t.Run("stop during wait", func(t *testing.T) {
		var w *Worker
		waiter := &recordingWaiter{onWait: func() error {
			w.Stop()
			return nil
		}}
		w = newTestWorker(t, Options{Acceptor: &scriptedAcceptor{}, Iterator: pauseForever, Supervisor: &fakeSupervisor{}, Waiter: waiter})

		assert.NoError(t, w.Run(context.Background()))
		assert.False(t, w.Alive())
		assert.Len(t, waiter.timeouts, 1)
	})

	t.Run("wait interrupted", func(t *testing.T) {
		waiter := &recordingWaiter{onWait: func() error { return ErrStopWaiting }}
		w := newTestWorker(t, Options{Acceptor: &scriptedAcceptor{}, Iterator: pauseForever, Supervisor: &fakeSupervisor{}, Waiter: waiter})

		assert.NoError(t, w.Run(context.Background()))
		assert.True(t, w.Alive())
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		sup := &fakeSupervisor{}
		w := newTestWorker(t, Options{Acceptor: &scriptedAcceptor{}, Iterator: pauseForever, Supervisor: sup})

		assert.NoError(t, w.Run(ctx))
		assert.Equal(t, 0, sup.notifies)
	})
}

type funcAcceptor func() (net.Conn, error)

func (f funcAcceptor) Accept() (net.Conn, error) { return f() }

func TestRun_AcceptError(t *testing.T) {
	w := newTestWorker(t, Options{
		Acceptor:   funcAcceptor(func() (net.Conn, error) { return nil, syscall.EMFILE }),
		Iterator:   &meterIterator{max: 1},
		Supervisor: &fakeSupervisor{},
	})
	assert.ErrorIs(t, w.Run(context.Background()), syscall.EMFILE)

	var closed *Worker
	closed = newTestWorker(t, Options{
		Acceptor: funcAcceptor(func() (net.Conn, error) {
			closed.Stop()
			return nil, net.ErrClosed
		}),
		Iterator:   &meterIterator{max: 1},
		Supervisor: &fakeSupervisor{},
	})
	assert.NoError(t, closed.Run(context.Background()), "a listener closed during shutdown is not an error")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Iterator: &meterIterator{}, Supervisor: &fakeSupervisor{}})
	assert.Error(t, err)
	_, err = New(Options{Acceptor: &scriptedAcceptor{}, Supervisor: &fakeSupervisor{}})
	assert.Error(t, err)
	_, err = New(Options{Acceptor: &scriptedAcceptor{}, Iterator: &meterIterator{}})
	assert.Error(t, err)
}

// exchange runs a worker that serves one connection on which raw is sent,
// and returns the parsed response.
func exchange(t *testing.T, handler http.Handler, errHandler ErrorHandler, raw string) *http.Response {
	t.Helper()
	server, client := net.Pipe()

	respCh := make(chan *http.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer client.Close()
		if _, err := io.WriteString(client, raw); err != nil {
			errCh <- err
			return
		}
		resp, err := http.ReadResponse(bufio.NewReader(client), nil)
		if err != nil {
			errCh <- err
			return
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body = io.NopCloser(bytes.NewReader(body))
		respCh <- resp
	}()

	w := newTestWorker(t, Options{
		Handler:      handler,
		Acceptor:     &scriptedAcceptor{conns: []net.Conn{server}},
		Iterator:     &meterIterator{},
		Supervisor:   &fakeSupervisor{},
		ErrorHandler: errHandler,
		Timeout:      5 * time.Second,
	})
	require.ErrorIs(t, w.Run(context.Background()), ErrIterationExhausted)

	select {
	case resp := <-respCh:
		return resp
	case err := <-errCh:
		t.Fatalf("client: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for response")
	}
	return nil
}

func TestServeConn(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Path", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "meter=3")
	})

	resp := exchange(t, handler, nil, "GET /get HTTP/1.1\r\nHost: example\r\n\r\n")

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "/get", resp.Header.Get("X-Path"))
	assert.True(t, resp.Close, "connection is closed after one request")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "meter=3", string(body))
}

func TestServeConn_Errors(t *testing.T) {
	t.Run("malformed request uses default handler", func(t *testing.T) {
		resp := exchange(t, http.NotFoundHandler(), nil, "NOT HTTP\r\n\r\n")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("handler panic reaches error handler", func(t *testing.T) {
		var got *RequestError
		errHandler := func(ctx context.Context, conn net.Conn, err *RequestError) {
			got = err
			DefaultErrorHandler(quietLogger())(ctx, conn, err)
		}
		panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("kaboom") })

		resp := exchange(t, panicking, errHandler, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		require.NotNil(t, got)
		assert.Contains(t, got.Error(), "kaboom")
	})
}

func listen(t *testing.T) DeadlineListener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	dl, ok := l.(DeadlineListener)
	require.True(t, ok)
	return dl
}

func TestListenerAcceptor(t *testing.T) {
	t.Run("nothing pending would block", func(t *testing.T) {
		a := NewListenerAcceptor(listen(t))
		_, err := a.Accept()
		assert.True(t, IsWouldBlock(err), "got %v", err)
	})

	t.Run("pending connection is accepted", func(t *testing.T) {
		l := listen(t)
		a := NewListenerAcceptor(l, WithAcceptWindow(time.Second))
		client, err := net.Dial("tcp", l.Addr().String())
		require.NoError(t, err)
		defer client.Close()

		var conn net.Conn
		require.Eventually(t, func() bool {
			conn, err = a.Accept()
			return err == nil
		}, time.Second, time.Millisecond)
		conn.Close()
	})

	t.Run("would block returns at once", func(t *testing.T) {
		l := listen(t)
		if _, ok := readable(l); !ok {
			t.Skip("listener cannot be polled")
		}
		a := NewListenerAcceptor(l, WithAcceptWindow(time.Second))
		start := time.Now()
		for i := 0; i < 100; i++ {
			_, err := a.Accept()
			require.True(t, IsWouldBlock(err), "got %v", err)
		}
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("wait times out", func(t *testing.T) {
		a := NewListenerAcceptor(listen(t))
		start := time.Now()
		require.NoError(t, a.Wait(context.Background(), 50*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("wait wakes on connection", func(t *testing.T) {
		l := listen(t)
		a := NewListenerAcceptor(l)
		go func() {
			time.Sleep(20 * time.Millisecond)
			if c, err := net.Dial("tcp", l.Addr().String()); err == nil {
				defer c.Close()
				time.Sleep(time.Second)
			}
		}()

		start := time.Now()
		require.NoError(t, a.Wait(context.Background(), 10*time.Second))
		assert.Less(t, time.Since(start), 5*time.Second)

		conn, err := a.Accept()
		require.NoError(t, err, "connection seen during wait is served next")
		conn.Close()
	})

	t.Run("wait interrupted by context", func(t *testing.T) {
		a := NewListenerAcceptor(listen(t))
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		assert.ErrorIs(t, a.Wait(ctx, 10*time.Second), ErrStopWaiting)
	})
}

func TestSleepWaiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepWaiter{}.Wait(ctx, time.Hour), ErrStopWaiting)
	assert.NoError(t, SleepWaiter{}.Wait(context.Background(), time.Millisecond))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wouldBlock bool
		benign     bool
	}{
		{"nil", nil, false, false},
		{"eagain", syscall.EAGAIN, true, true},
		{"conn aborted", &net.OpError{Op: "accept", Err: os.NewSyscallError("accept", syscall.ECONNABORTED)}, true, true},
		{"deadline", os.ErrDeadlineExceeded, true, true},
		{"eof", io.EOF, false, true},
		{"unexpected eof", io.ErrUnexpectedEOF, false, true},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, false, true},
		{"broken pipe", syscall.EPIPE, false, true},
		{"other", errors.New("boom"), false, false},
		{"too many files", syscall.EMFILE, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wouldBlock, IsWouldBlock(tt.err))
			assert.Equal(t, tt.benign, IsBenignConnError(tt.err))
		})
	}
}

func TestProcessSupervisor(t *testing.T) {
	dir := t.TempDir()
	sup, err := NewProcessSupervisor(dir, quietLogger())
	require.NoError(t, err)

	hb := sup.HeartbeatFile()
	require.Equal(t, dir, filepath.Dir(hb))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(hb, old, old))
	sup.Notify()
	info, err := os.Stat(hb)
	require.NoError(t, err)
	assert.True(t, info.ModTime().After(old.Add(time.Minute)))

	assert.True(t, sup.ParentAlive())

	require.NoError(t, sup.Close())
	_, err = os.Stat(hb)
	assert.True(t, os.IsNotExist(err))

	noFile, err := NewProcessSupervisor("", nil)
	require.NoError(t, err)
	noFile.Notify()
	assert.Empty(t, noFile.HeartbeatFile())
	assert.NoError(t, noFile.Close())
}

func TestResult(t *testing.T) {
	d, ok := Pause(3 * time.Second).IsPause()
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)

	_, ok = Advanced.IsPause()
	assert.False(t, ok)
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "pause(3s)", Pause(3*time.Second).String())
}
