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
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"
)

// ErrStopWaiting is returned by a Waiter interrupted by shutdown.
var ErrStopWaiting = errors.New("worker: stop waiting")

// Acceptor returns a pending connection without blocking. When no
// connection is pending it returns an error for which IsWouldBlock is true.
type Acceptor interface {
	Accept() (net.Conn, error)
}

// Waiter blocks for at most timeout. It returns ErrStopWaiting when
// interrupted by shutdown and nil otherwise.
type Waiter interface {
	Wait(ctx context.Context, timeout time.Duration) error
}

// DeadlineListener is a listener whose Accept honors deadlines, such as
// *net.TCPListener and *net.UnixListener.
type DeadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// DefaultAcceptWindow bounds how long an accept may wait for the kernel to
// hand over a connection. Where the listening socket can be polled, Accept
// only accepts once a connection is queued and returns at once otherwise;
// elsewhere every Accept may wait up to the window.
const DefaultAcceptWindow = time.Millisecond

// errNotPending is returned by Accept when no connection is queued.
var errNotPending = fmt.Errorf("worker: no connection pending: %w", os.ErrDeadlineExceeded)

// ListenerAcceptor accepts from a DeadlineListener without blocking. It is
// also a Waiter: a wait ends early when a connection arrives, and that
// connection is returned by the next Accept.
type ListenerAcceptor struct {
	l      DeadlineListener
	tls    *tls.Config
	window time.Duration

	mu      sync.Mutex
	pending net.Conn
}

// AcceptorOption configures a ListenerAcceptor.
type AcceptorOption func(*ListenerAcceptor)

// WithTLS serves accepted connections over TLS.
func WithTLS(cfg *tls.Config) AcceptorOption {
	return func(a *ListenerAcceptor) { a.tls = cfg }
}

// WithAcceptWindow overrides DefaultAcceptWindow.
func WithAcceptWindow(d time.Duration) AcceptorOption {
	return func(a *ListenerAcceptor) { a.window = d }
}

// NewListenerAcceptor wraps l.
func NewListenerAcceptor(l DeadlineListener, opts ...AcceptorOption) *ListenerAcceptor {
	a := &ListenerAcceptor{l: l, window: DefaultAcceptWindow}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Accept implements Acceptor.
func (a *ListenerAcceptor) Accept() (net.Conn, error) {
	a.mu.Lock()
	conn := a.pending
	a.pending = nil
	a.mu.Unlock()
	if conn != nil {
		return conn, nil
	}

	if ready, ok := readable(a.l); ok && !ready {
		return nil, errNotPending
	}
	if err := a.l.SetDeadline(time.Now().Add(a.window)); err != nil {
		return nil, err
	}
	return a.accept()
}

// Wait implements Waiter.
func (a *ListenerAcceptor) Wait(ctx context.Context, timeout time.Duration) error {
	a.mu.Lock()
	hasPending := a.pending != nil
	a.mu.Unlock()
	if hasPending {
		return nil
	}

	if err := a.l.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = a.l.SetDeadline(time.Now())
	})
	defer stop()

	conn, err := a.accept()
	if err == nil {
		a.mu.Lock()
		a.pending = conn
		a.mu.Unlock()
		return nil
	}
	if ctx.Err() != nil {
		return ErrStopWaiting
	}
	if IsWouldBlock(err) {
		return nil
	}
	return err
}

// Close closes the listener and any connection held for the next pass.
func (a *ListenerAcceptor) Close() error {
	a.mu.Lock()
	if a.pending != nil {
		_ = a.pending.Close()
		a.pending = nil
	}
	a.mu.Unlock()
	return a.l.Close()
}

func (a *ListenerAcceptor) accept() (net.Conn, error) {
	conn, err := a.l.Accept()
	if err != nil {
		return nil, err
	}
	if a.tls != nil {
		conn = tls.Server(conn, a.tls)
	}
	return conn, nil
}

// SleepWaiter waits on a timer. It is used when the acceptor cannot wait
// for connections itself.
type SleepWaiter struct{}

// Wait implements Waiter.
func (SleepWaiter) Wait(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ErrStopWaiting
	}
}

// IsWouldBlock reports whether err means "no connection pending".
func IsWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EWOULDBLOCK) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsBenignConnError reports whether err is a client going away or a
// connection timing out, which is logged at debug level only.
func IsBenignConnError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		return true
	}
	return IsWouldBlock(err)
}
