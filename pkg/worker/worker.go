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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tombee/appkit/internal/log"
)

// DefaultTimeout is the pause used when neither the iterator nor the
// options give one. It also bounds reading and writing a request.
const DefaultTimeout = time.Second

// Options configures a Worker.
type Options struct {
	// Handler serves accepted requests.
	Handler http.Handler

	// Acceptor yields pending connections. Required.
	Acceptor Acceptor

	// Iterator is advanced when no connection is pending. Required.
	Iterator Iterator

	// Supervisor receives heartbeats and reports parent liveness. Required.
	Supervisor Supervisor

	// Waiter implements pauses. Default: the Acceptor when it is a Waiter,
	// SleepWaiter otherwise.
	Waiter Waiter

	// Timeout is the pause used when a step asks for Pause(0), and the
	// deadline for reading and writing one request. Default: DefaultTimeout
	Timeout time.Duration

	// MaxHeaderBytes limits the size of the request line and headers.
	// Default: http.DefaultMaxHeaderBytes
	MaxHeaderBytes int

	// ErrorHandler reports request failures. Default: DefaultErrorHandler
	ErrorHandler ErrorHandler

	// Logger receives worker records. Default: slog.Default()
	Logger *slog.Logger
}

// Worker interleaves request handling and iteration on one goroutine.
type Worker struct {
	opts  Options
	alive atomic.Bool
}

// New validates opts and returns a worker ready to Run.
func New(opts Options) (*Worker, error) {
	if opts.Acceptor == nil {
		return nil, errors.New("worker: acceptor is required")
	}
	if opts.Iterator == nil {
		return nil, errors.New("worker: iterator is required")
	}
	if opts.Supervisor == nil {
		return nil, errors.New("worker: supervisor is required")
	}
	if opts.Handler == nil {
		opts.Handler = http.NotFoundHandler()
	}
	if opts.Waiter == nil {
		if w, ok := opts.Acceptor.(Waiter); ok {
			opts.Waiter = w
		} else {
			opts.Waiter = SleepWaiter{}
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxHeaderBytes <= 0 {
		opts.MaxHeaderBytes = http.DefaultMaxHeaderBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = DefaultErrorHandler(opts.Logger)
	}

	w := &Worker{opts: opts}
	w.alive.Store(true)
	return w, nil
}

// Alive reports whether the worker has not been stopped.
func (w *Worker) Alive() bool {
	return w.alive.Load()
}

// Stop asks the loop to end after the current pass.
func (w *Worker) Stop() {
	w.alive.Store(false)
}

// Run executes the loop until the worker is stopped, ctx is done, the
// parent dies, the iterator is exhausted (ErrIterationExhausted) or a step
// fails (*IterationError). Accept failures other than "nothing pending"
// are returned as is.
func (w *Worker) Run(ctx context.Context) error {
	logger := w.opts.Logger

	for w.Alive() && ctx.Err() == nil {
		w.opts.Supervisor.Notify()

		conn, err := w.opts.Acceptor.Accept()
		if err == nil {
			w.serveConn(ctx, conn)
			continue
		}
		if !IsWouldBlock(err) {
			if errors.Is(err, net.ErrClosed) && !w.Alive() {
				return nil
			}
			logger.ErrorContext(ctx, "accept failed", log.Error(err))
			return fmt.Errorf("worker: accept: %w", err)
		}

		res, err := w.opts.Iterator.Next(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "error during iteration", log.Error(err))
			return &IterationError{Err: err}
		}

		timeout, paused := res.IsPause()
		if !paused {
			if res == Exhausted {
				logger.InfoContext(ctx, "stop iteration")
				return ErrIterationExhausted
			}
			continue
		}
		if timeout <= 0 {
			timeout = w.opts.Timeout
		}

		if !w.opts.Supervisor.ParentAlive() {
			return nil
		}

		logger.DebugContext(ctx, "pausing iteration", "timeout", timeout)
		if err := w.opts.Waiter.Wait(ctx, timeout); err != nil {
			if errors.Is(err, ErrStopWaiting) {
				return nil
			}
			return fmt.Errorf("worker: wait: %w", err)
		}
	}
	return nil
}
