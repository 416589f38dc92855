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
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/tombee/appkit/internal/log"
)

// RequestError is a failure while serving one connection. Status is the
// response the client should receive, when it can still be sent.
type RequestError struct {
	Status int
	Err    error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("serving request (%d): %v", e.Status, e.Err)
}

// Unwrap returns the underlying error.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// ErrorHandler reports a request failure. The connection is still open and
// may be used to send an error response; the worker closes it afterwards.
type ErrorHandler func(ctx context.Context, conn net.Conn, err *RequestError)

// DefaultErrorHandler logs the failure and writes a bare error response.
func DefaultErrorHandler(logger *slog.Logger) ErrorHandler {
	return func(ctx context.Context, conn net.Conn, err *RequestError) {
		logger.ErrorContext(ctx, "error handling request",
			"remote", remoteAddr(conn),
			"status", err.Status,
			log.Error(err.Err))

		text := http.StatusText(err.Status)
		_, _ = fmt.Fprintf(conn, "HTTP/1.1 %d %s\r\nConnection: close\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Length: %d\r\n\r\n%s",
			err.Status, text, len(text), text)
	}
}

// serveConn reads one request from conn, serves it and closes conn.
func (w *Worker) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logger := w.opts.Logger
	log.Trace(ctx, logger, "connection accepted", slog.String("remote", remoteAddr(conn)))

	if err := conn.SetDeadline(time.Now().Add(w.opts.Timeout)); err != nil {
		logger.DebugContext(ctx, "setting connection deadline", log.Error(err))
	}

	var tlsState *tls.ConnectionState
	if tc, ok := conn.(*tls.Conn); ok {
		if err := tc.HandshakeContext(ctx); err != nil {
			logger.DebugContext(ctx, "tls handshake failed", "remote", remoteAddr(conn), log.Error(err))
			return
		}
		state := tc.ConnectionState()
		tlsState = &state
	}

	// The limit covers the request line and headers; it is lifted once
	// they are parsed so the body can be read in full.
	lr := &io.LimitedReader{R: conn, N: int64(w.opts.MaxHeaderBytes) + 4096}
	req, err := http.ReadRequest(bufio.NewReader(lr))
	if err != nil {
		switch {
		case lr.N <= 0:
			w.opts.ErrorHandler(ctx, conn, &RequestError{Status: http.StatusRequestHeaderFieldsTooLarge, Err: err})
		case IsBenignConnError(err):
			logger.DebugContext(ctx, "ignored premature client disconnection", "remote", remoteAddr(conn), log.Error(err))
		default:
			w.opts.ErrorHandler(ctx, conn, &RequestError{Status: http.StatusBadRequest, Err: err})
		}
		return
	}
	lr.N = math.MaxInt64
	defer req.Body.Close()

	req.RemoteAddr = remoteAddr(conn)
	req.TLS = tlsState
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	if err := serveRecorded(w.opts.Handler, rec, req); err != nil {
		w.opts.ErrorHandler(ctx, conn, &RequestError{Status: http.StatusInternalServerError, Err: err})
		return
	}

	resp := rec.Result()
	resp.Request = req
	resp.Close = true
	resp.ContentLength = int64(rec.Body.Len())

	bw := bufio.NewWriter(conn)
	err = resp.Write(bw)
	if err == nil {
		err = bw.Flush()
	}
	switch {
	case err == nil:
		logger.DebugContext(ctx, "request handled", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)
	case IsBenignConnError(err):
		logger.DebugContext(ctx, "ignored error writing response", "remote", req.RemoteAddr, log.Error(err))
	default:
		logger.ErrorContext(ctx, "socket error writing response", "remote", req.RemoteAddr, log.Error(err))
	}
}

func serveRecorded(h http.Handler, rec *httptest.ResponseRecorder, req *http.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == http.ErrAbortHandler {
				err = errors.New("handler aborted")
				return
			}
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	h.ServeHTTP(rec, req)
	return nil
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
