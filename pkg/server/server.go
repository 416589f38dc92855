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

// Package server runs an application on its configured listeners.
//
// The sync worker class serves every bind with a net/http server. The
// iterating worker class runs a worker.Worker on the first bind, serving
// one request at a time and advancing the application's iterator while no
// request is pending.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/tombee/appkit/internal/listener"
	"github.com/tombee/appkit/internal/log"
	appkiterrors "github.com/tombee/appkit/pkg/errors"
	"github.com/tombee/appkit/pkg/worker"
)

// Application is what a Server runs. *app.App satisfies it.
type Application interface {
	Handler() http.Handler
	Iterator() worker.Iterator
}

// Server runs an Application.
type Server struct {
	opts    Options
	app     Application
	logger  *slog.Logger
	access  *slog.Logger
	closers []io.Closer
}

// New validates opts and opens the configured log outputs.
func New(a Application, opts Options) (*Server, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.WorkerClass == "" {
		opts.WorkerClass = WorkerSync
	}
	if opts.WorkerClass == WorkerIterating && a.Iterator() == nil {
		return nil, &appkiterrors.ValidationError{
			Field:      "server.worker_class",
			Message:    "worker_class iterating requires an application with an iterable extension",
			Suggestion: "Add an iterable extension to the factory or use worker_class sync",
		}
	}

	s := &Server{opts: opts, app: a}

	errOut, err := log.OpenOutput(opts.ErrorLog)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, errOut)
	cfg := log.FromEnv()
	cfg.Output = errOut
	if opts.LogLevel != "" {
		cfg.Level = opts.LogLevel
	}
	s.logger = log.WithComponent(log.New(cfg), "server").With("proc", opts.Name())

	if opts.AccessLog != "" {
		accessOut, err := log.OpenOutput(opts.AccessLog)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, accessOut)
		accessCfg := log.FromEnv()
		accessCfg.Output = accessOut
		accessCfg.Level = "info"
		s.access = log.WithComponent(log.New(accessCfg), "access")
	}
	return s, nil
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Close releases log outputs.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Run listens on every bind and serves until ctx is done or serving fails.
func (s *Server) Run(ctx context.Context) error {
	tlsCfg, err := listener.TLSConfig(s.opts.CertFile, s.opts.KeyFile)
	if err != nil {
		return err
	}
	s.warnInsecure(tlsCfg)

	listeners, err := listener.ListenAll(s.opts.Binds)
	if err != nil {
		return err
	}

	if s.opts.PIDFile != "" {
		if err := writePIDFile(s.opts.PIDFile); err != nil {
			closeAll(listeners)
			return appkiterrors.Wrap(err, "writing pid file")
		}
		defer removePIDFile(s.opts.PIDFile, s.logger)
	}

	for _, ln := range listeners {
		s.logger.Info("listening", "addr", ln.Addr().String(), "worker_class", s.opts.WorkerClass, "tls", tlsCfg != nil)
	}

	if s.opts.WorkerClass == WorkerIterating {
		return s.runIterating(ctx, listeners, tlsCfg)
	}
	return s.runSync(ctx, listeners, tlsCfg)
}

func (s *Server) warnInsecure(tlsCfg *tls.Config) {
	if tlsCfg != nil {
		return
	}
	for _, bind := range s.opts.Binds {
		addr, err := listener.ParseBind(bind)
		if err == nil && addr.IsRemote() {
			s.logger.Warn("listening on a non-loopback address without TLS", "bind", bind)
		}
	}
}

func (s *Server) handler() http.Handler {
	h := s.app.Handler()
	if s.opts.LimitRequestFields > 0 {
		h = limitFields(h, s.opts.LimitRequestFields)
	}
	if s.access != nil {
		h = accessLog(h, s.access)
	}
	return h
}

func (s *Server) runSync(ctx context.Context, listeners []net.Listener, tlsCfg *tls.Config) error {
	handler := s.handler()
	g, gctx := errgroup.WithContext(ctx)

	for _, ln := range listeners {
		if s.opts.WorkerConnections > 0 {
			ln = netutil.LimitListener(ln, s.opts.WorkerConnections)
		}
		if tlsCfg != nil {
			ln = tls.NewListener(ln, tlsCfg)
		}

		srv := &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: s.opts.Timeout,
			ReadTimeout:       s.opts.Timeout,
			WriteTimeout:      s.opts.Timeout,
			IdleTimeout:       s.opts.KeepAlive,
			MaxHeaderBytes:    s.opts.MaxHeaderBytes(),
			ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !appkiterrors.Is(err, http.ErrServerClosed) {
				return appkiterrors.Wrapf(err, "serving %s", ln.Addr())
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return s.shutdown(srv)
		})
	}

	return g.Wait()
}

func (s *Server) shutdown(srv *http.Server) error {
	timeout := s.opts.GracefulTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown incomplete", log.Error(err))
		return srv.Close()
	}
	return nil
}

func (s *Server) runIterating(ctx context.Context, listeners []net.Listener, tlsCfg *tls.Config) error {
	if len(listeners) > 1 {
		s.logger.Warn("iterating worker serves the first bind only", "ignored", len(listeners)-1)
		closeAll(listeners[1:])
	}

	dl, ok := listeners[0].(worker.DeadlineListener)
	if !ok {
		closeAll(listeners)
		return fmt.Errorf("listener %s does not support deadlines", listeners[0].Addr())
	}

	opts := []worker.AcceptorOption{}
	if tlsCfg != nil {
		opts = append(opts, worker.WithTLS(tlsCfg))
	}
	acceptor := worker.NewListenerAcceptor(dl, opts...)
	defer acceptor.Close()

	supervisor, err := worker.NewProcessSupervisor(s.opts.WorkerTmpDir, s.logger)
	if err != nil {
		return err
	}
	defer supervisor.Close()

	w, err := worker.New(worker.Options{
		Handler:        s.handler(),
		Acceptor:       acceptor,
		Iterator:       s.app.Iterator(),
		Supervisor:     supervisor,
		Timeout:        s.opts.Timeout,
		MaxHeaderBytes: s.opts.MaxHeaderBytes(),
		Logger:         log.WithComponent(s.logger, "worker"),
	})
	if err != nil {
		return err
	}

	err = w.Run(ctx)
	if appkiterrors.Is(err, worker.ErrIterationExhausted) {
		s.logger.Info("iteration exhausted, worker exiting")
		return nil
	}
	return err
}

func closeAll(listeners []net.Listener) {
	for _, ln := range listeners {
		ln.Close()
	}
}
