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

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/appkit/internal/log"
	"github.com/tombee/appkit/pkg/app"
	"github.com/tombee/appkit/pkg/server"
)

type runOptions struct {
	host       string
	port       int
	reload     bool
	production bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the application",
		Long: `Run the application.

In production (APPKIT_ENV=production, the default, or --production) the
server section of the configuration decides listeners, worker class and
limits. In any other environment a sync server listens on --host/--port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApp(cmd, root, opts)
		},
	}

	opts.addFlags(cmd.Flags())
	return cmd
}

func (o *runOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.host, "host", "H", "127.0.0.1", "The interface to bind to (ignored in production)")
	fs.IntVarP(&o.port, "port", "p", 5000, "The port to bind to (ignored in production)")
	fs.BoolVar(&o.reload, "reload", false, "Restart the application when the configuration or reload_extra_files change (default: server.reload)")
	fs.BoolVar(&o.production, "production", false, "Run in production mode regardless of APPKIT_ENV")
}

func runApp(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	env := app.Env()
	if opts.production {
		env = app.EnvProduction
	}
	fmt.Fprintf(cmd.OutOrStdout(), " * Environment: %s\n", env)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := root.createApp()
	if err != nil {
		return err
	}

	serverOpts := server.OptionsFrom(a.Config)
	if env != app.EnvProduction {
		serverOpts.Binds = []string{net.JoinHostPort(opts.host, strconv.Itoa(opts.port))}
		serverOpts.WorkerClass = server.WorkerSync
		serverOpts.PIDFile = ""
	}
	if cmd.Flags().Changed("reload") {
		serverOpts.Reload = opts.reload
	}

	build := func(a *app.App) (*server.Server, error) {
		return server.New(a, serverOpts)
	}

	if !serverOpts.Reload {
		srv, err := build(a)
		if err != nil {
			return NewConfigError("invalid server configuration", err)
		}
		defer srv.Close()
		return srv.Run(ctx)
	}

	configFile, _ := root.factory.Loader().Path(root.configPath)
	watch := append([]string{configFile}, serverOpts.ReloadExtraFiles...)
	logger := log.WithComponent(a.Logger, "reloader")

	reloader, err := NewReloader(watch, DefaultDebounce, logger)
	if err != nil {
		return err
	}
	defer reloader.Close()

	return serveWithReload(ctx, reloader.Changes(), logger, a, root.createApp, build)
}

// serveWithReload runs first, then rebuilds the application and restarts
// the server whenever changes delivers. A failed rebuild keeps the server
// down until the next change.
func serveWithReload(
	ctx context.Context,
	changes <-chan string,
	logger *slog.Logger,
	first *app.App,
	create func() (*app.App, error),
	build func(*app.App) (*server.Server, error),
) error {
	a := first
	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		running := false

		if a != nil {
			srv, err := build(a)
			if err != nil {
				logger.Error("server configuration invalid, waiting for changes", log.Error(err))
			} else {
				running = true
				go func() {
					defer srv.Close()
					done <- srv.Run(runCtx)
				}()
			}
		}

		select {
		case <-ctx.Done():
			cancel()
			if running {
				return <-done
			}
			return nil

		case err := <-done:
			cancel()
			return err

		case <-changes:
			cancel()
			if running {
				if err := <-done; err != nil {
					logger.Warn("server stopped with error", log.Error(err))
				}
			}
			logger.Info("reloading application")
			next, err := create()
			if err != nil {
				logger.Error("reload failed, waiting for changes", log.Error(err))
			}
			a = next
		}
	}
}
