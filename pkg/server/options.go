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

package server

import (
	"fmt"
	"time"

	"github.com/tombee/appkit/pkg/config"
	appkiterrors "github.com/tombee/appkit/pkg/errors"
)

// Worker classes.
const (
	// WorkerSync serves requests concurrently with net/http.
	WorkerSync = "sync"

	// WorkerIterating serves one request at a time and advances the
	// application's iterator between requests.
	WorkerIterating = "iterating"
)

// Options configures a Server. OptionsFrom fills it from the server
// section of the configuration.
type Options struct {
	// Binds are the addresses to listen on (host:port, :port, unix:/path).
	Binds []string

	// WorkerClass is WorkerSync or WorkerIterating.
	WorkerClass string

	// WorkerConnections caps simultaneous connections per bind (sync).
	WorkerConnections int

	// Timeout bounds reading and writing a request.
	Timeout time.Duration

	// GracefulTimeout bounds shutdown.
	GracefulTimeout time.Duration

	// KeepAlive is how long idle keep-alive connections are kept (sync).
	KeepAlive time.Duration

	LimitRequestLine      int
	LimitRequestFields    int
	LimitRequestFieldSize int

	CertFile string
	KeyFile  string

	// PIDFile is written on start and removed on exit.
	PIDFile string

	// WorkerTmpDir holds the iterating worker's heartbeat file.
	WorkerTmpDir string

	// AccessLog is the access log target ("-" for stderr), empty to disable.
	AccessLog string

	// ErrorLog is the server log target. Default: "-"
	ErrorLog string

	// LogLevel is the server log level. Default: info
	LogLevel string

	// ProcName identifies the server in logs. Default: DefaultProcName
	ProcName        string
	DefaultProcName string

	// Reload restarts the application when watched files change.
	Reload bool

	// ReloadExtraFiles are additional files or glob patterns to watch.
	ReloadExtraFiles []string
}

// OptionsFrom reads the server section of resolved configuration.
func OptionsFrom(cfg config.Values) Options {
	s := cfg.Section("server")
	return Options{
		Binds:                 s.Strings("bind"),
		WorkerClass:           s.String("worker_class"),
		WorkerConnections:     s.Int("worker_connections"),
		Timeout:               s.Duration("timeout"),
		GracefulTimeout:       s.Duration("graceful_timeout"),
		KeepAlive:             s.Duration("keepalive"),
		LimitRequestLine:      s.Int("limit_request_line"),
		LimitRequestFields:    s.Int("limit_request_fields"),
		LimitRequestFieldSize: s.Int("limit_request_field_size"),
		CertFile:              s.String("certfile"),
		KeyFile:               s.String("keyfile"),
		PIDFile:               s.String("pidfile"),
		WorkerTmpDir:          s.String("worker_tmp_dir"),
		AccessLog:             s.String("accesslog"),
		ErrorLog:              s.String("errorlog"),
		LogLevel:              s.String("loglevel"),
		ProcName:              s.String("proc_name"),
		DefaultProcName:       s.String("default_proc_name"),
		Reload:                s.Bool("reload"),
		ReloadExtraFiles:      s.Strings("reload_extra_files"),
	}
}

// Validate checks option consistency.
func (o Options) Validate() error {
	switch o.WorkerClass {
	case "", WorkerSync, WorkerIterating:
	default:
		return &appkiterrors.ValidationError{
			Field:      "server.worker_class",
			Message:    fmt.Sprintf("unknown worker_class %q", o.WorkerClass),
			Suggestion: fmt.Sprintf("Use %s or %s", WorkerSync, WorkerIterating),
		}
	}
	if len(o.Binds) == 0 {
		return &appkiterrors.ValidationError{
			Field:      "server.bind",
			Message:    "no bind address configured",
			Suggestion: "Add an address such as 127.0.0.1:5000 or unix:/run/app.sock",
		}
	}
	if (o.CertFile == "") != (o.KeyFile == "") {
		field := "server.keyfile"
		if o.CertFile == "" {
			field = "server.certfile"
		}
		return &appkiterrors.ValidationError{
			Field:      field,
			Message:    "both certfile and keyfile are required for TLS",
			Suggestion: "Set both files to serve TLS, or neither",
		}
	}
	limits := []struct {
		name  string
		value int
	}{
		{"limit_request_line", o.LimitRequestLine},
		{"limit_request_fields", o.LimitRequestFields},
		{"limit_request_field_size", o.LimitRequestFieldSize},
		{"worker_connections", o.WorkerConnections},
	}
	for _, l := range limits {
		if l.value < 0 {
			return &appkiterrors.ValidationError{
				Field:   "server." + l.name,
				Message: "must not be negative",
			}
		}
	}
	return nil
}

// Name returns ProcName, falling back to DefaultProcName.
func (o Options) Name() string {
	if o.ProcName != "" {
		return o.ProcName
	}
	if o.DefaultProcName != "" {
		return o.DefaultProcName
	}
	return "appkit"
}

// MaxHeaderBytes is the request line plus headers allowance. Zero limits
// mean the net/http default.
func (o Options) MaxHeaderBytes() int {
	if o.LimitRequestLine == 0 || o.LimitRequestFields == 0 || o.LimitRequestFieldSize == 0 {
		return 0
	}
	return o.LimitRequestLine + o.LimitRequestFields*o.LimitRequestFieldSize
}
