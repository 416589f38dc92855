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

// Package app assembles HTTP applications from configuration.
//
// An App couples a gin engine with its resolved configuration and logger.
// A Factory builds apps the same way every time: load and validate the
// configuration, then apply four ordered collections of named appliers:
// middlewares (wrapping the whole handler), extensions (health, OpenAPI,
// metrics, background iteration), hooks (run around every request) and
// blueprints (route groups). Each collection starts from a Default*
// function and can be extended, overridden by name or trimmed.
package app

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tombee/appkit/internal/log"
	"github.com/tombee/appkit/pkg/config"
	"github.com/tombee/appkit/pkg/worker"
)

// EnvVar names the environment variable selecting the runtime environment.
const EnvVar = "APPKIT_ENV"

// Environments.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Env returns the runtime environment, production unless EnvVar says
// otherwise.
func Env() string {
	if env := os.Getenv(EnvVar); env != "" {
		return env
	}
	return EnvProduction
}

var ginModeOnce sync.Once

// App is an assembled HTTP application.
type App struct {
	// Name is the configured APP_NAME.
	Name string

	// Config holds the resolved configuration.
	Config config.Values

	// Engine is the router. Blueprints and extensions register routes on it.
	Engine *gin.Engine

	// Logger is the application logger.
	Logger *slog.Logger

	handler http.Handler
	before  []gin.HandlerFunc
	after   []gin.HandlerFunc

	extensions map[string]any
	iterable   *Iterable
}

// New returns an App with an empty router. Most callers use a Factory.
func New(cfg config.Values, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	ginModeOnce.Do(func() {
		if Env() == EnvDevelopment {
			gin.SetMode(gin.DebugMode)
			// Routes are logged per app by Factory.Create.
			gin.DebugPrintRouteFunc = func(string, string, string, int) {}
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	})

	a := &App{
		Name:       cfg.String("APP_NAME"),
		Config:     cfg,
		Engine:     gin.New(),
		Logger:     logger,
		extensions: make(map[string]any),
	}
	a.Engine.Use(
		gin.CustomRecoveryWithWriter(io.Discard, a.recoverPanic),
		a.runHooks,
	)
	a.handler = a.Engine
	return a
}

// Handler returns the application wrapped in its middlewares.
func (a *App) Handler() http.Handler {
	return a.handler
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Use wraps the current handler in mw. The last middleware applied is the
// outermost.
func (a *App) Use(mw func(http.Handler) http.Handler) {
	a.handler = mw(a.handler)
}

// Before registers a hook run before every request, including requests
// that match no route. A hook that aborts the context skips the handler.
func (a *App) Before(h gin.HandlerFunc) {
	a.before = append(a.before, h)
}

// After registers a hook run after every request.
func (a *App) After(h gin.HandlerFunc) {
	a.after = append(a.after, h)
}

func (a *App) runHooks(c *gin.Context) {
	for _, h := range a.before {
		h(c)
		if c.IsAborted() {
			break
		}
	}
	if !c.IsAborted() {
		c.Next()
	}
	for _, h := range a.after {
		h(c)
	}
}

func (a *App) recoverPanic(c *gin.Context, err any) {
	a.Logger.ErrorContext(c.Request.Context(), "panic serving request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"panic", err)
	c.AbortWithStatus(http.StatusInternalServerError)
}

// SetExtension records an initialized extension under name.
func (a *App) SetExtension(name string, ext any) {
	a.extensions[name] = ext
}

// Extension returns the extension recorded under name.
func (a *App) Extension(name string) (any, bool) {
	ext, ok := a.extensions[name]
	return ext, ok
}

// Iterable returns the app's background iterable, or nil.
func (a *App) Iterable() *Iterable {
	return a.iterable
}

// Routes lists the registered routes.
func (a *App) Routes() gin.RoutesInfo {
	return a.Engine.Routes()
}

// startKey stores the request start time for after hooks.
const startKey = "appkit.start"

func requestStart(c *gin.Context) time.Time {
	if v, ok := c.Get(startKey); ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Now()
}

func setAccessLogHook(a *App) error {
	a.Before(func(c *gin.Context) {
		c.Set(startKey, time.Now())
	})
	a.After(func(c *gin.Context) {
		size := c.Writer.Size()
		if size < 0 {
			size = 0
		}
		log.LogHTTPRequest(c.Request.Context(), a.Logger,
			&log.HTTPRequest{
				Method:     c.Request.Method,
				Path:       c.Request.URL.Path,
				Proto:      c.Request.Proto,
				RemoteAddr: c.Request.RemoteAddr,
				UserAgent:  c.Request.UserAgent(),
			},
			&log.HTTPResponse{
				Status:   c.Writer.Status(),
				Bytes:    size,
				Duration: time.Since(requestStart(c)),
			})
	})
	return nil
}

// Iterator returns the background iterator, or nil. It lets servers pick a
// worker without knowing about extensions.
func (a *App) Iterator() worker.Iterator {
	if a.iterable == nil {
		return nil
	}
	return a.iterable
}
