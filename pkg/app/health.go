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

package app

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
)

// DefaultGoroutineThreshold fails liveness when exceeded.
const DefaultGoroutineThreshold = 10000

// Health serves liveness and readiness checks at health.ENDPOINT_URL.
//
//	GET /healthcheck        readiness (liveness checks included)
//	GET /healthcheck/live   liveness only
//	GET /healthcheck/ready  readiness
//
// Append ?full=1 for per-check results.
type Health struct {
	healthcheck.Handler

	path string
}

// NewHealth returns a Health with a goroutine-count liveness check.
func NewHealth() *Health {
	h := &Health{Handler: healthcheck.NewHandler()}
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(DefaultGoroutineThreshold))
	return h
}

// Path returns the mounted endpoint, empty before Init.
func (h *Health) Path() string {
	return h.path
}

// Init implements Extension. It does nothing unless the health section is
// configured.
func (h *Health) Init(a *App) error {
	if !a.Config.Has("health") {
		return nil
	}
	h.path = strings.TrimRight(a.Config.String("health.ENDPOINT_URL"), "/")
	if h.path == "" {
		h.path = "/"
	}

	ready := gin.WrapF(h.ReadyEndpoint)
	live := gin.WrapF(h.LiveEndpoint)
	a.Engine.GET(h.path, ready)
	a.Engine.HEAD(h.path, ready)
	a.Engine.GET(joinRoute(h.path, "live"), live)
	a.Engine.GET(joinRoute(h.path, "ready"), ready)

	a.SetExtension("health", h)
	return nil
}

// HealthOf returns the app's health extension, or nil.
func HealthOf(a *App) *Health {
	ext, _ := a.Extension("health")
	h, _ := ext.(*Health)
	return h
}

func joinRoute(base, elem string) string {
	return strings.TrimRight(base, "/") + "/" + elem
}
