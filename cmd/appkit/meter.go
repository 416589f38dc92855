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

package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tombee/appkit/pkg/app"
	"github.com/tombee/appkit/pkg/config"
	"github.com/tombee/appkit/pkg/worker"
)

const (
	meterLimit = 100
	meterPause = 2 * time.Second
)

// meter counts up in the background, pausing on every even value and
// stopping once it reaches meterLimit.
type meter struct {
	mu     sync.Mutex
	value  int
	logger *slog.Logger
}

func newMeter() *meter {
	return &meter{logger: slog.Default()}
}

// Configure implements app.Configurable.
func (m *meter) Configure(cfg config.Values) error {
	m.set(cfg.Int("meter"))
	return nil
}

// Next implements worker.Iterator.
func (m *meter) Next(ctx context.Context) (worker.Result, error) {
	m.mu.Lock()
	m.value++
	v := m.value
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "meter advanced", "meter", v)
	if v%2 == 0 {
		return worker.Pause(meterPause), nil
	}
	if v >= meterLimit {
		return worker.Exhausted, nil
	}
	return worker.Advanced, nil
}

func (m *meter) get() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

func (m *meter) set(v int) {
	m.mu.Lock()
	m.value = v
	m.mu.Unlock()
}

func (m *meter) register(a *app.App) error {
	m.logger = a.Logger
	a.Engine.GET("/get", m.handleGet)
	a.Engine.GET("/set/:meter", m.handleSet)
	return nil
}

func (m *meter) handleGet(c *gin.Context) {
	v := m.get()
	m.logger.InfoContext(c.Request.Context(), "meter read", "meter", v)
	c.JSON(http.StatusOK, gin.H{"data": v})
}

func (m *meter) handleSet(c *gin.Context) {
	v, err := strconv.Atoi(c.Param("meter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "meter must be an integer"})
		return
	}
	m.set(v)
	m.logger.InfoContext(c.Request.Context(), "meter set", "meter", v)
	c.JSON(http.StatusOK, gin.H{"data": v})
}
