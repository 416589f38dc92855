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
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute labels requests that matched no route.
const unmatchedRoute = "unmatched"

// Metrics exposes Prometheus metrics at metrics.ENDPOINT_URL and records
// per-route request counts and latencies. Each app gets its own registry:
// Init builds a fresh instance for the app, so one Metrics value may be
// applied to any number of apps.
type Metrics struct {
	registry *prometheus.Registry
	path     string

	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics returns an uninitialized metrics extension.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Registry returns the registry served by the endpoint, nil before Init.
// Applications register their own collectors on MetricsOf(a).Registry().
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Init implements Extension. It does nothing unless the metrics section is
// configured.
func (m *Metrics) Init(a *App) error {
	if !a.Config.Has("metrics") {
		return nil
	}
	m = &Metrics{
		registry: prometheus.NewRegistry(),
		path:     a.Config.String("metrics.ENDPOINT_URL"),
	}
	namespace := a.Config.String("metrics.NAMESPACE")

	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})
	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})
	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
	}, []string{"method", "route"})

	if err := registerAll(m.registry,
		m.inFlight,
		m.requests,
		m.duration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	); err != nil {
		return err
	}

	a.Engine.GET(m.path, gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))
	a.Before(m.begin)
	a.After(m.observe)
	a.SetExtension("metrics", m)
	return nil
}

func registerAll(reg *prometheus.Registry, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

const metricsStartKey = "appkit.metrics.start"

func (m *Metrics) begin(c *gin.Context) {
	if c.Request.URL.Path == m.path {
		return
	}
	m.inFlight.Inc()
	c.Set(metricsStartKey, time.Now())
}

func (m *Metrics) observe(c *gin.Context) {
	v, ok := c.Get(metricsStartKey)
	if !ok {
		return
	}
	m.inFlight.Dec()
	start, _ := v.(time.Time)

	route := c.FullPath()
	if route == "" {
		route = unmatchedRoute
	}
	method := strings.ToUpper(c.Request.Method)
	m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
	m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

// MetricsOf returns the app's metrics extension, or nil.
func MetricsOf(a *App) *Metrics {
	ext, _ := a.Extension("metrics")
	m, _ := ext.(*Metrics)
	return m
}
