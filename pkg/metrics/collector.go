/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics pkg/metrics/collector.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portalwatch"

// Collector exposes monitor activity as Prometheus metrics. It keeps its
// own registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	probes       *prometheus.CounterVec
	logins       *prometheus.CounterVec
	logouts      *prometheus.CounterVec
	running      prometheus.Gauge
	lastRestored prometheus.Gauge
}

// NewCollector registers all metrics plus the Go runtime collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Reachability probe chains run, by phase and outcome.",
		}, []string{"phase", "reachable"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Portal login attempts by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logout_attempts_total",
			Help:      "Portal logout attempts by result.",
		}, []string{"result"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_running",
			Help:      "1 while the monitor loop is running.",
		}),
		lastRestored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_restored_timestamp_seconds",
			Help:      "Unix time connectivity was last restored by a login.",
		}),
	}

	c.registry.MustRegister(
		c.probes, c.logins, c.logouts, c.running, c.lastRestored,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collector) ObserveProbe(phase string, ok bool) {
	c.probes.WithLabelValues(phase, strconv.FormatBool(ok)).Inc()
}

func (c *Collector) ObserveLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveLogout(result string) {
	c.logouts.WithLabelValues(result).Inc()
}

func (c *Collector) SetRunning(running bool) {
	if running {
		c.running.Set(1)
		return
	}

	c.running.Set(0)
}

func (c *Collector) MarkRestored(at time.Time) {
	c.lastRestored.Set(float64(at.Unix()))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
