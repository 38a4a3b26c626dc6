/*
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

// Package monitor runs the background loop that keeps the campus session
// authenticated.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mfreeman451/portalwatch/pkg/alerts"
	"github.com/mfreeman451/portalwatch/pkg/config"
	"github.com/mfreeman451/portalwatch/pkg/logsink"
	"github.com/mfreeman451/portalwatch/pkg/metrics"
	"github.com/mfreeman451/portalwatch/pkg/models"
	"github.com/mfreeman451/portalwatch/pkg/portal"
	"github.com/mfreeman451/portalwatch/pkg/probe"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("module", "monitor")

const (
	portalHostLabel = "portal"
	alertTimeout    = 15 * time.Second
)

// Deps wires the monitor to its collaborators. Settings and Session are
// required; the rest fall back to no-ops or ICMP.
type Deps struct {
	Settings config.Provider
	Session  SessionClient
	// ProberFor selects the prober for a probe method. When nil, Prober is
	// used for every method.
	ProberFor func(models.ProbeMethod) probe.Prober
	Prober    probe.Prober
	Sink      logsink.Sink
	Metrics   metrics.Recorder
	// Alerter is told about restored connectivity and rejected logins.
	Alerter alerts.Alerter
	Now     func() time.Time
}

// Status is a point-in-time view of the monitor.
type Status struct {
	Running       bool             `json:"running"`
	AuthState     models.AuthState `json:"auth_state"`
	Ticks         uint64           `json:"ticks"`
	LoginAttempts uint64           `json:"login_attempts"`
	LastTick      time.Time        `json:"last_tick,omitempty"`
	LastProbeOK   bool             `json:"last_probe_ok"`
	LastProbeHost string           `json:"last_probe_host,omitempty"`
	LastRestored  time.Time        `json:"last_restored,omitempty"`
}

// Monitor owns at most one worker goroutine at a time.
type Monitor struct {
	deps Deps

	// transitionMu orders each state flip together with its announcement.
	transitionMu sync.Mutex

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	listeners []func(bool)

	statusMu sync.Mutex
	status   Status

	// owned by the worker goroutine
	outageStart  time.Time
	outageLogins int
}

// New creates a stopped monitor.
func New(deps Deps) *Monitor {
	if deps.Sink == nil {
		deps.Sink = logsink.SinkFunc(func(logsink.Line) {})
	}

	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}

	if deps.ProberFor == nil {
		p := deps.Prober
		if p == nil {
			p = probe.NewICMPProber()
		}

		deps.ProberFor = func(models.ProbeMethod) probe.Prober { return p }
	}

	return &Monitor{deps: deps}
}

// OnRunningChanged registers fn to be called with the new running flag
// after every Start and Stop that changes it. fn runs on the caller's
// goroutine and must not call Start or Stop.
func (m *Monitor) OnRunningChanged(fn func(running bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, fn)
}

// Running reports whether a worker has been started and not stopped.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.running
}

// Start launches the worker. It is a no-op when already running.
func (m *Monitor) Start() {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	prev := m.done
	done := make(chan struct{})

	m.running = true
	m.cancel = cancel
	m.done = done
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	m.emit("monitor started")
	m.announce(true, listeners)

	go m.run(ctx, prev, done)
}

// Stop asks the worker to exit. The current probe or request finishes on
// its own timeout; waits end immediately. It is a no-op when stopped.
func (m *Monitor) Stop() {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}

	m.running = false
	m.cancel()
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	m.emit("stopping monitor")
	m.announce(false, listeners)
}

// Wait blocks until the most recent worker has exited or ctx is done.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the latest counters merged with the session state.
func (m *Monitor) Status() Status {
	m.statusMu.Lock()
	s := m.status
	m.statusMu.Unlock()

	s.Running = m.Running()
	s.AuthState = m.deps.Session.State()

	return s
}

func (m *Monitor) announce(running bool, listeners []func(bool)) {
	m.deps.Metrics.SetRunning(running)

	for _, fn := range listeners {
		fn(running)
	}
}

func (m *Monitor) run(ctx context.Context, prev, done chan struct{}) {
	defer close(done)

	// a restarted worker never overlaps the one it replaces
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return
		}
	}

	for {
		m.safeTick(ctx, m.deps.Settings.Snapshot().Effective())

		interval := m.deps.Settings.Snapshot().Effective().CheckInterval
		if !sleep(ctx, interval) {
			break
		}
	}

	m.emit("monitor stopped")
}

func (m *Monitor) safeTick(ctx context.Context, eff config.Effective) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Tick aborted")
			m.emit("check aborted: %v", r)
		}
	}()

	m.tick(ctx, eff)
}

func (m *Monitor) tick(ctx context.Context, eff config.Effective) {
	ok, host := m.reachable(ctx, eff, eff.ProbeHosts, eff.ProbeTimeout, metrics.PhaseTick)

	m.statusMu.Lock()
	m.status.Ticks++
	m.status.LastTick = m.deps.Now()
	m.status.LastProbeOK = ok
	m.status.LastProbeHost = host
	m.statusMu.Unlock()

	if ok {
		m.outageStart = time.Time{}
		m.outageLogins = 0
		m.emit("network ok | %s reachable", host)

		return
	}

	if ctx.Err() != nil {
		return
	}

	if m.outageStart.IsZero() {
		m.outageStart = m.deps.Now()
	}

	m.emit("network unreachable (last tried %s), attempting authentication", hostLabel(host))

	if !m.login(ctx, eff) {
		return
	}

	m.verify(ctx, eff)
}

// verify repeats grace, probe, logout, wait and login until the post-login
// probe succeeds or the monitor is stopped.
func (m *Monitor) verify(ctx context.Context, eff config.Effective) {
	for {
		if !sleep(ctx, eff.PostLoginGrace) {
			return
		}

		eff = m.deps.Settings.Snapshot().Effective()

		ok, host := m.reachable(ctx, eff, eff.PostLoginHosts, eff.PostLoginTimeout, metrics.PhaseVerify)
		if ok {
			now := m.deps.Now()

			m.statusMu.Lock()
			m.status.LastRestored = now
			m.statusMu.Unlock()

			m.deps.Metrics.MarkRestored(now)
			m.emit("connectivity restored | %s reachable", host)
			m.alert(&alerts.Alert{
				Level:   alerts.Info,
				Title:   "Connectivity restored",
				Message: fmt.Sprintf("%s reachable after re-authentication", host),
				Details: map[string]any{
					"logins": m.outageLogins,
					"outage": now.Sub(m.outageStart).Round(time.Second).String(),
				},
			})

			m.outageStart = time.Time{}
			m.outageLogins = 0

			return
		}

		if ctx.Err() != nil {
			return
		}

		m.emit("still unreachable after login (last tried %s), logging out to retry", hostLabel(host))
		m.logout(ctx)

		if !sleep(ctx, eff.ReconnectWait) {
			return
		}

		m.login(ctx, eff)
	}
}

func (m *Monitor) reachable(
	ctx context.Context, eff config.Effective, hosts []string, timeout time.Duration, phase string) (ok bool, host string) {
	if eff.ProbeMethod == models.ProbePortal {
		authed, err := m.deps.Session.CheckAuthenticated(ctx)
		if err != nil {
			logger.WithError(err).Debug("Portal check failed")
		}

		m.deps.Metrics.ObserveProbe(phase, authed)

		return authed, portalHostLabel
	}

	ok, host = probe.Chain(ctx, m.deps.ProberFor(eff.ProbeMethod), hosts, timeout)
	m.deps.Metrics.ObserveProbe(phase, ok)

	return ok, host
}

func (m *Monitor) login(ctx context.Context, eff config.Effective) bool {
	m.statusMu.Lock()
	m.status.LoginAttempts++
	m.statusMu.Unlock()

	m.outageLogins++

	out, err := m.deps.Session.Login(ctx, portal.LoginRequest{
		Credentials:    eff.Credentials,
		Carrier:        eff.Carrier,
		PreLoginLogout: eff.PreLoginLogout,
	})

	switch {
	case errors.Is(err, portal.ErrEmptyCredentials):
		m.deps.Metrics.ObserveLogin(metrics.ResultNoConfig)
		m.emit("authentication skipped: username or password not configured")

		return false
	case err != nil:
		m.deps.Metrics.ObserveLogin(metrics.ResultError)
		m.emit("authentication error: %v", err)

		return false
	case !out.Success:
		m.deps.Metrics.ObserveLogin(metrics.ResultRejected)
		m.emit("authentication failed: %s", out.Message)
		m.alert(&alerts.Alert{
			Level:   alerts.Warning,
			Title:   "Portal rejected login",
			Message: out.Message,
			Details: map[string]any{"account": eff.Credentials.Identity},
		})

		return false
	}

	m.deps.Metrics.ObserveLogin(metrics.ResultSuccess)
	m.emit("authentication succeeded: %s", out.Message)

	return true
}

func (m *Monitor) logout(ctx context.Context) {
	out, err := m.deps.Session.Logout(ctx)

	switch {
	case err != nil:
		m.deps.Metrics.ObserveLogout(metrics.ResultError)
		m.emit("logout error: %v", err)
	case !out.Success:
		m.deps.Metrics.ObserveLogout(metrics.ResultRejected)
		m.emit("logout failed: %s", out.Message)
	default:
		m.deps.Metrics.ObserveLogout(metrics.ResultSuccess)
		m.emit("logout: %s", out.Message)
	}
}

// alert sends in the background. The portal may still be blocking
// traffic, so failures are only logged.
func (m *Monitor) alert(a *alerts.Alert) {
	if m.deps.Alerter == nil || !m.deps.Alerter.IsEnabled() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()

		if err := m.deps.Alerter.Alert(ctx, a); err != nil {
			logger.WithError(err).WithField("title", a.Title).Debug("Alert not delivered")
		}
	}()
}

func (m *Monitor) emit(format string, args ...interface{}) {
	m.deps.Sink.Log(logsink.NewLine(format, args...))
}

func hostLabel(host string) string {
	if host == "" {
		return "no hosts configured"
	}

	return host
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
