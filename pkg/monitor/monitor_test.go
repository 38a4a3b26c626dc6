package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfreeman451/portalwatch/pkg/alerts"
	"github.com/mfreeman451/portalwatch/pkg/config"
	"github.com/mfreeman451/portalwatch/pkg/logsink"
	"github.com/mfreeman451/portalwatch/pkg/models"
	"github.com/mfreeman451/portalwatch/pkg/portal"
	"github.com/mfreeman451/portalwatch/pkg/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	okLogin  = portal.Outcome{Success: true, Message: "authenticated"}
	okLogout = portal.Outcome{Success: true, Message: "logged out"}
)

// scripted answers probes from a fixed queue, then with fallback.
type scripted struct {
	mu       sync.Mutex
	results  []bool
	fallback bool
	hosts    []string
}

func (s *scripted) Probe(_ context.Context, host string, _ time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hosts = append(s.hosts, host)

	if len(s.results) == 0 {
		return s.fallback
	}

	r := s.results[0]
	s.results = s.results[1:]

	return r
}

type counts struct {
	mu       sync.Mutex
	logins   map[string]int
	logouts  map[string]int
	running  []bool
	restored int
}

func newCounts() *counts {
	return &counts{logins: map[string]int{}, logouts: map[string]int{}}
}

func (c *counts) ObserveProbe(string, bool) {}

func (c *counts) ObserveLogin(r string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins[r]++
}

func (c *counts) ObserveLogout(r string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logouts[r]++
}

func (c *counts) SetRunning(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = append(c.running, v)
}

func (c *counts) MarkRestored(time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restored++
}

func testSettings() config.Settings {
	s := config.DefaultSettings()
	s.User = "2021001"
	s.Password = "secret"
	s.Carrier = models.CarrierUnicom
	s.ProbeHosts = []string{"a", "b"}
	s.CheckIntervalSec = 60
	s.PostLoginGrace = config.Duration(10 * time.Millisecond)
	s.ReconnectWaitSec = 1

	return s
}

type harness struct {
	m       *Monitor
	session *MockSessionClient
	history *logsink.History
	counts  *counts
}

func newHarness(t *testing.T, s config.Settings, p probe.Prober) *harness {
	t.Helper()

	ctrl := gomock.NewController(t)
	h := &harness{
		session: NewMockSessionClient(ctrl),
		history: logsink.NewHistory(100),
		counts:  newCounts(),
	}

	h.m = New(Deps{
		Settings: config.NewStore("", s),
		Session:  h.session,
		Prober:   p,
		Sink:     h.history,
		Metrics:  h.counts,
	})

	t.Cleanup(func() {
		h.m.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_ = h.m.Wait(ctx)
	})

	return h
}

func (h *harness) lines() []string {
	var out []string
	for _, l := range h.history.Lines(0) {
		out = append(out, l.Message)
	}

	return out
}

func (h *harness) count(substr string) int {
	n := 0

	for _, l := range h.lines() {
		if strings.Contains(l, substr) {
			n++
		}
	}

	return n
}

func (h *harness) waitFor(t *testing.T, substr string, within time.Duration) {
	t.Helper()

	require.Eventually(t, func() bool { return h.count(substr) > 0 }, within, 5*time.Millisecond,
		"no %q line in %v", substr, h.lines())
}

func (h *harness) stopWithin(t *testing.T, d time.Duration) {
	t.Helper()

	start := time.Now()
	h.m.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	require.NoError(t, h.m.Wait(ctx))
	assert.Less(t, time.Since(start), d)
}

func TestNetworkOKSkipsLogin(t *testing.T) {
	p := &scripted{results: []bool{false, true}}
	h := newHarness(t, testSettings(), p)

	h.m.Start()
	h.waitFor(t, "network ok | b reachable", time.Second)
	h.stopWithin(t, 200*time.Millisecond)

	assert.Equal(t, []string{"a", "b"}, p.hosts)
	assert.Equal(t, 1, h.count("monitor stopped"))
}

func TestReloginSequenceRestoresOnce(t *testing.T) {
	// tick: a,b fail; verify 1: a,b fail; verify 2: a succeeds
	p := &scripted{results: []bool{false, false, false, false, true}}
	h := newHarness(t, testSettings(), p)

	want := portal.LoginRequest{
		Credentials:    models.Credentials{Identity: "2021001", Secret: "secret"},
		Carrier:        models.CarrierUnicom,
		PreLoginLogout: true,
	}

	gomock.InOrder(
		h.session.EXPECT().Login(gomock.Any(), want).Return(okLogin, nil),
		h.session.EXPECT().Logout(gomock.Any()).Return(okLogout, nil),
		h.session.EXPECT().Login(gomock.Any(), want).Return(okLogin, nil),
	)
	h.session.EXPECT().State().Return(models.AuthOnline).AnyTimes()

	h.m.Start()
	h.waitFor(t, "connectivity restored", 5*time.Second)

	st := h.m.Status()
	assert.True(t, st.Running)
	assert.Equal(t, models.AuthOnline, st.AuthState)
	assert.Equal(t, uint64(1), st.Ticks)
	assert.Equal(t, uint64(2), st.LoginAttempts)
	assert.False(t, st.LastRestored.IsZero())

	h.stopWithin(t, 200*time.Millisecond)

	assert.Equal(t, 1, h.count("connectivity restored"))
	assert.Equal(t, 1, h.count("network unreachable (last tried b)"))
	assert.Equal(t, 1, h.count("still unreachable after login (last tried b)"))
	assert.Equal(t, 2, h.counts.logins["success"])
	assert.Equal(t, 1, h.counts.logouts["success"])
	assert.Equal(t, 1, h.counts.restored)
	assert.Equal(t, []string{"a", "b", "a", "b", "a"}, p.hosts)
}

func TestAlertsOnRejectionAndRestore(t *testing.T) {
	// tick 1: a,b fail. tick 2: a,b fail; verify 1: a,b fail; verify 2: a ok
	p := &scripted{results: []bool{false, false, false, false, false, false, true}}
	h := newHarness(t, testSettings(), p)

	ctrl := gomock.NewController(t)
	alerter := alerts.NewMockAlerter(ctrl)
	sent := make(chan *alerts.Alert, 4)

	alerter.EXPECT().IsEnabled().Return(true).AnyTimes()
	alerter.EXPECT().Alert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a *alerts.Alert) error {
			sent <- a
			return nil
		}).Times(2)

	h.m.deps.Alerter = alerter

	gomock.InOrder(
		h.session.EXPECT().Login(gomock.Any(), gomock.Any()).Return(portal.Outcome{Message: "账号已在线"}, nil),
		h.session.EXPECT().Login(gomock.Any(), gomock.Any()).Return(okLogin, nil),
		h.session.EXPECT().Logout(gomock.Any()).Return(okLogout, nil),
		h.session.EXPECT().Login(gomock.Any(), gomock.Any()).Return(okLogin, nil),
	)

	ctx := context.Background()
	eff := h.m.deps.Settings.Snapshot().Effective()

	h.m.tick(ctx, eff)

	select {
	case a := <-sent:
		assert.Equal(t, alerts.Warning, a.Level)
		assert.Equal(t, "Portal rejected login", a.Title)
		assert.Equal(t, "账号已在线", a.Message)
		assert.Equal(t, "2021001", a.Details["account"])
	case <-time.After(time.Second):
		t.Fatal("no rejection alert")
	}

	h.m.tick(ctx, eff)

	select {
	case a := <-sent:
		assert.Equal(t, alerts.Info, a.Level)
		assert.Equal(t, "Connectivity restored", a.Title)
		assert.Equal(t, "a reachable after re-authentication", a.Message)
		assert.Equal(t, 3, a.Details["logins"])
	case <-time.After(time.Second):
		t.Fatal("no restore alert")
	}

	assert.True(t, h.m.outageStart.IsZero())
	assert.Zero(t, h.m.outageLogins)
}

func TestStopDuringGraceWait(t *testing.T) {
	s := testSettings()
	s.PostLoginGrace = config.Duration(5 * time.Second)

	h := newHarness(t, s, &scripted{})
	h.session.EXPECT().Login(gomock.Any(), gomock.Any()).Return(okLogin, nil).Times(1)

	h.m.Start()
	h.waitFor(t, "authentication succeeded", time.Second)
	h.stopWithin(t, 200*time.Millisecond)

	assert.Zero(t, h.count("connectivity restored"))
}

func TestStopDuringReconnectWait(t *testing.T) {
	s := testSettings()
	s.ReconnectWaitSec = 30

	h := newHarness(t, s, &scripted{})
	h.session.EXPECT().Login(gomock.Any(), gomock.Any()).Return(okLogin, nil).Times(1)
	h.session.EXPECT().Logout(gomock.Any()).Return(okLogout, nil).Times(1)

	h.m.Start()
	h.waitFor(t, "logout: logged out", time.Second)
	h.stopWithin(t, 200*time.Millisecond)
}

func TestLoginFailuresEndTick(t *testing.T) {
	tests := []struct {
		name    string
		outcome portal.Outcome
		err     error
		line    string
		result  string
	}{
		{
			name:    "empty credentials",
			outcome: portal.Outcome{Message: "credentials empty"},
			err:     portal.ErrEmptyCredentials,
			line:    "authentication skipped: username or password not configured",
			result:  "empty_credentials",
		},
		{
			name:   "transport error",
			err:    fmt.Errorf("post login: %w", errors.New("connection refused")),
			line:   "authentication error: post login: connection refused",
			result: "error",
		},
		{
			name:    "rejected",
			outcome: portal.Outcome{Message: "密码错误"},
			line:    "authentication failed: 密码错误",
			result:  "rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testSettings(), &scripted{})
			h.session.EXPECT().Login(gomock.Any(), gomock.Any()).Return(tt.outcome, tt.err).Times(1)

			h.m.Start()
			h.waitFor(t, tt.line, time.Second)

			// give a buggy verify loop time to call Logout
			time.Sleep(50 * time.Millisecond)
			h.stopWithin(t, 200*time.Millisecond)

			assert.Equal(t, 1, h.counts.logins[tt.result])
			assert.Zero(t, h.count("still unreachable"))
		})
	}
}

func TestPortalProbeMethod(t *testing.T) {
	s := testSettings()
	s.ProbeMethod = string(models.ProbePortal)

	never := probe.ProberFunc(func(context.Context, string, time.Duration) bool {
		t.Error("host prober used in portal mode")
		return false
	})

	h := newHarness(t, s, never)
	h.session.EXPECT().CheckAuthenticated(gomock.Any()).Return(true, nil).Times(1)

	h.m.Start()
	h.waitFor(t, "network ok | portal reachable", time.Second)
}

func TestPanicInTickKeepsMonitorAlive(t *testing.T) {
	h := newHarness(t, testSettings(), &scripted{})
	h.session.EXPECT().Login(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, portal.LoginRequest) (portal.Outcome, error) {
			panic("boom")
		})

	h.m.Start()
	h.waitFor(t, "check aborted: boom", time.Second)
	assert.True(t, h.m.Running())
}

func TestStartStopIdempotent(t *testing.T) {
	h := newHarness(t, testSettings(), &scripted{fallback: true})

	var events []bool
	h.m.OnRunningChanged(func(running bool) { events = append(events, running) })

	h.m.Start()
	h.m.Start()
	h.waitFor(t, "network ok", time.Second)
	h.m.Stop()
	h.m.Stop()

	assert.Equal(t, []bool{true, false}, events)
	assert.Equal(t, []bool{true, false}, h.counts.running)
	assert.Equal(t, 1, h.count("monitor started"))
	assert.False(t, h.m.Running())
}

func TestConcurrentStartStopAnnouncesFinalState(t *testing.T) {
	h := newHarness(t, testSettings(), &scripted{fallback: true})

	var (
		mu   sync.Mutex
		last bool
	)

	h.m.OnRunningChanged(func(running bool) {
		if running {
			time.Sleep(50 * time.Microsecond)
		}

		mu.Lock()
		last = running
		mu.Unlock()
	})

	for i := 0; i < 500; i++ {
		var wg sync.WaitGroup

		wg.Add(2)

		go func() {
			defer wg.Done()
			h.m.Start()
		}()

		go func() {
			defer wg.Done()
			h.m.Stop()
		}()

		wg.Wait()

		mu.Lock()
		got := last
		mu.Unlock()

		require.Equal(t, h.m.Running(), got, "iteration %d", i)

		h.m.Stop()
	}

	h.counts.mu.Lock()
	final := h.counts.running[len(h.counts.running)-1]
	h.counts.mu.Unlock()

	assert.False(t, final)
}

func TestRestartDoesNotOverlapWorkers(t *testing.T) {
	var active, peak int32

	slow := probe.ProberFunc(func(context.Context, string, time.Duration) bool {
		n := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)

		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}

		time.Sleep(50 * time.Millisecond)

		return true
	})

	h := newHarness(t, testSettings(), slow)

	h.m.Start()
	time.Sleep(10 * time.Millisecond)
	h.m.Stop()
	h.m.Start()

	require.Eventually(t, func() bool { return h.count("network ok") == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	assert.Equal(t, 1, h.count("monitor stopped"))
}

func TestWaitWithoutStart(t *testing.T) {
	m := New(Deps{Settings: config.NewStore("", testSettings())})

	require.NoError(t, m.Wait(context.Background()))
	assert.False(t, m.Running())
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, sleep(ctx, time.Hour))
	assert.False(t, sleep(ctx, 0))
	assert.True(t, sleep(context.Background(), time.Millisecond))
}
