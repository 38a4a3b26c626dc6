package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mfreeman451/portalwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestChain(t *testing.T) {
	tests := []struct {
		name      string
		hosts     []string
		reachable map[string]bool
		wantOK    bool
		wantHost  string
		wantTried []string
	}{
		{
			name:      "blank entries skipped, last host answers",
			hosts:     []string{"", "  ", "8.8.8.8"},
			reachable: map[string]bool{"8.8.8.8": true},
			wantOK:    true,
			wantHost:  "8.8.8.8",
			wantTried: []string{"8.8.8.8"},
		},
		{
			name:      "first success stops the chain",
			hosts:     []string{"a", "b", "c"},
			reachable: map[string]bool{"b": true, "c": true},
			wantOK:    true,
			wantHost:  "b",
			wantTried: []string{"a", "b"},
		},
		{
			name:      "all fail reports last non-blank host",
			hosts:     []string{"a", "b", " "},
			reachable: map[string]bool{},
			wantOK:    false,
			wantHost:  "b",
			wantTried: []string{"a", "b"},
		},
		{
			name:      "duplicates are tried once",
			hosts:     []string{"a", "a", "b"},
			reachable: map[string]bool{},
			wantOK:    false,
			wantHost:  "b",
			wantTried: []string{"a", "b"},
		},
		{
			name:      "nothing to try",
			hosts:     []string{"", " "},
			wantOK:    false,
			wantHost:  "",
			wantTried: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tried []string

			p := ProberFunc(func(_ context.Context, host string, _ time.Duration) bool {
				tried = append(tried, host)

				return tt.reachable[host]
			})

			ok, host := Chain(context.Background(), p, tt.hosts, time.Second)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantTried, tried)
		})
	}
}

func TestChainWithMock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockProber := NewMockProber(ctrl)
	timeout := 300 * time.Millisecond

	gomock.InOrder(
		mockProber.EXPECT().Probe(gomock.Any(), "10.0.0.1", timeout).Return(false),
		mockProber.EXPECT().Probe(gomock.Any(), "10.0.0.2", timeout).Return(true),
	)

	ok, host := Chain(context.Background(), mockProber, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, timeout)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2", host)
}

func TestChainCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	p := ProberFunc(func(context.Context, string, time.Duration) bool {
		called = true

		return true
	})

	ok, host := Chain(ctx, p, []string{"a"}, time.Second)
	assert.False(t, ok)
	assert.Empty(t, host)
	assert.False(t, called)
}

func TestTCPProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			_ = conn.Close()
		}
	}()

	p := &TCPProber{}
	assert.True(t, p.Probe(context.Background(), ln.Addr().String(), time.Second))

	// Grab a free port and close it so nothing is listening there.
	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := closed.Addr().String()
	require.NoError(t, closed.Close())

	assert.False(t, p.Probe(context.Background(), addr, time.Second))
}

func TestHTTPProber(t *testing.T) {
	online := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer online.Close()

	captive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://10.11.0.1/eportal/index.jsp?wlanuserip=1.2.3.4", http.StatusFound)
	}))
	defer captive.Close()

	landing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<script>top.self.location.href='http://10.11.0.1/eportal/index.jsp?x=1'</script>"))
	}))
	defer landing.Close()

	p := NewHTTPProber("http://10.11.0.1")

	assert.True(t, p.Probe(context.Background(), strings.TrimPrefix(online.URL, "http://"), time.Second))
	assert.False(t, p.Probe(context.Background(), strings.TrimPrefix(captive.URL, "http://"), time.Second))
	assert.False(t, p.Probe(context.Background(), landing.URL, time.Second))
	assert.False(t, p.Probe(context.Background(), "127.0.0.1:1", 300*time.Millisecond))
}

func TestHTTPProberTimeout(t *testing.T) {
	block := make(chan struct{})

	slow := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(block)

	p := NewHTTPProber()

	start := time.Now()
	assert.False(t, p.Probe(context.Background(), slow.URL, 200*time.Millisecond))
	assert.Less(t, time.Since(start), 200*time.Millisecond+grace)
}

func TestSetReusesProbers(t *testing.T) {
	s := NewSet("http://10.11.0.1")

	httpProber := s.For(models.ProbeHTTP)
	require.IsType(t, &HTTPProber{}, httpProber)
	assert.Same(t, httpProber, s.For(models.ProbeHTTP))

	assert.IsType(t, &TCPProber{}, s.For(models.ProbeTCP))
	assert.IsType(t, &ICMPProber{}, s.For(models.ProbeICMP))
}
