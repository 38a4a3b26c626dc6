package probe

import (
	"context"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// grace is added on top of a probe's own timeout before the caller gives up.
const grace = 500 * time.Millisecond

// ICMPProber sends a single echo request. It uses the unprivileged
// datagram ping socket where the platform offers one, so no helper
// process (and no console window) is ever spawned.
type ICMPProber struct {
	Privileged bool
}

// NewICMPProber picks the socket mode for the current platform.
func NewICMPProber() *ICMPProber {
	return &ICMPProber{Privileged: runtime.GOOS == "windows"}
}

func (p *ICMPProber) Probe(ctx context.Context, host string, timeout time.Duration) bool {
	pinger := probing.New(host)
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(p.Privileged)
	pinger.SetLogger(probing.NoopLogger{})

	ctx, cancel := context.WithTimeout(ctx, timeout+grace)
	defer cancel()

	// Name resolution inside the pinger is not context aware, so the run
	// happens off to the side and is abandoned if it overstays.
	done := make(chan bool, 1)

	go func() {
		if err := pinger.RunWithContext(ctx); err != nil {
			logger.WithError(err).WithField("host", host).Debug("ICMP probe failed")
			done <- false

			return
		}

		done <- pinger.Statistics().PacketsRecv > 0
	}()

	select {
	case ok := <-done:
		return ok
	case <-ctx.Done():
		pinger.Stop()

		return false
	}
}
