package probe

import (
	"context"
	"strings"
	"time"
)

// Chain probes hosts in order and stops at the first reachable one.
// Blank entries and hosts already tried are skipped. When nothing answers
// it returns false and the last host actually probed, or "" if none was.
func Chain(ctx context.Context, p Prober, hosts []string, timeout time.Duration) (ok bool, host string) {
	tried := make(map[string]struct{}, len(hosts))

	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}

		if _, seen := tried[h]; seen {
			continue
		}

		if ctx.Err() != nil {
			break
		}

		tried[h] = struct{}{}
		host = h

		if p.Probe(ctx, h, timeout) {
			return true, h
		}
	}

	return false, host
}
