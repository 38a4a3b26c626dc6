package probe

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxSniff = 4096

// HTTPProber treats a host as reachable when a plain GET of its root answers
// without being bounced to the captive portal.
type HTTPProber struct {
	// PortalHosts are hostnames that identify the captive portal; a redirect
	// or landing page mentioning one of them means "not really online".
	PortalHosts []string
	transport   http.RoundTripper
}

// NewHTTPProber builds a prober that recognizes the given portal URLs.
func NewHTTPProber(portalURLs ...string) *HTTPProber {
	p := &HTTPProber{transport: http.DefaultTransport}

	for _, raw := range portalURLs {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			p.PortalHosts = append(p.PortalHosts, u.Hostname())
		}
	}

	return p
}

func (p *HTTPProber) Probe(ctx context.Context, host string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := host
	if !strings.Contains(target, "://") {
		target = "http://" + target + "/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return false
	}

	client := &http.Client{
		Transport: p.transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.WithError(err).WithField("host", host).Debug("HTTP probe failed")

		return false
	}
	defer resp.Body.Close()

	if loc := resp.Header.Get("Location"); loc != "" && p.isPortal(loc) {
		return false
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return false
	}

	sniff, _ := io.ReadAll(io.LimitReader(resp.Body, maxSniff))

	return !p.isPortal(string(sniff))
}

func (p *HTTPProber) isPortal(s string) bool {
	for _, h := range p.PortalHosts {
		if strings.Contains(s, h) {
			return true
		}
	}

	return false
}
