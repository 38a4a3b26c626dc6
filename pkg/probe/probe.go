package probe

import (
	"sync"

	"github.com/mfreeman451/portalwatch/pkg/models"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("module", "probe")

// New returns the prober for method. ProbePortal has no host prober of its
// own; callers check portal state instead, so it falls back to ICMP here.
func New(method models.ProbeMethod, portalURLs ...string) Prober {
	switch method {
	case models.ProbeHTTP:
		return NewHTTPProber(portalURLs...)
	case models.ProbeTCP:
		return &TCPProber{}
	case models.ProbeICMP, models.ProbePortal:
		return NewICMPProber()
	default:
		return NewICMPProber()
	}
}

// Set builds probers on first use and hands out the same instance for a
// method afterwards.
type Set struct {
	portalURLs []string

	mu      sync.Mutex
	probers map[models.ProbeMethod]Prober
}

// NewSet creates an empty Set; portalURLs are passed to HTTP probers.
func NewSet(portalURLs ...string) *Set {
	return &Set{
		portalURLs: portalURLs,
		probers:    make(map[models.ProbeMethod]Prober),
	}
}

// For returns the prober for method.
func (s *Set) For(method models.ProbeMethod) Prober {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.probers[method]; ok {
		return p
	}

	p := New(method, s.portalURLs...)
	s.probers[method] = p

	logger.WithField("method", string(method)).Debug("Created prober")

	return p
}
