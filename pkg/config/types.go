package config

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/mfreeman451/portalwatch/pkg/models"
)

const (
	MaxProbeHosts = 3

	MinProbeTimeout  = 200 * time.Millisecond
	MinCheckInterval = time.Second
	MinReconnectWait = time.Second

	// MinDuration is the smallest non-zero Duration a settings key accepts.
	// Bare JSON numbers are nanoseconds, so "post_login_grace": 3 lands here.
	MinDuration = time.Millisecond

	defaultProbeTimeoutMs   = 1500
	defaultCheckIntervalSec = 30
	defaultReconnectWaitSec = 5
	defaultPostLoginGrace   = 3 * time.Second
	defaultAlertCooldown    = 5 * time.Minute

	DefaultGatewayURL   = "http://10.11.0.1"
	DefaultInterfaceURL = "http://auth.ysu.edu.cn/eportal/InterFace.do"
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/64.0.3282.140 Safari/537.36 Edge/17.17134"
	DefaultListenAddr = "127.0.0.1:8765"
)

type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// PortalConfig points the session client at the portal.
type PortalConfig struct {
	GatewayURL     string   `json:"gateway_url"`
	InterfaceURL   string   `json:"interface_url"`
	UserAgent      string   `json:"user_agent,omitempty"`
	CheckTimeout   Duration `json:"check_timeout,omitempty"`
	RequestTimeout Duration `json:"request_timeout,omitempty"`
}

// Header is an extra HTTP header sent with webhook alerts.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AlertConfig configures the optional webhook notifier. Format "discord"
// selects the built-in Discord embed template when Template is empty.
type AlertConfig struct {
	Enabled  bool     `json:"enabled"`
	URL      string   `json:"url,omitempty"`
	Format   string   `json:"format,omitempty"`
	Headers  []Header `json:"headers,omitempty"`
	Template string   `json:"template,omitempty"`
	Cooldown Duration `json:"cooldown,omitempty"`
}

// APIConfig configures the local control surface.
type APIConfig struct {
	ListenAddr string `json:"listen_addr"`
}

// Settings is the persisted configuration document. Key names match the
// config.json written by earlier releases.
type Settings struct {
	User                string         `json:"user"`
	Password            string         `json:"pwd"`
	Carrier             models.Carrier `json:"type"`
	CheckHost           string         `json:"check_host,omitempty"` // legacy single host
	ProbeHosts          []string       `json:"probe_hosts"`
	ProbeTimeoutMs      int            `json:"ping_timeout_ms"`
	CheckIntervalSec    float64        `json:"check_interval_sec"`
	PostLoginProbeHosts []string       `json:"post_login_probe_hosts,omitempty"`
	PostLoginTimeoutMs  int            `json:"post_login_timeout_ms,omitempty"`
	ReconnectWaitSec    float64        `json:"reconnect_wait_sec"`
	PostLoginGrace      Duration       `json:"post_login_grace"`
	ProbeMethod         string         `json:"probe_method"`
	PreLoginLogout      bool           `json:"pre_login_logout"`
	AutoStartMonitor    bool           `json:"auto_start_monitor"`
	LogLevel            string         `json:"log_level"`
	Portal              PortalConfig   `json:"portal"`
	API                 APIConfig      `json:"api"`
	Alerts              AlertConfig    `json:"alerts"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		Carrier:          models.CarrierCampus,
		ProbeHosts:       []string{"www.baidu.com", "223.5.5.5"},
		ProbeTimeoutMs:   defaultProbeTimeoutMs,
		CheckIntervalSec: defaultCheckIntervalSec,
		ReconnectWaitSec: defaultReconnectWaitSec,
		PostLoginGrace:   Duration(defaultPostLoginGrace),
		ProbeMethod:      string(models.ProbeICMP),
		PreLoginLogout:   true,
		AutoStartMonitor: true,
		LogLevel:         "info",
		Portal: PortalConfig{
			GatewayURL:   DefaultGatewayURL,
			InterfaceURL: DefaultInterfaceURL,
			UserAgent:    DefaultUserAgent,
		},
		API:    APIConfig{ListenAddr: DefaultListenAddr},
		Alerts: AlertConfig{Cooldown: Duration(defaultAlertCooldown)},
	}
}

// Validate implements config.Validator interface
func (s *Settings) Validate() error {
	if _, ok := models.ParseProbeMethod(s.ProbeMethod); !ok {
		return fmt.Errorf("%w: %q", errInvalidProbeMethod, s.ProbeMethod)
	}

	for _, raw := range []string{s.Portal.GatewayURL, s.Portal.InterfaceURL} {
		if raw == "" {
			continue
		}

		if u, err := url.Parse(raw); err != nil || u.Host == "" {
			return fmt.Errorf("%w: %q", errInvalidURL, raw)
		}
	}

	if s.Alerts.Enabled {
		if u, err := url.Parse(s.Alerts.URL); err != nil || u.Host == "" {
			return fmt.Errorf("%w: alerts.url %q", errInvalidURL, s.Alerts.URL)
		}
	}

	for _, d := range []struct {
		key   string
		value Duration
	}{
		{"post_login_grace", s.PostLoginGrace},
		{"alerts.cooldown", s.Alerts.Cooldown},
		{"portal.check_timeout", s.Portal.CheckTimeout},
		{"portal.request_timeout", s.Portal.RequestTimeout},
	} {
		if d.value != 0 && time.Duration(d.value) < MinDuration {
			return fmt.Errorf("%w: %s is %v; numbers are nanoseconds, use a string such as \"3s\"",
				errInvalidDuration, d.key, time.Duration(d.value))
		}
	}

	if s.ProbeTimeoutMs < 0 || s.PostLoginTimeoutMs < 0 || s.CheckIntervalSec < 0 || s.ReconnectWaitSec < 0 {
		return errNegativeValue
	}

	return nil
}

// Clone returns a deep copy; slices are never shared between copies.
func (s Settings) Clone() Settings {
	out := s
	out.ProbeHosts = append([]string(nil), s.ProbeHosts...)
	out.PostLoginProbeHosts = append([]string(nil), s.PostLoginProbeHosts...)
	out.Alerts.Headers = append([]Header(nil), s.Alerts.Headers...)

	return out
}

// RedactedSecret replaces the password in Redacted copies.
const RedactedSecret = "********"

// Redacted is Clone with the password blanked, for display.
func (s Settings) Redacted() Settings {
	out := s.Clone()
	if out.Password != "" {
		out.Password = RedactedSecret
	}

	return out
}

// Effective is the normalized view the monitor works from on a single tick.
type Effective struct {
	Credentials      models.Credentials
	Carrier          models.Carrier
	ProbeHosts       []string
	ProbeTimeout     time.Duration
	CheckInterval    time.Duration
	PostLoginHosts   []string
	PostLoginTimeout time.Duration
	PostLoginGrace   time.Duration
	ReconnectWait    time.Duration
	ProbeMethod      models.ProbeMethod
	PreLoginLogout   bool
}

// Effective applies defaults and safety clamps.
func (s Settings) Effective() Effective {
	method, _ := models.ParseProbeMethod(s.ProbeMethod)

	hosts := normalizeHosts(s.ProbeHosts)
	if len(hosts) == 0 {
		hosts = normalizeHosts([]string{s.CheckHost})
	}

	timeout := clamp(millis(s.ProbeTimeoutMs, defaultProbeTimeoutMs), MinProbeTimeout)

	postHosts := normalizeHosts(s.PostLoginProbeHosts)
	if len(postHosts) == 0 {
		postHosts = hosts
	}

	postTimeout := timeout
	if s.PostLoginTimeoutMs > 0 {
		postTimeout = clamp(millis(s.PostLoginTimeoutMs, defaultProbeTimeoutMs), MinProbeTimeout)
	}

	grace := time.Duration(s.PostLoginGrace)
	if grace <= 0 {
		grace = defaultPostLoginGrace
	}

	return Effective{
		Credentials:      models.Credentials{Identity: strings.TrimSpace(s.User), Secret: s.Password},
		Carrier:          s.Carrier,
		ProbeHosts:       hosts,
		ProbeTimeout:     timeout,
		CheckInterval:    clamp(seconds(s.CheckIntervalSec, defaultCheckIntervalSec), MinCheckInterval),
		PostLoginHosts:   postHosts,
		PostLoginTimeout: postTimeout,
		PostLoginGrace:   grace,
		ReconnectWait:    clamp(seconds(s.ReconnectWaitSec, defaultReconnectWaitSec), MinReconnectWait),
		ProbeMethod:      method,
		PreLoginLogout:   s.PreLoginLogout,
	}
}

// normalizeHosts trims entries, drops blanks and caps the list at MaxProbeHosts.
func normalizeHosts(in []string) []string {
	out := make([]string, 0, MaxProbeHosts)

	for _, h := range in {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}

		out = append(out, h)
		if len(out) == MaxProbeHosts {
			break
		}
	}

	return out
}

func millis(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}

	return time.Duration(v) * time.Millisecond
}

func seconds(v, def float64) time.Duration {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		v = def
	}

	return time.Duration(v * float64(time.Second))
}

func clamp(d, lowest time.Duration) time.Duration {
	if d < lowest {
		return lowest
	}

	return d
}
