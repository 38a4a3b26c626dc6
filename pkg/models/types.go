package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Credentials identify the account used against the portal.
type Credentials struct {
	Identity string
	Secret   string
}

// Empty reports whether either half of the credentials is missing.
func (c Credentials) Empty() bool {
	return c.Identity == "" || c.Secret == ""
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Identity: %q, Secret: <redacted>}", c.Identity)
}

// AuthState is the portal authentication state as last observed.
type AuthState int

const (
	AuthUnknown AuthState = iota
	AuthOnline
	AuthOffline
)

func (s AuthState) String() string {
	switch s {
	case AuthOnline:
		return "online"
	case AuthOffline:
		return "offline"
	case AuthUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

func (s AuthState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *AuthState) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch v {
	case "online":
		*s = AuthOnline
	case "offline":
		*s = AuthOffline
	default:
		*s = AuthUnknown
	}

	return nil
}

// ProbeMethod selects how reachability is decided.
type ProbeMethod string

const (
	ProbeICMP   ProbeMethod = "icmp"
	ProbeHTTP   ProbeMethod = "http"
	ProbeTCP    ProbeMethod = "tcp"
	ProbePortal ProbeMethod = "portal"
)

// ParseProbeMethod maps a config string to a ProbeMethod. Empty means ICMP.
func ParseProbeMethod(s string) (ProbeMethod, bool) {
	switch m := ProbeMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ProbeICMP, true
	case ProbeICMP, ProbeHTTP, ProbeTCP, ProbePortal:
		return m, true
	default:
		return ProbeICMP, false
	}
}
