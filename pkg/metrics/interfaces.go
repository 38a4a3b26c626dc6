package metrics

import "time"

// Recorder receives monitor events worth counting.
type Recorder interface {
	ObserveProbe(phase string, ok bool)
	ObserveLogin(result string)
	ObserveLogout(result string)
	SetRunning(running bool)
	MarkRestored(at time.Time)
}

// Phases for ObserveProbe.
const (
	PhaseTick   = "tick"
	PhaseVerify = "verify"
)

// Results for ObserveLogin and ObserveLogout.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
	ResultNoConfig = "empty_credentials"
)

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveProbe(string, bool) {}
func (Nop) ObserveLogin(string)       {}
func (Nop) ObserveLogout(string)      {}
func (Nop) SetRunning(bool)           {}
func (Nop) MarkRestored(time.Time)    {}
