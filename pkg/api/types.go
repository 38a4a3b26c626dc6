package api

import (
	"github.com/mfreeman451/portalwatch/pkg/logsink"
	"github.com/mfreeman451/portalwatch/pkg/monitor"
)

// Event types sent on /api/stream.
const (
	EventStatus  = "status"
	EventLog     = "log"
	EventRunning = "running"
)

// Event is one message on /api/stream.
type Event struct {
	Type    string          `json:"type"`
	Line    *logsink.Line   `json:"line,omitempty"`
	Running *bool           `json:"running,omitempty"`
	Status  *monitor.Status `json:"status,omitempty"`
}

func logEvent(l logsink.Line) Event {
	return Event{Type: EventLog, Line: &l}
}

func runningEvent(running bool) Event {
	return Event{Type: EventRunning, Running: &running}
}

func statusEvent(s monitor.Status) Event {
	return Event{Type: EventStatus, Status: &s}
}
