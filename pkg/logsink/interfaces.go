// Package logsink collects the monitor's human-readable status lines.
package logsink

import (
	"fmt"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

//go:generate mockgen -destination=mock_sink.go -package=logsink github.com/mfreeman451/portalwatch/pkg/logsink Sink

// Sink receives status lines. Implementations must not block for long.
type Sink interface {
	Log(line Line)
}

// Line is one timestamped status message.
type Line struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// NewLine stamps message with the current time.
func NewLine(format string, args ...interface{}) Line {
	return Line{Time: time.Now(), Message: fmt.Sprintf(format, args...)}
}

func (l Line) String() string {
	return "[" + l.Time.Format(timestampLayout) + "] " + l.Message
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Line)

func (f SinkFunc) Log(l Line) { f(l) }

// Multi fans a line out to several sinks in order.
type Multi []Sink

func (m Multi) Log(l Line) {
	for _, s := range m {
		if s != nil {
			s.Log(l)
		}
	}
}
