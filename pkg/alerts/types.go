package alerts

type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Alert is one notification about the campus session.
type Alert struct {
	Level     Level          `json:"level"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source"` // hostname of the machine running the daemon
	Details   map[string]any `json:"details,omitempty"`
}
