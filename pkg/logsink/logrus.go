package logsink

import "github.com/sirupsen/logrus"

// Logrus mirrors status lines into the process log.
type Logrus struct {
	entry *logrus.Entry
}

// NewLogrus wraps entry; nil uses the standard logger.
func NewLogrus(entry *logrus.Entry) *Logrus {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Logrus{entry: entry}
}

func (s *Logrus) Log(l Line) {
	s.entry.WithTime(l.Time).Info(l.Message)
}
