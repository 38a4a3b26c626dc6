package logsink

import "sync"

const DefaultHistorySize = 500

// History keeps the most recent lines in a fixed ring and forwards new
// lines to subscribers.
type History struct {
	mu    sync.RWMutex
	lines []Line
	pos   int // next write index
	count int

	subMu  sync.Mutex
	subs   map[int]chan Line
	nextID int
}

// NewHistory creates a ring holding at most size lines.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}

	return &History{
		lines: make([]Line, size),
		subs:  make(map[int]chan Line),
	}
}

// Log implements Sink.
func (h *History) Log(l Line) {
	h.mu.Lock()
	h.lines[h.pos] = l
	h.pos = (h.pos + 1) % len(h.lines)

	if h.count < len(h.lines) {
		h.count++
	}
	h.mu.Unlock()

	h.subMu.Lock()
	defer h.subMu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- l:
		default:
			// slow subscriber; it loses this line
		}
	}
}

// Lines returns up to limit of the newest lines, oldest first. A limit of
// zero or less returns everything retained.
func (h *History) Lines(limit int) []Line {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.count
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Line, n)
	size := len(h.lines)
	start := (h.pos - n + size) % size

	for i := 0; i < n; i++ {
		out[i] = h.lines[(start+i)%size]
	}

	return out
}

// Len returns the number of retained lines.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.count
}

// Subscribe returns a channel receiving every line logged from now on and
// a function that cancels the subscription and closes the channel.
func (h *History) Subscribe(buffer int) (<-chan Line, func()) {
	ch := make(chan Line, buffer)

	h.subMu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.subMu.Unlock()

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			h.subMu.Lock()
			delete(h.subs, id)
			h.subMu.Unlock()
			close(ch)
		})
	}
}
