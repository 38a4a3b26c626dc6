package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Store owns the current settings. Readers get immutable copies; writers
// replace the whole document, so a reader never observes a half-applied edit.
type Store struct {
	path    string
	current atomic.Pointer[Settings]

	mu          sync.Mutex // serializes writers and subscriber registration
	subscribers []func(Settings)
}

// NewStore wraps initial. An empty path disables persistence.
func NewStore(path string, initial Settings) *Store {
	s := &Store{path: path}
	cp := initial.Clone()
	s.current.Store(&cp)

	return s
}

// OpenStore loads path (creating it with defaults if missing).
func OpenStore(path string) (*Store, error) {
	settings, err := LoadOrCreate(path)
	if err != nil {
		return nil, err
	}

	return NewStore(path, settings), nil
}

// Path returns the backing file, if any.
func (s *Store) Path() string {
	return s.path
}

// Snapshot implements Provider.
func (s *Store) Snapshot() Settings {
	return s.current.Load().Clone()
}

// Subscribe registers fn to be called with every newly applied document.
func (s *Store) Subscribe(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, fn)
}

// Update validates next, persists it and makes it current.
func (s *Store) Update(next Settings) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := next.Clone()

	if s.path != "" {
		if err := SaveFile(s.path, &cp); err != nil {
			return err
		}
	}

	s.swapLocked(cp)

	return nil
}

// Reload re-reads the backing file. Invalid files leave the current
// settings untouched.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	next, err := LoadSettings(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.swapLocked(next)

	return nil
}

func (s *Store) swapLocked(next Settings) {
	s.current.Store(&next)

	for _, fn := range s.subscribers {
		fn(next.Clone())
	}
}
