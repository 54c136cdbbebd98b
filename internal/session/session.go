// Package session holds the client identity that survives reconnects.
//
// The identity is owned by one Store per bridge instance. An optional
// SideStore mirrors every change to durable storage so a restarted process
// resumes the same session.
package session

import (
	"sync"

	"go.uber.org/zap"
)

// Session is the client identity.
type Session struct {
	ID   string `json:"session-id,omitempty"`
	Name string `json:"session-name,omitempty"`
}

// SideStore is durable storage mirroring the session.
type SideStore interface {
	Load() (Session, error)
	Save(Session) error
}

// Store is the in-process session record.
type Store struct {
	mu      sync.RWMutex
	current Session
	side    SideStore
	logger  *zap.Logger
}

// NewStore creates a store, seeding it from side when side is non-nil.
func NewStore(side SideStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{side: side, logger: logger}
	if side != nil {
		loaded, err := side.Load()
		if err != nil {
			logger.Warn("Failed to load stored session", zap.Error(err))
		} else {
			s.current = loaded
		}
	}
	return s
}

// Get returns a copy of the current session.
func (s *Store) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ID returns the session id, empty when none has been assigned yet.
func (s *Store) ID() string {
	return s.Get().ID
}

// Name returns the session name, empty when none has been assigned yet.
func (s *Store) Name() string {
	return s.Get().Name
}

// Patch selects the fields to overwrite. A nil field is left untouched; a
// non-nil empty string clears the stored value.
type Patch struct {
	ID   *string
	Name *string
}

// Update applies the non-empty fields of next. Empty fields leave the stored
// values untouched.
func (s *Store) Update(next Session) Session {
	var p Patch
	if next.ID != "" {
		p.ID = &next.ID
	}
	if next.Name != "" {
		p.Name = &next.Name
	}
	return s.Apply(p)
}

// Apply overwrites the fields set in p and mirrors the result to the side
// store.
func (s *Store) Apply(p Patch) Session {
	s.mu.Lock()
	if p.ID != nil {
		s.current.ID = *p.ID
	}
	if p.Name != nil {
		s.current.Name = *p.Name
	}
	updated := s.current
	s.mu.Unlock()

	if s.side != nil {
		if err := s.side.Save(updated); err != nil {
			s.logger.Warn("Failed to persist session", zap.Error(err))
		}
	}
	return updated
}
