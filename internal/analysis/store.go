package analysis

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultsSource supplies the defaults new sessions start from.
type DefaultsSource interface {
	Defaults() (Defaults, error)
}

type session struct {
	mu      sync.Mutex
	a       *Analysis
	touched time.Time
}

// Store keeps one Analysis per session id in memory. Nothing survives a
// restart. Calls for the same session are serialised so each interaction
// sees and leaves a consistent snapshot.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	source   DefaultsSource
	maxIdle  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore returns an empty store. Sessions idle longer than maxIdle are
// dropped when new ones are created; zero keeps them forever.
func NewStore(source DefaultsSource, maxIdle time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		sessions: make(map[string]*session),
		source:   source,
		maxIdle:  maxIdle,
		logger:   logger,
		now:      time.Now,
	}
}

// Do runs fn against the session's analysis, creating it first if needed.
func (s *Store) Do(id string, fn func(a *Analysis) error) error {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess.a)
}

// Delete forgets a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) get(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[id]; ok {
		sess.touched = now
		return sess
	}

	s.pruneLocked(now)
	sess := &session{a: New(id, s.defaults()), touched: now}
	s.sessions[id] = sess
	s.logger.Debug("analysis session created", slog.String("session_id", id))
	return sess
}

func (s *Store) defaults() Defaults {
	if s.source == nil {
		return BuiltinDefaults()
	}
	d, err := s.source.Defaults()
	if err != nil {
		s.logger.Warn("falling back to builtin defaults", slog.Any("error", err))
		return BuiltinDefaults()
	}
	return d
}

func (s *Store) pruneLocked(now time.Time) {
	if s.maxIdle <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if now.Sub(sess.touched) > s.maxIdle {
			delete(s.sessions, id)
			s.logger.Debug("analysis session expired", slog.String("session_id", id))
		}
	}
}
