// Package transcript holds the ordered chat log of one widget and the
// windowing logic used to draw only the part of it that is on screen.
package transcript

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"spa-chat-widget/internal/domain"
)

var (
	ErrNotFound         = errors.New("transcript: message not found")
	ErrDuplicateID      = errors.New("transcript: duplicate message id")
	ErrStatusRegression = errors.New("transcript: sent message can only move to retry")
)

// Store is an append-ordered message log with in-place status updates.
// It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	msgs  []domain.Message
	index map[string]int
}

func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Append adds m at the end of the log.
func (s *Store) Append(m domain.Message) error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("transcript: Append: message id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[m.ID]; ok {
		return fmt.Errorf("transcript: Append %q: %w", m.ID, ErrDuplicateID)
	}
	s.index[m.ID] = len(s.msgs)
	s.msgs = append(s.msgs, m)
	return nil
}

// Put replaces the message with the same id in place, or appends it when the
// id is new.
func (s *Store) Put(m domain.Message) error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("transcript: Put: message id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[m.ID]
	if !ok {
		s.index[m.ID] = len(s.msgs)
		s.msgs = append(s.msgs, m)
		return nil
	}
	if err := checkTransition(s.msgs[i].Status, m.Status); err != nil {
		return fmt.Errorf("transcript: Put %q: %w", m.ID, err)
	}
	s.msgs[i] = m
	return nil
}

// SetStatus records the delivery outcome of an existing message.
func (s *Store) SetStatus(id string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("transcript: SetStatus %q: %w", id, ErrNotFound)
	}
	if err := checkTransition(s.msgs[i].Status, status); err != nil {
		return fmt.Errorf("transcript: SetStatus %q: %w", id, err)
	}
	s.msgs[i].Status = status
	return nil
}

func checkTransition(from, to domain.Status) error {
	if from == domain.StatusSent && to != domain.StatusSent && to != domain.StatusRetry {
		return ErrStatusRegression
	}
	return nil
}

func (s *Store) Get(id string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Message{}, false
	}
	return s.msgs[i], true
}

// Messages returns a copy of the log in order.
func (s *Store) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Recent returns up to limit of the newest messages, oldest first.
// A non-positive limit returns the whole log.
func (s *Store) Recent(limit int) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from := 0
	if limit > 0 && len(s.msgs) > limit {
		from = len(s.msgs) - limit
	}
	out := make([]domain.Message, len(s.msgs)-from)
	copy(out, s.msgs[from:])
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Reset drops every message. Used only when the session is reset.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
	s.index = make(map[string]int)
}
