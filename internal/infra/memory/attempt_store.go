package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
	byPair   map[pairKey]string
}

type pairKey struct {
	studentID string
	quizID    string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]domain.Attempt),
		byPair:   make(map[pairKey]string),
	}
}

func (s *AttemptStore) Create(_ context.Context, a domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{a.StudentID, a.QuizID}
	if _, ok := s.byPair[key]; ok {
		return domain.ErrAttemptExists
	}
	if _, ok := s.attempts[a.ID]; ok {
		return domain.ErrAttemptExists
	}
	s.attempts[a.ID] = clone(a)
	s.byPair[key] = a.ID
	return nil
}

func (s *AttemptStore) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return clone(a), nil
}

func (s *AttemptStore) GetByStudentQuiz(_ context.Context, studentID, quizID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[pairKey{studentID, quizID}]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return clone(s.attempts[id]), nil
}

func (s *AttemptStore) ListByStudent(_ context.Context, studentID string) ([]domain.Attempt, error) {
	return s.filter(func(a domain.Attempt) bool { return a.StudentID == studentID }), nil
}

func (s *AttemptStore) ListByQuiz(_ context.Context, quizID string) ([]domain.Attempt, error) {
	return s.filter(func(a domain.Attempt) bool { return a.QuizID == quizID }), nil
}

func (s *AttemptStore) UpdateIfStatus(_ context.Context, a domain.Attempt, from domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.attempts[a.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if current.Status != from {
		return domain.ErrStaleAttempt
	}
	s.attempts[a.ID] = clone(a)
	return nil
}

func (s *AttemptStore) filter(keep func(domain.Attempt) bool) []domain.Attempt {
	s.mu.RLock()
	out := make([]domain.Attempt, 0)
	for _, a := range s.attempts {
		if keep(a) {
			out = append(out, clone(a))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// clone keeps callers from mutating stored answers through shared slices.
func clone(a domain.Attempt) domain.Attempt {
	a.Answers = append(make([]domain.AnswerRecord, 0, len(a.Answers)), a.Answers...)
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		a.SubmittedAt = &t
	}
	return a
}
