package app

import (
	"context"

	"quiz-attempt-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store), with questions
// resolved including correct options. Redaction is the caller's job.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizCatalog enumerates the quizzes a backing store holds.
type QuizCatalog interface {
	QuizIDs(ctx context.Context) ([]string, error)
}

// AttemptStore persists attempts. Implementations must make Create and
// UpdateIfStatus atomic per record; the engine relies on them instead of locks.
type AttemptStore interface {
	// Create inserts a if no attempt exists for (a.StudentID, a.QuizID),
	// otherwise it returns domain.ErrAttemptExists.
	Create(ctx context.Context, a domain.Attempt) error
	// Get returns domain.ErrAttemptNotFound for unknown ids.
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	GetByStudentQuiz(ctx context.Context, studentID, quizID string) (domain.Attempt, error)
	// ListByStudent returns attempts newest first.
	ListByStudent(ctx context.Context, studentID string) ([]domain.Attempt, error)
	ListByQuiz(ctx context.Context, quizID string) ([]domain.Attempt, error)
	// UpdateIfStatus replaces the stored attempt only while its status is still
	// from; otherwise it returns domain.ErrStaleAttempt.
	UpdateIfStatus(ctx context.Context, a domain.Attempt, from domain.Status) error
}

// EventPublisher receives attempt transitions after they are persisted.
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.AttemptEvent) error
}

// Publishers fans an event out to every publisher and returns the first error.
type Publishers []EventPublisher

func (p Publishers) Publish(ctx context.Context, evt domain.AttemptEvent) error {
	var first error
	for _, pub := range p {
		if err := pub.Publish(ctx, evt); err != nil && first == nil {
			first = err
		}
	}
	return first
}
