package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"quiz-attempt-service/internal/domain"
)

// AttemptStore persists attempts through bun. The (student_id, quiz_id)
// unique constraint created by the migrations backs Create.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Create(ctx context.Context, a domain.Attempt) error {
	row := toAttemptRow(a)
	res, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (student_id, quiz_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	if n == 0 {
		return domain.ErrAttemptExists
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", attemptID).Scan(ctx)
	return rowResult(row, err)
}

func (s *AttemptStore) GetByStudentQuiz(ctx context.Context, studentID, quizID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().
		Model(&row).
		Where("student_id = ?", studentID).
		Where("quiz_id = ?", quizID).
		Scan(ctx)
	return rowResult(row, err)
}

func (s *AttemptStore) ListByStudent(ctx context.Context, studentID string) ([]domain.Attempt, error) {
	return s.list(ctx, "student_id = ?", studentID)
}

func (s *AttemptStore) ListByQuiz(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	return s.list(ctx, "quiz_id = ?", quizID)
}

func (s *AttemptStore) UpdateIfStatus(ctx context.Context, a domain.Attempt, from domain.Status) error {
	row := toAttemptRow(a)
	res, err := s.db.NewUpdate().
		Model(&row).
		Column("answers", "score", "status", "submitted_at").
		WherePK().
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if n > 0 {
		return nil
	}

	exists, err := s.db.NewSelect().Model((*attemptRow)(nil)).Where("id = ?", a.ID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("check attempt: %w", err)
	}
	if !exists {
		return domain.ErrAttemptNotFound
	}
	return domain.ErrStaleAttempt
}

func (s *AttemptStore) list(ctx context.Context, where string, arg string) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().
		Model(&rows).
		Where(where, arg).
		Order("start_time DESC", "id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func rowResult(row attemptRow, err error) (domain.Attempt, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("select attempt: %w", err)
	}
	return row.toDomain(), nil
}
