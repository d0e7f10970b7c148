package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"quiz-attempt-service/internal/domain"
)

// QuizStore reads and writes quiz documents in the quizzes table. It serves
// as the catalog loader on SQLite and as the seed target on both dialects.
type QuizStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewQuizStore(db *bun.DB) *QuizStore {
	return &QuizStore{db: db, now: time.Now}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var row quizRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return domain.Quiz(row.Data), nil
}

// QuizIDs lists every quiz id ordered by creation time, then id.
func (s *QuizStore) QuizIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*quizRow)(nil)).
		Column("id").
		Order("created_at ASC", "id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return ids, nil
}

// SaveQuiz validates and upserts q.
func (s *QuizStore) SaveQuiz(ctx context.Context, q domain.Quiz) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = s.now().UTC()
	}
	row := quizRow{
		ID:             q.ID,
		Data:           quizDocument(q),
		OrganizationID: q.OrganizationID,
		CreatedAt:      q.CreatedAt,
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("organization_id = EXCLUDED.organization_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save quiz %s: %w", q.ID, err)
	}
	return nil
}
