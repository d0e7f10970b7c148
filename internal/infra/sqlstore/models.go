package sqlstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"quiz-attempt-service/internal/domain"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts"`

	ID          string        `bun:"id,pk"`
	StudentID   string        `bun:"student_id,notnull"`
	QuizID      string        `bun:"quiz_id,notnull"`
	StartTime   time.Time     `bun:"start_time,notnull"`
	EndTime     time.Time     `bun:"end_time,notnull"`
	Answers     answerList    `bun:"answers,notnull"`
	Score       int           `bun:"score,notnull"`
	Status      domain.Status `bun:"status,notnull"`
	SubmittedAt *time.Time    `bun:"submitted_at,nullzero"`
}

func toAttemptRow(a domain.Attempt) attemptRow {
	return attemptRow{
		ID:          a.ID,
		StudentID:   a.StudentID,
		QuizID:      a.QuizID,
		StartTime:   a.StartTime.UTC(),
		EndTime:     a.EndTime.UTC(),
		Answers:     answerList(a.Answers),
		Score:       a.Score,
		Status:      a.Status,
		SubmittedAt: utcPtr(a.SubmittedAt),
	}
}

func (r attemptRow) toDomain() domain.Attempt {
	answers := []domain.AnswerRecord(r.Answers)
	if answers == nil {
		answers = []domain.AnswerRecord{}
	}
	return domain.Attempt{
		ID:          r.ID,
		StudentID:   r.StudentID,
		QuizID:      r.QuizID,
		StartTime:   r.StartTime.UTC(),
		EndTime:     r.EndTime.UTC(),
		Answers:     answers,
		Score:       r.Score,
		Status:      r.Status,
		SubmittedAt: utcPtr(r.SubmittedAt),
	}
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID             string       `bun:"id,pk"`
	Data           quizDocument `bun:"data,notnull"`
	OrganizationID string       `bun:"organization_id"`
	CreatedAt      time.Time    `bun:"created_at,notnull"`
}

// answerList and quizDocument are stored as JSON text so the same rows work
// on Postgres (jsonb) and SQLite.
type answerList []domain.AnswerRecord

func (l answerList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]domain.AnswerRecord(l))
	return string(b), err
}

func (l *answerList) Scan(src any) error {
	return scanJSON(src, (*[]domain.AnswerRecord)(l))
}

type quizDocument domain.Quiz

func (d quizDocument) Value() (driver.Value, error) {
	b, err := json.Marshal(domain.Quiz(d))
	return string(b), err
}

func (d *quizDocument) Scan(src any) error {
	return scanJSON(src, (*domain.Quiz)(d))
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("sqlstore: cannot scan %T as JSON", src)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
