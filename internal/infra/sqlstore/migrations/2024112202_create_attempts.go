package migrations

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type attemptsV1 struct {
	bun.BaseModel `bun:"table:attempts"`

	ID          string     `bun:"id,pk,type:varchar(64)"`
	StudentID   string     `bun:"student_id,notnull,type:varchar(64),unique:attempts_student_quiz"`
	QuizID      string     `bun:"quiz_id,notnull,type:varchar(64),unique:attempts_student_quiz"`
	StartTime   time.Time  `bun:"start_time,notnull"`
	EndTime     time.Time  `bun:"end_time,notnull"`
	Answers     string     `bun:"answers,type:jsonb,notnull"`
	Score       int        `bun:"score,notnull"`
	Status      string     `bun:"status,notnull,type:varchar(16)"`
	SubmittedAt *time.Time `bun:"submitted_at,nullzero"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if _, err := db.NewCreateTable().Model((*attemptsV1)(nil)).IfNotExists().Exec(ctx); err != nil {
				return err
			}
			_, err := db.NewCreateIndex().
				Model((*attemptsV1)(nil)).
				Index("attempts_quiz_id_idx").
				Column("quiz_id").
				IfNotExists().
				Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.NewDropTable().Model((*attemptsV1)(nil)).IfExists().Exec(ctx)
			return err
		},
	)
}
