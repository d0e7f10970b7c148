package migrations

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type quizzesV1 struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID             string    `bun:"id,pk,type:varchar(64)"`
	Data           string    `bun:"data,type:jsonb,notnull"`
	OrganizationID string    `bun:"organization_id,type:varchar(64)"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.NewCreateTable().Model((*quizzesV1)(nil)).IfNotExists().Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.NewDropTable().Model((*quizzesV1)(nil)).IfExists().Exec(ctx)
			return err
		},
	)
}
