package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quiz-attempt-service/internal/infra/memory"
	redisinfra "quiz-attempt-service/internal/infra/redis"
	"quiz-attempt-service/internal/infra/sqlstore"
)

// NewSeedCmd loads a YAML quiz catalog into the SQL backend.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert quizzes from a YAML catalog into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML catalog (defaults to quiz.seedFile)")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if file == "" {
		file = cfg.Quiz.SeedFile
	}
	if file == "" {
		return fmt.Errorf("no catalog file given and quiz.seedFile is empty")
	}
	quizzes, err := memory.LoadCatalogFile(file)
	if err != nil {
		return err
	}

	db, err := openMigratedSQL(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("seed needs postgres.url or sqlite.path")
	}
	defer db.Close()

	var cache *redisinfra.QuizRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		cache = redisinfra.NewQuizRepository(client, nil, 0, log)
	}

	store := sqlstore.NewQuizStore(db)
	for _, q := range quizzes {
		if err := store.SaveQuiz(ctx, q); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, q.ID); err != nil {
				log.Warn("invalidate cached quiz failed", "quiz", q.ID, "err", err)
			}
		}
		log.Info("quiz seeded", "quiz", q.ID, "questions", len(q.Questions), "deadline", q.Deadline)
	}
	log.Info("seed complete", "file", file, "quizzes", len(quizzes))
	return nil
}
