package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	pgloader "quiz-attempt-service/internal/infra/postgres"
	"quiz-attempt-service/internal/infra/rabbit"
	redisinfra "quiz-attempt-service/internal/infra/redis"
	"quiz-attempt-service/internal/infra/sqlstore"
)

// warmLimit bounds concurrent catalog loads while warming the quiz cache.
const warmLimit = 4

type backends struct {
	attempts app.AttemptStore
	quizzes  app.QuizRepository
	catalog  app.QuizCatalog
	rabbit   *rabbit.Publisher
	closers  []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// openBackends picks storage by configuration:
//
//	quiz catalog   Postgres (pgx) > SQLite (bun) > YAML seed file
//	quiz cache     Redis when redis.addr is set, otherwise in process
//	attempts       Redis when redis.attempts is set > SQL (bun) > memory
//	events         RabbitMQ when rabbit.url is set (plus the in-process feed)
func openBackends(ctx context.Context, cfg config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, redisClient.Close)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	db, err := openMigratedSQL(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if db != nil {
		b.closers = append(b.closers, db.Close)
	}

	var (
		loader memory.QuizLoader
		pgl    *pgloader.QuizLoader
	)
	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		pgl = pgloader.NewQuizLoader(pool)
		loader, b.catalog = pgl, pgl
		logBackend(log, "catalog", "postgres")
	case db != nil:
		store := sqlstore.NewQuizStore(db)
		loader, b.catalog = store, store
		logBackend(log, "catalog", "sqlite")
	case cfg.Quiz.SeedFile != "":
		static, err := memory.CatalogLoader(cfg.Quiz.SeedFile)
		if err != nil {
			return nil, err
		}
		loader, b.catalog = static, static
		logBackend(log, "catalog", "yaml:"+cfg.Quiz.SeedFile)
	default:
		empty := memory.NewStaticQuizLoader(map[string]domain.Quiz{})
		loader, b.catalog = empty, empty
		log.Warn("no quiz catalog configured; every quiz lookup will miss")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		b.quizzes = redisinfra.NewQuizRepository(redisClient, loader, quizTTL, log)
		logBackend(log, "quiz cache", "redis")
	} else {
		b.quizzes = memory.NewQuizRepository(loader, quizTTL)
		logBackend(log, "quiz cache", "memory")
	}

	switch {
	case cfg.Redis.Attempts && redisClient != nil:
		b.attempts = redisinfra.NewAttemptStore(redisClient)
		logBackend(log, "attempts", "redis")
	case db != nil:
		b.attempts = sqlstore.NewAttemptStore(db)
		logBackend(log, "attempts", "sql")
	default:
		b.attempts = memory.NewAttemptStore()
		log.Warn("attempts are kept in memory and lost on restart")
	}

	if cfg.Rabbit.URL != "" {
		pub, err := rabbit.Dial(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			return nil, err
		}
		b.rabbit = pub
		b.closers = append(b.closers, pub.Close)
		logBackend(log, "events", "rabbitmq")
	}

	if pgl != nil {
		warmQuizCache(ctx, pgl, b.quizzes, log)
	}
	ok = true
	return b, nil
}

// warmQuizCache preloads every catalog quiz so the first starts after a
// deploy do not all miss at once. Failures only cost a later cache miss.
func warmQuizCache(ctx context.Context, catalog app.QuizCatalog, quizzes app.QuizRepository, log *slog.Logger) {
	ids, err := catalog.QuizIDs(ctx)
	if err != nil {
		log.Warn("list quizzes for cache warm-up failed", "err", err)
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmLimit)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := quizzes.GetQuiz(gctx, id); err != nil && !errors.Is(err, domain.ErrQuizNotFound) {
				log.Warn("warm quiz cache failed", "quiz", id, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	log.Info("quiz cache warmed", "quizzes", len(ids))
}
