package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/sqlstore"
)

const catalogPath = "../../config/quizzes.yaml"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenBackendsFromYAMLCatalog(t *testing.T) {
	var cfg config.Config
	cfg.Quiz.SeedFile = catalogPath

	b, err := openBackends(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	defer b.Close()

	if _, ok := b.attempts.(*memory.AttemptStore); !ok {
		t.Fatalf("expected in-memory attempts, got %T", b.attempts)
	}
	quiz, err := b.quizzes.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 3 || quiz.Questions[0].CorrectOption != "4" {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
	ids, err := b.catalog.QuizIDs(context.Background())
	if err != nil {
		t.Fatalf("catalog ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != "quiz-1" || ids[1] != "quiz-2" {
		t.Fatalf("unexpected catalog %v", ids)
	}
}

func TestSeedThenServeFromSQLite(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	body := "sqlite:\n  path: " + filepath.Join(dir, "quiz.db") + "\nquiz:\n  seedFile: " + catalogPath + "\nlog:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := runSeed(context.Background(), cfgPath, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	b, err := openBackends(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	defer b.Close()

	if _, ok := b.attempts.(*sqlstore.AttemptStore); !ok {
		t.Fatalf("expected SQL attempts, got %T", b.attempts)
	}
	quiz, err := b.quizzes.GetQuiz(context.Background(), "quiz-2")
	if err != nil {
		t.Fatalf("get seeded quiz: %v", err)
	}
	if quiz.Title != "Capitals" {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
	if ids, err := b.catalog.QuizIDs(context.Background()); err != nil || len(ids) != 2 {
		t.Fatalf("expected both seeded quizzes in the catalog, got %v %v", ids, err)
	}
	if _, err := b.quizzes.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestNewIssuerFromConfig(t *testing.T) {
	var cfg config.Config
	if _, err := newIssuer(cfg); err == nil {
		t.Fatalf("expected missing secrets to fail")
	}
	cfg.Auth.AccessSecret = "a"
	cfg.Auth.RefreshSecret = "r"
	issuer, err := newIssuer(cfg)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	if issuer.AccessTTL() != 15*time.Minute || issuer.RefreshTTL() != 7*24*time.Hour {
		t.Fatalf("unexpected default lifetimes %v %v", issuer.AccessTTL(), issuer.RefreshTTL())
	}
	token, err := issuer.IssueAccess(domain.Identity{ID: "s1", Role: domain.RoleStudent})
	if err != nil || token == "" {
		t.Fatalf("issue: %v", err)
	}
}
