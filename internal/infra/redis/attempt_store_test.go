package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

var start = time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)

func newAttempt(id, student, quiz string, at time.Time) domain.Attempt {
	return domain.Attempt{
		ID:        id,
		StudentID: student,
		QuizID:    quiz,
		StartTime: at,
		EndTime:   at.Add(10 * time.Minute),
		Answers:   []domain.AnswerRecord{},
		Status:    domain.StatusInProgress,
	}
}

func TestAttemptStoreCreateIfAbsent(t *testing.T) {
	mr := runRedis(t)
	store := NewAttemptStore(newClient(mr))
	ctx := context.Background()

	if err := store.Create(ctx, newAttempt("a1", "s1", "quiz-1", start)); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.Create(ctx, newAttempt("a2", "s1", "quiz-1", start))
	if !errors.Is(err, domain.ErrAttemptExists) {
		t.Fatalf("expected ErrAttemptExists, got %v", err)
	}

	got, err := store.GetByStudentQuiz(ctx, "s1", "quiz-1")
	if err != nil {
		t.Fatalf("get by pair: %v", err)
	}
	if got.ID != "a1" || !got.StartTime.Equal(start) || got.Status != domain.StatusInProgress {
		t.Fatalf("unexpected attempt %+v", got)
	}
	if _, err := store.Get(ctx, "a2"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("losing attempt must not be stored, got %v", err)
	}
	if _, err := store.GetByStudentQuiz(ctx, "s2", "quiz-1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestAttemptStoreConcurrentCreateSingleWinner(t *testing.T) {
	mr := runRedis(t)
	store := NewAttemptStore(newClient(mr))
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.Create(ctx, newAttempt(fmt.Sprintf("a%d", i), "s1", "quiz-1", start))
			switch {
			case err == nil:
				wins.Add(1)
			case !errors.Is(err, domain.ErrAttemptExists):
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	list, err := store.ListByStudent(ctx, "s1")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one stored attempt, got %d (%v)", len(list), err)
	}
}

func TestAttemptStoreUpdateIfStatus(t *testing.T) {
	mr := runRedis(t)
	store := NewAttemptStore(newClient(mr))
	ctx := context.Background()

	a := newAttempt("a1", "s1", "quiz-1", start)
	_ = store.Create(ctx, a)

	done := a
	done.Status = domain.StatusCompleted
	done.Score = 2
	done.Answers = []domain.AnswerRecord{{QuestionID: "q1", SelectedOption: "4", IsCorrect: true}}
	at := start.Add(time.Minute)
	done.SubmittedAt = &at
	if err := store.UpdateIfStatus(ctx, done, domain.StatusInProgress); err != nil {
		t.Fatalf("update: %v", err)
	}

	blocked := a
	blocked.Status = domain.StatusBlocked
	if err := store.UpdateIfStatus(ctx, blocked, domain.StatusInProgress); !errors.Is(err, domain.ErrStaleAttempt) {
		t.Fatalf("expected ErrStaleAttempt, got %v", err)
	}

	got, _ := store.Get(ctx, "a1")
	if got.Status != domain.StatusCompleted || got.Score != 2 || len(got.Answers) != 1 {
		t.Fatalf("unexpected stored attempt %+v", got)
	}
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(at) {
		t.Fatalf("expected submittedAt %v, got %v", at, got.SubmittedAt)
	}

	if err := store.UpdateIfStatus(ctx, newAttempt("nope", "s1", "quiz-1", start), domain.StatusInProgress); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestAttemptStoreConcurrentUpdateSingleWinner(t *testing.T) {
	mr := runRedis(t)
	store := NewAttemptStore(newClient(mr))
	ctx := context.Background()
	a := newAttempt("a1", "s1", "quiz-1", start)
	_ = store.Create(ctx, a)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := a
			next.Status = domain.StatusCompleted
			next.Score = i
			err := store.UpdateIfStatus(ctx, next, domain.StatusInProgress)
			switch {
			case err == nil:
				wins.Add(1)
			case !errors.Is(err, domain.ErrStaleAttempt):
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winning update, got %d", wins.Load())
	}
}

func TestAttemptStoreListings(t *testing.T) {
	mr := runRedis(t)
	store := NewAttemptStore(newClient(mr))
	ctx := context.Background()

	_ = store.Create(ctx, newAttempt("a1", "s1", "quiz-1", start))
	_ = store.Create(ctx, newAttempt("a2", "s1", "quiz-2", start.Add(time.Hour)))
	_ = store.Create(ctx, newAttempt("a3", "s2", "quiz-1", start.Add(2*time.Hour)))

	mine, err := store.ListByStudent(ctx, "s1")
	if err != nil {
		t.Fatalf("list by student: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "a2" || mine[1].ID != "a1" {
		t.Fatalf("expected newest first, got %+v", mine)
	}

	byQuiz, err := store.ListByQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("list by quiz: %v", err)
	}
	if len(byQuiz) != 2 || byQuiz[0].ID != "a3" {
		t.Fatalf("unexpected quiz listing %+v", byQuiz)
	}

	empty, err := store.ListByStudent(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty listing, got %+v %v", empty, err)
	}
}
