package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestQuizAllowsIsCaseInsensitive(t *testing.T) {
	quiz := Quiz{AllowedUsers: []string{"Alice@Example.com", " bob@example.com "}}

	if !quiz.Allows("alice@example.com") {
		t.Fatalf("expected alice to be allowed")
	}
	if !quiz.Allows("BOB@example.com") {
		t.Fatalf("expected bob to be allowed")
	}
	if quiz.Allows("carol@example.com") {
		t.Fatalf("expected carol to be rejected")
	}
	if quiz.Allows("") {
		t.Fatalf("empty email must never be allowed")
	}
}

func TestQuizValidate(t *testing.T) {
	valid := Quiz{
		ID:       "quiz-1",
		Title:    "Basics",
		Duration: 10,
		Deadline: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Questions: []Question{
			{ID: "q1", Text: "2+2?", Options: []string{"3", "4"}, CorrectOption: "4"},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid quiz, got %v", err)
	}

	badOption := valid
	badOption.Questions = []Question{{ID: "q1", Options: []string{"3", "4"}, CorrectOption: "5"}}
	if err := badOption.Validate(); err == nil {
		t.Fatalf("expected error for correct option outside options")
	}

	tooFew := valid
	tooFew.Questions = []Question{{ID: "q1", Options: []string{"4"}, CorrectOption: "4"}}
	if err := tooFew.Validate(); err == nil {
		t.Fatalf("expected error for a single option")
	}

	noDuration := valid
	noDuration.Duration = 0
	if err := noDuration.Validate(); err == nil {
		t.Fatalf("expected error for zero duration")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrQuizNotFound, KindNotFound},
		{fmt.Errorf("load: %w", ErrAttemptNotFound), KindNotFound},
		{ErrNotAllowed, KindForbidden},
		{ErrWrongRole, KindForbidden},
		{ErrAlreadyCompleted, KindAlreadyCompleted},
		{ErrAlreadySubmitted, KindAlreadySubmitted},
		{ErrTimeExpired, KindTimeExpired},
		{ErrQuizClosed, KindTimeExpired},
		{ErrNotStarted, KindNotStarted},
		{errors.New("connection reset"), KindInternal},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
	if KindOf(nil) != "" {
		t.Fatalf("expected empty kind for nil")
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusInProgress.Terminal() {
		t.Fatalf("in-progress must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusBlocked.Terminal() {
		t.Fatalf("completed and blocked must be terminal")
	}
}
