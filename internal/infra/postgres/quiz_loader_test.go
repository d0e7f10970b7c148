package postgres

import (
	"testing"
)

func TestDecodeQuiz(t *testing.T) {
	quiz, err := decodeQuiz([]byte(`{
		"id": "quiz-1",
		"title": "Arithmetic",
		"duration": 5,
		"deadline": "2030-01-01T00:00:00Z",
		"questions": [{"id": "q1", "text": "2 + 2", "options": ["3", "4"], "correctOption": "4"}],
		"allowedUsers": ["alice@example.com"],
		"organizationId": "org-1"
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if quiz.ID != "quiz-1" || quiz.Duration != 5 || quiz.Questions[0].CorrectOption != "4" {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
	if err := quiz.Validate(); err != nil {
		t.Fatalf("decoded quiz should be valid: %v", err)
	}
}

func TestDecodeQuizRejectsGarbage(t *testing.T) {
	if _, err := decodeQuiz([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
