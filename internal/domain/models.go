package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an attempt.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusBlocked
}

// Role is the caller role supplied by the identity gate.
type Role string

const (
	RoleStudent      Role = "student"
	RoleOrganization Role = "organization"
	RoleAdmin        Role = "admin"
)

// Identity is the already-authenticated caller.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Question models an MCQ question; CorrectOption must never reach a student
// before grading.
type Question struct {
	ID             string   `json:"id" yaml:"id"`
	Text           string   `json:"text" yaml:"text"`
	Subject        string   `json:"subject,omitempty" yaml:"subject"`
	Options        []string `json:"options" yaml:"options"`
	CorrectOption  string   `json:"correctOption" yaml:"correctOption"`
	OrganizationID string   `json:"organizationId,omitempty" yaml:"organizationId"`
}

// Quiz is a launched quiz with its questions resolved.
type Quiz struct {
	ID             string     `json:"id" yaml:"id"`
	Title          string     `json:"title" yaml:"title"`
	Description    string     `json:"description,omitempty" yaml:"description"`
	Duration       int        `json:"duration" yaml:"duration"` // minutes
	Deadline       time.Time  `json:"deadline" yaml:"deadline"`
	Questions      []Question `json:"questions" yaml:"questions"`
	AllowedUsers   []string   `json:"allowedUsers" yaml:"allowedUsers"`
	OrganizationID string     `json:"organizationId" yaml:"organizationId"`
	CreatedAt      time.Time  `json:"createdAt,omitempty" yaml:"createdAt"`
}

// DurationTime converts the minute-based duration.
func (q Quiz) DurationTime() time.Duration {
	return time.Duration(q.Duration) * time.Minute
}

// Allows reports whether email is on the participant allow-list.
func (q Quiz) Allows(email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	for _, allowed := range q.AllowedUsers {
		if normalizeEmail(allowed) == email {
			return true
		}
	}
	return false
}

// Validate checks the structural rules the catalog must uphold.
func (q Quiz) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("quiz id is required")
	}
	if strings.TrimSpace(q.Title) == "" {
		return fmt.Errorf("quiz %s: title is required", q.ID)
	}
	if q.Duration <= 0 {
		return fmt.Errorf("quiz %s: duration must be positive", q.ID)
	}
	if q.Deadline.IsZero() {
		return fmt.Errorf("quiz %s: deadline is required", q.ID)
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("quiz %s: at least one question is required", q.ID)
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("quiz %s: duplicate question %s", q.ID, question.ID)
		}
		seen[question.ID] = struct{}{}
		if err := question.Validate(); err != nil {
			return fmt.Errorf("quiz %s: %w", q.ID, err)
		}
	}
	return nil
}

// Validate checks option count and that the correct option is one of them.
func (q Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("question id is required")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("question %s: need at least 2 options", q.ID)
	}
	for _, opt := range q.Options {
		if opt == q.CorrectOption {
			return nil
		}
	}
	return fmt.Errorf("question %s: correct option is not among options", q.ID)
}

// AnswerSubmission is one answer sent by a student.
type AnswerSubmission struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
}

// AnswerRecord is a graded answer stored on the attempt.
type AnswerRecord struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
	IsCorrect      bool   `json:"isCorrect"`
}

// Attempt is a student's single run at a quiz.
type Attempt struct {
	ID          string         `json:"id"`
	StudentID   string         `json:"studentId"`
	QuizID      string         `json:"quizId"`
	StartTime   time.Time      `json:"startTime"`
	EndTime     time.Time      `json:"endTime"`
	Answers     []AnswerRecord `json:"answers"`
	Score       int            `json:"score"`
	Status      Status         `json:"status"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty"`
}

// Expired reports whether now is past the attempt's own deadline.
func (a Attempt) Expired(now time.Time) bool {
	return now.After(a.EndTime)
}

// EventType names an attempt transition.
type EventType string

const (
	EventStarted   EventType = "started"
	EventBlocked   EventType = "blocked"
	EventSubmitted EventType = "submitted"
)

// AttemptEvent is emitted after a transition is persisted.
type AttemptEvent struct {
	Type      EventType `json:"type"`
	AttemptID string    `json:"attemptId"`
	QuizID    string    `json:"quizId"`
	StudentID string    `json:"studentId"`
	Status    Status    `json:"status"`
	Score     int       `json:"score"`
	At        time.Time `json:"at"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
