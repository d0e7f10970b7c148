package app

import (
	"time"

	"quiz-attempt-service/internal/domain"
)

// QuestionView is the client-facing shape of a question. CorrectOption is only
// filled once the attempt has left the in-progress state.
type QuestionView struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctOption,omitempty"`
}

// QuizInfo is quiz metadata without questions.
type QuizInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Duration    int       `json:"duration"`
	Deadline    time.Time `json:"deadline"`
}

// AvailableQuiz is one entry of a student's quiz list. AttemptStatus is empty
// until the student starts the quiz.
type AvailableQuiz struct {
	QuizInfo
	OrganizationID string        `json:"organizationId"`
	Questions      int           `json:"questions"`
	AttemptID      string        `json:"attemptId,omitempty"`
	AttemptStatus  domain.Status `json:"attemptStatus,omitempty"`
}

// StartView is returned by StartAttempt.
type StartView struct {
	QuizInfo
	AttemptID string         `json:"attemptId"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Questions []QuestionView `json:"questions"`
}

// SubmitResult is returned by SubmitAttempt.
type SubmitResult struct {
	AttemptID string `json:"attemptId"`
	Score     int    `json:"score"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
}

// AttemptSummary is a list entry for attempt listings.
type AttemptSummary struct {
	ID          string        `json:"id"`
	QuizID      string        `json:"quizId"`
	QuizTitle   string        `json:"quizTitle,omitempty"`
	StudentID   string        `json:"studentId"`
	Status      domain.Status `json:"status"`
	Score       int           `json:"score"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	SubmittedAt *time.Time    `json:"submittedAt,omitempty"`
}

// QuestionResult is one row of the per-question breakdown.
type QuestionResult struct {
	QuestionView
	Answered       bool   `json:"answered"`
	SelectedOption string `json:"selectedOption,omitempty"`
	IsCorrect      bool   `json:"isCorrect"`
}

// AttemptDetail joins an attempt with its quiz for result review.
type AttemptDetail struct {
	Attempt   AttemptSummary   `json:"attempt"`
	Quiz      QuizInfo         `json:"quiz"`
	Questions []QuestionResult `json:"questions"`
}

func quizInfo(q domain.Quiz) QuizInfo {
	return QuizInfo{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Duration:    q.Duration,
		Deadline:    q.Deadline,
	}
}

func questionView(q domain.Question, reveal bool) QuestionView {
	view := QuestionView{
		ID:      q.ID,
		Text:    q.Text,
		Options: append([]string(nil), q.Options...),
	}
	if reveal {
		view.CorrectOption = q.CorrectOption
	}
	return view
}

func startView(q domain.Quiz, a domain.Attempt) StartView {
	questions := make([]QuestionView, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, questionView(question, false))
	}
	return StartView{
		QuizInfo:  quizInfo(q),
		AttemptID: a.ID,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Questions: questions,
	}
}

func summarize(a domain.Attempt, quizTitle string) AttemptSummary {
	return AttemptSummary{
		ID:          a.ID,
		QuizID:      a.QuizID,
		QuizTitle:   quizTitle,
		StudentID:   a.StudentID,
		Status:      a.Status,
		Score:       a.Score,
		StartTime:   a.StartTime,
		EndTime:     a.EndTime,
		SubmittedAt: a.SubmittedAt,
	}
}

// projectDetail builds the review view. Correct options are revealed only
// after the attempt reached a terminal state.
func projectDetail(a domain.Attempt, q domain.Quiz) AttemptDetail {
	reveal := a.Status.Terminal()
	answers := make(map[string]domain.AnswerRecord, len(a.Answers))
	for _, ans := range a.Answers {
		answers[ans.QuestionID] = ans
	}

	results := make([]QuestionResult, 0, len(q.Questions))
	for _, question := range q.Questions {
		row := QuestionResult{QuestionView: questionView(question, reveal)}
		if ans, ok := answers[question.ID]; ok {
			row.Answered = true
			row.SelectedOption = ans.SelectedOption
			row.IsCorrect = ans.IsCorrect
		}
		results = append(results, row)
	}
	return AttemptDetail{
		Attempt:   summarize(a, q.Title),
		Quiz:      quizInfo(q),
		Questions: results,
	}
}
