package app

import "quiz-attempt-service/internal/domain"

// gradeSubmission walks the quiz's questions in order and grades the first
// submitted answer for each. Unanswered questions are left out of the result
// and answers for unknown questions are ignored.
func gradeSubmission(questions []domain.Question, submitted []domain.AnswerSubmission) ([]domain.AnswerRecord, int) {
	byQuestion := make(map[string]string, len(submitted))
	for _, ans := range submitted {
		if _, seen := byQuestion[ans.QuestionID]; seen {
			continue
		}
		byQuestion[ans.QuestionID] = ans.SelectedOption
	}

	records := make([]domain.AnswerRecord, 0, len(questions))
	score := 0
	for _, q := range questions {
		selected, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		correct := selected == q.CorrectOption
		if correct {
			score++
		}
		records = append(records, domain.AnswerRecord{
			QuestionID:     q.ID,
			SelectedOption: selected,
			IsCorrect:      correct,
		})
	}
	return records, score
}
