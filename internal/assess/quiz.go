// Package assess holds the deterministic grading engines: the quiz grader
// and the scenario step evaluator. Both are pure computations over loaded
// content; persistence of their results belongs to the progress store.
package assess

import "github.com/rmf-academy/course-server/internal/content"

// Question types with a defined grading rule. Anything else grades as
// incorrect rather than failing the whole submission.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeMultiSelect    = "multi_select"
)

// QuestionResult is the per-question review row returned to the learner
// after submission.
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	Correct       bool   `json:"correct"`
	UserAnswer    any    `json:"userAnswer"`
	CorrectAnswer any    `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
}

// GradeResult is the outcome of grading one quiz submission.
type GradeResult struct {
	Score          int              `json:"score"`
	TotalQuestions int              `json:"totalQuestions"`
	CorrectCount   int              `json:"correctCount"`
	Passed         bool             `json:"passed"`
	Results        []QuestionResult `json:"results"`
}

// GradeQuiz scores a submission against the quiz's question list. Questions
// missing from answers count as unanswered. A quiz with zero questions
// scores 0 and cannot be passed.
func GradeQuiz(questions []content.Question, answers map[string]any, passingScore int) GradeResult {
	result := GradeResult{
		TotalQuestions: len(questions),
		Results:        make([]QuestionResult, 0, len(questions)),
	}

	for _, q := range questions {
		userAnswer := answers[q.ID]
		correct, correctAnswer := gradeQuestion(q, userAnswer)
		if correct {
			result.CorrectCount++
		}
		result.Results = append(result.Results, QuestionResult{
			QuestionID:    q.ID,
			Correct:       correct,
			UserAnswer:    userAnswer,
			CorrectAnswer: correctAnswer,
			Explanation:   q.Explanation,
		})
	}

	if result.TotalQuestions > 0 {
		result.Score = result.CorrectCount * 100 / result.TotalQuestions
		result.Passed = result.Score >= passingScore
	}
	return result
}

func gradeQuestion(q content.Question, userAnswer any) (bool, any) {
	switch q.Type {
	case TypeMultipleChoice:
		want, keyOK := intValue(q.CorrectIndex)
		got, ansOK := intValue(userAnswer)
		return keyOK && ansOK && got == want, q.CorrectIndex

	case TypeTrueFalse:
		want, keyOK := q.CorrectAnswer.(bool)
		got, ansOK := userAnswer.(bool)
		return keyOK && ansOK && got == want, q.CorrectAnswer

	case TypeMultiSelect:
		want, keyOK := intSet(q.CorrectIndices)
		got, ansOK := intSet(userAnswer)
		return keyOK && ansOK && equalSets(got, want), q.CorrectIndices

	default:
		return false, q.CorrectAnswer
	}
}
