package api

import (
	"net/http"

	"github.com/rmf-academy/course-server/internal/assess"
	"github.com/rmf-academy/course-server/internal/progress"
)

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.content.SanitizedQuiz(r.PathValue("quizID"))
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

type quizSubmitRequest struct {
	Answers  map[string]any `json:"answers"`
	ModuleID string         `json:"moduleId"`
}

type badgeAward struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Emoji string `json:"emoji,omitempty"`
	IsNew bool   `json:"isNew"`
}

type quizSubmitResponse struct {
	Score          int                     `json:"score"`
	TotalQuestions int                     `json:"totalQuestions"`
	CorrectCount   int                     `json:"correctCount"`
	Passed         bool                    `json:"passed"`
	Results        []assess.QuestionResult `json:"results"`
	BadgeEarned    *badgeAward             `json:"badgeEarned,omitempty"`
	Progress       *progress.Record        `json:"progress"`
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("quizID")

	var req quizSubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ModuleID == "" {
		writeError(w, http.StatusBadRequest, "moduleId is required")
		return
	}

	quiz, err := s.content.Quiz(quizID)
	if err != nil {
		writeContentError(w, err)
		return
	}

	// Grading is pure; only the progress update below takes the store lock.
	grading := assess.GradeQuiz(quiz.Questions, req.Answers, quiz.PassingScore)

	badge, hasBadge := s.content.ModuleBadge(req.ModuleID)
	badgeID := ""
	if hasBadge {
		badgeID = badge.ID
	}

	outcome, err := s.store.RecordQuizResult(req.ModuleID, quizID, grading.Score, grading.Passed, badgeID)
	if err != nil {
		s.writeStoreError(w, "quiz-result", err)
		return
	}

	resp := quizSubmitResponse{
		Score:          grading.Score,
		TotalQuestions: grading.TotalQuestions,
		CorrectCount:   grading.CorrectCount,
		Passed:         grading.Passed,
		Results:        grading.Results,
		Progress:       outcome.Record,
	}
	if grading.Passed && hasBadge {
		resp.BadgeEarned = &badgeAward{
			ID:    badge.ID,
			Name:  badge.Name,
			Emoji: badge.Emoji,
			IsNew: outcome.BadgeAdded,
		}
	}

	s.feed.Publish(EventQuizGraded, map[string]any{
		"quizId":          quizID,
		"moduleId":        req.ModuleID,
		"score":           grading.Score,
		"passed":          grading.Passed,
		"moduleCompleted": outcome.ModuleCompleted,
	})
	writeJSON(w, http.StatusOK, resp)
}
