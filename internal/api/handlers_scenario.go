package api

import (
	"net/http"

	"github.com/rmf-academy/course-server/internal/assess"
)

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	doc, err := s.content.ScenarioDocument(r.PathValue("scenarioID"))
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type scenarioChoiceRequest struct {
	StepID            string `json:"stepId"`
	ChoiceIndex       int    `json:"choiceIndex"`
	AccumulatedPoints int    `json:"accumulatedPoints"`
}

func (s *Server) handleScenarioChoice(w http.ResponseWriter, r *http.Request) {
	scenarioID := r.PathValue("scenarioID")

	var req scenarioChoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StepID == "" {
		writeError(w, http.StatusBadRequest, "stepId is required")
		return
	}

	scenario, err := s.content.Scenario(scenarioID)
	if err != nil {
		writeContentError(w, err)
		return
	}

	result, err := assess.SubmitChoice(scenario, req.StepID, req.ChoiceIndex, req.AccumulatedPoints)
	if err != nil {
		writeAssessError(w, err)
		return
	}

	if result.IsComplete {
		final := result.FinalResult
		if _, err := s.store.RecordScenarioResult(scenarioID, final.TotalPoints, final.MaxPoints); err != nil {
			s.writeStoreError(w, "scenario-result", err)
			return
		}
		s.feed.Publish(EventScenarioCompleted, map[string]any{
			"scenarioId":  scenarioID,
			"totalPoints": final.TotalPoints,
			"maxPoints":   final.MaxPoints,
			"grade":       final.Grade,
		})
	}

	writeJSON(w, http.StatusOK, result)
}
