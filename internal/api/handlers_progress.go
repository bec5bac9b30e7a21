package api

import (
	"log/slog"
	"net/http"

	"github.com/rmf-academy/course-server/internal/report"
)

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetProgress()
	if err != nil {
		s.writeStoreError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type lessonCompleteRequest struct {
	ModuleID string `json:"moduleId"`
	LessonID string `json:"lessonId"`
}

func (s *Server) handleLessonComplete(w http.ResponseWriter, r *http.Request) {
	var req lessonCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ModuleID == "" || req.LessonID == "" {
		writeError(w, http.StatusBadRequest, "moduleId and lessonId are required")
		return
	}

	// The first lesson a learner completes also marks the start of the
	// course.
	if err := s.store.SetUserStart(); err != nil {
		s.writeStoreError(w, "set-start", err)
		return
	}
	rec, err := s.store.MarkLessonComplete(req.ModuleID, req.LessonID)
	if err != nil {
		s.writeStoreError(w, "lesson-complete", err)
		return
	}

	s.feed.Publish(EventLessonCompleted, map[string]string{
		"moduleId": req.ModuleID,
		"lessonId": req.LessonID,
	})
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.ResetProgress()
	if err != nil {
		s.writeStoreError(w, "reset", err)
		return
	}

	s.feed.Publish(EventProgressReset, nil)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSaveCapstone(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := decodeJSON(r, &partial); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if partial == nil {
		writeError(w, http.StatusBadRequest, "payload must be an object")
		return
	}

	rec, err := s.store.SaveCapstone(partial)
	if err != nil {
		s.writeStoreError(w, "capstone-save", err)
		return
	}

	s.feed.Publish(EventCapstoneSaved, nil)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleExportProgress(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetProgress()
	if err != nil {
		s.writeStoreError(w, "export", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="progress-export.xlsx"`)
	if err := report.WriteWorkbook(w, rec, s.moduleTitles()); err != nil {
		// Headers are already out; all we can do is log.
		slog.Error("progress export failed", "error", err)
	}
}

// moduleTitles maps module IDs to display titles for the export. Content
// lookup failures just mean the export falls back to raw IDs.
func (s *Server) moduleTitles() map[string]string {
	doc, err := s.content.ModulesDocument()
	if err != nil {
		return nil
	}
	modules, _ := doc["modules"].([]any)

	titles := make(map[string]string, len(modules))
	for _, m := range modules {
		module, ok := m.(map[string]any)
		if !ok {
			continue
		}
		id, _ := module["id"].(string)
		title, _ := module["title"].(string)
		if id != "" && title != "" {
			titles[id] = title
		}
	}
	return titles
}
