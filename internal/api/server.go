// Package api exposes the course backend over HTTP: content delivery,
// progress persistence, quiz and scenario grading, speech synthesis, and a
// WebSocket event feed.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rmf-academy/course-server/internal/assess"
	"github.com/rmf-academy/course-server/internal/content"
	"github.com/rmf-academy/course-server/internal/progress"
	"github.com/rmf-academy/course-server/internal/tts"
)

// Server wires the content repository, progress store, and speech client
// into HTTP handlers.
type Server struct {
	content        *content.Repository
	store          progress.Store
	speech         *tts.Client
	feed           *Feed
	allowedOrigins []string
}

// New creates a Server. speech may be nil when no engine is configured.
func New(repo *content.Repository, store progress.Store, speech *tts.Client, allowedOrigins []string) *Server {
	return &Server{
		content:        repo,
		store:          store,
		speech:         speech,
		feed:           NewFeed(),
		allowedOrigins: allowedOrigins,
	}
}

// Feed returns the progress event feed, for publishing from outside the
// handlers.
func (s *Server) Feed() *Feed { return s.feed }

// Routes builds the API router.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/progress", s.handleGetProgress)
	mux.HandleFunc("POST /api/progress/lesson-complete", s.handleLessonComplete)
	mux.HandleFunc("POST /api/progress/reset", s.handleResetProgress)
	mux.HandleFunc("GET /api/progress/export", s.handleExportProgress)
	mux.HandleFunc("GET /api/progress/events", s.handleProgressEvents)

	mux.HandleFunc("GET /api/quizzes/{quizID}", s.handleGetQuiz)
	mux.HandleFunc("POST /api/quizzes/{quizID}/submit", s.handleSubmitQuiz)

	mux.HandleFunc("GET /api/scenarios/{scenarioID}", s.handleGetScenario)
	mux.HandleFunc("POST /api/scenarios/{scenarioID}/choice", s.handleScenarioChoice)

	mux.HandleFunc("GET /api/modules", s.handleGetModules)
	mux.HandleFunc("GET /api/modules/{moduleID}/lessons", s.handleGetModuleLessons)

	mux.HandleFunc("GET /api/glossary", s.handleGetGlossary)
	mux.HandleFunc("GET /api/glossary/search", s.handleSearchGlossary)

	mux.HandleFunc("GET /api/capstone", s.handleGetCapstone)
	mux.HandleFunc("POST /api/capstone/save", s.handleSaveCapstone)

	mux.HandleFunc("POST /api/tts", s.handleSynthesize)
	mux.HandleFunc("GET /api/tts/voices", s.handleVoices)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads the request body into v, rejecting unparseable payloads.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// writeContentError maps content lookup failures to status codes: unknown
// content is a 404, malformed content files are a server-side 500.
func writeContentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, content.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, content.ErrMalformed):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		slog.Error("content lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeAssessError maps scenario evaluation failures: a missing step is a
// 404, a bad choice index or malformed choice data is the client's 400.
func writeAssessError(w http.ResponseWriter, err error) {
	var stepErr *assess.StepNotFoundError
	var rangeErr *assess.ChoiceOutOfRangeError
	var choiceErr *assess.MalformedChoiceError
	switch {
	case errors.As(err, &stepErr):
		writeError(w, http.StatusNotFound, "Step not found")
	case errors.As(err, &rangeErr):
		writeError(w, http.StatusBadRequest, "Invalid choice index")
	case errors.As(err, &choiceErr):
		writeError(w, http.StatusBadRequest, choiceErr.Reason)
	default:
		slog.Error("scenario evaluation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	slog.Error("progress store operation failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "failed to persist progress")
}
