package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rmf-academy/course-server/internal/api"
	"github.com/rmf-academy/course-server/internal/content"
	"github.com/rmf-academy/course-server/internal/progress"
)

func newTestServer(t *testing.T) (*api.Server, progress.Store) {
	t.Helper()
	repo := testRepository(t)
	store := progress.NewMemoryStore(repo)
	return api.New(repo, store, nil, []string{"http://localhost:5173"}), store
}

func testRepository(t *testing.T) *content.Repository {
	t.Helper()
	dir := t.TempDir()

	write := func(name, data string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	write("modules.json", `{
		"modules": [
			{"id": "module-1", "title": "Govern", "badge": {"id": "badge-govern", "name": "Governance", "emoji": "🏛️"}},
			{"id": "module-2", "title": "Map"}
		]
	}`)
	write("quizzes.json", `{
		"quizzes": {
			"quiz-1": {
				"questions": [
					{"id": "q1", "type": "multiple_choice", "prompt": "Pick one", "options": ["a", "b"], "correctIndex": 1, "explanation": "b is right"},
					{"id": "q2", "type": "true_false", "prompt": "Yes?", "correctAnswer": true, "explanation": "it is"}
				]
			}
		}
	}`)
	write("scenarios.json", `{
		"scenarios": [
			{
				"id": "scenario-1",
				"maxPoints": 8,
				"steps": [
					{"id": "start", "choices": [
						{"points": 5, "feedback": "good call", "nextStep": "end"},
						{"points": 1, "feedback": "risky", "nextStep": "end"}
					]},
					{"id": "end", "choices": [
						{"points": 3, "feedback": "done"}
					]}
				]
			}
		]
	}`)
	write("module1_lessons.json", `{"lessons": [{"id": "lesson-1"}, {"id": "lesson-2"}]}`)
	write("glossary.json", `{
		"terms": [
			{"term": "Risk tolerance", "definition": "How much risk is acceptable"},
			{"term": "Provenance", "definition": "Where data came from"}
		]
	}`)
	write("capstone.json", `{"title": "Capstone", "systems": ["hiring", "lending"]}`)

	repo, err := content.New(dir)
	if err != nil {
		t.Fatalf("content.New() error = %v", err)
	}
	return repo
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/health", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestGetModules(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/modules", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	modules, _ := body["modules"].([]any)
	if len(modules) != 2 {
		t.Errorf("modules = %d, want 2", len(modules))
	}
}

func TestGetModuleLessons(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	rec := doJSON(t, mux, http.MethodGet, "/api/modules/module-1/lessons", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/modules/module-9/lessons", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown module status = %d, want 404", rec.Code)
	}
}

func TestGetQuiz_Sanitized(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/quizzes/quiz-1", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	for _, field := range []string{"correctIndex", "correctAnswer", "correctIndices", "explanation"} {
		if strings.Contains(rec.Body.String(), field) {
			t.Errorf("sanitized quiz leaks %q", field)
		}
	}
}

func TestGetQuiz_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/quizzes/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSubmitQuiz(t *testing.T) {
	srv, store := newTestServer(t)
	mux := srv.Routes()

	rec := doJSON(t, mux, http.MethodPost, "/api/quizzes/quiz-1/submit", map[string]any{
		"moduleId": "module-1",
		"answers":  map[string]any{"q1": 1, "q2": true},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Score       int  `json:"score"`
		Passed      bool `json:"passed"`
		BadgeEarned *struct {
			ID    string `json:"id"`
			IsNew bool   `json:"isNew"`
		} `json:"badgeEarned"`
		Progress map[string]any `json:"progress"`
	}
	decodeBody(t, rec, &body)

	if body.Score != 100 || !body.Passed {
		t.Errorf("score = %d passed = %v, want 100/true", body.Score, body.Passed)
	}
	if body.BadgeEarned == nil || body.BadgeEarned.ID != "badge-govern" || !body.BadgeEarned.IsNew {
		t.Errorf("badgeEarned = %+v, want new badge-govern", body.BadgeEarned)
	}
	if body.Progress == nil {
		t.Error("response missing progress snapshot")
	}

	// A second pass re-awards nothing.
	rec = doJSON(t, mux, http.MethodPost, "/api/quizzes/quiz-1/submit", map[string]any{
		"moduleId": "module-1",
		"answers":  map[string]any{"q1": 1, "q2": true},
	})
	decodeBody(t, rec, &body)
	if body.BadgeEarned == nil || body.BadgeEarned.IsNew {
		t.Errorf("second submit badgeEarned = %+v, want isNew false", body.BadgeEarned)
	}

	recProgress, err := store.GetProgress()
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	mp := recProgress.Modules["module-1"]
	if mp == nil || !mp.QuizPassed || mp.QuizAttempts != 2 {
		t.Errorf("stored module progress = %+v, want passed with 2 attempts", mp)
	}
}

func TestSubmitQuiz_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	rec := doJSON(t, mux, http.MethodPost, "/api/quizzes/quiz-1/submit", map[string]any{
		"answers": map[string]any{"q1": 1},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing moduleId status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/quizzes/nope/submit", map[string]any{
		"moduleId": "module-1",
		"answers":  map[string]any{},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown quiz status = %d, want 404", rec.Code)
	}
}

func TestScenarioChoice(t *testing.T) {
	srv, store := newTestServer(t)
	mux := srv.Routes()

	// Intermediate step: no final result yet.
	rec := doJSON(t, mux, http.MethodPost, "/api/scenarios/scenario-1/choice", map[string]any{
		"stepId":      "start",
		"choiceIndex": 0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var choice struct {
		Points      int    `json:"points"`
		NextStepID  string `json:"nextStepId"`
		IsComplete  bool   `json:"isComplete"`
		FinalResult *struct {
			TotalPoints int    `json:"totalPoints"`
			Grade       string `json:"grade"`
		} `json:"finalResult"`
	}
	decodeBody(t, rec, &choice)
	if choice.IsComplete || choice.NextStepID != "end" || choice.Points != 5 {
		t.Errorf("intermediate choice = %+v", choice)
	}

	// Terminal step: grades and persists.
	rec = doJSON(t, mux, http.MethodPost, "/api/scenarios/scenario-1/choice", map[string]any{
		"stepId":            "end",
		"choiceIndex":       0,
		"accumulatedPoints": 5,
	})
	decodeBody(t, rec, &choice)
	if !choice.IsComplete || choice.FinalResult == nil {
		t.Fatalf("terminal choice = %+v, want completed with final result", choice)
	}
	if choice.FinalResult.TotalPoints != 8 || choice.FinalResult.Grade != "excellent" {
		t.Errorf("finalResult = %+v, want 8 points excellent", choice.FinalResult)
	}

	recProgress, err := store.GetProgress()
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if sr := recProgress.Scenarios["scenario-1"]; sr.Score != 8 || sr.MaxScore != 8 {
		t.Errorf("stored scenario result = %+v, want 8/8", sr)
	}
}

func TestScenarioChoice_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	tests := []struct {
		name       string
		path       string
		body       map[string]any
		wantStatus int
	}{
		{"unknown scenario", "/api/scenarios/nope/choice", map[string]any{"stepId": "start", "choiceIndex": 0}, http.StatusNotFound},
		{"unknown step", "/api/scenarios/scenario-1/choice", map[string]any{"stepId": "nope", "choiceIndex": 0}, http.StatusNotFound},
		{"choice out of range", "/api/scenarios/scenario-1/choice", map[string]any{"stepId": "start", "choiceIndex": 7}, http.StatusBadRequest},
		{"negative choice", "/api/scenarios/scenario-1/choice", map[string]any{"stepId": "start", "choiceIndex": -1}, http.StatusBadRequest},
		{"missing stepId", "/api/scenarios/scenario-1/choice", map[string]any{"choiceIndex": 0}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestLessonComplete(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	rec := doJSON(t, mux, http.MethodPost, "/api/progress/lesson-complete", map[string]any{
		"moduleId": "module-1",
		"lessonId": "lesson-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		User struct {
			StartedAt *string `json:"startedAt"`
		} `json:"user"`
		Modules map[string]struct {
			Status           string   `json:"status"`
			LessonsCompleted []string `json:"lessonsCompleted"`
		} `json:"modules"`
	}
	decodeBody(t, rec, &body)
	if body.User.StartedAt == nil {
		t.Error("startedAt not set by first lesson completion")
	}
	mp := body.Modules["module-1"]
	if mp.Status != progress.StatusInProgress || len(mp.LessonsCompleted) != 1 {
		t.Errorf("module-1 progress = %+v", mp)
	}
}

func TestLessonComplete_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Routes(), http.MethodPost, "/api/progress/lesson-complete", map[string]any{
		"moduleId": "module-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestResetProgress(t *testing.T) {
	srv, store := newTestServer(t)
	mux := srv.Routes()

	doJSON(t, mux, http.MethodPost, "/api/progress/lesson-complete", map[string]any{
		"moduleId": "module-1", "lessonId": "lesson-1",
	})
	rec := doJSON(t, mux, http.MethodPost, "/api/progress/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	recProgress, _ := store.GetProgress()
	if len(recProgress.Modules) != 0 {
		t.Errorf("modules after reset = %v, want empty", recProgress.Modules)
	}
}

func TestSaveCapstone(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	rec := doJSON(t, mux, http.MethodPost, "/api/capstone/save", map[string]any{
		"started":        true,
		"selectedSystem": "hiring",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Capstone map[string]any `json:"capstone"`
	}
	decodeBody(t, rec, &body)
	if body.Capstone["started"] != true || body.Capstone["selectedSystem"] != "hiring" {
		t.Errorf("capstone = %v", body.Capstone)
	}
	// Untouched defaults survive the shallow merge.
	if _, ok := body.Capstone["responses"]; !ok {
		t.Error("capstone merge dropped responses")
	}
}

func TestGlossarySearch(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	rec := doJSON(t, mux, http.MethodGet, "/api/glossary/search?q=PROVENANCE", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Results []map[string]any `json:"results"`
	}
	decodeBody(t, rec, &body)
	if len(body.Results) != 1 {
		t.Errorf("results = %d, want 1 case-folded match", len(body.Results))
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/glossary/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", rec.Code)
	}
}

func TestExportProgress(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/progress/export", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q, want xlsx", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("export body is empty")
	}
}

func TestSynthesize_Unconfigured(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Routes(), http.MethodPost, "/api/tts", map[string]any{
		"text": "hello",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when no engine configured", rec.Code)
	}
}

func TestSynthesize_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty text", map[string]any{"text": "   "}},
		{"speed too low", map[string]any{"text": "hi", "speed": 0.2}},
		{"speed too high", map[string]any{"text": "hi", "speed": 2.0}},
		{"text too long", map[string]any{"text": strings.Repeat("a", 5001)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/api/tts", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestVoicesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/tts/voices", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Voices       []string `json:"voices"`
		DefaultVoice string   `json:"defaultVoice"`
		Engine       string   `json:"engine"`
	}
	decodeBody(t, rec, &body)
	if body.DefaultVoice != "af_heart" || body.Engine != "kokoro-82m" || len(body.Voices) == 0 {
		t.Errorf("voices response = %+v", body)
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := api.CORS([]string{"http://localhost:5173"}, srv.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allowed origin header = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got header %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/progress", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}
