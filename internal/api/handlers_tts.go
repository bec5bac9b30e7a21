package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rmf-academy/course-server/internal/tts"
)

const maxSynthesisTextLen = 5000

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tts.Voices())
}

type synthesizeRequest struct {
	Text  string   `json:"text"`
	Voice string   `json:"voice"`
	Speed *float64 `json:"speed"`
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "Text cannot be empty.")
		return
	}
	if len(text) > maxSynthesisTextLen {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Text exceeds %d characters.", maxSynthesisTextLen))
		return
	}

	speed := 1.0
	if req.Speed != nil {
		speed = *req.Speed
	}
	if speed < tts.MinSpeed || speed > tts.MaxSpeed {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Speed must be between %.1f and %.1f.", tts.MinSpeed, tts.MaxSpeed))
		return
	}

	audio, err := s.speech.Synthesize(r.Context(), text, req.Voice, speed)
	if err != nil {
		if errors.Is(err, tts.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "Speech synthesis is not configured.")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-TTS-Engine", tts.EngineName)
	w.Write(audio)
}
