package api

import (
	"net/http"
	"strings"
)

func (s *Server) handleGetModules(w http.ResponseWriter, r *http.Request) {
	doc, err := s.content.ModulesDocument()
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetModuleLessons(w http.ResponseWriter, r *http.Request) {
	doc, err := s.content.ModuleLessons(r.PathValue("moduleID"))
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetGlossary(w http.ResponseWriter, r *http.Request) {
	doc, err := s.content.Glossary()
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSearchGlossary(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	results, err := s.content.SearchGlossary(query)
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	})
}

func (s *Server) handleGetCapstone(w http.ResponseWriter, r *http.Request) {
	doc, err := s.content.Capstone()
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
