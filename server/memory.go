package server

import "net/http"

// requireStore answers 503 when the memory store is disabled.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		jsonErr(w, "memory store is not enabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	patterns, err := s.store.ListPatterns(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonOK(w, map[string]any{"patterns": patterns}, http.StatusOK)
}

func (s *Server) handleAddPattern(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		CodeExample string `json:"code_example"`
		Category    string `json:"category"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		jsonErr(w, "name is required", http.StatusBadRequest)
		return
	}
	p, err := s.store.AddPattern(r.Context(), req.Name, req.Description, req.CodeExample, req.Category)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonOK(w, p, http.StatusCreated)
}

func (s *Server) handleListPractices(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	practices, err := s.store.ListBestPractices(r.Context())
	if err != nil {
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonOK(w, map[string]any{"practices": practices}, http.StatusOK)
}

func (s *Server) handleAddPractice(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req struct {
		Practice    string `json:"practice"`
		Context     string `json:"context"`
		LearnedFrom string `json:"learned_from"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Practice == "" {
		jsonErr(w, "practice is required", http.StatusBadRequest)
		return
	}
	p, err := s.store.AddBestPractice(r.Context(), req.Practice, req.Context, req.LearnedFrom)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonOK(w, p, http.StatusCreated)
}

func (s *Server) handleListMistakes(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	mistakes, err := s.store.ListMistakes(r.Context(), r.URL.Query().Get("source"))
	if err != nil {
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonOK(w, map[string]any{"mistakes": mistakes}, http.StatusOK)
}

func (s *Server) handleRecordMistake(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req struct {
		Mistake     string `json:"mistake"`
		Consequence string `json:"consequence"`
		HowToAvoid  string `json:"how_to_avoid"`
		Source      string `json:"source"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Mistake == "" {
		jsonErr(w, "mistake is required", http.StatusBadRequest)
		return
	}
	m, err := s.store.RecordMistake(r.Context(), req.Mistake, req.Consequence, req.HowToAvoid, req.Source)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonOK(w, m, http.StatusCreated)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	feedback, err := s.store.ListFeedback(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonOK(w, map[string]any{"feedback": feedback}, http.StatusOK)
}

func (s *Server) handleAddFeedback(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req struct {
		ProjectID         string `json:"project_id"`
		Feedback          string `json:"feedback"`
		Rating            int    `json:"rating"`
		ExtractedLearning string `json:"extracted_learning"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Feedback == "" {
		jsonErr(w, "feedback is required", http.StatusBadRequest)
		return
	}
	f, err := s.store.AddFeedback(r.Context(), req.ProjectID, req.Feedback, req.Rating, req.ExtractedLearning)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonOK(w, f, http.StatusCreated)
}
