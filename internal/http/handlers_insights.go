package http

import (
	"net/http"

	"budgeteer/internal/log"
	"budgeteer/internal/metrics"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary.Get(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleLatestTips(w http.ResponseWriter, r *http.Request) {
	tips, err := s.svc.Tips.Latest(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tips))
}

func (s *Server) handleGenerateTips(w http.ResponseWriter, r *http.Request) {
	tips, err := s.svc.Tips.Generate(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, log.OpGenerate, err)
		return
	}
	source := tips[0].Source
	metrics.TipsGenerated(source)
	log.FromContext(r.Context()).WithComponent(log.ComponentTips).InfoContext(r.Context(), "Tips generated",
		log.FieldTipsSource, source,
		"count", len(tips))
	writeJSON(w, http.StatusOK, tips)
}

// handleRefreshTips queues regeneration; the worker stores the result.
func (s *Server) handleRefreshTips(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Tips.RequestRefresh(r.Context(), userID(r)); err != nil {
		writeServiceError(w, r, log.OpGenerate, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Feedback.List(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := s.svc.Feedback.Submit(r.Context(), userID(r), sanitizeInput(req.Message), req.Rating)
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}
