package server

import (
	"net/http"

	"github.com/modelmux/modelmux/events"
)

func (s *Server) handleStartPreview(w http.ResponseWriter, r *http.Request) {
	if s.preview == nil {
		jsonErr(w, "preview server is not enabled", http.StatusServiceUnavailable)
		return
	}
	id := r.PathValue("id")
	if _, ok := s.workspace.Get(id); !ok {
		jsonErr(w, "project not found", http.StatusNotFound)
		return
	}

	url, err := s.preview.Switch(id)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.hub.Publish(events.Event{Type: events.TypePreviewStarted, ProjectID: id, Message: url})
	jsonOK(w, map[string]string{"url": url, "project_id": id}, http.StatusOK)
}

func (s *Server) handleStopPreview(w http.ResponseWriter, r *http.Request) {
	if s.preview == nil {
		jsonErr(w, "preview server is not enabled", http.StatusServiceUnavailable)
		return
	}
	st := s.preview.Status()
	if err := s.preview.Stop(); err != nil {
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if st.Running {
		s.hub.Publish(events.Event{Type: events.TypePreviewStopped, ProjectID: st.ProjectID})
	}
	jsonOK(w, map[string]string{"status": "stopped"}, http.StatusOK)
}

func (s *Server) handlePreviewStatus(w http.ResponseWriter, r *http.Request) {
	if s.preview == nil {
		jsonErr(w, "preview server is not enabled", http.StatusServiceUnavailable)
		return
	}
	jsonOK(w, s.preview.Status(), http.StatusOK)
}
