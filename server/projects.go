package server

import (
	"net/http"
	"strconv"

	"github.com/modelmux/modelmux/ctxutil"
	"github.com/modelmux/modelmux/events"
	"github.com/modelmux/modelmux/workspace"
)

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		jsonErr(w, "name is required", http.StatusBadRequest)
		return
	}

	p, err := s.workspace.CreateProject(req.Name, req.Description)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.hub.Publish(events.Event{Type: events.TypeProjectCreated, ProjectID: p.ID})
	jsonOK(w, p, http.StatusCreated)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]any{"projects": s.workspace.List()}, http.StatusOK)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.workspace.Get(r.PathValue("id"))
	if !ok {
		jsonErr(w, "project not found", http.StatusNotFound)
		return
	}
	jsonOK(w, p, http.StatusOK)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.workspace.Delete(id); err != nil {
		jsonErr(w, err.Error(), http.StatusNotFound)
		return
	}
	s.hub.Publish(events.Event{Type: events.TypeProjectDeleted, ProjectID: id})
	jsonOK(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

// handleProjectGenerate runs a generation for a project, optionally writing
// the output into the workspace.
func (s *Server) handleProjectGenerate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.workspace.Get(id); !ok {
		jsonErr(w, "project not found", http.StatusNotFound)
		return
	}

	var req struct {
		generateRequest
		Path string `json:"path,omitempty"` // Project-relative output file
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		jsonErr(w, "prompt is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	requestID := ctxutil.RequestID(ctx)
	manager := ctxutil.Manager(ctx)

	s.workspace.UpdateStatus(id, workspace.StatusBuilding) //nolint:errcheck
	s.hub.Publish(events.Event{Type: events.TypeGenerationStarted, ProjectID: id, RequestID: requestID})

	var (
		text     string
		provider string
	)
	if req.Language != "" {
		res, err := manager.GenerateCode(ctx, req.llmRequest(), req.Language, req.options()...)
		if err != nil {
			s.failProjectGeneration(w, id, requestID, err)
			return
		}
		text, provider = res.Text, res.Provider
	} else {
		res, err := manager.Generate(ctx, req.llmRequest(), req.options()...)
		if err != nil {
			s.failProjectGeneration(w, id, requestID, err)
			return
		}
		text, provider = res.Text, res.Provider
	}

	var files []workspace.FileRecord
	if req.Path != "" {
		if err := s.workspace.WriteFile(id, req.Path, text); err != nil {
			s.failProjectGeneration(w, id, requestID, err)
			return
		}
		rec, recErr := s.workspace.RecordFile(id, req.Path, int64(len(text)), provider)
		if recErr != nil {
			s.failProjectGeneration(w, id, requestID, recErr)
			return
		}
		s.hub.Publish(events.Event{Type: events.TypeFileWritten, ProjectID: id, Provider: provider, Message: req.Path})
		files = append(files, *rec)
	}

	s.workspace.UpdateStatus(id, workspace.StatusReady) //nolint:errcheck
	s.hub.Publish(events.Event{Type: events.TypeGenerationCompleted, ProjectID: id, RequestID: requestID, Provider: provider})

	jsonOK(w, map[string]any{
		"text":       text,
		"provider":   provider,
		"request_id": requestID,
		"files":      files,
	}, http.StatusOK)
}

func (s *Server) failProjectGeneration(w http.ResponseWriter, id, requestID string, err error) {
	s.workspace.UpdateStatus(id, workspace.StatusFailed) //nolint:errcheck
	s.hub.Publish(events.Event{Type: events.TypeGenerationFailed, ProjectID: id, RequestID: requestID, Message: err.Error()})
	writeLLMError(w, err)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	dir := r.URL.Query().Get("dir")
	recursive := false
	if v := r.URL.Query().Get("recursive"); v != "" {
		recursive, _ = strconv.ParseBool(v)
	}

	files, err := s.workspace.ListFiles(id, dir, recursive)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonOK(w, map[string]any{"files": files}, http.StatusOK)
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	path := r.PathValue("path")

	content, err := s.workspace.ReadFile(id, path)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonOK(w, map[string]string{"path": path, "content": content}, http.StatusOK)
}
