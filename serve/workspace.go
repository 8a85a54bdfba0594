package main

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	synccit "github.com/synccit/synccit"
	"github.com/synccit/synccit/assist"
	"github.com/synccit/synccit/workspace"
)

// maxUploadMemory is how much of a multipart upload is buffered in memory;
// the rest spills to temporary files.
const maxUploadMemory = 32 << 20

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, synccit.APIError{Error: msg})
}

// workspaceStatus maps workspace errors onto HTTP statuses.
func workspaceStatus(err error) int {
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrNotDir), errors.Is(err, workspace.ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requireWorkspace(w http.ResponseWriter) bool {
	if s.ws == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "workspace not configured")
		return false
	}
	return true
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	if !s.requireWorkspace(w) {
		return
	}
	path := r.URL.Query().Get("path")
	tree, err := s.ws.Tree(path)
	if err != nil {
		switch status := workspaceStatus(err); status {
		case http.StatusNotFound:
			writeAPIError(w, status, "Path not found: "+s.ws.Resolve(path))
		case http.StatusBadRequest:
			writeAPIError(w, status, "Not a directory")
		default:
			writeAPIError(w, status, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	if !s.requireWorkspace(w) {
		return
	}
	full, content, err := s.ws.ReadFile(r.URL.Query().Get("path"))
	if err != nil {
		status := workspaceStatus(err)
		if status == http.StatusNotFound {
			writeAPIError(w, status, "File not found")
			return
		}
		writeAPIError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, synccit.FileContent{Path: full, Content: content})
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	if !s.requireWorkspace(w) {
		return
	}
	var req synccit.SaveFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	full, err := s.ws.WriteFile(req.Path, req.Content)
	if err != nil {
		writeAPIError(w, workspaceStatus(err), err.Error())
		return
	}
	s.logger.Debug("file saved", zap.String("path", full))
	writeJSON(w, http.StatusOK, synccit.SuccessResponse{Success: true, Path: full})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.requireWorkspace(w) {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeAPIError(w, http.StatusBadRequest, "Invalid upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "Missing file field: "+err.Error())
		return
	}
	defer file.Close()

	full, err := s.ws.Upload(r.FormValue("path"), header.Filename, file)
	if err != nil {
		writeAPIError(w, workspaceStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, synccit.SuccessResponse{Success: true, Path: full})
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	if !s.requireWorkspace(w) {
		return
	}
	if s.projects == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "project summaries disabled")
		return
	}
	summary, err := s.projects.Summary(r.Context(), s.ws.Resolve(r.URL.Query().Get("path")))
	if err != nil {
		writeAPIError(w, workspaceStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	if s.translator == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "Gemini API Key not configured")
		return
	}
	var req synccit.TranslateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	t, err := s.translator.Translate(r.Context(), &req)
	if err != nil {
		var ae *assist.Error
		if errors.As(err, &ae) {
			writeAPIError(w, ae.HTTPStatus(), ae.Message)
			return
		}
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}
