package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"filedrop/internal/db"
)

type listResp struct {
	Files []db.File `json:"files"`
}

// fileSummary is the reduced record returned by GET /{id}.
type fileSummary struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

type getResp struct {
	File fileSummary `json:"file"`
}

// handleList handles GET /list and returns every record.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error("list files",
			zap.String("rid", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msgListFailed, err)
		return
	}
	if files == nil {
		files = []db.File{}
	}
	writeJSON(w, http.StatusOK, listResp{Files: files})
}

// handleGetByID handles GET /{id}.
func (s *Server) handleGetByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, msgIDRequired, nil)
		return
	}

	f, err := s.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgFileNotFound, nil)
			return
		}
		s.log.Error("get file",
			zap.String("rid", RequestIDFromContext(r.Context())),
			zap.String("id", id),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msgInternal, nil)
		return
	}

	writeJSON(w, http.StatusOK, getResp{File: fileSummary{
		ID:       f.ID,
		Filename: f.Filename,
		Path:     f.Path,
	}})
}
