package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"filedrop/internal/db"
	"filedrop/internal/storage"
)

type deleteResp struct {
	Message string   `json:"message"`
	File    *db.File `json:"file"`
}

// handleDeleteByID handles DELETE /delete/{id}. The bare /delete and
// /delete/ forms answer 400.
func (s *Server) handleDeleteByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, msgIDRequired, nil)
		return
	}

	s.deleteFile(w, r, "id",
		func(ctx context.Context) (*db.File, error) { return s.store.FindByID(ctx, id) },
		func(ctx context.Context) (*db.File, error) { return s.store.DeleteByID(ctx, id) },
	)
}

// handleDeleteByPassphrase handles DELETE /delete-passphrase?code=...
// Only an exact match on the stored passphrase deletes a file.
func (s *Server) handleDeleteByPassphrase(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, msgCodeRequired, nil)
		return
	}

	s.deleteFile(w, r, "passphrase",
		func(ctx context.Context) (*db.File, error) { return s.store.FindOne(ctx, db.FieldPassphrase, code) },
		func(ctx context.Context) (*db.File, error) { return s.store.DeleteOne(ctx, db.FieldPassphrase, code) },
	)
}

// deleteFile removes the stored bytes of the record found by find and then
// the record itself through remove. Bytes that are already gone do not
// block the delete; any other storage error keeps the record.
func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request, method string,
	find, remove func(context.Context) (*db.File, error),
) {
	ctx := r.Context()
	rid := RequestIDFromContext(ctx)

	rec, err := find(ctx)
	if err != nil {
		s.deleteFailed(w, r, method, err)
		return
	}

	key, err := s.layout.KeyFromPath(rec.Path)
	if err != nil {
		s.log.Warn("record path outside upload root",
			zap.String("rid", rid),
			zap.String("id", rec.ID),
			zap.String("path", rec.Path),
		)
	} else if err := s.blob.Remove(ctx, key); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			deletesTotal.WithLabelValues(method, "error").Inc()
			s.log.Error("remove file",
				zap.String("rid", rid),
				zap.String("id", rec.ID),
				zap.String("path", rec.Path),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, msgInternal, fmt.Errorf("remove file: %w", err))
			return
		}
		s.log.Warn("file already missing from storage",
			zap.String("rid", rid),
			zap.String("id", rec.ID),
			zap.String("path", rec.Path),
		)
	}

	deleted, err := remove(ctx)
	if err != nil {
		s.deleteFailed(w, r, method, err)
		return
	}

	deletesTotal.WithLabelValues(method, "ok").Inc()
	s.log.Info("file deleted",
		zap.String("rid", rid),
		zap.String("id", deleted.ID),
		zap.String("filename", deleted.Filename),
		zap.String("path", deleted.Path),
		zap.String("by", method),
	)
	writeJSON(w, http.StatusOK, deleteResp{Message: msgDeleted, File: deleted})
}

func (s *Server) deleteFailed(w http.ResponseWriter, r *http.Request, method string, err error) {
	if errors.Is(err, db.ErrNotFound) {
		deletesTotal.WithLabelValues(method, "not_found").Inc()
		writeError(w, http.StatusNotFound, msgFileNotFound, nil)
		return
	}
	deletesTotal.WithLabelValues(method, "error").Inc()
	s.log.Error("delete file record",
		zap.String("rid", RequestIDFromContext(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, msgInternal, err)
}
