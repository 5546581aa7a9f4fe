package server

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"filedrop/internal/storage"
)

// contentTypes maps lower-cased extensions to the Content-Type served by
// GET /files/*. Anything else is served as application/octet-stream.
var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
}

func contentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// handleRetrieve handles GET /files/{path...}. The path may be a stored
// record path ("storages/uploads/<day>/<name>") or a key relative to the
// upload root ("<day>/<name>"); either way it must stay under the root.
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/files/")

	key, err := s.layout.KeyFromPath(raw)
	if err != nil {
		retrievalsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusNotFound, msgFileNotFound, err)
		return
	}

	rc, err := s.blob.Open(r.Context(), key)
	if err != nil {
		retrievalsTotal.WithLabelValues("missing").Inc()
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("open file",
				zap.String("rid", RequestIDFromContext(r.Context())),
				zap.String("key", key),
				zap.Error(err),
			)
		}
		writeError(w, http.StatusNotFound, msgFileNotFound, err)
		return
	}
	defer func() { _ = rc.Close() }()

	retrievalsTotal.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", contentTypeFor(key))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
