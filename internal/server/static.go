package server

import (
	"net/http"
	"path"
	"strings"
)

// handleIndex serves index.html from the public directory.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.servePublic(w, r, "index.html")
}

// handlePublicFile serves a single named file from the public directory.
func (s *Server) handlePublicFile(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.servePublic(w, r, name)
	}
}

// handleStatic serves GET /static/* from <public>/static.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	s.servePublic(w, r, path.Join("static", strings.TrimPrefix(r.URL.Path, "/static/")))
}

// servePublic serves name from the public directory. http.Dir keeps the
// lookup inside that directory. Public assets need no API key, so a
// missing file or a directory is a plain 404.
func (s *Server) servePublic(w http.ResponseWriter, r *http.Request, name string) {
	if s.cfg.PublicDir == "" {
		writeError(w, http.StatusNotFound, msgFileNotFound, nil)
		return
	}

	f, err := http.Dir(s.cfg.PublicDir).Open("/" + name)
	if err != nil {
		writeError(w, http.StatusNotFound, msgFileNotFound, nil)
		return
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		writeError(w, http.StatusNotFound, msgFileNotFound, nil)
		return
	}
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}
