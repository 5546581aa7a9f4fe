package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"filedrop/internal/db"
	"filedrop/internal/storage"
)

// Config holds the HTTP-level settings of the server.
type Config struct {
	Addr   string // e.g. ":3000"
	APIKey string
	// MaxUploadSize is the per-file limit in bytes.
	MaxUploadSize int64
	// MaxRequestBytes bounds an entire upload body.
	MaxRequestBytes int64
	PublicDir       string
	Version         string
}

// PassphraseSource produces passphrase codes for new uploads.
type PassphraseSource interface {
	Generate() (string, error)
}

// Deps are the collaborators the handlers operate on.
type Deps struct {
	Store       db.Store
	Blob        storage.Blob
	Layout      storage.Layout
	Passphrases PassphraseSource
	Logger      *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	cfg         Config
	store       db.Store
	blob        storage.Blob
	layout      storage.Layout
	passphrases PassphraseSource
	log         *zap.Logger
	now         func() time.Time

	notFound   http.Handler
	handler    http.Handler
	httpServer *http.Server
}

func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:         cfg,
		store:       deps.Store,
		blob:        deps.Blob,
		layout:      deps.Layout,
		passphrases: deps.Passphrases,
		log:         deps.Logger,
		now:         deps.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.handler = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	// Unmatched requests still need the API key before they learn the
	// route does not exist.
	s.notFound = s.requireAPIKey(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, msgNotFound, nil)
	}))

	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(metricsMiddleware)
	r.Use(corsMiddleware)

	// Public
	r.Get("/", s.handleIndex)
	r.Get("/favicon.ico", s.handlePublicFile("favicon.ico"))
	r.Get("/site.webmanifest", s.handlePublicFile("site.webmanifest"))
	r.Get("/static/*", s.handleStatic)
	r.Get("/files/*", s.handleRetrieve)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API key protected
	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Use(compressionMiddleware)

		r.Post("/upload", s.handleUpload)
		r.Delete("/delete-passphrase", s.handleDeleteByPassphrase)
		r.Delete("/delete", s.handleDeleteByID)
		r.Delete("/delete/", s.handleDeleteByID)
		r.Delete("/delete/{id}", s.handleDeleteByID)
		r.Get("/list", s.handleList)
		r.Get("/{id}", s.handleGetByID)
	})

	r.NotFound(s.notFound.ServeHTTP)
	r.MethodNotAllowed(s.notFound.ServeHTTP)

	return r
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
