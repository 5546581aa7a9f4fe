package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"filedrop/internal/db"
	"filedrop/internal/storage"
)

// multipartMemory is how much of a form is buffered in memory before
// file parts spill to temporary files.
const multipartMemory = 32 << 20

// uploadedFile is one entry of the upload response.
type uploadedFile struct {
	Name           string `json:"name"`
	Location       string `json:"location"`
	PassphraseCode string `json:"passphraseCode"`
}

type uploadResp struct {
	Message string         `json:"message"`
	Files   []uploadedFile `json:"files"`
}

// maxNameAttempts bounds how often a part is renamed after its generated
// name turned out to be taken.
const maxNameAttempts = 5

// errFileTooLarge is reported when a single part exceeds MaxUploadSize.
var errFileTooLarge = errors.New("file exceeds maximum upload size")

// handleUpload handles POST /upload.
//
// Form fields: file (one or more parts), alt, description.
// Each part is stored, given a passphrase and recorded in order. A failure
// stops the batch; files recorded before it stay stored.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxRequestBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		uploadsTotal.WithLabelValues("rejected").Inc()
		writeError(w, status, msgUploadFailed, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		uploadsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, msgUploadFailed, errors.New("no files uploaded"))
		return
	}
	if s.cfg.MaxUploadSize > 0 {
		for _, fh := range parts {
			if fh.Size > s.cfg.MaxUploadSize {
				uploadsTotal.WithLabelValues("rejected").Inc()
				writeError(w, http.StatusRequestEntityTooLarge, msgUploadFailed,
					fmt.Errorf("%s: %w", fh.Filename, errFileTooLarge))
				return
			}
		}
	}

	alt := r.MultipartForm.Value["alt"]
	description := r.MultipartForm.Value["description"]

	results := make([]uploadedFile, 0, len(parts))
	var last time.Time
	for _, fh := range parts {
		rec, stamp, err := s.storeUpload(r, fh, firstValue(alt), firstValue(description), last)
		if err != nil {
			uploadsTotal.WithLabelValues("error").Inc()
			s.log.Error("upload failed",
				zap.String("rid", RequestIDFromContext(r.Context())),
				zap.String("original", fh.Filename),
				zap.Int("stored", len(results)),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, msgProcessingFailed, err)
			return
		}

		last = stamp
		uploadsTotal.WithLabelValues("ok").Inc()
		uploadBytesTotal.Add(float64(rec.Size))
		s.log.Info("file uploaded",
			zap.String("rid", RequestIDFromContext(r.Context())),
			zap.String("id", rec.ID),
			zap.String("filename", rec.Filename),
			zap.String("path", rec.Path),
			zap.Int64("size", rec.Size),
		)
		results = append(results, uploadedFile{
			Name:           rec.Filename,
			Location:       rec.Path,
			PassphraseCode: rec.PassphraseCode,
		})
	}

	writeJSON(w, http.StatusOK, uploadResp{Message: msgUploaded, Files: results})
}

// storeUpload writes one part and creates its record. Its name is stamped
// with a millisecond strictly after prev, and a name that is already taken
// in storage is regenerated with the next millisecond. The bytes are fully
// written before the record exists; if the record cannot be created the
// bytes are removed again. It returns the stamp used for the name.
func (s *Server) storeUpload(r *http.Request, fh *multipart.FileHeader, alt, description string, prev time.Time) (*db.File, time.Time, error) {
	ctx := r.Context()
	contentType := fh.Header.Get("Content-Type")

	var now time.Time
	var name, key string
	for attempt := 1; ; attempt++ {
		now = s.nextStamp(prev)
		name = storage.GenerateFileName(fh.Filename, now)
		key = storage.Key(now, name)

		err := s.putPart(ctx, fh, key, contentType)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrExists) || attempt == maxNameAttempts {
			return nil, prev, fmt.Errorf("store file: %w", err)
		}
		prev = now
	}

	code, err := s.passphrases.Generate()
	if err != nil {
		s.discardBlob(r, key)
		return nil, prev, fmt.Errorf("generate passphrase: %w", err)
	}

	rec := &db.File{
		Filename:       name,
		Path:           s.layout.Path(key),
		Type:           contentType,
		Size:           fh.Size,
		Alt:            alt,
		Description:    description,
		PassphraseCode: code,
		UploadedAt:     now.UTC(),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		s.discardBlob(r, key)
		return nil, prev, fmt.Errorf("save file record: %w", err)
	}
	return rec, now, nil
}

func (s *Server) putPart(ctx context.Context, fh *multipart.FileHeader, key, contentType string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open part: %w", err)
	}
	defer func() { _ = src.Close() }()
	return s.blob.Put(ctx, key, src, fh.Size, contentType)
}

// nextStamp returns the current time, moved past prev when the clock has
// not yet left prev's millisecond.
func (s *Server) nextStamp(prev time.Time) time.Time {
	now := s.now()
	if !prev.IsZero() && now.UnixMilli() <= prev.UnixMilli() {
		return time.UnixMilli(prev.UnixMilli() + 1).In(now.Location())
	}
	return now
}

// discardBlob removes bytes whose record was never created. Put never
// overwrites, so key holds only bytes written by this request.
func (s *Server) discardBlob(r *http.Request, key string) {
	if err := s.blob.Remove(r.Context(), key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("remove orphaned file",
			zap.String("rid", RequestIDFromContext(r.Context())),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func firstValue(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}
