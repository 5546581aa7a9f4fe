// Package db holds file metadata records and the stores that persist
// them. MongoDB is the default backend; PostgreSQL is supported through
// the same Store interface.
package db

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record matches a lookup. Malformed ids
// are reported as ErrNotFound as well.
var ErrNotFound = errors.New("file record not found")

// File is the metadata record of one stored file.
type File struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	Path           string    `json:"path"`
	Type           string    `json:"type"`
	Size           int64     `json:"size"`
	Alt            string    `json:"alt,omitempty"`
	Description    string    `json:"description,omitempty"`
	PassphraseCode string    `json:"passphraseCode,omitempty"`
	UploadedAt     time.Time `json:"uploadedAt"`
}

// Field names a record attribute usable in FindOne / DeleteOne.
type Field string

const (
	FieldFilename   Field = "filename"
	FieldPath       Field = "path"
	FieldPassphrase Field = "passphraseCode"
)

// Store persists file records. Single-record deletes are atomic at the
// store level.
type Store interface {
	// Create assigns f.ID (and UploadedAt when zero) and persists f.
	Create(ctx context.Context, f *File) error
	// List returns all records, oldest first.
	List(ctx context.Context) ([]File, error)
	// FindByID returns the record with id.
	FindByID(ctx context.Context, id string) (*File, error)
	// FindOne returns the first record whose field equals value.
	FindOne(ctx context.Context, field Field, value string) (*File, error)
	// DeleteByID removes the record with id and returns it.
	DeleteByID(ctx context.Context, id string) (*File, error)
	// DeleteOne removes the first record whose field equals value and
	// returns it.
	DeleteOne(ctx context.Context, field Field, value string) (*File, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

func stampUploadedAt(f *File) {
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}
}
