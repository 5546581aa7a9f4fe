package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres opens a PostgreSQL connection pool using DATABASE_URL.
func OpenPostgres(databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Validate connectivity immediately.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// PostgresStore keeps records in the files table created by RunMigrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const fileColumns = `id, filename, path, content_type, size_bytes, alt, description, passphrase_code, uploaded_at`

var fieldColumns = map[Field]string{
	FieldFilename:   "filename",
	FieldPath:       "path",
	FieldPassphrase: "passphrase_code",
}

func (s *PostgresStore) Create(ctx context.Context, f *File) error {
	stampUploadedAt(f)
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, f.Filename, f.Path, f.Type, f.Size,
		nullString(f.Alt), nullString(f.Description), nullString(f.PassphraseCode), f.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert file record: %w", err)
	}
	f.ID = id.String()
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query file records: %w", err)
	}
	defer rows.Close()

	files := make([]File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file records: %w", err)
	}
	return files, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*File, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.queryOne(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, uid)
}

func (s *PostgresStore) FindOne(ctx context.Context, field Field, value string) (*File, error) {
	col, err := column(field, value)
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, `SELECT `+fileColumns+` FROM files WHERE `+col+` = $1 ORDER BY uploaded_at LIMIT 1`, value)
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id string) (*File, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.queryOne(ctx, `DELETE FROM files WHERE id = $1 RETURNING `+fileColumns, uid)
}

func (s *PostgresStore) DeleteOne(ctx context.Context, field Field, value string) (*File, error) {
	col, err := column(field, value)
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, `
		DELETE FROM files
		WHERE id = (SELECT id FROM files WHERE `+col+` = $1 ORDER BY uploaded_at LIMIT 1)
		RETURNING `+fileColumns, value)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close(context.Context) error {
	return s.db.Close()
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*File, error) {
	f, err := scanFile(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*File, error) {
	var (
		f                     File
		alt, desc, passphrase sql.NullString
	)
	err := row.Scan(&f.ID, &f.Filename, &f.Path, &f.Type, &f.Size, &alt, &desc, &passphrase, &f.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan file record: %w", err)
	}
	f.Alt = alt.String
	f.Description = desc.String
	f.PassphraseCode = passphrase.String
	return &f, nil
}

func column(field Field, value string) (string, error) {
	if value == "" {
		return "", ErrNotFound
	}
	col, ok := fieldColumns[field]
	if !ok {
		return "", fmt.Errorf("unsupported lookup field %q", field)
	}
	return col, nil
}

// nullString helper for nullable strings
func nullString(s string) sql.NullString {
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}
