package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// tempSuffix marks partially written files.
const tempSuffix = ".part"

// LocalBlob keeps files on the local filesystem under a root directory.
type LocalBlob struct {
	root string
}

// NewLocalBlob creates the root directory if needed and returns a blob
// store rooted there.
func NewLocalBlob(root string) (*LocalBlob, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload root %s: %w", root, err)
	}
	return &LocalBlob{root: root}, nil
}

// Root returns the directory files are stored under.
func (b *LocalBlob) Root() string {
	return b.root
}

func (b *LocalBlob) fullPath(key string) (string, error) {
	full := filepath.Join(b.root, filepath.FromSlash(key))
	if !contained(b.root, full) || full == filepath.Clean(b.root) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

// Put writes r to a temporary file next to the destination and links it
// into place once fully synced. The day directory is created on demand.
func (b *LocalBlob) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	full, err := b.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", key, err)
	}

	tmp := filepath.Join(filepath.Dir(full), "."+uuid.NewString()+tempSuffix)
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", key, err)
	}

	// Link fails if full exists, so a finished file is never replaced.
	err = os.Link(tmp, full)
	_ = os.Remove(tmp)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return fmt.Errorf("link into %s: %w", key, err)
	}
	return nil
}

// Open opens key for reading.
func (b *LocalBlob) Open(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := b.fullPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound
	}
	return f, nil
}

// Remove deletes key from disk.
func (b *LocalBlob) Remove(_ context.Context, key string) error {
	full, err := b.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Ping checks that the root directory is still present.
func (b *LocalBlob) Ping(_ context.Context) error {
	info, err := os.Stat(b.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("upload root %s is not a directory", b.root)
	}
	return nil
}

// RemoveStaleTemp deletes partially written files last modified before
// cutoff. They are left behind only when the process dies mid-write.
func (b *LocalBlob) RemoveStaleTemp(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if d.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, tempSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
		removed++
		return nil
	})
	return removed, err
}
