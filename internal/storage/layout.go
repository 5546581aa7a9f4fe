package storage

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrOutsideRoot is returned when a client supplied path does not resolve
// to a location under the upload root.
var ErrOutsideRoot = errors.New("path escapes storage root")

// ErrHiddenPath is returned for keys with a segment starting with ".",
// such as in-progress ".part" files. Stored names never start with a dot.
var ErrHiddenPath = errors.New("hidden path")

// Layout maps blob keys ("2024-05-01/<name>") to the paths recorded in
// metadata ("storages/uploads/2024-05-01/<name>") and back.
type Layout struct {
	// Root is the upload root relative to the working directory,
	// slash separated, e.g. "storages/uploads".
	Root string
}

// NewLayout returns a Layout rooted at root.
func NewLayout(root string) Layout {
	root = path.Clean(filepath.ToSlash(root))
	return Layout{Root: strings.TrimSuffix(root, "/")}
}

// DayDir returns the per-day directory name for t in the server's
// local time zone.
func DayDir(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// Key returns the blob key for a file stored under the day directory of t.
func Key(t time.Time, name string) string {
	return DayDir(t) + "/" + name
}

// Path returns the recorded path for key.
func (l Layout) Path(key string) string {
	return l.Root + "/" + key
}

// KeyFromPath turns either a recorded path or a bare key into a blob key
// confined to the root. Any ".." that would climb above the root is
// rejected, and so is any dot-prefixed segment of the resulting key.
func (l Layout) KeyFromPath(p string) (string, error) {
	p = filepath.ToSlash(strings.TrimSpace(p))
	if p == "" {
		return "", ErrOutsideRoot
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrOutsideRoot
		}
	}

	root := strings.TrimPrefix(l.Root, "/")
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	cleaned = strings.TrimPrefix(cleaned, root+"/")
	if cleaned == "" || cleaned == root {
		return "", ErrOutsideRoot
	}
	for _, seg := range strings.Split(cleaned, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", ErrHiddenPath
		}
	}
	return cleaned, nil
}

// contained reports whether full is base itself or below it.
func contained(base, full string) bool {
	rel, err := filepath.Rel(base, full)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
