package storage

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"time"
)

// GenerateFileName derives the on-disk name for an uploaded file:
// "<unixMillis>-<md5(original+unixMillis)><ext>".
//
// The extension is taken from the original name including the dot and is
// empty when the original has none. The result only depends on the two
// inputs, so callers control uniqueness through the timestamp.
func GenerateFileName(original string, now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	sum := md5.Sum([]byte(original + ms))
	return ms + "-" + hex.EncodeToString(sum[:]) + extension(original)
}

// extension is filepath.Ext except that a leading dot does not start an
// extension: ".bashrc" has none, ".config.json" has ".json".
func extension(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if ext == base || base == ".." {
		return ""
	}
	return ext
}
