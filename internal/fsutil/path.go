package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// NormalizePath returns p as a cleaned absolute path. A relative p is
// interpreted against the directory base; an empty base means the working
// directory.
func NormalizePath(base, p string) (string, error) {
	if !filepath.IsAbs(p) && base != "" {
		p = filepath.Join(base, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Exists reports whether a file or directory exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
