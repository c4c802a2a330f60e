// Package filesystem provides the typed file operations used by the git
// store and the event log. An ExistingFile can only be obtained for a path
// that was verified to name a regular file, which keeps "validated file" and
// "raw path string" apart at the type level.
package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ExistingFile is a path that was confirmed to reference a regular file at
// construction time.
type ExistingFile struct {
	path string
}

// Path returns the verified path.
func (f ExistingFile) Path() string { return f.path }

// CheckFile validates that path names an existing regular file.
func CheckFile(path string) (ExistingFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ExistingFile{}, err
	}
	if !info.Mode().IsRegular() {
		return ExistingFile{}, fmt.Errorf("%s is not a regular file", path)
	}
	return ExistingFile{path: path}, nil
}

// Exists reports whether path exists at all (file or directory).
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// CreateFile creates an empty file at path, failing if it already exists.
func CreateFile(path string) (ExistingFile, error) {
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return ExistingFile{}, err
	}
	if err := f.Close(); err != nil {
		return ExistingFile{}, err
	}
	return ExistingFile{path: path}, nil
}

// CreateDirectory creates path and any missing parents.
func CreateDirectory(path string) error {
	return os.MkdirAll(path, 0o755)
}

// CreateTempDir allocates a fresh temporary directory with the given name
// pattern and returns its path.
func CreateTempDir(pattern string) (string, error) {
	return os.MkdirTemp("", pattern)
}

// DeleteFile removes a single file.
func DeleteFile(path string) error {
	return os.Remove(path)
}

// DeleteDirectory removes path and everything below it.
func DeleteDirectory(path string) error {
	return os.RemoveAll(path)
}

// ReadText reads the whole of f as UTF-8 text.
func ReadText(f ExistingFile) (string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteText writes content to path, creating or truncating it.
func WriteText(path, content string) error {
	return os.WriteFile(filepath.Clean(path), []byte(content), 0o644)
}

// CopyFile copies src to dst, creating parent directories as needed.
func CopyFile(src ExistingFile, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src.path)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
