package curriculum

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// ErrRootMissing is returned when the courses root does not exist or is not a directory.
var ErrRootMissing = errors.New("courses root not found")

// ErrorKind classifies a per-file failure.
type ErrorKind string

const (
	KindRead       ErrorKind = "read"
	KindParse      ErrorKind = "parse"
	KindValidation ErrorKind = "validation"
	KindWrite      ErrorKind = "write"
)

// FileError is a recoverable failure tied to one file. It never aborts a walk.
type FileError struct {
	Path string
	Kind ErrorKind
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// CheckRoot verifies the courses root exists and is a directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRootMissing, root)
		}
		return fmt.Errorf("stat courses root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRootMissing, root)
	}
	return nil
}

// ReadRecord loads and decodes one topic file.
func ReadRecord(path string) (*TopicRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Kind: KindRead, Err: err}
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		return nil, &FileError{Path: path, Kind: KindParse, Err: err}
	}
	return rec, nil
}

// Digest fingerprints encoded file contents.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// WriteFileAtomic writes data next to path and renames it into place, so a
// reader never observes a half-written topic file.
func WriteFileAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp_curator_*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
