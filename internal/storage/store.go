package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IOError wraps a filesystem failure while persisting or removing an upload.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// StoredFile is a handle to one upload persisted under the store root.
type StoredFile struct {
	Path string
	Name string
	Size int64
}

// Store persists uploads to a scratch directory for the duration of one
// request. Files are written under unique names, so concurrent uploads of
// the same filename never collide.
type Store struct {
	root string
	log  *zap.Logger
}

func New(root string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &IOError{Op: "create upload dir", Path: root, Err: err}
	}
	return &Store{root: root, log: log}, nil
}

// Save writes the reader to a fresh file under the store root and verifies
// the file exists afterwards. The caller owns the returned handle and must
// Release it once the file is no longer needed.
func (s *Store) Save(name string, r io.Reader) (*StoredFile, error) {
	safe, err := sanitizeFilename(name)
	if err != nil {
		return nil, &IOError{Op: "sanitize filename", Path: name, Err: err}
	}

	// The root may have been removed out from under a long-running server.
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, &IOError{Op: "create upload dir", Path: s.root, Err: err}
	}

	dst := filepath.Join(s.root, uuid.NewString()+"_"+safe)
	out, err := os.Create(dst)
	if err != nil {
		return nil, &IOError{Op: "create", Path: dst, Err: err}
	}

	size, err := io.Copy(out, r)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return nil, &IOError{Op: "write", Path: dst, Err: err}
	}

	if _, err := os.Stat(dst); err != nil {
		os.Remove(dst)
		return nil, &IOError{Op: "verify", Path: dst, Err: err}
	}

	s.log.Debug("upload stored",
		zap.String("path", dst),
		zap.Int64("size", size))

	return &StoredFile{Path: dst, Name: safe, Size: size}, nil
}

// Release removes the stored file. It is safe to call with nil or more than
// once; a file that is already gone is not an error. Removal failures are
// logged and never propagated, so a stuck file cannot fail the request that
// produced it.
func (s *Store) Release(f *StoredFile) {
	if f == nil {
		return
	}
	err := os.Remove(f.Path)
	switch {
	case err == nil:
		s.log.Info("temp file removed", zap.String("path", f.Path))
	case os.IsNotExist(err):
		s.log.Info("temp file already removed", zap.String("path", f.Path))
	default:
		s.log.Error("failed to remove temp file",
			zap.String("path", f.Path),
			zap.Error(err))
	}
}

// Root returns the directory uploads are written to.
func (s *Store) Root() string {
	return s.root
}

// sanitizeFilename strips any path components from a client-supplied name
// and replaces characters that are unsafe in a filename. Clients on Windows
// may send backslash-separated paths, so both separators are handled.
func sanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := path.Base(name)
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("unusable filename %q", name)
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String(), nil
}
