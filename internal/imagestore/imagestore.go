package imagestore

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wichananm65/user-management-backend/internal/apperr"
)

// allowedExts lists the upload extensions accepted for profile images.
var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// AllowedExt reports whether filename carries an accepted image extension.
// The comparison is case-insensitive.
func AllowedExt(filename string) bool {
	return allowedExts[strings.ToLower(filepath.Ext(filename))]
}

// Store holds uploaded profile images. A stored filename is owned by exactly
// one user row; Remove is best-effort and tolerates a missing file.
type Store interface {
	Save(file *multipart.FileHeader) (string, error)
	Remove(name string) error
}

// DiskStore keeps images as files in a single directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the upload directory if needed and returns a store
// backed by it.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save validates the upload's extension and writes it under a freshly
// generated filename so concurrent uploads can never collide.
func (s *DiskStore) Save(file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExts[ext] {
		return "", apperr.New(apperr.KindUnsupportedMedia, "Only JPG/PNG allowed")
	}

	src, err := file.Open()
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindStorage, "Failed to read uploaded file")
	}
	defer src.Close()

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindStorage, "Failed to store uploaded file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dst.Name())
		return "", apperr.Wrap(err, apperr.KindStorage, "Failed to store uploaded file")
	}

	return name, nil
}

// Remove deletes the named image. A file that is already gone is not an error.
func (s *DiskStore) Remove(name string) error {
	if name == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemStore is an in-memory Store used by tests.
type MemStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string][]byte)}
}

func (s *MemStore) Save(file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExts[ext] {
		return "", apperr.New(apperr.KindUnsupportedMedia, "Only JPG/PNG allowed")
	}

	src, err := file.Open()
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindStorage, "Failed to read uploaded file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindStorage, "Failed to store uploaded file")
	}

	name := uuid.NewString() + ext
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
	return name, nil
}

func (s *MemStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
	return nil
}

// Len returns the number of stored files.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Has reports whether the named file is present.
func (s *MemStore) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok
}
