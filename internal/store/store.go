// Package store holds the single active PDF template.
//
// There is exactly one slot: every Put replaces the previous template and
// every Get returns whatever is currently stored. Callers get no isolation
// between a Put and a concurrent Get.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// TemplateFileName is the fixed file name of the template inside the storage directory
	TemplateFileName = "template.pdf"

	// DefaultDirPerm is used when the storage directory has to be created
	DefaultDirPerm = 0o750

	defaultFilePerm = 0o640
)

// ErrTemplateNotFound is returned by Get when no template has been stored yet
var ErrTemplateNotFound = errors.New("template not found")

// Store is a single-slot template repository
type Store interface {
	// Put replaces the current template with data
	Put(ctx context.Context, data []byte) error
	// Get returns the current template or ErrTemplateNotFound
	Get(ctx context.Context) ([]byte, error)
}

// FileStore keeps the template at a fixed path inside a directory
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir. The directory is not
// touched until the first Put or an explicit EnsureDir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory cannot be empty")
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the storage directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the well-known template path
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, TemplateFileName)
}

// EnsureDir creates the storage directory if it does not exist
func (s *FileStore) EnsureDir() error {
	if err := os.MkdirAll(s.dir, DefaultDirPerm); err != nil {
		return fmt.Errorf("cannot create storage directory %s: %w", s.dir, err)
	}
	return nil
}

// Put writes data to the template path, creating the directory on demand
func (s *FileStore) Put(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.EnsureDir(); err != nil {
		return err
	}
	if err := os.WriteFile(s.Path(), data, defaultFilePerm); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}

// Get reads the template from disk
func (s *FileStore) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return data, nil
}

// MemoryStore keeps the template in memory
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Put stores a copy of data
func (s *MemoryStore) Put(_ context.Context, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.data = buf
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the stored template
func (s *MemoryStore) Get(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, ErrTemplateNotFound
	}
	buf := make([]byte, len(s.data))
	copy(buf, s.data)
	return buf, nil
}
