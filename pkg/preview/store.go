// Package preview keeps the temporary preview rasters generated for slides.
// Every artifact lives in one temporary directory owned by the Store, and
// Close removes the directory with everything in it.
package preview

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/menta2k/slides-crop/pkg/codec"
)

// ErrClosed is returned by Put after Close
var ErrClosed = errors.New("preview store is closed")

// Store manages temporary preview files.
type Store struct {
	mu     sync.Mutex
	codec  codec.ImageCodec
	format codec.Format
	logger *slog.Logger
	base   string
	dir    string
	files  map[string]struct{}
	closed bool
}

// NewStore creates a store writing previews with c in the given format. The
// temporary directory is created on first use under base, or under the system
// temp directory when base is empty.
func NewStore(c codec.ImageCodec, format codec.Format, base string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if format == "" {
		format = codec.PNG
	}
	return &Store{
		codec:  c,
		format: format,
		logger: logger,
		base:   base,
		files:  make(map[string]struct{}),
	}
}

// Put writes img as a new preview artifact and returns its path.
func (s *Store) Put(img image.Image, sourceName string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if s.dir == "" {
		dir, err := os.MkdirTemp(s.base, "slides-crop-previews-")
		if err != nil {
			s.mu.Unlock()
			return "", fmt.Errorf("failed to create preview directory: %w", err)
		}
		s.dir = dir
	}
	path := filepath.Join(s.dir, uuid.NewString()+s.format.Extension())
	s.files[path] = struct{}{}
	s.mu.Unlock()

	if err := s.codec.Save(img, path, s.format); err != nil {
		s.mu.Lock()
		delete(s.files, path)
		s.mu.Unlock()
		return "", fmt.Errorf("failed to write preview for %s: %w", sourceName, err)
	}
	s.logger.Debug("preview written", "source", sourceName, "path", path)
	return path, nil
}

// Remove deletes a single artifact. Unknown paths are ignored.
func (s *Store) Remove(path string) error {
	s.mu.Lock()
	_, ok := s.files[path]
	delete(s.files, path)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove preview: %w", err)
	}
	return nil
}

// Len returns the number of live artifacts
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Dir returns the temporary directory, empty until the first Put.
func (s *Store) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Close removes every artifact. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.files = make(map[string]struct{})
	if s.dir == "" {
		return nil
	}
	s.logger.Debug("removing preview directory", "dir", s.dir)
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove preview directory: %w", err)
	}
	return nil
}

// Reset removes every artifact but keeps the store usable.
func (s *Store) Reset() error {
	if err := s.Close(); err != nil {
		return err
	}
	s.mu.Lock()
	s.closed = false
	s.dir = ""
	s.mu.Unlock()
	return nil
}
