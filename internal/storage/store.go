package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"camwatch/internal/model"
)

// ErrInvalidName is returned for artifact names that would leave the store.
var ErrInvalidName = errors.New("invalid artifact name")

// Store keeps history images on disk, one file per entry.
type Store struct {
	dir string
}

// NewStore creates the directory when needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes the image of an entry and returns the artifact name.
func (s *Store) Save(e model.HistoryEntry, data []byte) (string, error) {
	name := Filename(e)
	path := filepath.Join(s.dir, name)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return name, nil
}

// Path resolves an artifact name to a file path inside the store.
func (s *Store) Path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\\x00") || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Load reads an artifact.
func (s *Store) Load(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Delete removes an artifact. Deleting a missing artifact is not an error.
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// Scan parses every artifact in the store. Files that do not follow the
// naming scheme are returned in skipped.
func (s *Store) Scan() (entries []model.HistoryEntry, skipped []string, err error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read image directory: %w", err)
	}
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != artifactExt {
			continue
		}
		e, err := ParseFilename(file.Name())
		if err != nil {
			skipped = append(skipped, file.Name())
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped, nil
}
