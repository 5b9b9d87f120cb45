// Package storage archives pre-augmentation HTML snapshots so any
// document the pipeline mutates can be recovered.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Config contains storage configuration
type Config struct {
	BasePath string // Base directory for all snapshot files
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./storage",
	}
}

// Storage handles filesystem snapshot operations
type Storage struct {
	config Config
	now    func() time.Time
}

// New creates a new Storage instance
func New(config Config) (*Storage, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory: %w", err)
	}

	return &Storage{
		config: config,
		now:    time.Now,
	}, nil
}

// SaveSnapshot writes one revision of a post's HTML under
// snapshots/YYYY/MM/<postID>-<timestamp>.html and returns the relative
// path from the base storage directory.
func (s *Storage) SaveSnapshot(postID string, content []byte) (string, error) {
	now := s.now()
	dirPath := filepath.Join(s.config.BasePath, "snapshots",
		fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())))

	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%d.html", sanitizeID(postID), now.UnixNano())
	filePath := filepath.Join(dirPath, filename)

	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot file: %w", err)
	}

	relPath, err := filepath.Rel(s.config.BasePath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}

	return relPath, nil
}

// ReadSnapshot reads a snapshot by its relative path.
func (s *Storage) ReadSnapshot(relPath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.config.BasePath, relPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	return data, nil
}

// ListSnapshots returns the relative paths of all snapshots stored for a
// post, oldest first.
func (s *Storage) ListSnapshots(postID string) ([]string, error) {
	prefix := sanitizeID(postID) + "-"
	root := filepath.Join(s.config.BasePath, "snapshots")

	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasPrefix(info.Name(), prefix) {
			return nil
		}
		relPath, relErr := filepath.Rel(s.config.BasePath, path)
		if relErr != nil {
			return relErr
		}
		paths = append(paths, relPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// DeleteSnapshot removes a snapshot. Missing files are not an error.
func (s *Storage) DeleteSnapshot(relPath string) error {
	fullPath := filepath.Join(s.config.BasePath, relPath)

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}

	return nil
}

// sanitizeID makes a post ID safe to embed in a filename.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, id)
}
