package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Sink stores audit artifacts (result sheets and logs) under a key
type Sink interface {
	// Save stores data under name and returns the key it was stored at.
	// An existing name is never overwritten; a numeric suffix is added instead.
	Save(ctx context.Context, name string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	GetFullPath(key string) string
}

// Config contains storage configuration
type Config struct {
	BasePath string // Base directory for all stored files
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./storage",
	}
}

// Storage handles filesystem storage operations
type Storage struct {
	config Config
}

// New creates a new Storage instance
func New(config Config) (*Storage, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory: %w", err)
	}

	return &Storage{
		config: config,
	}, nil
}

// Save writes data to BasePath/name
// Returns the relative file path from the base storage directory
func (s *Storage) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(s.config.BasePath, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// Check if file already exists and make unique if necessary
	ext := filepath.Ext(filePath)
	stem := strings.TrimSuffix(filePath, ext)
	counter := 1
	for fileExists(filePath) {
		filePath = fmt.Sprintf("%s-%d%s", stem, counter, ext)
		counter++
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	// Return relative path from base storage directory
	relPath, err := filepath.Rel(s.config.BasePath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}

	return filepath.ToSlash(relPath), nil
}

// ErrInvalidName is returned for names and keys that are empty or leave the base directory
var ErrInvalidName = errors.New("invalid storage name")

// Read reads a stored file
func (s *Storage) Read(ctx context.Context, relPath string) ([]byte, error) {
	relPath, err := cleanName(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.GetFullPath(relPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return data, nil
}

// Delete deletes a stored file; deleting a missing file is not an error
func (s *Storage) Delete(ctx context.Context, relPath string) error {
	relPath, err := cleanName(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(s.GetFullPath(relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// GetFullPath returns the full filesystem path for a relative path. It does not validate;
// Read and Delete clean the path before calling it.
func (s *Storage) GetFullPath(relPath string) string {
	return filepath.Join(s.config.BasePath, filepath.FromSlash(relPath))
}

// cleanName normalizes a storage name to a relative slash path that stays inside the base
func cleanName(name string) (string, error) {
	name = path.Clean(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// contentTypeFromName returns the content type for a stored artifact
func contentTypeFromName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return "application/json"
	case ".txt", ".log":
		return "text/plain; charset=utf-8"
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

var (
	_ Sink = (*Storage)(nil)
	_ Sink = (*S3Storage)(nil)
)
