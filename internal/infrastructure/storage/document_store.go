// Package storage keeps files uploaded for customer projects on the local
// filesystem.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/port"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)

// LocalDocumentStore implements port.DocumentStorage under baseDir
type LocalDocumentStore struct {
	baseDir string
	logger  *zap.Logger
}

var _ port.DocumentStorage = (*LocalDocumentStore)(nil)

// NewLocalDocumentStore creates a store rooted at baseDir
func NewLocalDocumentStore(baseDir string, logger *zap.Logger) *LocalDocumentStore {
	return &LocalDocumentStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes content under the project's folder with a unique prefix and
// returns the slash-separated path relative to the store root
func (s *LocalDocumentStore) Save(ctx context.Context, projectID int64, filename string, content io.Reader) (string, error) {
	name := SanitizeName(filename)
	if name == "" {
		return "", fmt.Errorf("cannot store document: unusable file name %q", filename)
	}

	rel := fmt.Sprintf("project-%d/%s-%s", projectID, uuid.NewString()[:8], name)
	fullPath := s.fullPath(rel)
	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		s.logger.Error("Failed to create document folder",
			zap.Int64("project_id", projectID),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	written, copyErr := io.Copy(f, content)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(fullPath)
		if copyErr == nil {
			copyErr = closeErr
		}
		s.logger.Error("Failed to write document",
			zap.String("path", fullPath),
			zap.Error(copyErr))
		return "", fmt.Errorf("failed to write file: %w", copyErr)
	}

	s.logger.Info("Document stored",
		zap.Int64("project_id", projectID),
		zap.String("path", rel),
		zap.Int64("size", written))

	return rel, nil
}

// Delete removes a stored document. Missing files are not an error.
func (s *LocalDocumentStore) Delete(ctx context.Context, rel string) error {
	fullPath := s.fullPath(rel)
	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete document",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// FileSystem exposes the stored documents for download
func (s *LocalDocumentStore) FileSystem() http.FileSystem {
	return http.Dir(s.baseDir)
}

func (s *LocalDocumentStore) fullPath(rel string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(rel))
}

// validatePath checks that the path stays within baseDir
func (s *LocalDocumentStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}
	return nil
}

// SanitizeName returns a filesystem-safe version of an uploaded file name.
// Directory parts are dropped and only letters, digits, dot, dash and
// underscore are kept.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = name[strings.LastIndex(name, "/")+1:]
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	return name
}
