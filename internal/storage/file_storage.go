// Package storage keeps uploaded field files on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidPath is returned for references that resolve outside the base directory.
var ErrInvalidPath = errors.New("invalid file path")

// StoredFile describes a saved upload.
type StoredFile struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
}

// FileStorage defines the file operations the upload endpoints need.
type FileStorage interface {
	// Save stores content under a unique name derived from originalName.
	Save(originalName string, content io.Reader) (*StoredFile, error)
	// Delete removes the file behind a public URL. A missing file is not an error.
	Delete(fileURL string) error
	// ValidatePath checks that fullPath stays within the base directory.
	ValidatePath(fullPath string) error
	BaseDir() string
	PublicPrefix() string
}

// LocalFileStorage implements FileStorage for the local filesystem.
type LocalFileStorage struct {
	baseDir      string
	publicPrefix string
	logger       *zap.Logger
}

func NewLocalFileStorage(baseDir, publicPrefix string, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{
		baseDir:      baseDir,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		logger:       logger,
	}
}

func (s *LocalFileStorage) BaseDir() string      { return s.baseDir }
func (s *LocalFileStorage) PublicPrefix() string { return s.publicPrefix }

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName strips directories and replaces characters unsafe in file names.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > 100 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}
	return name
}

func (s *LocalFileStorage) Save(originalName string, content io.Reader) (*StoredFile, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		s.logger.Error("Failed to create upload directory",
			zap.String("path", s.baseDir),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	name := uuid.NewString() + "-" + SanitizeName(originalName)
	fullPath := filepath.Join(s.baseDir, name)
	if err := s.ValidatePath(fullPath); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(fullPath)
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved successfully",
		zap.String("path", fullPath),
		zap.Int64("size", n))

	return &StoredFile{FileName: name, FileURL: s.publicPrefix + "/" + name}, nil
}

// pathFor maps a public URL (or bare file name) to a path under baseDir.
func (s *LocalFileStorage) pathFor(fileURL string) (string, error) {
	ref := strings.TrimSpace(fileURL)
	if ref == "" {
		return "", ErrInvalidPath
	}
	ref = strings.TrimPrefix(ref, s.publicPrefix+"/")
	if strings.Contains(ref, "/") || strings.Contains(ref, "\\") || path.Clean(ref) != ref || ref == ".." {
		return "", ErrInvalidPath
	}
	fullPath := filepath.Join(s.baseDir, ref)
	if err := s.ValidatePath(fullPath); err != nil {
		return "", err
	}
	return fullPath, nil
}

func (s *LocalFileStorage) Delete(fileURL string) error {
	fullPath, err := s.pathFor(fileURL)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	s.logger.Debug("File deleted", zap.String("path", fullPath))
	return nil
}

// ValidatePath checks that the path is safe and within baseDir.
func (s *LocalFileStorage) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrInvalidPath, fullPath)
	}
	return nil
}
