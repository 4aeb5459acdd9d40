package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"taxkit/internal/logger"
	"taxkit/pkg/services"
)

// FileSystemStore keeps artifacts below a base directory. Keys are slash
// separated paths relative to that directory.
type FileSystemStore struct {
	basePath string
	log      zerolog.Logger
}

var _ services.ArtifactStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates the base directory if needed.
func NewFileSystemStore(basePath string) (*FileSystemStore, error) {
	const op = "NewFileSystemStore"

	if basePath == "" {
		return nil, fmt.Errorf("%s: %w: base path is required", op, ErrMissingConfig)
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("%s: failed to create storage directory %s: %w", op, basePath, err)
	}

	return &FileSystemStore{
		basePath: basePath,
		log:      logger.WithComponent("artifact-fs"),
	}, nil
}

// Put writes data to key, replacing an existing file.
func (s *FileSystemStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	const op = "Put"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	path, err := s.resolve(key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%s: failed to create directory: %w", op, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%s: failed to write %s: %w", op, key, err)
	}

	s.log.Debug().Str("key", key).Int("size", len(data)).Msg("Artifact stored")
	return nil
}

// Get opens the artifact at key. A missing file yields services.ErrNotFound.
func (s *FileSystemStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	const op = "Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	path, err := s.resolve(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %s: %w", op, key, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, key, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *FileSystemStore) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		s.log.Warn().Str("key", key).Msg("Blocked invalid artifact key")
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}
