package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nemanja-m/ccrender/internal/render/core"
)

const tempPrefix = ".ccrender-"

// LocalArtifactStore writes artifacts into a directory on the local filesystem.
type LocalArtifactStore struct {
	dir       string
	chunkSize int
}

func NewLocalArtifactStore(dir string, chunkSize int) (*LocalArtifactStore, error) {
	if dir == "" {
		dir = "."
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact dir: %w", err)
	}
	return &LocalArtifactStore{dir: abs, chunkSize: chunkSize}, nil
}

// Put streams r to {dir}/{name}. Data goes to a temporary file first and is renamed
// into place, so a failed download never leaves a truncated artifact behind.
func (s *LocalArtifactStore) Put(ctx context.Context, name string, r io.Reader) (core.Artifact, error) {
	if name == "" || name != filepath.Base(name) {
		return core.Artifact{}, fmt.Errorf("invalid artifact name %q", name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return core.Artifact{}, fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*.tmp")
	if err != nil {
		return core.Artifact{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	// Hide *os.File's ReadFrom so the copy honors the configured chunk size.
	buf := make([]byte, s.chunkSize)
	size, err := io.CopyBuffer(struct{ io.Writer }{tmp}, &contextReader{ctx: ctx, r: r}, buf)
	if err != nil {
		tmp.Close()
		return core.Artifact{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return core.Artifact{}, fmt.Errorf("close %s: %w", name, err)
	}

	dest := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return core.Artifact{}, fmt.Errorf("rename %s: %w", name, err)
	}

	return core.Artifact{Name: name, Location: dest, Size: size}, nil
}

// List returns artifact names relative to the store directory that match pattern.
// An empty pattern matches everything.
func (s *LocalArtifactStore) List(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", doublestar.ErrBadPattern, pattern)
	}
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	matches, err := doublestar.Glob(os.DirFS(s.dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), tempPrefix) {
			continue
		}
		names = append(names, m)
	}
	sort.Strings(names)
	return names, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
