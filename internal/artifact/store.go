// Package artifact writes per-item extracted output to the local
// filesystem, addressed by item identity. Its Stat view doubles as the
// staleness check for checkpoint skips.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	contentExt     = ".md"
	diagnosticsDir = "diagnostics"
	diagnosticExt  = ".html"
)

// Store implements batch.ArtifactStore on a base directory.
type Store struct {
	baseDir string
	logger  *zap.Logger
}

// New validates the base directory (creating it when absent) and probes
// writability up front so a bad path fails the run before any remote work.
func New(baseDir string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(baseDir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, fmt.Errorf("base directory path %s is not a directory", baseDir)
		}
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	default:
		return nil, fmt.Errorf("stat base directory: %w", err)
	}

	probe := filepath.Join(baseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up write probe: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{baseDir: baseDir, logger: logger}, nil
}

// Put writes the item's primary output and returns the path.
func (s *Store) Put(ctx context.Context, id string, data []byte) (string, error) {
	return s.write(ctx, filepath.Join(s.baseDir, id+contentExt), data)
}

// Stat reports the size of the item's primary output, if present.
func (s *Store) Stat(id string) (int64, bool) {
	info, err := os.Stat(filepath.Join(s.baseDir, id+contentExt))
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}

// PutDiagnostic writes a failure snapshot next to, but apart from, the
// primary outputs so stale-artifact checks never confuse the two.
func (s *Store) PutDiagnostic(ctx context.Context, id string, data []byte) (string, error) {
	return s.write(ctx, filepath.Join(s.baseDir, diagnosticsDir, id+diagnosticExt), data)
}

func (s *Store) write(ctx context.Context, target string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	// Item identities are slugs, but guard traversal anyway.
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(target), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes base directory", target)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("create artifact dir for %s: %w", target, err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", target, err)
	}
	return target, nil
}
