// Package filesink writes rendered documents into the output directory.
package filesink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/export"
)

// Sink writes each document to <dir>/<name>.
type Sink struct {
	dir    string
	logger *slog.Logger
}

// New creates a sink for dir. The directory is created on first write.
func New(dir string, logger *slog.Logger) *Sink {
	return &Sink{dir: dir, logger: logger}
}

func (s *Sink) Name() string { return "file" }

// Write stages every document as a temporary file before renaming any of
// them, so a failure while staging leaves earlier output untouched.
func (s *Sink) Write(ctx context.Context, b *export.Batch) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	staged := make([]string, 0, len(b.Documents))
	cleanup := func() {
		for _, p := range staged {
			_ = os.Remove(p)
		}
	}

	for _, doc := range b.Documents {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		tmp := filepath.Join(s.dir, doc.Name+".tmp")
		if err := os.WriteFile(tmp, doc.Body, 0o644); err != nil {
			cleanup()
			return fmt.Errorf("write %s: %w", doc.Name, err)
		}
		staged = append(staged, tmp)
	}

	for i, doc := range b.Documents {
		if err := os.Rename(staged[i], filepath.Join(s.dir, doc.Name)); err != nil {
			cleanup()
			return fmt.Errorf("publish %s: %w", doc.Name, err)
		}
	}

	s.logger.Info("documents written", "dir", s.dir, "count", len(b.Documents), "run_id", b.RunID)
	return nil
}
