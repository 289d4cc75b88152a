package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/amazonking-dev/avature-ats-scraper/internal/models"
)

// JobSink persists the final job list of a run
type JobSink interface {
	Save(ctx context.Context, jobs []models.NormalizedJob) error
}

// JSONSink writes jobs as an indented JSON array
type JSONSink struct {
	path   string
	logger *zap.Logger
}

var _ JobSink = (*JSONSink)(nil)

func NewJSONSink(path string, logger *zap.Logger) *JSONSink {
	return &JSONSink{path: path, logger: logger}
}

func (s *JSONSink) Path() string {
	return s.path
}

// Save replaces the file atomically through a temp file and rename, so an
// interrupted run never leaves a truncated file behind. An empty job list
// writes nothing.
func (s *JSONSink) Save(ctx context.Context, jobs []models.NormalizedJob) error {
	if len(jobs) == 0 {
		s.logger.Warn("no jobs to save")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jobs); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode jobs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	s.logger.Info("saved jobs", zap.Int("jobs", len(jobs)), zap.String("path", s.path))
	return nil
}
