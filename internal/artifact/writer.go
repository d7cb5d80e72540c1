package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

var writerTracer = otel.Tracer("foundryd.artifact.writer")

var (
	// ErrNoOutputDir indicates the writer has no directory to package into.
	ErrNoOutputDir = errors.New("no output directory configured")

	// ErrMissingRunID indicates a state without a request ID.
	ErrMissingRunID = errors.New("state has no run ID")
)

// Artifact file names inside a run's package directory.
const (
	NotebookFileName = "notebook.ipynb"
	ManifestFileName = "manifest.json"
)

// Writer packages completed runs under a base directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if dir == "" {
		return nil, ErrNoOutputDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// BuildManifest assembles the manifest for a run. The manifest always
// states the outcome: completion flag, error message, final reports, and
// the repair summary, so failed runs are as inspectable as clean ones.
func BuildManifest(state *generation.State) generation.Manifest {
	m := generation.Manifest{
		RunID:              state.Request.ID,
		Architecture:       string(state.Architecture.Pattern),
		UnitCount:          len(state.Units),
		ConstraintCount:    len(state.Constraints),
		Files:              map[string]string{},
		Reports:            append([]generation.Report(nil), state.Reports...),
		Summary:            generation.Summarize(state.Reports, state.RepairAttempts),
		GenerationComplete: state.GenerationComplete,
		ErrorMessage:       state.ErrorMessage,
		CreatedAt:          time.Now().UTC(),
	}
	if state.Design != nil {
		m.Title = state.Design.Title
	}
	return m
}

// Package renders the notebook and writes it with its manifest under
// <dir>/<run-id>/. An empty dir uses the writer's configured base. A run
// whose units cannot render still gets a manifest; the failure is recorded,
// not raised.
func (w *Writer) Package(ctx context.Context, state *generation.State, dir string) (generation.Manifest, error) {
	if state == nil || state.Request.ID == "" {
		return generation.Manifest{}, ErrMissingRunID
	}
	if err := ctx.Err(); err != nil {
		return generation.Manifest{}, err
	}
	if dir == "" {
		dir = w.dir
	}

	_, span := writerTracer.Start(ctx, "artifact.package")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", state.Request.ID),
		attribute.Int("run.units", len(state.Units)),
		attribute.Bool("run.complete", state.GenerationComplete),
	)

	runDir := filepath.Join(dir, state.Request.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return generation.Manifest{}, fmt.Errorf("creating package directory: %w", err)
	}

	manifest := BuildManifest(state)
	manifest.Files[ManifestFileName] = ManifestFileName

	data, err := Render(state.Units)
	switch {
	case err != nil:
		// Keep packaging: the manifest records what went wrong with the run.
		w.logger.Warn("notebook render skipped",
			zap.String("run_id", state.Request.ID),
			zap.Error(err))
	default:
		if err := writeFileAtomic(filepath.Join(runDir, NotebookFileName), data); err != nil {
			return generation.Manifest{}, fmt.Errorf("writing notebook: %w", err)
		}
		manifest.Files[NotebookFileName] = NotebookFileName
	}

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return generation.Manifest{}, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(runDir, ManifestFileName), append(manifestData, '\n')); err != nil {
		return generation.Manifest{}, fmt.Errorf("writing manifest: %w", err)
	}

	w.logger.Info("run packaged",
		zap.String("run_id", state.Request.ID),
		zap.String("dir", runDir),
		zap.Int("units", len(state.Units)),
		zap.Bool("complete", state.GenerationComplete))

	return manifest, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
