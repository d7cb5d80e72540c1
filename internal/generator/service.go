package generator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/artifact"
	"github.com/fyrsmithlabs/foundryd/internal/extraction"
	"github.com/fyrsmithlabs/foundryd/internal/generation"
	"github.com/fyrsmithlabs/foundryd/internal/pipeline"
	"github.com/fyrsmithlabs/foundryd/internal/repair"
	"github.com/fyrsmithlabs/foundryd/internal/retrieval"
	"github.com/fyrsmithlabs/foundryd/internal/validation"
)

var (
	// ErrEmptyCorpus indicates a rebuild with no cached or fetchable
	// documents.
	ErrEmptyCorpus = errors.New("corpus is empty")
)

// Config configures the generator service.
type Config struct {
	// OutputDir is the base directory for packaged runs.
	OutputDir string `koanf:"output_dir" json:"output_dir"`

	// RulesPath optionally points at a TOML validation ruleset.
	RulesPath string `koanf:"rules_path" json:"rules_path"`

	// RetrieveK is the number of snippets fetched per retrieval query.
	RetrieveK int `koanf:"retrieve_k" json:"retrieve_k"`

	// CorpusPath is the JSON document cache location.
	CorpusPath string `koanf:"corpus_path" json:"corpus_path"`

	// CorpusURLs are the documentation pages fetched when the cache is
	// missing.
	CorpusURLs []string `koanf:"corpus_urls" json:"corpus_urls"`

	// IndexPath optionally persists the retrieval index after rebuilds.
	IndexPath string `koanf:"index_path" json:"index_path"`

	// Pipeline configures the stage runner (repair bound).
	Pipeline pipeline.Config `koanf:"pipeline" json:"pipeline"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "generated"
	}
	if c.RetrieveK == 0 {
		c.RetrieveK = 4
	}
	if c.CorpusPath == "" {
		c.CorpusPath = "corpus/documents.json"
	}
	c.Pipeline.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.RetrieveK < 0 {
		return fmt.Errorf("retrieve_k must be >= 0, got %d", c.RetrieveK)
	}
	return c.Pipeline.Validate()
}

// IndexStatus reports the retrieval index state.
type IndexStatus struct {
	Ready  bool `json:"ready"`
	Chunks int  `json:"chunks"`
}

// Service runs the generation pipeline end to end.
type Service struct {
	config    Config
	extractor extraction.Extractor
	index     *retrieval.Index
	fetcher   *retrieval.Fetcher
	cache     *retrieval.Cache

	rules       validation.Rules
	static      *validation.Runner
	runtime     *validation.Runner
	coordinator *repair.Coordinator
	writer      *artifact.Writer

	runner *pipeline.Runner
	logger *zap.Logger
}

// NewService wires the pipeline. The extractor and index are injected; the
// validation runners, repair coordinator, writer, and stage runner are built
// here.
func NewService(cfg Config, extractor extraction.Extractor, index *retrieval.Index, logger *zap.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if index == nil {
		return nil, errors.New("retrieval index is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rules, err := validation.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("loading validation rules: %w", err)
	}

	writer, err := artifact.NewWriter(cfg.OutputDir, logger)
	if err != nil {
		return nil, fmt.Errorf("creating artifact writer: %w", err)
	}

	s := &Service{
		config:      cfg,
		extractor:   extractor,
		index:       index,
		fetcher:     retrieval.NewFetcher(retrieval.FetcherConfig{}, logger),
		cache:       retrieval.NewCache(cfg.CorpusPath),
		rules:       rules,
		static:      validation.NewRunner(validation.Static(rules), 0, logger),
		runtime:     validation.NewRunner(validation.Runtime(), 0, logger),
		coordinator: repair.NewCoordinator(rules, logger),
		writer:      writer,
		logger:      logger,
	}

	runner, err := pipeline.NewRunner(cfg.Pipeline, logger, s.handlers()...)
	if err != nil {
		return nil, fmt.Errorf("building pipeline runner: %w", err)
	}
	s.runner = runner
	return s, nil
}

// OnProgress forwards progress events from the pipeline runner.
func (s *Service) OnProgress(callback pipeline.ProgressCallback) {
	s.runner.OnProgress(callback)
}

// Generate runs the pipeline for one request. The state always records the
// faithful outcome; the error mirrors the state's fatal condition and is nil
// for completed runs, including best-effort completions with residual
// failures.
func (s *Service) Generate(ctx context.Context, req generation.Request) (*generation.State, error) {
	if req.ID == "" {
		req = generation.NewRequest(req.Text)
	}
	return s.runner.Run(ctx, req)
}

// Manifest returns the run manifest for a state, building one in memory for
// runs that failed before packaging.
func (s *Service) Manifest(state *generation.State) generation.Manifest {
	if state.Manifest != nil {
		return *state.Manifest
	}
	return artifact.BuildManifest(state)
}

// RebuildIndex loads the corpus (fetching and caching it when missing) and
// rebuilds the retrieval index through the copy-on-build path. Readers of
// the previous snapshot are unaffected until the swap.
func (s *Service) RebuildIndex(ctx context.Context) error {
	docs, err := s.loadCorpus(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return ErrEmptyCorpus
	}

	if err := s.index.Build(ctx, docs); err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	if s.config.IndexPath != "" {
		if err := s.index.Save(s.config.IndexPath); err != nil {
			return fmt.Errorf("persisting index: %w", err)
		}
	}
	return nil
}

// LoadIndex restores a previously saved index snapshot.
func (s *Service) LoadIndex() error {
	if s.config.IndexPath == "" {
		return fmt.Errorf("%w: no index path configured", retrieval.ErrInvalidConfig)
	}
	return s.index.Load(s.config.IndexPath)
}

// Status reports whether the index can answer queries.
func (s *Service) Status() IndexStatus {
	return IndexStatus{
		Ready:  s.index.Ready(),
		Chunks: s.index.Count(),
	}
}

// Close releases the retrieval index.
func (s *Service) Close() error {
	return s.index.Close()
}

func (s *Service) loadCorpus(ctx context.Context) ([]retrieval.Document, error) {
	if s.cache.Exists() {
		docs, err := s.cache.Load()
		if err != nil {
			return nil, fmt.Errorf("loading corpus cache: %w", err)
		}
		return docs, nil
	}

	if len(s.config.CorpusURLs) == 0 {
		return nil, fmt.Errorf("%w: no cache at %s and no corpus URLs configured", ErrEmptyCorpus, s.cache.Path())
	}
	docs, err := s.fetcher.Fetch(ctx, s.config.CorpusURLs)
	if err != nil {
		return nil, fmt.Errorf("fetching corpus: %w", err)
	}
	if len(docs) > 0 {
		if err := s.cache.Save(docs); err != nil {
			s.logger.Warn("failed to cache corpus", zap.Error(err))
		}
	}
	return docs, nil
}
