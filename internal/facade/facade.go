// Package facade exposes the stateless operations the external transports
// call: analysis, structural and semantic search, CST listing/querying,
// patch composition and the vector pipeline commands.
//
// Every operation returns a typed success payload or a typed error payload
// with a stable wire code.
package facade

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/analyzer"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/chunker"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/config"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/embed"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/index"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/scanner"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/vector"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/worker"
)

// Facade bundles the process-wide singletons (store, vector index, embedder)
// behind the operation surface. It is created once at startup and passed to
// the transports explicitly.
type Facade struct {
	cfg         *config.Config
	store       *store.Store
	vectors     *vector.Store
	embedder    *embed.Resilient
	chunker     *chunker.Chunker
	analyzer    *analyzer.Analyzer
	coordinator *index.Coordinator
	cache       *cst.Cache
	rootDir     string
	logger      *slog.Logger
}

// Options configures New beyond the config document.
type Options struct {
	RootDir string
	Logger  *slog.Logger
}

// New wires the full core from configuration. The embedding provider is
// optional; without it (or during outages) the deterministic fallback keeps
// the pipeline moving.
func New(cfg *config.Config, opts Options) (*Facade, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(cfg.CodeAnalysis.DatabasePath)
	if err != nil {
		return nil, err
	}

	cache, err := cst.NewCache(cst.DefaultCacheSize)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	dim := cfg.CodeAnalysis.VectorDim
	var primary embed.Provider
	var external embed.Chunker
	if cfg.CodeAnalysis.Embedding.Enabled && cfg.CodeAnalysis.Embedding.URL != "" {
		httpProvider := embed.NewHTTPProvider(embed.HTTPConfig{
			URL:        cfg.CodeAnalysis.Embedding.URL,
			Model:      cfg.CodeAnalysis.Embedding.Model,
			Dimensions: dim,
			Timeout:    config.BreakerDuration(cfg.CodeAnalysis.Embedding.TimeoutSeconds),
		})
		primary = httpProvider
		if cfg.CodeAnalysis.Chunker.Enabled {
			external = httpProvider
		}
	}

	bc := cfg.CodeAnalysis.Worker.CircuitBreaker
	breaker := cerr.NewCircuitBreaker("embedding", cerr.BreakerConfig{
		FailureThreshold:  bc.FailureThreshold,
		RecoveryTimeout:   config.BreakerDuration(bc.RecoveryTimeout),
		SuccessThreshold:  bc.SuccessThreshold,
		InitialBackoff:    config.BreakerDuration(bc.InitialBackoff),
		MaxBackoff:        config.BreakerDuration(bc.MaxBackoff),
		BackoffMultiplier: bc.BackoffMultiplier,
	})
	embedder := embed.NewResilient(primary, dim, breaker, logger)

	var vectors *vector.Store
	if dim > 0 {
		backend, err := vector.NewBackend(cfg.CodeAnalysis.IndexBackend, dim)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		vectors = vector.NewStore(backend, cfg.CodeAnalysis.FaissIndexPath)
		if scanner.Exists(cfg.CodeAnalysis.FaissIndexPath) {
			if err := vectors.LoadFromDisk(); err != nil {
				// Corrupt index: start empty, a rebuild restores it.
				logger.Warn("vector_index_load_failed", slog.String("error", err.Error()))
				fresh, _ := vector.NewBackend(cfg.CodeAnalysis.IndexBackend, dim)
				vectors.Replace(fresh)
			}
		}
	} else {
		vectors = vector.NewStore(vector.NewFlatIndex(0), "")
	}

	f := &Facade{
		cfg:      cfg,
		store:    st,
		vectors:  vectors,
		embedder: embedder,
		chunker:  chunker.New(cfg.CodeAnalysis.MinChunkLength, embedder, external, logger),
		analyzer: analyzer.New(st, cache, cfg.CodeAnalysis.MaxFileLines, logger),
		cache:    cache,
		rootDir:  opts.RootDir,
		logger:   logger,
	}
	f.coordinator = index.NewCoordinator(st, vectors, embedder, cfg.CodeAnalysis.IndexBackend, dim, logger)
	return f, nil
}

// Close flushes the vector index and closes the store.
func (f *Facade) Close() error {
	if err := f.vectors.Flush(); err != nil {
		f.logger.Warn("vector_index_flush_failed", slog.String("error", err.Error()))
	}
	return f.store.Close()
}

// Store exposes the store to the transports (status commands).
func (f *Facade) Store() *store.Store { return f.store }

// Vectors exposes the vector store (status commands).
func (f *Facade) Vectors() *vector.Store { return f.vectors }

// NewWorker builds the background vectorization worker for a project.
func (f *Facade) NewWorker(projectID string) *worker.Worker {
	wc := f.cfg.CodeAnalysis.Worker
	return worker.New(worker.Config{
		ProjectID:    projectID,
		BatchSize:    wc.BatchSize,
		PollInterval: wc.PollInterval(),
		Retry: cerr.RetryConfig{
			Attempts: f.cfg.CodeAnalysis.VectorizationRetryAttempts,
			Delay:    config.BreakerDuration(f.cfg.CodeAnalysis.VectorizationRetryDelay),
		},
	}, f.store, f.vectors, f.chunker, f.cache, f.logger)
}

// Project resolves (creating if needed) the project for the facade root.
func (f *Facade) Project(ctx context.Context) (*store.Project, error) {
	if f.rootDir == "" {
		return nil, cerr.New(cerr.CodeProjectNotFound, "no project root configured")
	}
	return f.store.GetOrCreateProject(ctx, f.rootDir, "")
}

// AnalyzeOptions tunes project analysis.
type AnalyzeOptions struct {
	Force    bool
	Dataset  string
	Progress func(done, total int, path string)
}

// AnalyzeStats summarizes a project analysis run.
type AnalyzeStats struct {
	ProjectID string `json:"project_id"`
	Files     int    `json:"files"`
	Skipped   int    `json:"skipped"`
	Classes   int    `json:"classes"`
	Functions int    `json:"functions"`
	Methods   int    `json:"methods"`
	Issues    int    `json:"issues"`
	Errors    int    `json:"errors"`
}

// Analyze walks a project tree and analyzes every Python file. Per-file
// failures are recorded and counted, never propagated, so batch analysis
// keeps moving. The loop checks ctx between files so long runs stay
// cancellable.
func (f *Facade) Analyze(ctx context.Context, rootDir string, opts AnalyzeOptions) (*AnalyzeStats, error) {
	if rootDir == "" {
		rootDir = f.rootDir
	}
	if !scanner.Exists(rootDir) {
		return nil, cerr.Newf(cerr.CodeFileNotFound, "root directory not found: %s", rootDir)
	}

	project, err := f.store.GetOrCreateProject(ctx, rootDir, "")
	if err != nil {
		return nil, err
	}

	files, err := scanner.Scan(rootDir)
	if err != nil {
		return nil, err
	}

	stats := &AnalyzeStats{ProjectID: project.ID}
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if opts.Progress != nil {
			opts.Progress(i, len(files), file.RelPath)
		}

		result, err := f.analyzer.AnalyzeFile(ctx, project, file.AbsPath, file.RelPath, opts.Force, opts.Dataset)
		if err != nil {
			stats.Errors++
			f.logger.Warn("analyze_file_failed",
				slog.String("path", file.RelPath), slog.String("error", err.Error()))
			continue
		}
		stats.Files++
		if result.Skipped {
			stats.Skipped++
			continue
		}
		stats.Classes += result.Classes
		stats.Functions += result.Functions
		stats.Methods += result.Methods
		stats.Issues += result.Issues
	}

	f.logger.Info("analyze_complete",
		slog.String("project_id", project.ID),
		slog.Int("files", stats.Files),
		slog.Int("issues", stats.Issues),
		slog.Int("errors", stats.Errors))
	return stats, nil
}

// validateSourcePath checks the target exists and is a Python file.
func validateSourcePath(path string) error {
	if !scanner.IsPythonFile(path) {
		return cerr.Newf(cerr.CodeInvalidFile, "not a Python source file: %s", path)
	}
	if !scanner.Exists(path) {
		return cerr.Newf(cerr.CodeFileNotFound, "file not found: %s", path)
	}
	return nil
}

// resolvePath makes relative paths project-root relative.
func (f *Facade) resolvePath(path string) string {
	if filepath.IsAbs(path) || f.rootDir == "" {
		return path
	}
	return filepath.Join(f.rootDir, path)
}
