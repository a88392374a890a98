// Package worker runs the background vectorization loop: it picks up files
// that need chunking, obtains embeddings, inserts vectors into the ANN index
// and writes assigned ids back to the store.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/chunker"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/vector"
)

// Config tunes the worker loop.
type Config struct {
	ProjectID    string
	BatchSize    int
	PollInterval time.Duration
	// Retry governs transient index-add failures per chunk.
	Retry cerr.RetryConfig
}

// Worker is the long-lived cooperative vectorization task. It never runs in
// parallel with itself; the store and index mutexes serialize it against the
// request facade.
type Worker struct {
	cfg     Config
	store   *store.Store
	vectors *vector.Store
	chunker *chunker.Chunker
	cache   *cst.Cache
	logger  *slog.Logger
}

// New creates a worker.
func New(cfg Config, st *store.Store, vs *vector.Store, ch *chunker.Chunker, cache *cst.Cache, logger *slog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = cerr.DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{cfg: cfg, store: st, vectors: vs, chunker: ch, cache: cache, logger: logger}
}

// Run loops until ctx is cancelled, processing one batch per poll interval.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("worker_batch_failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// BatchResult summarizes one worker pass.
type BatchResult struct {
	FilesChunked   int
	ChunksCreated  int
	ChunksIndexed  int
	Errors         int
}

// ProcessOnce runs one iteration of the loop body: chunk pending files,
// index pending chunks, flush the index.
func (w *Worker) ProcessOnce(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	// 1. Files that need chunking.
	files, err := w.store.FilesNeedingChunking(ctx, w.cfg.ProjectID, w.cfg.BatchSize)
	if err != nil {
		return result, err
	}
	for _, file := range files {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		created, err := w.chunkFile(ctx, file)
		if err != nil {
			result.Errors++
			w.logger.Warn("worker_chunk_file_failed",
				slog.String("path", file.Path), slog.String("error", err.Error()))
			// Clear the flag anyway so one bad file cannot wedge the queue.
			_ = w.store.MarkFileChunked(ctx, file.ID)
			continue
		}
		result.FilesChunked++
		result.ChunksCreated += created
	}

	// 2. Chunks with vectors but no index id.
	pending, err := w.store.NonVectorizedChunks(ctx, w.cfg.ProjectID, w.cfg.BatchSize)
	if err != nil {
		return result, err
	}
	for _, chunk := range pending {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		var id int64
		err := cerr.Retry(ctx, w.cfg.Retry, func() error {
			var addErr error
			id, addErr = w.vectors.Add(chunk.Vector, -1)
			return addErr
		})
		if err != nil {
			result.Errors++
			w.logger.Warn("worker_index_add_failed",
				slog.Int64("chunk_id", chunk.ID), slog.String("error", err.Error()))
			continue
		}
		if err := w.store.UpdateChunkVectorID(ctx, chunk.ID, id, chunk.Model); err != nil {
			return result, err
		}
		result.ChunksIndexed++
	}

	// 3. Persist the index.
	if result.ChunksIndexed > 0 {
		if err := w.vectors.Flush(); err != nil {
			return result, err
		}
	}
	return result, nil
}

// chunkFile parses one file, runs the chunker and persists the chunk rows.
// Chunks that arrive with inline embeddings are indexed in the same step.
func (w *Worker) chunkFile(ctx context.Context, file *store.File) (int, error) {
	tree, err := w.cache.ParseFile(ctx, file.AbsPath)
	if err != nil {
		return 0, err
	}
	owners, err := w.store.FileEntityIndex(ctx, file.ID)
	if err != nil {
		return 0, err
	}

	chunks, err := w.chunker.ProcessFile(ctx, tree, file.ID, file.ProjectID, file.DatasetID, owners)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, chunk := range chunks {
		if _, err := w.store.AddCodeChunk(ctx, chunk); err != nil {
			return created, err
		}
		created++

		if chunk.Vector != nil {
			id, err := w.vectors.Add(chunk.Vector, -1)
			if err != nil {
				w.logger.Warn("worker_index_add_failed",
					slog.Int64("chunk_id", chunk.ID), slog.String("error", err.Error()))
				continue
			}
			if err := w.store.UpdateChunkVectorID(ctx, chunk.ID, id, chunk.Model); err != nil {
				return created, err
			}
		}
	}

	if err := w.store.MarkFileChunked(ctx, file.ID); err != nil {
		return created, err
	}
	if created > 0 {
		if err := w.vectors.Flush(); err != nil {
			return created, err
		}
	}
	return created, nil
}
