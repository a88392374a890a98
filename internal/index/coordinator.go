// Package index coordinates the vector index with the persistent store:
// the rebuild protocol, dense id reassignment and sync checking.
package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/embed"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/vector"
)

// Coordinator owns the store↔index consistency protocols.
type Coordinator struct {
	store    *store.Store
	vectors  *vector.Store
	embedder *embed.Resilient
	backend  string
	dim      int
	logger   *slog.Logger
}

// NewCoordinator wires the collaborators. backend selects the AnnIndex
// implementation created on rebuild ("flat" or "hnsw").
func NewCoordinator(st *store.Store, vs *vector.Store, emb *embed.Resilient, backend string, dim int, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: st, vectors: vs, embedder: emb, backend: backend, dim: dim, logger: logger}
}

// RebuildResult reports a completed rebuild.
type RebuildResult struct {
	Loaded  int `json:"loaded"`
	Missing int `json:"missing"`
}

// Rebuild regenerates the vector index from authoritative vectors in the
// store for the given scope:
//
//  1. Backfill vectors for chunks that have a model but lost their vector.
//  2. Reassign vector_id densely (0..N-1, chunk-id order) in one statement.
//  3. Build a fresh index and stream every eligible chunk into it.
//  4. Flush the index to disk.
func (c *Coordinator) Rebuild(ctx context.Context, scope store.Scope) (RebuildResult, error) {
	var result RebuildResult

	// Step 1: chunks whose vector is absent get one from the provider.
	all, err := c.store.ChunksForRebuild(ctx, scope, true)
	if err != nil {
		return result, cerr.Wrap(cerr.CodeRebuildFaissError, err)
	}
	for _, chunk := range all {
		if ctx.Err() != nil {
			return result, cerr.Wrap(cerr.CodeRebuildFaissError, ctx.Err())
		}
		if chunk.Vector != nil || chunk.Model == "" {
			continue
		}
		res, err := c.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			c.logger.Warn("rebuild_embed_failed",
				slog.Int64("chunk_id", chunk.ID), slog.String("error", err.Error()))
			result.Missing++
			continue
		}
		if err := c.store.UpdateChunkVector(ctx, chunk.ID, res.Vector, res.Model); err != nil {
			return result, cerr.Wrap(cerr.CodeRebuildFaissError, err)
		}
	}

	// Step 2: dense id reassignment, one statement for the whole scope.
	if _, err := c.store.ReassignVectorIDsDense(ctx, scope); err != nil {
		return result, cerr.Wrap(cerr.CodeRebuildFaissError, err)
	}

	// Step 3: fresh index, stream eligible chunks in id order.
	backend, err := vector.NewBackend(c.backend, c.dim)
	if err != nil {
		return result, cerr.Wrap(cerr.CodeRebuildFaissError, err)
	}
	chunks, err := c.store.ChunksForRebuild(ctx, scope, false)
	if err != nil {
		return result, cerr.Wrap(cerr.CodeRebuildFaissError, err)
	}
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return result, cerr.Wrap(cerr.CodeRebuildFaissError, ctx.Err())
		}
		if chunk.VectorID < 0 {
			result.Missing++
			continue
		}
		if len(chunk.Vector) != c.dim {
			c.logger.Warn("rebuild_dimension_mismatch",
				slog.Int64("chunk_id", chunk.ID),
				slog.Int("got", len(chunk.Vector)), slog.Int("want", c.dim))
			result.Missing++
			continue
		}
		if _, err := backend.Add(chunk.Vector, chunk.VectorID); err != nil {
			return result, cerr.Wrap(cerr.CodeRebuildFaissError, err)
		}
		result.Loaded++
	}

	c.vectors.Replace(backend)

	// Step 4: flush to disk.
	if err := c.vectors.Flush(); err != nil {
		return result, cerr.Wrap(cerr.CodeRebuildFaissError, err)
	}

	c.logger.Info("faiss_rebuild_complete",
		slog.String("project_id", scope.ProjectID),
		slog.String("dataset_id", scope.DatasetID),
		slog.Int("loaded", result.Loaded),
		slog.Int("missing", result.Missing))
	return result, nil
}

// CheckSync verifies that the vector_id set in the store equals the id set
// in the index for a scope.
func (c *Coordinator) CheckSync(ctx context.Context, scope store.Scope) (vector.SyncReport, error) {
	storeIDs, err := c.store.VectorIDs(ctx, scope)
	if err != nil {
		return vector.SyncReport{}, fmt.Errorf("load store ids: %w", err)
	}
	return vector.CompareIDSets(storeIDs, c.vectors.IDs(), 10), nil
}
