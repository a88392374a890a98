package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/chunker"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/embed"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/vector"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	store   *store.Store
	vectors *vector.Store
	worker  *Worker
	project *store.Project
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cache, err := cst.NewCache(8)
	require.NoError(t, err)

	dir := t.TempDir()
	project, err := s.GetOrCreateProject(context.Background(), dir, "test")
	require.NoError(t, err)

	breaker := cerr.NewCircuitBreaker("embed", cerr.DefaultBreakerConfig())
	embedder := embed.NewResilient(nil, 16, breaker, nil)
	ch := chunker.New(10, embedder, nil, nil)
	vectors := vector.NewStore(vector.NewFlatIndex(16), "")

	w := New(Config{ProjectID: project.ID, BatchSize: 10, PollInterval: 20 * time.Millisecond},
		s, vectors, ch, cache, nil)

	return &fixture{store: s, vectors: vectors, worker: w, project: project, dir: dir}
}

func (f *fixture) addAnalyzedFile(t *testing.T, rel, source string) int64 {
	t.Helper()
	ctx := context.Background()
	abs := filepath.Join(f.dir, rel)
	require.NoError(t, os.WriteFile(abs, []byte(source), 0o644))

	fileID, err := f.store.UpsertFile(ctx, &store.File{
		ProjectID:  f.project.ID,
		Path:       rel,
		AbsPath:    abs,
		ModTime:    time.Now().UTC(),
		NeedsChunk: true,
	})
	require.NoError(t, err)
	return fileID
}

func TestProcessOnce_ChunksAndIndexesPendingFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fileID := f.addAnalyzedFile(t, "mod.py",
		"\"\"\"A module docstring that is comfortably longer than the minimum.\"\"\"\n\ndef f():\n    return 1\n")

	result, err := f.worker.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesChunked)
	assert.GreaterOrEqual(t, result.ChunksCreated, 1)
	assert.Zero(t, result.Errors)

	// Every created chunk got a vector and an index id (invariant 1).
	total, withVector, withVectorID, err := f.store.ChunkStats(ctx, store.Scope{ProjectID: f.project.ID})
	require.NoError(t, err)
	assert.Equal(t, total, withVector)
	assert.Equal(t, total, withVectorID)

	ids, err := f.store.VectorIDs(ctx, store.Scope{ProjectID: f.project.ID})
	require.NoError(t, err)
	assert.Len(t, f.vectors.IDs(), len(ids))

	// The file is no longer pending.
	files, err := f.store.FilesNeedingChunking(ctx, f.project.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, files)

	_ = fileID
}

func TestProcessOnce_PicksUpLegacyUnindexedChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fileID := f.addAnalyzedFile(t, "mod.py", "x = 1\n")
	require.NoError(t, f.store.MarkFileChunked(ctx, fileID))

	// Given: a chunk with a vector but no vector_id (legacy data).
	vec := make([]float32, 16)
	vec[0] = 1
	_, err := f.store.AddCodeChunk(ctx, &store.Chunk{
		FileID: fileID, ProjectID: f.project.ID, SourceType: store.SourceComment,
		Text: "legacy", BindingLevel: store.BindingLine,
		Model: "m", Vector: vec, VectorID: -1,
	})
	require.NoError(t, err)

	result, err := f.worker.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksIndexed)

	pending, err := f.store.NonVectorizedChunks(ctx, f.project.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, 1, f.vectors.Stats().VectorCount)
}

func TestProcessOnce_BadFileDoesNotWedgeQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A file flagged for chunking but missing on disk.
	_, err := f.store.UpsertFile(ctx, &store.File{
		ProjectID:  f.project.ID,
		Path:       "gone.py",
		AbsPath:    filepath.Join(f.dir, "gone.py"),
		ModTime:    time.Now().UTC(),
		NeedsChunk: true,
	})
	require.NoError(t, err)

	result, err := f.worker.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errors)

	// The flag is cleared so the next pass is clean.
	files, err := f.store.FilesNeedingChunking(ctx, f.project.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
