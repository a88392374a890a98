package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProjectFile(t *testing.T, s *Store) (*Project, int64) {
	t.Helper()
	ctx := context.Background()
	p, err := s.GetOrCreateProject(ctx, t.TempDir(), "proj")
	require.NoError(t, err)
	fileID, err := s.UpsertFile(ctx, &File{
		ProjectID: p.ID,
		Path:      "pkg/main.py",
		AbsPath:   "/abs/pkg/main.py",
		LineCount: 10,
		ModTime:   time.Now().UTC(),
	})
	require.NoError(t, err)
	return p, fileID
}

func TestGetOrCreateProject_IsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	root := t.TempDir()

	p1, err := s.GetOrCreateProject(ctx, root, "first")
	require.NoError(t, err)
	p2, err := s.GetOrCreateProject(ctx, root, "second")
	require.NoError(t, err)

	assert.Equal(t, p1.ID, p2.ID)
	assert.Equal(t, "first", p2.Name, "label is never mutated after creation")
}

func TestSaveFileBatch_AtomicAndQueryable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p, fileID := seedProjectFile(t, s)

	batch := &FileBatch{
		FileID:    fileID,
		ProjectID: p.ID,
		Classes:   []*Class{{Name: "UserService", Line: 10, Docstring: "Service.", Bases: []string{"Base"}}},
		Functions: []*Function{{Name: "main", Line: 40, Args: []string{"argv"}}},
		Methods: []*Method{{
			ClassID: -1, // bind to Classes[0]
			Name:    "get_user", Line: 12, Args: []string{"self", "uid"},
		}},
		Imports: []*Import{{Name: "os", Kind: ImportDirect, Line: 1}},
		Usages:  []*Usage{{Line: 42, Kind: UsageFunctionCall, TargetName: "main"}},
		Contents: []*CodeContent{{
			EntityKind: "class", EntityName: "UserService",
			Content: "class UserService:\n    def get_user(self, uid):\n        return uid\n",
		}},
		TreeJSON: `{"type":"Module"}`,
		TreeHash: "abc",
		ModTime:  time.Now().UTC(),
	}
	require.NoError(t, s.SaveFileBatch(ctx, batch))

	classes, err := s.SearchClasses(ctx, p.ID, "User*")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, []string{"Base"}, classes[0].Class.Bases)

	methods, err := s.SearchMethods(ctx, p.ID, "UserService")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "get_user", methods[0].Method.Name)
	assert.Equal(t, classes[0].Class.ID, methods[0].Method.ClassID)

	usages, err := s.FindUsages(ctx, p.ID, "main", "", "")
	require.NoError(t, err)
	assert.Len(t, usages, 1)
}

func TestClearFileData_PurgesDependents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p, fileID := seedProjectFile(t, s)

	require.NoError(t, s.SaveFileBatch(ctx, &FileBatch{
		FileID:    fileID,
		ProjectID: p.ID,
		Classes:   []*Class{{Name: "A", Line: 1}},
		Methods:   []*Method{{ClassID: -1, Name: "m", Line: 2}},
		Issues:    []*Issue{{Kind: IssueMissingDocstring, Message: "class A has no docstring", Line: 1}},
		TreeJSON:  "{}", TreeHash: "h", ModTime: time.Now().UTC(),
	}))
	_, err := s.AddCodeChunk(ctx, &Chunk{
		FileID: fileID, ProjectID: p.ID, SourceType: SourceClassDocstring,
		Text: "docs", BindingLevel: BindingClass, VectorID: -1,
	})
	require.NoError(t, err)

	require.NoError(t, s.ClearFileData(ctx, fileID))

	counts, err := s.FileRowCounts(ctx, fileID)
	require.NoError(t, err)
	for table, n := range counts {
		assert.Zero(t, n, "table %s should be empty", table)
	}

	outdated, err := s.IsASTOutdated(ctx, fileID, time.Now())
	require.NoError(t, err)
	assert.True(t, outdated, "snapshot purged with file data")
}

func TestIsASTOutdated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p, fileID := seedProjectFile(t, s)

	mtime := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveFileBatch(ctx, &FileBatch{
		FileID: fileID, ProjectID: p.ID,
		TreeJSON: "{}", TreeHash: "h", ModTime: mtime,
	}))

	outdated, err := s.IsASTOutdated(ctx, fileID, mtime)
	require.NoError(t, err)
	assert.False(t, outdated)

	outdated, err = s.IsASTOutdated(ctx, fileID, mtime.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, outdated)
}

func TestChunks_VectorIDLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p, fileID := seedProjectFile(t, s)

	// Given: a chunk with a vector but no vector_id
	id, err := s.AddCodeChunk(ctx, &Chunk{
		FileID: fileID, ProjectID: p.ID, SourceType: SourceComment,
		Text: "short note", BindingLevel: BindingLine,
		Model: "test-embed", Vector: []float32{0.1, 0.2}, VectorID: -1,
	})
	require.NoError(t, err)

	pending, err := s.NonVectorizedChunks(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, []float32{0.1, 0.2}, pending[0].Vector)

	// When: the worker assigns an index id
	require.NoError(t, s.UpdateChunkVectorID(ctx, id, 7, "test-embed"))

	// Then: the chunk is no longer pending and the id set reflects it
	pending, err = s.NonVectorizedChunks(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	ids, err := s.VectorIDs(ctx, Scope{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
}

func TestReassignVectorIDsDense(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p, fileID := seedProjectFile(t, s)

	// Given: chunks with sparse vector ids 3, 5, 9 (S4 scenario)
	for _, vid := range []int64{3, 5, 9} {
		_, err := s.AddCodeChunk(ctx, &Chunk{
			FileID: fileID, ProjectID: p.ID, SourceType: SourceComment,
			Text: "c", BindingLevel: BindingLine,
			Model: "m", Vector: []float32{1}, VectorID: vid,
		})
		require.NoError(t, err)
	}
	// And: one chunk without a vector that must not participate
	_, err := s.AddCodeChunk(ctx, &Chunk{
		FileID: fileID, ProjectID: p.ID, SourceType: SourceComment,
		Text: "no vector", BindingLevel: BindingLine, VectorID: -1,
	})
	require.NoError(t, err)

	// When: dense reassignment over the project scope
	n, err := s.ReassignVectorIDsDense(ctx, Scope{ProjectID: p.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	// Then: ids are exactly {0, 1, 2} in chunk-id order
	ids, err := s.VectorIDs(ctx, Scope{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, ids)

	chunks, err := s.ChunksForRebuild(ctx, Scope{ProjectID: p.ID}, false)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.EqualValues(t, i, c.VectorID)
	}
}

func TestFullTextSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p, fileID := seedProjectFile(t, s)

	require.NoError(t, s.SaveFileBatch(ctx, &FileBatch{
		FileID: fileID, ProjectID: p.ID,
		Contents: []*CodeContent{
			{EntityKind: "function", EntityName: "parse_config", Content: "def parse_config(path):\n    return yaml.load(path)\n"},
			{EntityKind: "class", EntityName: "Server", Content: "class Server:\n    pass\n", Docstring: "HTTP server wrapper."},
		},
	}))

	hits, err := s.FullTextSearch(ctx, p.ID, "parse_config", "", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "function", hits[0].EntityKind)

	// Entity-kind filter excludes the function.
	hits, err = s.FullTextSearch(ctx, p.ID, "server", "class", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Server", hits[0].EntityName)

	hits, err = s.FullTextSearch(ctx, p.ID, "nonexistent_symbol", "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSchemaVersion_RejectsIncompatible(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/code_analysis.db"

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE schema_version SET version = 999`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible")
}
