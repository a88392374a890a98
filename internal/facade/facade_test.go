package facade

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/config"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cstpatch"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
)

const s1Source = `class A:
    def m(self) -> int:
        return 1

def f() -> int:
    return 1
`

func newTestFacade(t *testing.T) (*Facade, string) {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.CodeAnalysis.DatabasePath = "" // in-memory
	cfg.CodeAnalysis.VectorDim = 16
	cfg.CodeAnalysis.FaissIndexPath = ""
	cfg.CodeAnalysis.MinChunkLength = 10

	f, err := New(cfg, Options{RootDir: root})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, root
}

func writeSource(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return abs
}

// S1: list blocks, then replace a method body via node_id.
func TestScenario_ListThenReplaceMethod(t *testing.T) {
	f, root := newTestFacade(t)
	ctx := context.Background()
	abs := writeSource(t, root, "mod.py", s1Source)

	blocks, err := f.ListCSTBlocks(ctx, abs)
	require.NoError(t, err)

	ids := make([]string, 0, len(blocks.Blocks))
	for _, b := range blocks.Blocks {
		ids = append(ids, b.BlockID)
	}
	assert.ElementsMatch(t, []string{"function:f:5-6", "class:A:1-3", "method:A.m:2-3"}, ids)

	query, err := f.QueryCST(ctx, abs, `method[qualname="A.m"]`, false, 0)
	require.NoError(t, err)
	require.Len(t, query.Matches, 1)

	result, err := f.ComposeCSTModule(ctx, abs, []cstpatch.Op{{
		Replace: &cstpatch.ReplaceOp{
			Selector: cstpatch.Selector{Kind: cstpatch.SelectorNodeID, NodeID: query.Matches[0].NodeID},
			NewCode:  "def m(self) -> int:\n    return 2\n",
		},
	}}, ComposeOptions{Apply: true, ReturnSource: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.Replaced)
	assert.Contains(t, result.Source, "return 2")

	onDisk, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Contains(t, string(onDisk), "return 2")
}

// S2: first-return replacement via cst_query selector.
func TestScenario_FirstReturnViaQuery(t *testing.T) {
	f, root := newTestFacade(t)
	ctx := context.Background()
	abs := writeSource(t, root, "g.py", "def f(x):\n    y = x + 1\n    return y\n")

	result, err := f.ComposeCSTModule(ctx, abs, []cstpatch.Op{{
		Replace: &cstpatch.ReplaceOp{
			Selector: cstpatch.Selector{Kind: cstpatch.SelectorQuery, Query: `smallstmt[type="Return"]:first`},
			NewCode:  "return 123",
		},
	}}, ComposeOptions{Apply: true, ReturnSource: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.Replaced)
	assert.Contains(t, result.Source, "return 123")

	// The result still parses (re-query works).
	query, err := f.QueryCST(ctx, abs, `smallstmt[type="Return"]`, true, 0)
	require.NoError(t, err)
	require.Len(t, query.Matches, 1)
	assert.Equal(t, "return 123", query.Matches[0].Code)
}

// S3: selector on unicode identifiers round-trips the name.
func TestScenario_UnicodeSelector(t *testing.T) {
	f, root := newTestFacade(t)
	ctx := context.Background()
	abs := writeSource(t, root, "u.py", "def тест():\n    pass\n")

	query, err := f.QueryCST(ctx, abs, `function[name='тест']`, false, 0)
	require.NoError(t, err)
	require.Len(t, query.Matches, 1)
	assert.Equal(t, "тест", query.Matches[0].Name)
}

// S6: a failing op leaves the file bytes untouched and makes no backup.
func TestScenario_PatchAtomicity(t *testing.T) {
	f, root := newTestFacade(t)
	ctx := context.Background()
	abs := writeSource(t, root, "a.py", s1Source)

	_, err := f.ComposeCSTModule(ctx, abs, []cstpatch.Op{{
		Replace: &cstpatch.ReplaceOp{
			Selector: cstpatch.Selector{Kind: cstpatch.SelectorQuery, Query: `smallstmt[type="Return"]:first`},
			NewCode:  "return ((",
		},
	}}, ComposeOptions{Apply: true, CreateBackup: true})
	require.Error(t, err)
	assert.Equal(t, cerr.CodeCSTModulePatchError, cerr.GetCode(err))

	onDisk, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, s1Source, string(onDisk), "file bytes unchanged")

	_, statErr := os.Stat(filepath.Join(root, cstpatch.BackupDirName))
	assert.True(t, os.IsNotExist(statErr), "no backup directory created")
}

func TestAnalyzeThenSearch(t *testing.T) {
	f, root := newTestFacade(t)
	ctx := context.Background()
	writeSource(t, root, "svc.py", `"""Service."""

class UserService:
    """Manages users."""

    def get_user(self, uid):
        """Load a user by id."""
        return uid

def main():
    """Run."""
    UserService().get_user(1)
`)

	stats, err := f.Analyze(ctx, root, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Classes)

	classes, err := f.SearchClasses(ctx, "User*")
	require.NoError(t, err)
	require.Len(t, classes, 1)

	methods, err := f.SearchMethods(ctx, "UserService")
	require.NoError(t, err)
	require.Len(t, methods, 1)

	hits, err := f.FullTextSearch(ctx, "get_user", "", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)

	usages, err := f.FindUsages(ctx, "get_user", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, usages)
}

func TestSemanticSearch_EndToEnd(t *testing.T) {
	f, root := newTestFacade(t)
	ctx := context.Background()
	writeSource(t, root, "doc.py", `"""Handles database connection pooling and retry logic for the service."""

def connect():
    """Open a pooled database connection with exponential backoff."""
    return None
`)

	_, err := f.Analyze(ctx, root, AnalyzeOptions{})
	require.NoError(t, err)

	// Run the vectorization worker to chunk + embed + index.
	project, err := f.Project(ctx)
	require.NoError(t, err)
	w := f.NewWorker(project.ID)
	_, err = w.ProcessOnce(ctx)
	require.NoError(t, err)

	hits, err := f.SemanticSearch(ctx, "database connection pooling", SemanticOptions{K: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.True(t, hits[0].Approximate, "hash fallback vectors are flagged approximate")
	assert.Equal(t, "doc.py", hits[0].FilePath)

	// Post-filter by source type.
	hits, err = f.SemanticSearch(ctx, "database connection pooling", SemanticOptions{
		K: 5, SourceType: string(store.SourceFileDocstring),
	})
	require.NoError(t, err)
	for _, h := range hits {
		assert.Equal(t, string(store.SourceFileDocstring), h.SourceType)
	}
}

func TestSemanticSearch_EmptyIndexIsEmptyResult(t *testing.T) {
	f, _ := newTestFacade(t)
	hits, err := f.SemanticSearch(context.Background(), "anything", SemanticOptions{K: 5})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSemanticSearch_RequiresVectorDim(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.CodeAnalysis.DatabasePath = ""
	cfg.CodeAnalysis.FaissIndexPath = ""

	f, err := New(cfg, Options{RootDir: root})
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	_, err = f.SemanticSearch(context.Background(), "q", SemanticOptions{})
	require.Error(t, err)
	assert.Equal(t, cerr.CodeInvalidConfig, cerr.GetCode(err))
}

// S4: rebuild produces dense vector ids and a matching index.
func TestScenario_RebuildDenseness(t *testing.T) {
	f, root := newTestFacade(t)
	ctx := context.Background()
	writeSource(t, root, "m.py", "x = 1\n")

	_, err := f.Analyze(ctx, root, AnalyzeOptions{})
	require.NoError(t, err)
	project, err := f.Project(ctx)
	require.NoError(t, err)

	fileRow, err := f.store.GetFileByPath(ctx, project.ID, "m.py")
	require.NoError(t, err)
	require.NotNil(t, fileRow)

	vec := make([]float32, 16)
	vec[0] = 1
	for _, vid := range []int64{3, 5, 9} {
		_, err := f.store.AddCodeChunk(ctx, &store.Chunk{
			FileID: fileRow.ID, ProjectID: project.ID,
			SourceType: store.SourceComment, Text: "c", BindingLevel: store.BindingLine,
			Model: "m", Vector: vec, VectorID: vid,
		})
		require.NoError(t, err)
	}

	result, err := f.RebuildFaiss(ctx, project.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Vectors)

	ids, err := f.store.VectorIDs(ctx, store.Scope{ProjectID: project.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, ids)
	assert.Equal(t, 3, f.vectors.Stats().VectorCount)

	report, err := f.CheckIndexSync(ctx, project.ID, "")
	require.NoError(t, err)
	assert.True(t, report.InSync)
}

func TestRebuildFaiss_UnknownProject(t *testing.T) {
	f, _ := newTestFacade(t)
	_, err := f.RebuildFaiss(context.Background(), "no-such-project", "")
	require.Error(t, err)
	assert.Equal(t, cerr.CodeProjectNotFound, cerr.GetCode(err))
}

func TestRevectorize_AllFiles(t *testing.T) {
	f, root := newTestFacade(t)
	ctx := context.Background()
	writeSource(t, root, "d.py", `"""A docstring comfortably above the minimum chunk length."""
x = 1
`)

	_, err := f.Analyze(ctx, root, AnalyzeOptions{})
	require.NoError(t, err)

	result, err := f.Revectorize(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Errors)

	project, err := f.Project(ctx)
	require.NoError(t, err)
	total, withVector, withVectorID, err := f.store.ChunkStats(ctx, store.Scope{ProjectID: project.ID})
	require.NoError(t, err)
	assert.Positive(t, total)
	assert.Equal(t, total, withVector)
	assert.Equal(t, total, withVectorID)
}

func TestCommands_RegistryDispatch(t *testing.T) {
	f, root := newTestFacade(t)
	ctx := context.Background()
	writeSource(t, root, "c.py", "def f():\n    return 1\n")

	registry := f.Commands()
	assert.Contains(t, registry.Names(), "query_cst")

	params, _ := json.Marshal(map[string]any{
		"file_path": filepath.Join(root, "c.py"),
		"selector":  "function",
	})
	result, errPayload := registry.Execute(ctx, "query_cst", params)
	require.Nil(t, errPayload)
	query, ok := result.(*QueryResult)
	require.True(t, ok)
	assert.Equal(t, 1, query.Total)

	// Unknown command and typed errors come back as payloads.
	_, errPayload = registry.Execute(ctx, "nope", nil)
	require.NotNil(t, errPayload)

	params, _ = json.Marshal(map[string]any{"file_path": filepath.Join(root, "missing.py"), "selector": "*"})
	_, errPayload = registry.Execute(ctx, "query_cst", params)
	require.NotNil(t, errPayload)
	assert.Equal(t, cerr.CodeFileNotFound, errPayload.Code)
}

func TestQueryCST_ErrorCodes(t *testing.T) {
	f, root := newTestFacade(t)
	ctx := context.Background()
	abs := writeSource(t, root, "e.py", "x = 1\n")

	_, err := f.QueryCST(ctx, abs, ":nth()", false, 0)
	require.Error(t, err)
	assert.Equal(t, cerr.CodeCSTQueryParseError, cerr.GetCode(err))

	_, err = f.QueryCST(ctx, filepath.Join(root, "nope.py"), "*", false, 0)
	require.Error(t, err)
	assert.Equal(t, cerr.CodeFileNotFound, cerr.GetCode(err))

	_, err = f.QueryCST(ctx, writeSource(t, root, "n.txt", ""), "*", false, 0)
	require.Error(t, err)
	assert.Equal(t, cerr.CodeInvalidFile, cerr.GetCode(err))
}
