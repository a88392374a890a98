package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
)

const analyzedSource = `"""Service module."""

import os
from abc import abstractmethod


class UserService(BaseService):
    """Handles users."""

    def get_user(self, uid):
        """Fetch one user."""
        return self.repo.load(uid)

    def unfinished(self):
        pass

    @abstractmethod
    def must_override(self):
        raise NotImplementedError

    def sketchy(self):
        raise NotImplementedError


def main(argv):
    """Entry point."""
    service = UserService()
    service.get_user(1)
    return os.getpid()
`

type harness struct {
	store    *store.Store
	analyzer *Analyzer
	project  *store.Project
	dir      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cache, err := cst.NewCache(8)
	require.NoError(t, err)

	dir := t.TempDir()
	p, err := s.GetOrCreateProject(context.Background(), dir, "test")
	require.NoError(t, err)

	return &harness{store: s, analyzer: New(s, cache, 0, nil), project: p, dir: dir}
}

func (h *harness) writeFile(t *testing.T, rel, content string) string {
	t.Helper()
	abs := filepath.Join(h.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return abs
}

func TestAnalyzeFile_StructuralEntities(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	abs := h.writeFile(t, "service.py", analyzedSource)

	result, err := h.analyzer.AnalyzeFile(ctx, h.project, abs, "service.py", false, "")
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Classes)
	assert.Equal(t, 1, result.Functions)
	assert.Equal(t, 4, result.Methods)

	classes, err := h.store.SearchClasses(ctx, h.project.ID, "UserService")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, []string{"BaseService"}, classes[0].Class.Bases)
	assert.Equal(t, "Handles users.", classes[0].Class.Docstring)

	methods, err := h.store.SearchMethods(ctx, h.project.ID, "UserService")
	require.NoError(t, err)
	require.Len(t, methods, 4)

	byName := map[string]*store.Method{}
	for _, m := range methods {
		byName[m.Method.Name] = &m.Method
	}
	assert.Equal(t, []string{"self", "uid"}, byName["get_user"].Args)
	assert.True(t, byName["unfinished"].BodyIsNoOp)
	assert.True(t, byName["must_override"].IsAbstract)
	assert.True(t, byName["must_override"].RaisesNotImplemented)
	assert.True(t, byName["sketchy"].RaisesNotImplemented)
	assert.False(t, byName["sketchy"].IsAbstract)
}

func TestAnalyzeFile_Usages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	abs := h.writeFile(t, "service.py", analyzedSource)

	_, err := h.analyzer.AnalyzeFile(ctx, h.project, abs, "service.py", false, "")
	require.NoError(t, err)

	// service.get_user(1) resolves as a method call on get_user.
	usages, err := h.store.FindUsages(ctx, h.project.ID, "get_user", store.UsageMethodCall, "")
	require.NoError(t, err)
	require.NotEmpty(t, usages)

	// self.repo.load(uid) resolves the enclosing class via self.
	usages, err = h.store.FindUsages(ctx, h.project.ID, "load", "", "")
	require.NoError(t, err)
	require.NotEmpty(t, usages)
	assert.Equal(t, "UserService", usages[0].TargetClass)

	// UserService() is a function-style call with a capitalized name.
	usages, err = h.store.FindUsages(ctx, h.project.ID, "UserService", store.UsageFunctionCall, "")
	require.NoError(t, err)
	assert.NotEmpty(t, usages)
}

func TestAnalyzeFile_QualityIssues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	abs := h.writeFile(t, "messy.py", "import x\nfrom y import *\n\ndef undocumented():\n    return 1\n")

	result, err := h.analyzer.AnalyzeFile(ctx, h.project, abs, "messy.py", false, "")
	require.NoError(t, err)

	// missing file docstring + wildcard import + undocumented function
	assert.GreaterOrEqual(t, result.Issues, 3)
}

func TestAnalyzeFile_SyntaxErrorRecordedNotPropagated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	abs := h.writeFile(t, "broken.py", "def broken(:\n    pass\n")

	result, err := h.analyzer.AnalyzeFile(ctx, h.project, abs, "broken.py", false, "")
	require.NoError(t, err, "syntax errors become issues, not errors")
	assert.Equal(t, 1, result.Issues)

	counts, err := h.store.FileRowCounts(ctx, result.FileID)
	require.NoError(t, err)
	assert.Equal(t, 0, counts["classes"])
	assert.Equal(t, 1, counts["issues"])
}

func TestAnalyzeFile_IdempotentOnUnchangedSource(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	abs := h.writeFile(t, "service.py", analyzedSource)

	first, err := h.analyzer.AnalyzeFile(ctx, h.project, abs, "service.py", false, "")
	require.NoError(t, err)
	countsBefore, err := h.store.FileRowCounts(ctx, first.FileID)
	require.NoError(t, err)

	// Second run with force=false and unchanged mtime: skipped, rows intact.
	second, err := h.analyzer.AnalyzeFile(ctx, h.project, abs, "service.py", false, "")
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	countsAfter, err := h.store.FileRowCounts(ctx, first.FileID)
	require.NoError(t, err)
	assert.Equal(t, countsBefore, countsAfter)
}

func TestAnalyzeFile_ForceReanalyzes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	abs := h.writeFile(t, "service.py", analyzedSource)

	_, err := h.analyzer.AnalyzeFile(ctx, h.project, abs, "service.py", false, "")
	require.NoError(t, err)

	result, err := h.analyzer.AnalyzeFile(ctx, h.project, abs, "service.py", true, "")
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Classes)
}

func TestAnalyzeFile_ModifiedFileReanalyzed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	abs := h.writeFile(t, "service.py", "def a():\n    return 1\n")

	first, err := h.analyzer.AnalyzeFile(ctx, h.project, abs, "service.py", false, "")
	require.NoError(t, err)
	require.False(t, first.Skipped)

	// Touch the file into the future with new content.
	require.NoError(t, os.WriteFile(abs, []byte("def a():\n    return 1\n\ndef b():\n    return 2\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(abs, future, future))

	second, err := h.analyzer.AnalyzeFile(ctx, h.project, abs, "service.py", false, "")
	require.NoError(t, err)
	assert.False(t, second.Skipped)
	assert.Equal(t, 2, second.Functions)
}
