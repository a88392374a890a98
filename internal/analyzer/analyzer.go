// Package analyzer walks parsed modules and persists structural entities,
// quality issues, full-text content and AST snapshots.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
)

// DefaultMaxFileLines is the oversized-file issue threshold.
const DefaultMaxFileLines = 400

// Analyzer ingests source files into the store.
type Analyzer struct {
	store        *store.Store
	cache        *cst.Cache
	maxFileLines int
	logger       *slog.Logger
}

// New creates an analyzer. maxFileLines <= 0 uses the default threshold.
func New(st *store.Store, cache *cst.Cache, maxFileLines int, logger *slog.Logger) *Analyzer {
	if maxFileLines <= 0 {
		maxFileLines = DefaultMaxFileLines
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{store: st, cache: cache, maxFileLines: maxFileLines, logger: logger}
}

// FileResult summarizes one analyzed file.
type FileResult struct {
	FileID    int64
	Skipped   bool // up to date, nothing rewritten
	Classes   int
	Functions int
	Methods   int
	Issues    int
}

// AnalyzeFile analyzes one source file. Syntax errors are recorded as issues
// and do not propagate. With force unset, files whose AST snapshot is current
// are skipped entirely, leaving all rows untouched.
func (a *Analyzer) AnalyzeFile(ctx context.Context, project *store.Project, absPath, relPath string, force bool, datasetID string) (*FileResult, error) {
	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	mtime := info.ModTime().UTC()
	lineCount := len(cst.LineOffsets(source))

	tree, parseErr := a.cache.ParseSource(ctx, absPath, source)

	file := &store.File{
		ProjectID:    project.ID,
		Path:         relPath,
		AbsPath:      absPath,
		LineCount:    lineCount,
		ModTime:      mtime,
		DatasetID:    datasetID,
		NeedsChunk:   parseErr == nil,
		HasDocstring: false,
	}
	if tree != nil {
		_, file.HasDocstring = tree.Docstring(tree.Root())
	}

	if parseErr != nil {
		var syntaxErr *cst.SyntaxError
		if !errors.As(parseErr, &syntaxErr) {
			return nil, parseErr
		}
		// Malformed file: record the issue, abort per-file processing.
		fileID, err := a.store.UpsertFile(ctx, file)
		if err != nil {
			return nil, err
		}
		if err := a.store.ClearFileData(ctx, fileID); err != nil {
			return nil, err
		}
		issue := &store.Issue{
			Kind:    store.IssueSyntaxError,
			Message: syntaxErr.Error(),
			Line:    syntaxErr.Line,
		}
		if err := a.store.AddIssue(ctx, fileID, project.ID, issue); err != nil {
			return nil, err
		}
		a.logger.Warn("analyze_syntax_error",
			slog.String("path", relPath), slog.Int("line", syntaxErr.Line))
		return &FileResult{FileID: fileID, Issues: 1}, nil
	}

	// Idempotence: unchanged files with a current snapshot are not rewritten.
	existing, err := a.store.GetFileByPath(ctx, project.ID, relPath)
	if err != nil {
		return nil, err
	}
	if existing != nil && !force {
		outdated, err := a.store.IsASTOutdated(ctx, existing.ID, mtime)
		if err != nil {
			return nil, err
		}
		if !outdated {
			return &FileResult{FileID: existing.ID, Skipped: true}, nil
		}
	}

	fileID, err := a.store.UpsertFile(ctx, file)
	if err != nil {
		return nil, err
	}

	batch := a.buildBatch(tree, source, fileID, project.ID, relPath, file.HasDocstring, lineCount)
	batch.ModTime = mtime
	batch.ReplaceExisting = true
	if err := a.store.SaveFileBatch(ctx, batch); err != nil {
		return nil, err
	}

	return &FileResult{
		FileID:    fileID,
		Classes:   len(batch.Classes),
		Functions: len(batch.Functions),
		Methods:   len(batch.Methods),
		Issues:    len(batch.Issues),
	}, nil
}

// buildBatch runs the structural and usage walks over a parsed tree.
func (a *Analyzer) buildBatch(tree *cst.Tree, source []byte, fileID int64, projectID, relPath string, hasDocstring bool, lineCount int) *store.FileBatch {
	batch := &store.FileBatch{FileID: fileID, ProjectID: projectID}

	if lineCount > a.maxFileLines {
		batch.Issues = append(batch.Issues, &store.Issue{
			Kind:    store.IssueFileTooLong,
			Message: fmt.Sprintf("file has %d lines (max %d)", lineCount, a.maxFileLines),
			Metadata: map[string]string{
				"lines": fmt.Sprintf("%d", lineCount),
			},
		})
	}
	if !hasDocstring {
		batch.Issues = append(batch.Issues, &store.Issue{
			Kind:    store.IssueMissingFileDocstring,
			Message: fmt.Sprintf("file %s has no module docstring", relPath),
			Line:    1,
		})
	}

	collectStructure(tree, batch)
	collectUsages(tree, batch)

	batch.TreeJSON, batch.TreeHash = serializeTree(tree, source)
	return batch
}

// snapshotNode is the serialized AST form stored per file.
type snapshotNode struct {
	Type      string `json:"type"`
	Kind      string `json:"kind,omitempty"`
	Name      string `json:"name,omitempty"`
	StartLine int    `json:"sl"`
	EndLine   int    `json:"el"`
	Parent    int    `json:"p"`
}

// serializeTree flattens the arena into JSON plus a content hash.
func serializeTree(tree *cst.Tree, source []byte) (string, string) {
	nodes := make([]snapshotNode, 0, len(tree.Nodes))
	for _, n := range tree.Nodes {
		sl, _, el, _ := n.Span()
		kind := ""
		if n.Kind != cst.KindNode {
			kind = string(n.Kind)
		}
		nodes = append(nodes, snapshotNode{
			Type: n.Type, Kind: kind, Name: n.Name,
			StartLine: sl, EndLine: el, Parent: n.Parent,
		})
	}
	data, err := json.Marshal(nodes)
	if err != nil {
		data = []byte("[]")
	}
	sum := sha256.Sum256(source)
	return string(data), hex.EncodeToString(sum[:])
}

// entityContent materializes a code segment for the full-text index.
func entityContent(tree *cst.Tree, n *cst.Node, kind, name, docstring string) *store.CodeContent {
	return &store.CodeContent{
		EntityKind: kind,
		EntityName: name,
		Content:    tree.CodeForNode(n),
		Docstring:  docstring,
	}
}

// missingDocIssue builds the standard missing-docstring issue.
func missingDocIssue(kind, name string, line int) *store.Issue {
	return &store.Issue{
		Kind:    store.IssueMissingDocstring,
		Message: fmt.Sprintf("%s %s has no docstring", kind, name),
		Line:    line,
		Metadata: map[string]string{
			"entity_kind": kind,
			"entity_name": name,
		},
	}
}

// isDunder reports double-underscore names, which skip docstring checks.
func isDunder(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}
