package facade

import (
	"context"
	"os"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cstpatch"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cstquery"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// BlocksResult is the list_cst_blocks payload.
type BlocksResult struct {
	FilePath     string               `json:"file_path"`
	HasDocstring bool                 `json:"has_docstring"`
	Blocks       []cstpatch.BlockInfo `json:"blocks"`
}

// ListCSTBlocks lists the replaceable logical blocks of one file.
func (f *Facade) ListCSTBlocks(ctx context.Context, filePath string) (*BlocksResult, error) {
	filePath = f.resolvePath(filePath)
	if err := validateSourcePath(filePath); err != nil {
		return nil, err
	}

	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeCSTListError, err)
	}
	blocks, err := cstpatch.ListBlocks(ctx, source)
	if err != nil {
		return nil, err
	}

	tree, err := f.cache.ParseSource(ctx, filePath, source)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeCSTListError, err)
	}
	_, hasDoc := tree.Docstring(tree.Root())

	return &BlocksResult{FilePath: filePath, HasDocstring: hasDoc, Blocks: blocks}, nil
}

// QueryResult is the query_cst payload.
type QueryResult struct {
	FilePath  string             `json:"file_path"`
	Selector  string             `json:"selector"`
	Total     int                `json:"total"`
	Truncated bool               `json:"truncated"`
	Matches   []*cstquery.Match  `json:"matches"`
}

// QueryCST evaluates a selector against a file's CST. Node ids in the result
// are span-based: they stay valid only while the file bytes are unchanged,
// so callers must re-query after any edit.
func (f *Facade) QueryCST(ctx context.Context, filePath, selector string, includeCode bool, maxResults int) (*QueryResult, error) {
	filePath = f.resolvePath(filePath)
	if err := validateSourcePath(filePath); err != nil {
		return nil, err
	}

	tree, err := f.cache.ParseFile(ctx, filePath)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeCSTQueryError, err)
	}

	matches, err := cstquery.Run(tree, selector, includeCode)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{FilePath: filePath, Selector: selector, Total: len(matches)}
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
		result.Truncated = true
	}
	result.Matches = matches
	return result, nil
}

// ComposeOptions tunes compose_cst_module.
type ComposeOptions struct {
	Apply        bool
	CreateBackup bool
	ReturnSource bool
	ReturnDiff   bool
}

// ComposeResult is the compose_cst_module payload.
type ComposeResult struct {
	FilePath   string         `json:"file_path"`
	Applied    bool           `json:"applied"`
	Stats      cstpatch.Stats `json:"stats"`
	Source     string         `json:"source,omitempty"`
	Diff       string         `json:"diff,omitempty"`
	BackupPath string         `json:"backup_path,omitempty"`
}

// ComposeCSTModule applies patch operations to a file. A failing op leaves
// the file untouched: validation happens on the in-memory result and only a
// fully successful compose is written (optionally with a backup first).
func (f *Facade) ComposeCSTModule(ctx context.Context, filePath string, ops []cstpatch.Op, opts ComposeOptions) (*ComposeResult, error) {
	filePath = f.resolvePath(filePath)

	var source []byte
	exists := false
	if data, err := os.ReadFile(filePath); err == nil {
		source = data
		exists = true
	}
	// A missing file is only acceptable for module-creation composes.
	if !exists && !createsModule(ops) {
		return nil, cerr.Newf(cerr.CodeFileNotFound, "file not found: %s", filePath)
	}

	patched, stats, err := cstpatch.Compose(ctx, source, ops)
	if err != nil {
		return nil, err
	}

	result := &ComposeResult{FilePath: filePath, Stats: stats}
	if opts.ReturnSource {
		result.Source = string(patched)
	}
	if opts.ReturnDiff {
		result.Diff = cstpatch.UnifiedDiff(filePath, source, patched)
	}

	if opts.Apply && len(ops) > 0 {
		backupPath, err := cstpatch.WriteWithBackup(filePath, patched, opts.CreateBackup)
		if err != nil {
			return nil, cerr.Wrap(cerr.CodeCSTModulePatchError, err)
		}
		result.Applied = true
		result.BackupPath = backupPath
		f.cache.Invalidate(filePath)
	}
	return result, nil
}

// createsModule reports whether the op list can build a module from nothing.
func createsModule(ops []cstpatch.Op) bool {
	for _, op := range ops {
		if op.Replace != nil && op.Replace.Selector.Kind == cstpatch.SelectorModule {
			return true
		}
		if op.Create != nil && (op.Create.Position == cstpatch.CreateEndOfModule || op.Create.Position == "") {
			return true
		}
	}
	return false
}
