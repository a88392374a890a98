package cstpatch

import (
	"context"
	"strings"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// ApplyInsertOps inserts parsed statements before or after selected nodes.
// Ops without a selector append at the end of the module.
func ApplyInsertOps(ctx context.Context, source []byte, ops []InsertOp) ([]byte, Stats, error) {
	var stats Stats
	if len(ops) == 0 {
		return source, stats, nil
	}
	if strings.TrimSpace(string(source)) == "" {
		return nil, stats, cerr.New(cerr.CodeCSTModulePatchError,
			"cannot insert into empty source; use a create operation instead")
	}

	tree, err := cst.Parse(ctx, source)
	if err != nil {
		return nil, stats, cerr.Wrap(cerr.CodeCSTModulePatchError, err)
	}
	blocks := indexBlocks(listBlocksFromTree(tree))
	offsets := tree.LineOffsets()

	var edits []edit
	for _, op := range ops {
		snippet, err := parseSnippet(ctx, op.NewCode)
		if err != nil {
			return nil, stats, err
		}
		if snippet == "" {
			continue
		}

		if op.Selector == nil {
			edits = append(edits, appendToModuleEdit(source, snippet))
			stats.Inserted += countStatements(ctx, snippet)
			continue
		}

		tgt, err := resolveSelector(tree, blocks, *op.Selector, false)
		if err != nil {
			return nil, stats, err
		}
		if tgt == nil {
			stats.Unmatched = append(stats.Unmatched, *op.Selector)
			continue
		}

		startLine, endLine := tgt.lines()
		indent := indentOfLine(source, offsets, startLine)
		text := reindent(snippet, indent, true) + "\n"

		var at int
		if op.Position == InsertBefore {
			start, _, ok := lineRangeBytes(source, offsets, startLine, endLine)
			if !ok {
				return nil, stats, cerr.New(cerr.CodeCSTModulePatchError, "insert target out of range")
			}
			at = start
		} else { // after / end
			_, end, ok := lineRangeBytes(source, offsets, startLine, endLine)
			if !ok {
				return nil, stats, cerr.New(cerr.CodeCSTModulePatchError, "insert target out of range")
			}
			at = end
		}
		edits = append(edits, edit{start: at, end: at, text: text})
		stats.Inserted += countStatements(ctx, snippet)
	}

	return finishEdits(ctx, source, edits, stats)
}

// appendToModuleEdit builds the splice appending snippet at end of module,
// ensuring a separating newline.
func appendToModuleEdit(source []byte, snippet string) edit {
	text := snippet + "\n"
	if len(source) > 0 && source[len(source)-1] != '\n' {
		text = "\n" + text
	}
	return edit{start: len(source), end: len(source), text: text}
}

// countStatements counts top-level statements in an already-validated snippet.
func countStatements(ctx context.Context, snippet string) int {
	tree, err := cst.Parse(ctx, []byte(snippet+"\n"))
	if err != nil {
		return 0
	}
	count := 0
	for _, n := range tree.TopLevel() {
		if n.TSType != "comment" {
			count++
		}
	}
	return count
}
