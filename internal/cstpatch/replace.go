package cstpatch

import (
	"context"
	"strings"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// ApplyReplaceOps applies replace operations to source.
//
// A SelectorModule op recreates the module from scratch; otherwise each op
// replaces (or removes, when NewCode is empty) its target block. The result
// has imports normalized and is guaranteed to reparse.
func ApplyReplaceOps(ctx context.Context, source []byte, ops []ReplaceOp) ([]byte, Stats, error) {
	for _, op := range ops {
		if op.Selector.Kind == SelectorModule {
			return createModuleFromScratch(ctx, op)
		}
	}

	var stats Stats
	if len(ops) == 0 {
		return source, stats, nil
	}

	tree, err := cst.Parse(ctx, source)
	if err != nil {
		return nil, stats, cerr.Wrap(cerr.CodeCSTModulePatchError, err)
	}
	blocks := indexBlocks(listBlocksFromTree(tree))
	offsets := tree.LineOffsets()

	var edits []edit
	for _, op := range ops {
		tgt, err := resolveSelector(tree, blocks, op.Selector, true)
		if err != nil {
			return nil, stats, err
		}
		if tgt == nil {
			stats.Unmatched = append(stats.Unmatched, op.Selector)
			continue
		}

		e, removed, err := replaceEdit(ctx, source, offsets, tgt, op.NewCode)
		if err != nil {
			return nil, stats, err
		}
		edits = append(edits, e)
		if removed {
			stats.Removed++
		} else {
			stats.Replaced++
		}
	}

	return finishEdits(ctx, source, edits, stats)
}

// replaceEdit builds the splice for one replace target.
func replaceEdit(ctx context.Context, source []byte, offsets []int, tgt *target, newCode string) (edit, bool, error) {
	if tgt.byLines || tgt.kind == "" || newCode == "" || strings.TrimSpace(newCode) == "" {
		// Whole-line replacement (blocks, ranges, deletions).
		startLine, endLine := tgt.lines()
		start, end, ok := lineRangeBytes(source, offsets, startLine, endLine)
		if !ok {
			return edit{}, false, cerr.Newf(cerr.CodeCSTModulePatchError,
				"line range %d-%d out of range", startLine, endLine)
		}
		snippet, err := parseSnippetForKind(ctx, tgt, newCode)
		if err != nil {
			return edit{}, false, err
		}
		if snippet == "" {
			return edit{start: start, end: end}, true, nil
		}
		indent := indentOfLine(source, offsets, startLine)
		return edit{start: start, end: end, text: reindent(snippet, indent, true) + "\n"}, false, nil
	}

	// Exact-span replacement from node_id / cst_query / range-with-columns.
	switch tgt.kind {
	case "smallstmt", "import":
		snippet, err := parseSmallStmtSnippet(ctx, newCode)
		if err != nil {
			return edit{}, false, err
		}
		start, end, ok := spanBytes(source, offsets, tgt.span[0], tgt.span[1], tgt.span[2], tgt.span[3])
		if !ok {
			return edit{}, false, cerr.New(cerr.CodeCSTModulePatchError, "node span out of range")
		}
		return edit{start: start, end: end, text: snippet}, false, nil

	case "stmt", "class", "function", "method":
		snippet, err := parseSnippet(ctx, newCode)
		if err != nil {
			return edit{}, false, err
		}
		start, end, ok := spanBytes(source, offsets, tgt.span[0], tgt.span[1], tgt.span[2], tgt.span[3])
		if !ok {
			return edit{}, false, cerr.New(cerr.CodeCSTModulePatchError, "node span out of range")
		}
		indent := strings.Repeat(" ", tgt.span[1])
		return edit{start: start, end: end, text: reindent(snippet, indent, false)}, false, nil

	default:
		return edit{}, false, cerr.Newf(cerr.CodeCSTModulePatchError,
			"replacement supports only stmt/smallstmt/function/class/method nodes, got %s", tgt.kind)
	}
}

// parseSnippetForKind validates snippets for whole-line targets. Span targets
// of small-statement kind still demand a single simple statement.
func parseSnippetForKind(ctx context.Context, tgt *target, newCode string) (string, error) {
	if !tgt.byLines && (tgt.kind == "smallstmt" || tgt.kind == "import") {
		return parseSmallStmtSnippet(ctx, newCode)
	}
	if !tgt.byLines && tgt.kind != "" {
		switch tgt.kind {
		case "stmt", "class", "function", "method":
		default:
			return "", cerr.Newf(cerr.CodeCSTModulePatchError,
				"replacement supports only stmt/smallstmt/function/class/method nodes, got %s", tgt.kind)
		}
	}
	return parseSnippet(ctx, newCode)
}

// finishEdits applies edits, normalizes imports and validates the result.
func finishEdits(ctx context.Context, source []byte, edits []edit, stats Stats) ([]byte, Stats, error) {
	if len(edits) == 0 {
		return source, stats, nil
	}
	patched, err := applyEdits(source, edits)
	if err != nil {
		return nil, stats, err
	}
	patched, err = normalizeImports(ctx, patched)
	if err != nil {
		return nil, stats, err
	}
	if _, err := cst.Parse(ctx, patched); err != nil {
		return nil, stats, cerr.Newf(cerr.CodeCSTModulePatchError, "patched module does not parse: %v", err)
	}
	return patched, stats, nil
}

// createModuleFromScratch handles the SelectorModule replace variant.
func createModuleFromScratch(ctx context.Context, op ReplaceOp) ([]byte, Stats, error) {
	var stats Stats

	doc := strings.TrimSpace(op.FileDocstring)
	if doc == "" {
		return nil, stats, cerr.New(cerr.CodeCSTModulePatchError,
			"file_docstring is required and must not be empty when creating a module from scratch")
	}
	body, err := parseSnippet(ctx, op.NewCode)
	if err != nil {
		return nil, stats, err
	}
	if body == "" {
		return nil, stats, cerr.New(cerr.CodeCSTModulePatchError,
			"new_code is required and must not be empty when creating a module from scratch")
	}

	if !strings.HasPrefix(doc, `"""`) && !strings.HasPrefix(doc, "'''") {
		doc = `"""` + doc + `"""`
	}

	text := doc + "\n\n" + body + "\n"
	patched, err := normalizeImports(ctx, []byte(text))
	if err != nil {
		return nil, stats, err
	}
	if _, err := cst.Parse(ctx, patched); err != nil {
		return nil, stats, cerr.Newf(cerr.CodeCSTModulePatchError, "created module does not parse: %v", err)
	}
	stats.Created = 1
	return patched, stats, nil
}
