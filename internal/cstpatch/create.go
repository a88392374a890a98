package cstpatch

import (
	"context"
	"strings"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// ApplyCreateOps creates new statements at the positions described by the
// ops. On empty source only CreateEndOfModule is allowed and yields a fresh
// module.
func ApplyCreateOps(ctx context.Context, source []byte, ops []CreateOp) ([]byte, Stats, error) {
	var stats Stats
	if len(ops) == 0 {
		return source, stats, nil
	}

	if strings.TrimSpace(string(source)) == "" {
		return createIntoEmptySource(ctx, ops)
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

		position := op.Position
		if position == "" {
			position = CreateEndOfModule
		}

		if position == CreateEndOfModule {
			edits = append(edits, appendToModuleEdit(source, snippet))
			stats.Created += countStatements(ctx, snippet)
			continue
		}

		if op.Selector == nil {
			return nil, stats, cerr.Newf(cerr.CodeCSTModulePatchError,
				"create position %s requires a selector", position)
		}
		tgt, err := resolveSelector(tree, blocks, *op.Selector, false)
		if err != nil {
			return nil, stats, err
		}
		if tgt == nil {
			stats.Unmatched = append(stats.Unmatched, *op.Selector)
			continue
		}

		switch position {
		case CreateBeforeSelector, CreateAfterSelector:
			startLine, endLine := tgt.lines()
			indent := indentOfLine(source, offsets, startLine)
			text := reindent(snippet, indent, true) + "\n"
			start, end, ok := lineRangeBytes(source, offsets, startLine, endLine)
			if !ok {
				return nil, stats, cerr.New(cerr.CodeCSTModulePatchError, "create target out of range")
			}
			at := end
			if position == CreateBeforeSelector {
				at = start
			}
			edits = append(edits, edit{start: at, end: at, text: text})
			stats.Created += countStatements(ctx, snippet)

		case CreateEndOfClass, CreateEndOfFunction:
			e, n, err := endOfBodyEdit(ctx, tree, source, offsets, tgt, position, snippet)
			if err != nil {
				return nil, stats, err
			}
			edits = append(edits, e)
			stats.Created += n

		default:
			return nil, stats, cerr.Newf(cerr.CodeCSTModulePatchError, "unsupported create position: %s", position)
		}
	}

	return finishEdits(ctx, source, edits, stats)
}

// endOfBodyEdit appends snippet at the end of the class or function body the
// target resolves to.
func endOfBodyEdit(ctx context.Context, tree *cst.Tree, source []byte, offsets []int, tgt *target, position CreatePosition, snippet string) (edit, int, error) {
	node := findDefAtLines(tree, tgt)
	if node == nil {
		return edit{}, 0, cerr.New(cerr.CodeCSTModulePatchError, "selector does not resolve to a definition")
	}

	switch position {
	case CreateEndOfClass:
		if node.Kind != cst.KindClass {
			return edit{}, 0, cerr.Newf(cerr.CodeCSTModulePatchError,
				"end_of_class requires a class selector, got %s", node.Kind)
		}
	case CreateEndOfFunction:
		if node.Kind != cst.KindFunction && node.Kind != cst.KindMethod {
			return edit{}, 0, cerr.Newf(cerr.CodeCSTModulePatchError,
				"end_of_function requires a function or method selector, got %s", node.Kind)
		}
	}

	body := tree.BodyOf(node)
	if len(body) == 0 {
		return edit{}, 0, cerr.New(cerr.CodeCSTModulePatchError, "definition has no body block")
	}
	first := body[0]
	last := body[len(body)-1]

	fsl, _, _, _ := first.Span()
	_, _, lel, _ := last.Span()

	indent := indentOfLine(source, offsets, fsl)
	_, end, ok := lineRangeBytes(source, offsets, lel, lel)
	if !ok {
		return edit{}, 0, cerr.New(cerr.CodeCSTModulePatchError, "body span out of range")
	}
	text := reindent(snippet, indent, true) + "\n"
	return edit{start: end, end: end, text: text}, countStatements(ctx, snippet), nil
}

// findDefAtLines locates the class/function node whose span matches the
// resolved target lines, looking through decorators.
func findDefAtLines(tree *cst.Tree, tgt *target) *cst.Node {
	startLine, endLine := tgt.lines()
	for _, n := range tree.Nodes {
		sl, _, el, _ := n.Span()
		if sl != startLine || el != endLine {
			continue
		}
		def := tree.Unwrap(n)
		switch def.Kind {
		case cst.KindClass, cst.KindFunction, cst.KindMethod:
			return def
		}
	}
	return nil
}

// createIntoEmptySource builds a fresh module from end_of_module ops only.
func createIntoEmptySource(ctx context.Context, ops []CreateOp) ([]byte, Stats, error) {
	var stats Stats

	var parts []string
	for _, op := range ops {
		position := op.Position
		if position == "" {
			position = CreateEndOfModule
		}
		if position != CreateEndOfModule {
			return nil, stats, cerr.New(cerr.CodeCSTModulePatchError,
				"cannot create nodes at specific positions in empty source; use position=end_of_module")
		}
		snippet, err := parseSnippet(ctx, op.NewCode)
		if err != nil {
			return nil, stats, err
		}
		if snippet != "" {
			parts = append(parts, snippet)
			stats.Created += countStatements(ctx, snippet)
		}
	}
	if len(parts) == 0 {
		return nil, stats, cerr.New(cerr.CodeCSTModulePatchError, "no nodes to create")
	}

	text := strings.Join(parts, "\n\n") + "\n"
	patched, err := normalizeImports(ctx, []byte(text))
	if err != nil {
		return nil, stats, err
	}
	if _, err := cst.Parse(ctx, patched); err != nil {
		return nil, stats, cerr.Newf(cerr.CodeCSTModulePatchError, "created module does not parse: %v", err)
	}
	return patched, stats, nil
}
