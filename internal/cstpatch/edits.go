package cstpatch

import (
	"context"
	"sort"
	"strings"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cstquery"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// edit is a byte-range splice into the source.
type edit struct {
	start int
	end   int
	text  string
}

// applyEdits splices all edits into source. Edits must not overlap.
func applyEdits(source []byte, edits []edit) ([]byte, error) {
	if len(edits) == 0 {
		return source, nil
	}
	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start != sorted[j].start {
			return sorted[i].start < sorted[j].start
		}
		// Zero-width insertions apply before a removal at the same offset.
		return sorted[i].end < sorted[j].end
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].start < sorted[i-1].end {
			return nil, cerr.New(cerr.CodeCSTModulePatchError, "conflicting edits target overlapping regions")
		}
	}

	var b strings.Builder
	prev := 0
	for _, e := range sorted {
		if e.start < 0 || e.end > len(source) {
			return nil, cerr.New(cerr.CodeCSTModulePatchError, "edit out of range")
		}
		b.Write(source[prev:e.start])
		b.WriteString(e.text)
		prev = e.end
	}
	b.Write(source[prev:])
	return []byte(b.String()), nil
}

// lineRangeBytes returns the byte range covering whole lines
// [startLine, endLine], including the trailing newline of endLine.
func lineRangeBytes(source []byte, offsets []int, startLine, endLine int) (int, int, bool) {
	if startLine < 1 || startLine > len(offsets) || endLine < startLine {
		return 0, 0, false
	}
	start := offsets[startLine-1]
	var end int
	if endLine >= len(offsets) {
		end = len(source)
	} else {
		end = offsets[endLine]
	}
	return start, end, true
}

// spanBytes converts a (1-based line, 0-based byte column) span to a byte range.
func spanBytes(source []byte, offsets []int, sl, sc, el, ec int) (int, int, bool) {
	if sl < 1 || sl > len(offsets) || el < 1 || el > len(offsets) {
		return 0, 0, false
	}
	start := offsets[sl-1] + sc
	end := offsets[el-1] + ec
	if start > end || end > len(source) {
		return 0, 0, false
	}
	return start, end, true
}

// indentOfLine returns the leading whitespace of the given 1-based line.
func indentOfLine(source []byte, offsets []int, line int) string {
	if line < 1 || line > len(offsets) {
		return ""
	}
	start := offsets[line-1]
	end := len(source)
	if line < len(offsets) {
		end = offsets[line]
	}
	i := start
	for i < end && (source[i] == ' ' || source[i] == '\t') {
		i++
	}
	return string(source[start:i])
}

// reindent prefixes every line of snippet with indent, preserving the
// snippet's relative indentation. The first line is prefixed only when
// indentFirst is set. Blank lines stay blank.
func reindent(snippet, indent string, indentFirst bool) string {
	if indent == "" {
		return snippet
	}
	lines := strings.Split(snippet, "\n")
	for i, line := range lines {
		if line == "" || (i == 0 && !indentFirst) {
			continue
		}
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}

// parseSnippet validates that snippet parses as a sequence of module-level
// statements and returns the trimmed text. Empty snippets yield "".
func parseSnippet(ctx context.Context, snippet string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimLeft(snippet, "\n"), " \t\n")
	if strings.TrimSpace(trimmed) == "" {
		return "", nil
	}
	if _, err := cst.Parse(ctx, []byte(trimmed+"\n")); err != nil {
		return "", cerr.Newf(cerr.CodeCSTModulePatchError, "new_code does not parse: %v", err)
	}
	return trimmed, nil
}

// parseSmallStmtSnippet validates that snippet is exactly one simple
// statement on a single line (e.g. "return 1").
func parseSmallStmtSnippet(ctx context.Context, snippet string) (string, error) {
	trimmed := strings.TrimSpace(snippet)
	if trimmed == "" {
		return "", nil
	}
	tree, err := cst.Parse(ctx, []byte(trimmed+"\n"))
	if err != nil {
		return "", cerr.Newf(cerr.CodeCSTModulePatchError, "new_code does not parse: %v", err)
	}
	top := tree.TopLevel()
	if len(top) != 1 {
		return "", cerr.New(cerr.CodeCSTModulePatchError,
			"small-statement replacement must be a single simple statement (e.g. 'return 1')")
	}
	kind := top[0].Kind
	if kind != cst.KindSmallStmt && kind != cst.KindImport {
		return "", cerr.New(cerr.CodeCSTModulePatchError,
			"small-statement replacement must be a single simple statement (e.g. 'return 1')")
	}
	return trimmed, nil
}

// target is a resolved patch destination: either whole lines or an exact span.
type target struct {
	byLines   bool
	startLine int
	endLine   int
	// Span fields, valid when byLines is false.
	span [4]int // start_line, start_col, end_line, end_col
	// kind is the node kind for span targets ("stmt", "smallstmt", ...).
	kind string
}

func (t target) lines() (int, int) {
	if t.byLines {
		return t.startLine, t.endLine
	}
	return t.span[0], t.span[2]
}

// resolveSelector resolves a selector to a target using the block index,
// the parsed tree and the selector-language executor. A nil target with nil
// error means the selector matched nothing (caller records it unmatched).
func resolveSelector(tree *cst.Tree, blocks *blockIndex, sel Selector, replaceVariant bool) (*target, error) {
	switch sel.Kind {
	case SelectorBlockID:
		if b, ok := blocks.byID[sel.BlockID]; ok {
			return &target{byLines: true, startLine: b.StartLine, endLine: b.EndLine}, nil
		}
		return nil, nil

	case SelectorFunction, SelectorClass, SelectorMethod:
		if sel.Name == "" {
			return nil, cerr.Newf(cerr.CodeCSTModulePatchError, "%s selector requires a name", sel.Kind)
		}
		if b, ok := blocks.byKindName[[2]string{string(sel.Kind), sel.Name}]; ok {
			return &target{byLines: true, startLine: b.StartLine, endLine: b.EndLine}, nil
		}
		return nil, nil

	case SelectorRange:
		if sel.StartLine == 0 || sel.EndLine == 0 {
			return nil, cerr.New(cerr.CodeCSTModulePatchError, "range selector requires start_line and end_line")
		}
		if sel.StartCol != 0 || sel.EndCol != 0 {
			return &target{
				span: [4]int{sel.StartLine, sel.StartCol, sel.EndLine, sel.EndCol},
				kind: "stmt",
			}, nil
		}
		return &target{byLines: true, startLine: sel.StartLine, endLine: sel.EndLine}, nil

	case SelectorNodeID:
		parsed, err := cstquery.ParseNodeID(sel.NodeID)
		if err != nil {
			return nil, cerr.Wrap(cerr.CodeCSTModulePatchError, err)
		}
		return &target{
			span: [4]int{parsed.StartLine, parsed.StartCol, parsed.EndLine, parsed.EndCol},
			kind: parsed.Kind,
		}, nil

	case SelectorQuery:
		matches, err := cstquery.Run(tree, sel.Query, false)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			if replaceVariant {
				return nil, cerr.Newf(cerr.CodeCSTQueryNoMatch, "selector %q matched no nodes", sel.Query)
			}
			return nil, nil
		}
		idx := 0
		switch {
		case sel.MatchIndex != nil:
			idx = *sel.MatchIndex
		case len(matches) > 1 && replaceVariant:
			return nil, cerr.Newf(cerr.CodeCSTModulePatchError,
				"selector matched %d nodes; use :nth() or match_index", len(matches))
		}
		if idx < 0 || idx >= len(matches) {
			return nil, cerr.Newf(cerr.CodeCSTQueryMatchIndex,
				"match_index %d out of bounds for %d matches", idx, len(matches))
		}
		m := matches[idx]
		return &target{
			span: [4]int{m.StartLine, m.StartCol, m.EndLine, m.EndCol},
			kind: m.Kind,
		}, nil

	default:
		return nil, cerr.Newf(cerr.CodeCSTModulePatchError, "unsupported selector kind: %s", sel.Kind)
	}
}
