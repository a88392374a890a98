package cstpatch

import (
	"context"
	"strings"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// normalizeImports moves all module-level import statements to the top of
// the module body, immediately after the optional module docstring (and any
// leading comment run), preserving their relative order. Imports nested in
// functions or classes are never touched. Already-normalized modules are
// returned byte-identical.
func normalizeImports(ctx context.Context, source []byte) ([]byte, error) {
	tree, err := cst.Parse(ctx, source)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeCSTModulePatchError, err)
	}

	top := tree.TopLevel()
	offsets := tree.LineOffsets()

	// Header: leading comments plus the optional module docstring.
	anchorLine := 0
	headerDone := false
	var imports []*cst.Node
	firstNonImportLine := 0

	for _, stmt := range top {
		sl, _, el, _ := stmt.Span()

		if !headerDone {
			if stmt.TSType == "comment" {
				anchorLine = el
				continue
			}
			if isDocstringStmt(tree, stmt) {
				anchorLine = el
				headerDone = true
				continue
			}
			headerDone = true
		}

		if stmt.Kind == cst.KindImport {
			imports = append(imports, stmt)
			continue
		}
		if stmt.TSType == "comment" {
			continue
		}
		if firstNonImportLine == 0 {
			firstNonImportLine = sl
		}
	}

	if len(imports) == 0 || firstNonImportLine == 0 {
		return source, nil
	}

	// Already normalized: every import precedes the first non-import statement.
	misplaced := false
	for _, imp := range imports {
		sl, _, _, _ := imp.Span()
		if sl > firstNonImportLine {
			misplaced = true
			break
		}
	}
	if !misplaced {
		return source, nil
	}

	// Collect import texts in order, then remove their lines and re-insert
	// the whole run after the header.
	var texts []string
	var edits []edit
	for _, imp := range imports {
		sl, _, el, _ := imp.Span()
		start, end, ok := lineRangeBytes(source, offsets, sl, el)
		if !ok {
			return nil, cerr.New(cerr.CodeCSTModulePatchError, "import span out of range")
		}
		texts = append(texts, strings.TrimRight(string(source[start:end]), "\n"))
		edits = append(edits, edit{start: start, end: end})
	}

	block := strings.Join(texts, "\n") + "\n"
	var insertAt int
	if anchorLine == 0 {
		insertAt = 0
	} else if anchorLine >= len(offsets) {
		insertAt = len(source)
		block = "\n" + block
	} else {
		insertAt = offsets[anchorLine]
	}
	edits = append(edits, edit{start: insertAt, end: insertAt, text: block})

	return applyEdits(source, edits)
}

// isDocstringStmt reports whether a top-level statement is a bare string
// expression, i.e. a module docstring candidate.
func isDocstringStmt(tree *cst.Tree, stmt *cst.Node) bool {
	if stmt.TSType != "expression_statement" {
		return false
	}
	children := tree.ChildNodes(stmt)
	return len(children) == 1 && children[0].TSType == "string"
}
