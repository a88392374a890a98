package chunker

import (
	"strings"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
)

// extractItems walks the tree with (parent class, parent function) context
// and emits one item per docstring and per inline comment.
func extractItems(tree *cst.Tree) []item {
	var items []item

	// File-level docstring.
	if doc, ok := tree.Docstring(tree.Root()); ok && doc != "" {
		line := docstringLine(tree, tree.Root())
		items = append(items, item{
			text:       doc,
			line:       line,
			nodeType:   "SimpleString",
			sourceType: store.SourceFileDocstring,
			level:      store.BindingFile,
		})
	}

	var walk func(n *cst.Node, class, function string)
	walk = func(n *cst.Node, class, function string) {
		for _, child := range tree.ChildNodes(n) {
			def := tree.Unwrap(child)

			switch def.Kind {
			case cst.KindClass:
				if doc, ok := tree.Docstring(def); ok && doc != "" {
					items = append(items, item{
						text:       doc,
						line:       docstringLine(tree, def),
						nodeType:   "SimpleString",
						sourceType: store.SourceClassDocstring,
						level:      store.BindingClass,
						class:      def.Name,
					})
				}
				walk(def, def.Name, "")
				continue

			case cst.KindFunction, cst.KindMethod:
				srcType := store.SourceFunctionDocstring
				if def.Kind == cst.KindMethod {
					srcType = store.SourceMethodDocstring
				}
				if doc, ok := tree.Docstring(def); ok && doc != "" {
					items = append(items, item{
						text:       doc,
						line:       docstringLine(tree, def),
						nodeType:   "SimpleString",
						sourceType: srcType,
						level:      store.BindingFunction,
						class:      class,
						function:   def.Name,
					})
				}
				walk(def, class, def.Name)
				continue
			}

			if child.TSType == "comment" {
				text := strings.TrimSpace(strings.TrimLeft(tree.CodeForNode(child), "# "))
				if text == "" {
					continue
				}
				line, _, _, _ := child.Span()
				items = append(items, item{
					text:       text,
					line:       line,
					nodeType:   "Comment",
					sourceType: commentSourceType(class, function),
					level:      store.BindingLine,
					class:      class,
					function:   function,
				})
				continue
			}

			walk(child, class, function)
		}
	}
	walk(tree.Root(), "", "")

	return items
}

// commentSourceType attributes a comment to its enclosing scope.
func commentSourceType(class, function string) store.SourceType {
	switch {
	case function != "" && class != "":
		return store.SourceMethodComment
	case function != "":
		return store.SourceFunctionComment
	case class != "":
		return store.SourceClassComment
	default:
		return store.SourceComment
	}
}

// docstringLine finds the line of a scope's docstring statement.
func docstringLine(tree *cst.Tree, scope *cst.Node) int {
	for _, stmt := range tree.BodyOf(scope) {
		if stmt.TSType == "comment" {
			continue
		}
		line, _, _, _ := stmt.Span()
		return line
	}
	line, _, _, _ := scope.Span()
	return line
}
