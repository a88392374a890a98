package analyzer

import (
	"strings"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
)

// collectStructure walks the module in two passes: top-level imports first,
// then classes (with their methods) and top-level functions.
func collectStructure(tree *cst.Tree, batch *store.FileBatch) {
	for _, stmt := range tree.TopLevel() {
		if stmt.Kind == cst.KindImport {
			batch.Imports = append(batch.Imports, importsFromNode(tree, stmt, batch)...)
		}
	}

	for _, stmt := range tree.TopLevel() {
		def := tree.Unwrap(stmt)
		switch def.Kind {
		case cst.KindClass:
			collectClass(tree, stmt, def, batch)
		case cst.KindFunction:
			collectFunction(tree, stmt, def, batch)
		}
	}
}

// importsFromNode decodes one import statement into rows, flagging wildcard
// imports as issues on the way.
func importsFromNode(tree *cst.Tree, stmt *cst.Node, batch *store.FileBatch) []*store.Import {
	line, _, _, _ := stmt.Span()
	var out []*store.Import

	if stmt.TSType == "import_statement" {
		// import a.b, c as d
		for _, child := range tree.ChildNodes(stmt) {
			switch child.TSType {
			case "dotted_name":
				out = append(out, &store.Import{
					Name: tree.CodeForNode(child), Kind: store.ImportDirect, Line: line,
				})
			case "aliased_import":
				for _, sub := range tree.ChildNodes(child) {
					if sub.TSType == "dotted_name" {
						out = append(out, &store.Import{
							Name: tree.CodeForNode(sub), Kind: store.ImportDirect, Line: line,
						})
						break
					}
				}
			}
		}
		return out
	}

	// from m import x, y — the first dotted_name (or relative_import) is the
	// module, the rest are imported names.
	module := ""
	seenModule := false
	for _, child := range tree.ChildNodes(stmt) {
		switch child.TSType {
		case "dotted_name", "relative_import":
			if !seenModule {
				module = tree.CodeForNode(child)
				seenModule = true
				continue
			}
			out = append(out, &store.Import{
				Name: tree.CodeForNode(child), Module: module, Kind: store.ImportFromModule, Line: line,
			})
		case "aliased_import":
			for _, sub := range tree.ChildNodes(child) {
				if sub.TSType == "dotted_name" {
					out = append(out, &store.Import{
						Name: tree.CodeForNode(sub), Module: module, Kind: store.ImportFromModule, Line: line,
					})
					break
				}
			}
		case "wildcard_import":
			out = append(out, &store.Import{
				Name: "*", Module: module, Kind: store.ImportFromModule, Line: line,
			})
			batch.Issues = append(batch.Issues, &store.Issue{
				Kind:    store.IssueInvalidImport,
				Message: "wildcard import from " + module,
				Line:    line,
			})
		}
	}
	return out
}

// collectClass emits the class row, its methods, docstring issues and
// full-text content. stmt is the top-level statement (decorators included),
// def the unwrapped class_definition.
func collectClass(tree *cst.Tree, stmt, def *cst.Node, batch *store.FileBatch) {
	line, _, _, _ := def.Span()
	doc, hasDoc := tree.Docstring(def)

	class := &store.Class{
		Name:      def.Name,
		Line:      line,
		Docstring: doc,
		Bases:     classBases(tree, def),
	}
	batch.Classes = append(batch.Classes, class)
	classIndex := int64(-len(batch.Classes)) // bind methods by position

	if !hasDoc {
		batch.Issues = append(batch.Issues, missingDocIssue("class", def.Name, line))
	}
	batch.Contents = append(batch.Contents, entityContent(tree, stmt, "class", def.Name, doc))

	for _, member := range tree.BodyOf(def) {
		mdef := tree.Unwrap(member)
		if mdef.Kind != cst.KindMethod {
			continue
		}
		collectMethod(tree, member, mdef, classIndex, def.Name, batch)
	}
}

func collectMethod(tree *cst.Tree, stmt, def *cst.Node, classIndex int64, className string, batch *store.FileBatch) {
	line, _, _, _ := def.Span()
	doc, hasDoc := tree.Docstring(def)

	method := &store.Method{
		ClassID:              classIndex,
		Name:                 def.Name,
		Line:                 line,
		Args:                 paramNames(tree, def),
		Docstring:            doc,
		IsAbstract:           isAbstract(tree, stmt),
		BodyIsNoOp:           bodyIsNoOp(tree, def),
		RaisesNotImplemented: raisesNotImplemented(tree, def),
	}
	batch.Methods = append(batch.Methods, method)

	if !hasDoc && !isDunder(def.Name) {
		batch.Issues = append(batch.Issues, missingDocIssue("method", className+"."+def.Name, line))
	}
	if method.BodyIsNoOp {
		batch.Issues = append(batch.Issues, &store.Issue{
			Kind:    store.IssueNoOpMethod,
			Message: "method " + className + "." + def.Name + " has a no-op body",
			Line:    line,
		})
	}
	if method.RaisesNotImplemented && !method.IsAbstract {
		batch.Issues = append(batch.Issues, &store.Issue{
			Kind:    store.IssueNotImplemented,
			Message: "method " + className + "." + def.Name + " raises NotImplementedError but is not abstract",
			Line:    line,
		})
	}
	batch.Contents = append(batch.Contents, entityContent(tree, stmt, "method", className+"."+def.Name, doc))
}

func collectFunction(tree *cst.Tree, stmt, def *cst.Node, batch *store.FileBatch) {
	line, _, _, _ := def.Span()
	doc, hasDoc := tree.Docstring(def)

	batch.Functions = append(batch.Functions, &store.Function{
		Name:      def.Name,
		Line:      line,
		Args:      paramNames(tree, def),
		Docstring: doc,
	})
	if !hasDoc {
		batch.Issues = append(batch.Issues, missingDocIssue("function", def.Name, line))
	}
	batch.Contents = append(batch.Contents, entityContent(tree, stmt, "function", def.Name, doc))
}

// classBases lists base-class names in string form.
func classBases(tree *cst.Tree, class *cst.Node) []string {
	for _, child := range tree.ChildNodes(class) {
		if child.TSType != "argument_list" {
			continue
		}
		var bases []string
		for _, arg := range tree.ChildNodes(child) {
			switch arg.TSType {
			case "identifier", "attribute", "dotted_name", "subscript":
				bases = append(bases, tree.CodeForNode(arg))
			}
		}
		return bases
	}
	return nil
}

// paramNames collects argument names in declaration order.
func paramNames(tree *cst.Tree, def *cst.Node) []string {
	var names []string
	for _, child := range tree.ChildNodes(def) {
		if child.TSType != "parameters" {
			continue
		}
		for _, param := range tree.ChildNodes(child) {
			switch param.TSType {
			case "identifier":
				names = append(names, tree.CodeForNode(param))
			case "typed_parameter", "default_parameter", "typed_default_parameter",
				"list_splat_pattern", "dictionary_splat_pattern":
				if name := firstIdentifier(tree, param); name != "" {
					names = append(names, name)
				}
			}
		}
	}
	return names
}

func firstIdentifier(tree *cst.Tree, n *cst.Node) string {
	if n.TSType == "identifier" {
		return tree.CodeForNode(n)
	}
	for _, child := range tree.ChildNodes(n) {
		if name := firstIdentifier(tree, child); name != "" {
			return name
		}
	}
	return ""
}

// isAbstract checks the enclosing decorated_definition for @abstractmethod.
func isAbstract(tree *cst.Tree, stmt *cst.Node) bool {
	if stmt.TSType != "decorated_definition" {
		return false
	}
	for _, child := range tree.ChildNodes(stmt) {
		if child.TSType == "decorator" && strings.Contains(tree.CodeForNode(child), "abstractmethod") {
			return true
		}
	}
	return false
}

// bodyIsNoOp reports a body that is only pass/ellipsis after the docstring.
func bodyIsNoOp(tree *cst.Tree, def *cst.Node) bool {
	stmts := bodyWithoutDocstring(tree, def)
	if len(stmts) == 0 {
		return false
	}
	for _, s := range stmts {
		switch {
		case s.TSType == "pass_statement":
		case s.TSType == "expression_statement" && strings.TrimSpace(tree.CodeForNode(s)) == "...":
		case s.TSType == "comment":
		default:
			return false
		}
	}
	return true
}

// raisesNotImplemented looks for raise NotImplementedError in the body.
func raisesNotImplemented(tree *cst.Tree, def *cst.Node) bool {
	var found bool
	var walk func(n *cst.Node)
	walk = func(n *cst.Node) {
		if found {
			return
		}
		if n.TSType == "raise_statement" && strings.Contains(tree.CodeForNode(n), "NotImplementedError") {
			found = true
			return
		}
		for _, c := range tree.ChildNodes(n) {
			walk(c)
		}
	}
	walk(def)
	return found
}

// bodyWithoutDocstring strips the leading docstring from a def body.
func bodyWithoutDocstring(tree *cst.Tree, def *cst.Node) []*cst.Node {
	body := tree.BodyOf(def)
	for i, s := range body {
		if s.TSType == "comment" {
			continue
		}
		if s.TSType == "expression_statement" {
			children := tree.ChildNodes(s)
			if len(children) == 1 && children[0].TSType == "string" {
				return append(append([]*cst.Node{}, body[:i]...), body[i+1:]...)
			}
		}
		break
	}
	return body
}
