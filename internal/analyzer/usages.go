package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
)

// collectUsages is the second-pass walk producing usage rows: every call
// expression resolved syntactically to (target name, optional target class),
// plus bare attribute accesses.
func collectUsages(tree *cst.Tree, batch *store.FileBatch) {
	for _, n := range tree.Nodes {
		switch n.TSType {
		case "call":
			if u := usageFromCall(tree, n); u != nil {
				batch.Usages = append(batch.Usages, u)
			}
		case "attribute":
			// Attribute reads that are not the callee of a call.
			parent := tree.ParentOf(n)
			if parent != nil && parent.TSType == "call" && isCalleeOf(tree, parent, n) {
				continue
			}
			if u := usageFromAttribute(tree, n); u != nil {
				batch.Usages = append(batch.Usages, u)
			}
		}
	}
}

// usageFromCall resolves the callee chain of a call expression.
func usageFromCall(tree *cst.Tree, call *cst.Node) *store.Usage {
	callee := calleeOf(tree, call)
	if callee == nil {
		return nil
	}
	line, _, _, _ := call.Span()
	context := call.QualName

	switch callee.TSType {
	case "identifier":
		return &store.Usage{
			Line:       line,
			Kind:       store.UsageFunctionCall,
			TargetName: tree.CodeForNode(callee),
			Context:    context,
		}
	case "attribute":
		object, attr := splitAttribute(tree, callee)
		if attr == "" {
			return nil
		}
		return &store.Usage{
			Line:        line,
			Kind:        store.UsageMethodCall,
			TargetName:  attr,
			TargetClass: resolveTargetClass(object, callee.QualName),
			Context:     context,
		}
	}
	return nil
}

// usageFromAttribute records a plain attribute access.
func usageFromAttribute(tree *cst.Tree, attrNode *cst.Node) *store.Usage {
	object, attr := splitAttribute(tree, attrNode)
	if attr == "" {
		return nil
	}
	line, _, _, _ := attrNode.Span()
	return &store.Usage{
		Line:        line,
		Kind:        store.UsageAttributeAccess,
		TargetName:  attr,
		TargetClass: resolveTargetClass(object, attrNode.QualName),
		Context:     attrNode.QualName,
	}
}

// calleeOf returns the function child of a call node.
func calleeOf(tree *cst.Tree, call *cst.Node) *cst.Node {
	children := tree.ChildNodes(call)
	if len(children) == 0 {
		return nil
	}
	// tree-sitter lays out call as (function, argument_list).
	first := children[0]
	if first.TSType == "identifier" || first.TSType == "attribute" {
		return first
	}
	return nil
}

func isCalleeOf(tree *cst.Tree, call, node *cst.Node) bool {
	c := calleeOf(tree, call)
	return c != nil && c.ID == node.ID
}

// splitAttribute decomposes `object.attr` into its object text and final
// attribute name.
func splitAttribute(tree *cst.Tree, attrNode *cst.Node) (object, attr string) {
	children := tree.ChildNodes(attrNode)
	var parts []*cst.Node
	for _, c := range children {
		if c.TSType == "identifier" || c.TSType == "attribute" || c.TSType == "call" {
			parts = append(parts, c)
		}
	}
	if len(parts) < 2 {
		return "", ""
	}
	return tree.CodeForNode(parts[0]), tree.CodeForNode(parts[len(parts)-1])
}

// resolveTargetClass applies the syntactic heuristic: `self.x` binds to the
// enclosing class; a capitalized object name is taken as a class reference.
func resolveTargetClass(object, qualName string) string {
	if object == "self" || object == "cls" ||
		strings.HasPrefix(object, "self.") || strings.HasPrefix(object, "cls.") {
		// The enclosing class is the qualname prefix.
		if idx := strings.Index(qualName, "."); idx > 0 {
			return qualName[:idx]
		}
		return qualName
	}
	r, _ := utf8.DecodeRuneInString(object)
	if r != utf8.RuneError && unicode.IsUpper(r) && !strings.Contains(object, ".") {
		return object
	}
	return ""
}
