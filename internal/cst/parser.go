package cst

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Tree is a parsed module: the original source bytes plus an arena of nodes
// in depth-first pre-order. Nodes[0] is the module root.
type Tree struct {
	Source []byte
	Nodes  []*Node

	lineOffsets []int
}

// Parse parses Python source into a Tree.
// Returns *SyntaxError when the input is malformed.
func Parse(ctx context.Context, source []byte) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tsTree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("parse: nil tree")
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root.HasError() {
		if se := firstSyntaxError(root); se != nil {
			return nil, se
		}
		return nil, &SyntaxError{Line: 1, Col: 0, Msg: "invalid syntax"}
	}

	t := &Tree{Source: source}
	b := &treeBuilder{tree: t, source: source}
	b.visit(root, -1, 0)
	return t, nil
}

// firstSyntaxError locates the first error or missing node.
func firstSyntaxError(n *sitter.Node) *SyntaxError {
	if n.Type() == "ERROR" || n.IsMissing() {
		return &SyntaxError{
			Line: int(n.StartPoint().Row) + 1,
			Col:  int(n.StartPoint().Column),
			Msg:  "invalid syntax",
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil {
			if se := firstSyntaxError(child); se != nil {
				return se
			}
		}
	}
	return nil
}

type treeBuilder struct {
	tree   *Tree
	source []byte

	classStack []string
	funcStack  []string
}

func (b *treeBuilder) visit(tsNode *sitter.Node, parent, depth int) int {
	tsType := tsNode.Type()
	node := &Node{
		ID:         len(b.tree.Nodes),
		TSType:     tsType,
		StartByte:  tsNode.StartByte(),
		EndByte:    tsNode.EndByte(),
		StartPoint: Point{Row: tsNode.StartPoint().Row, Col: tsNode.StartPoint().Column},
		EndPoint:   Point{Row: tsNode.EndPoint().Row, Col: tsNode.EndPoint().Column},
		Parent:     parent,
		Depth:      depth,
	}
	node.Name = b.nodeName(tsNode)
	node.Kind = b.nodeKind(tsNode, parent)
	node.Type = b.canonical(tsNode)
	node.QualName = b.qualName(tsNode, node.Kind)
	b.tree.Nodes = append(b.tree.Nodes, node)
	id := node.ID

	enteredClass := false
	enteredFunc := false
	switch tsType {
	case "class_definition":
		b.classStack = append(b.classStack, node.Name)
		enteredClass = true
	case "function_definition":
		b.funcStack = append(b.funcStack, node.Name)
		enteredFunc = true
	}

	for i := 0; i < int(tsNode.ChildCount()); i++ {
		child := tsNode.Child(i)
		if child == nil {
			continue
		}
		childID := b.visit(child, id, depth+1)
		node.Children = append(node.Children, childID)
	}

	if enteredFunc {
		b.funcStack = b.funcStack[:len(b.funcStack)-1]
	}
	if enteredClass {
		b.classStack = b.classStack[:len(b.classStack)-1]
	}
	return id
}

func (b *treeBuilder) nodeName(tsNode *sitter.Node) string {
	switch tsNode.Type() {
	case "class_definition", "function_definition":
		if nameNode := tsNode.ChildByFieldName("name"); nameNode != nil {
			return string(b.source[nameNode.StartByte():nameNode.EndByte()])
		}
	case "identifier":
		return string(b.source[tsNode.StartByte():tsNode.EndByte()])
	}
	return ""
}

func (b *treeBuilder) nodeKind(tsNode *sitter.Node, parent int) Kind {
	tsType := tsNode.Type()
	switch {
	case parent == -1:
		return KindModule
	case tsType == "class_definition":
		return KindClass
	case tsType == "function_definition":
		if len(b.classStack) > 0 {
			return KindMethod
		}
		return KindFunction
	case IsImportType(tsType):
		return KindImport
	default:
		if _, ok := smallStmtTypes[tsType]; ok {
			return KindSmallStmt
		}
		if _, ok := compoundStmtTypes[tsType]; ok {
			return KindStmt
		}
		return KindNode
	}
}

// canonical resolves the wire-level node type. Expression statements take
// the shape of their payload so `[type="Assign"]` selects assignments.
func (b *treeBuilder) canonical(tsNode *sitter.Node) string {
	if tsNode.Type() != "expression_statement" {
		return canonicalType(tsNode.Type())
	}
	for i := 0; i < int(tsNode.NamedChildCount()); i++ {
		switch tsNode.NamedChild(i).Type() {
		case "assignment":
			return "Assign"
		case "augmented_assignment":
			return "AugAssign"
		}
	}
	return "Expr"
}

func (b *treeBuilder) qualName(tsNode *sitter.Node, kind Kind) string {
	name := b.nodeName(tsNode)
	switch kind {
	case KindClass:
		return strings.Join(append(append([]string{}, b.classStack...), name), ".")
	case KindFunction, KindMethod:
		if len(b.classStack) > 0 {
			return strings.Join(append(append([]string{}, b.classStack...), name), ".")
		}
		return strings.Join(append(append([]string{}, b.funcStack...), name), ".")
	default:
		if len(b.classStack) == 0 && len(b.funcStack) == 0 {
			return ""
		}
		return strings.Join(append(append([]string{}, b.classStack...), b.funcStack...), ".")
	}
}

// Root returns the module node.
func (t *Tree) Root() *Node {
	return t.Nodes[0]
}

// CodeForNode returns the exact source slice for a node.
func (t *Tree) CodeForNode(n *Node) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(t.Source) {
		return ""
	}
	return string(t.Source[n.StartByte:n.EndByte])
}

// ChildNodes resolves a node's children from the arena.
func (t *Tree) ChildNodes(n *Node) []*Node {
	out := make([]*Node, 0, len(n.Children))
	for _, id := range n.Children {
		out = append(out, t.Nodes[id])
	}
	return out
}

// ParentOf returns the parent node, or nil for the root.
func (t *Tree) ParentOf(n *Node) *Node {
	if n.Parent < 0 {
		return nil
	}
	return t.Nodes[n.Parent]
}

// Unwrap looks through decorated_definition wrappers to the inner def.
func (t *Tree) Unwrap(n *Node) *Node {
	if n.TSType != "decorated_definition" {
		return n
	}
	for _, c := range t.ChildNodes(n) {
		if c.TSType == "class_definition" || c.TSType == "function_definition" {
			return c
		}
	}
	return n
}

// TopLevel returns the module's top-level statements (comments included).
func (t *Tree) TopLevel() []*Node {
	return t.ChildNodes(t.Root())
}

// BodyOf returns the statement list of a class or function body block.
// For the module it returns the top-level statements.
func (t *Tree) BodyOf(n *Node) []*Node {
	if n.Kind == KindModule {
		return t.TopLevel()
	}
	n = t.Unwrap(n)
	for _, c := range t.ChildNodes(n) {
		if c.TSType == "block" {
			return t.ChildNodes(c)
		}
	}
	return nil
}

// Docstring extracts the leading docstring of a module, class or def.
// The returned text has quotes stripped and surrounding whitespace trimmed.
func (t *Tree) Docstring(n *Node) (string, bool) {
	for _, stmt := range t.BodyOf(n) {
		if stmt.TSType == "comment" {
			continue
		}
		if stmt.TSType != "expression_statement" {
			return "", false
		}
		for _, c := range t.ChildNodes(stmt) {
			if c.TSType == "string" {
				return StripStringQuotes(t.CodeForNode(c)), true
			}
		}
		return "", false
	}
	return "", false
}

// StripStringQuotes removes string prefixes and quote delimiters from a
// Python string literal, trimming surrounding whitespace from the content.
func StripStringQuotes(literal string) string {
	s := strings.TrimSpace(literal)
	for len(s) > 0 {
		c := s[0] | 0x20 // lowercase
		if c == 'r' || c == 'b' || c == 'u' || c == 'f' {
			s = s[1:]
			continue
		}
		break
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}

// LineOffsets returns the byte offset of each line start, 0-indexed by line.
func (t *Tree) LineOffsets() []int {
	if t.lineOffsets == nil {
		t.lineOffsets = LineOffsets(t.Source)
	}
	return t.lineOffsets
}

// LineOffsets computes line-start byte offsets for arbitrary source.
func LineOffsets(source []byte) []int {
	offsets := []int{0}
	for i, b := range source {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// LineCount returns the number of lines in the source.
func (t *Tree) LineCount() int {
	return len(t.LineOffsets())
}
