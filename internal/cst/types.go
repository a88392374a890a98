// Package cst provides the concrete-syntax-tree layer over Python source.
//
// Parsing is done with tree-sitter; the resulting tree is lossless with
// respect to the original bytes because every node carries byte-accurate
// spans into the unmodified source. Nodes live in an arena slice with parent
// indices instead of back-pointers, so the tree can be shared read-only.
package cst

import "fmt"

// Kind is the abstract node classification used by selectors and patches.
type Kind string

const (
	KindModule    Kind = "module"
	KindClass     Kind = "class"
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindImport    Kind = "import"
	KindSmallStmt Kind = "smallstmt"
	KindStmt      Kind = "stmt"
	KindNode      Kind = "node"
)

// Point is a zero-based row/column position.
type Point struct {
	Row uint32
	Col uint32
}

// Node is a single CST node stored in the tree arena.
type Node struct {
	// ID is the node's index in Tree.Nodes (depth-first pre-order).
	ID int
	// TSType is the raw tree-sitter node type, e.g. "return_statement".
	TSType string
	// Type is the canonical node type exposed on the wire, e.g. "Return".
	Type string
	// Kind is the abstract classification.
	Kind Kind
	// Name is the identifier for defs and names, empty otherwise.
	Name string
	// QualName is the dotted qualified name, empty at module level.
	QualName string

	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point

	// Parent is the arena index of the parent node, -1 for the root.
	Parent int
	// Children are arena indices in source order.
	Children []int
	// Depth is the distance from the root.
	Depth int
}

// Span returns the node's span with 1-based lines and 0-based columns.
func (n *Node) Span() (startLine, startCol, endLine, endCol int) {
	return int(n.StartPoint.Row) + 1, int(n.StartPoint.Col),
		int(n.EndPoint.Row) + 1, int(n.EndPoint.Col)
}

// SyntaxError reports malformed input.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Col, e.Msg)
}
