package cstquery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
)

// Match is a single selector match with its stable span-based id.
//
// Node ids are regenerated on every parse and are only stable for unchanged
// source bytes; callers must refresh ids after any edit.
type Match struct {
	NodeID    string `json:"node_id"`
	Kind      string `json:"kind"`
	NodeType  string `json:"node_type"`
	Name      string `json:"name,omitempty"`
	QualName  string `json:"qualname,omitempty"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	Code      string `json:"code,omitempty"`

	// node is the matched arena node, used by the patcher.
	node *cst.Node
}

// Node returns the underlying CST node.
func (m *Match) Node() *cst.Node {
	return m.node
}

// NodeID formats the stable node identifier for a CST node:
//
//	{kind}:{qualname or ""}:{node_type}:{start_line}:{start_col}-{end_line}:{end_col}
func NodeID(n *cst.Node) string {
	sl, sc, el, ec := n.Span()
	return fmt.Sprintf("%s:%s:%s:%d:%d-%d:%d", n.Kind, n.QualName, n.Type, sl, sc, el, ec)
}

// ParsedNodeID is a decoded node identifier.
type ParsedNodeID struct {
	Kind      string
	QualName  string
	NodeType  string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// ParseNodeID decodes a node id produced by NodeID.
func ParseNodeID(nodeID string) (*ParsedNodeID, error) {
	parts := strings.SplitN(strings.TrimSpace(nodeID), ":", 4)
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid node_id: %s", nodeID)
	}
	span := parts[3]
	dash := strings.Index(span, "-")
	if dash < 0 {
		return nil, fmt.Errorf("invalid node_id span: %s", nodeID)
	}
	start := strings.SplitN(span[:dash], ":", 2)
	end := strings.SplitN(span[dash+1:], ":", 2)
	if len(start) != 2 || len(end) != 2 {
		return nil, fmt.Errorf("invalid node_id span: %s", nodeID)
	}
	sl, err1 := strconv.Atoi(start[0])
	sc, err2 := strconv.Atoi(start[1])
	el, err3 := strconv.Atoi(end[0])
	ec, err4 := strconv.Atoi(end[1])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return nil, fmt.Errorf("invalid node_id span: %s", nodeID)
	}
	return &ParsedNodeID{
		Kind:      parts[0],
		QualName:  parts[1],
		NodeType:  parts[2],
		StartLine: sl,
		StartCol:  sc,
		EndLine:   el,
		EndCol:    ec,
	}, nil
}

// Execute evaluates a parsed query against a tree and returns ordered
// matches. When includeCode is set each match carries its source slice.
func Execute(tree *cst.Tree, q *Query, includeCode bool) []*Match {
	current := applyStep(tree, tree.Nodes, q.First)
	for _, part := range q.Rest {
		candidates := applyStep(tree, tree.Nodes, part.Step)
		current = applyCombinator(tree, current, candidates, part.Combinator)
	}

	out := make([]*Match, 0, len(current))
	for _, n := range current {
		sl, sc, el, ec := n.Span()
		m := &Match{
			NodeID:    NodeID(n),
			Kind:      string(n.Kind),
			NodeType:  n.Type,
			Name:      n.Name,
			QualName:  n.QualName,
			StartLine: sl,
			StartCol:  sc,
			EndLine:   el,
			EndCol:    ec,
			node:      n,
		}
		if includeCode {
			m.Code = tree.CodeForNode(n)
		}
		out = append(out, m)
	}
	return out
}

// Run parses and executes a selector against a tree.
func Run(tree *cst.Tree, selector string, includeCode bool) ([]*Match, error) {
	q, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	return Execute(tree, q, includeCode), nil
}

func applyStep(tree *cst.Tree, nodes []*cst.Node, step Step) []*cst.Node {
	var matched []*cst.Node
	for _, n := range nodes {
		if matchesStep(n, step) {
			matched = append(matched, n)
		}
	}
	for _, pseudo := range step.Pseudos {
		switch pseudo.Kind {
		case PseudoFirst:
			if len(matched) > 1 {
				matched = matched[:1]
			}
		case PseudoLast:
			if len(matched) > 0 {
				matched = matched[len(matched)-1:]
			}
		case PseudoNth:
			if pseudo.Index >= 0 && pseudo.Index < len(matched) {
				matched = matched[pseudo.Index : pseudo.Index+1]
			} else {
				matched = nil
			}
		}
	}
	return matched
}

func applyCombinator(tree *cst.Tree, prev, next []*cst.Node, comb Combinator) []*cst.Node {
	if len(prev) == 0 || len(next) == 0 {
		return nil
	}
	prevSet := make(map[int]struct{}, len(prev))
	for _, p := range prev {
		prevSet[p.ID] = struct{}{}
	}

	var out []*cst.Node
	for _, n := range next {
		if comb == CombinatorChild {
			if n.Parent >= 0 {
				if _, ok := prevSet[n.Parent]; ok {
					out = append(out, n)
				}
			}
			continue
		}
		for p := n.Parent; p >= 0; p = tree.Nodes[p].Parent {
			if _, ok := prevSet[p]; ok {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

var kindAliases = map[string]struct{}{
	"module": {}, "class": {}, "function": {}, "method": {},
	"stmt": {}, "smallstmt": {}, "import": {}, "node": {},
}

func matchesStep(n *cst.Node, step Step) bool {
	if !matchesNodeType(n, step.Type) {
		return false
	}
	for _, pred := range step.Predicates {
		if !matchesPredicate(n, pred) {
			return false
		}
	}
	return true
}

func matchesNodeType(n *cst.Node, nodeType string) bool {
	t := strings.TrimSpace(nodeType)
	if t == "" || t == "*" {
		return true
	}
	alias := strings.ToLower(t)
	if _, ok := kindAliases[alias]; ok {
		return string(n.Kind) == alias
	}
	// Concrete node type, case-insensitive; the raw grammar name also works.
	return strings.EqualFold(n.Type, t) || strings.EqualFold(n.TSType, t)
}

func matchesPredicate(n *cst.Node, pred Predicate) bool {
	val, ok := attrValue(n, pred.Attr)
	if !ok {
		return false
	}
	switch pred.Op {
	case OpEq:
		return val == pred.Value
	case OpNe:
		return val != pred.Value
	case OpContains:
		return strings.Contains(val, pred.Value)
	case OpPrefix:
		return strings.HasPrefix(val, pred.Value)
	case OpSuffix:
		return strings.HasSuffix(val, pred.Value)
	}
	return false
}

func attrValue(n *cst.Node, attr string) (string, bool) {
	sl, _, el, _ := n.Span()
	switch strings.ToLower(attr) {
	case "type":
		return n.Type, true
	case "kind":
		return string(n.Kind), true
	case "name":
		if n.Name == "" {
			return "", false
		}
		return n.Name, true
	case "qualname":
		if n.QualName == "" {
			return "", false
		}
		return n.QualName, true
	case "start_line":
		return strconv.Itoa(sl), true
	case "end_line":
		return strconv.Itoa(el), true
	}
	return "", false
}
