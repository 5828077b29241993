// Package model defines core data structures for quid.
package model

// CallRecord is one row of the call catalog: Program calls Subprogram.
// Several rows for the same pair differ only by Sequence.
type CallRecord struct {
	Program    string
	Sequence   string
	Subprogram string
}

// FileRecord is one row of the file-usage catalog: Program opens File
// with the access mode OpenType.
type FileRecord struct {
	Program    string
	Sequence   string
	File       string
	OpenType   string
	OpenNumber string
}

// FileRef is a file used by a program. It is also the dedup key of the
// file index, so OpenNumber is deliberately absent.
type FileRef struct {
	Name     string `json:"NAME"`
	OpenType string `json:"TYPOPEN"`
}

// CallNode is a node of a decorated call tree. Every occurrence of a
// program in the tree gets its own node.
type CallNode struct {
	Program   string      `json:"PROGRAM"`
	Calls     []*CallNode `json:"CALLS"`
	UsedFiles []FileRef   `json:"USED_FILES"`
}

// NewLeaf returns a node for program with no calls and no files.
func NewLeaf(program string) *CallNode {
	return &CallNode{
		Program:   program,
		Calls:     []*CallNode{},
		UsedFiles: []FileRef{},
	}
}

// Walk visits n and its descendants in pre-order. depth is 0 for n.
// Returning false from fn skips the node's children.
func (n *CallNode) Walk(fn func(node, parent *CallNode, depth int) bool) {
	n.walk(nil, 0, fn)
}

func (n *CallNode) walk(parent *CallNode, depth int, fn func(node, parent *CallNode, depth int) bool) {
	if !fn(n, parent, depth) {
		return
	}
	for _, c := range n.Calls {
		c.walk(n, depth+1, fn)
	}
}

// Size returns the number of nodes in the tree rooted at n.
func (n *CallNode) Size() int {
	count := 0
	n.Walk(func(*CallNode, *CallNode, int) bool {
		count++
		return true
	})
	return count
}

// Depth returns the deepest nesting level below n (0 for a leaf).
func (n *CallNode) Depth() int {
	deepest := 0
	n.Walk(func(_ *CallNode, _ *CallNode, depth int) bool {
		if depth > deepest {
			deepest = depth
		}
		return true
	})
	return deepest
}
