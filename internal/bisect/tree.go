package bisect

import (
	"fmt"
	"strings"

	"github.com/apfelbeet/crs/internal/adag"
	"github.com/apfelbeet/crs/internal/regression"
)

// childKind tags which of the three states a speculation-tree edge is in.
type childKind int

const (
	// childEnd means this branch provably has no regression point: every
	// commit under it is known (or assumed) to share the same result.
	childEnd childKind = iota
	// childUnknown means this branch hasn't been speculated into yet.
	childUnknown
	// childNext means this branch points at a concrete candidate node.
	childNext
)

// child is one edge of the speculation tree: either unexplored, a dead
// end, or a concrete node to recurse into.
type child struct {
	kind childKind
	node *node
}

var (
	unknownChild = child{kind: childUnknown}
	endChild     = child{kind: childEnd}
)

// node is one commit positioned in the speculation tree: its right branch
// is "if this commit turns out Pass (or Skip)", its left branch is "if it
// turns out Fail".
type node struct {
	index adag.NodeID
	left  child
	right child
}

func nodeChild(id adag.NodeID) child {
	return child{kind: childNext, node: &node{index: id, left: unknownChild, right: unknownChild}}
}

func childFromBisection(id adag.NodeID, ok bool) child {
	if !ok {
		return endChild
	}
	return nodeChild(id)
}

// display renders the speculation tree for the per-iteration log summary
// as nested, marker-prefixed lines.
func display(c child, graph *adag.Adag[struct{}], results map[adag.NodeID]regression.TestResult) string {
	type frame struct {
		c     child
		level int
		dir   int // -1 none, 0 left, 1 right
	}
	var out strings.Builder
	stack := []frame{{c: c, level: 0, dir: -1}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		indent := strings.Repeat("   |", f.level)
		marker := ""
		switch f.dir {
		case 1:
			marker = "+++"
		case 0:
			marker = "---"
		}

		var label string
		switch f.c.kind {
		case childNext:
			n := f.c.node
			stack = append(stack, frame{c: n.left, level: f.level + 1, dir: 0})
			stack = append(stack, frame{c: n.right, level: f.level + 1, dir: 1})
			hash := graph.Hash(n.index)
			if res, ok := results[n.index]; ok {
				label = fmt.Sprintf("%s (%s)", hash, res)
			} else {
				label = hash
			}
		case childUnknown:
			label = "unknown"
		case childEnd:
			label = "end"
		}

		out.WriteString(fmt.Sprintf("%s%s %s\n", indent, marker, label))
	}

	return out.String()
}
