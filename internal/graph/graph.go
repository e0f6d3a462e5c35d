// Package graph builds the dependency graph of a unit sequence: a DAG whose
// edge i->j (i before j in program order) exists iff the two units' declared
// footprints conflict. The graph is the sole synchronization structure
// between units; it is built once per sequence and immutable thereafter.
// Edges only ever point forward in program order, so the graph is acyclic
// by construction.
package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/ctxlog"
	"github.com/vk/runcore/internal/resource"
	"github.com/vk/runcore/internal/unit"
)

// Node is one unit's position in the dependency graph.
type Node struct {
	index    int
	unit     unit.Unit
	inDegree int
	// succs holds successor indices in ascending program order, so dispatch
	// of simultaneously-ready units stays deterministic.
	succs []int
}

// Index returns the node's program-order position.
func (n *Node) Index() int {
	return n.index
}

// Unit returns the unit the node schedules.
func (n *Node) Unit() unit.Unit {
	return n.unit
}

// InDegree returns the number of predecessors the node waits on.
func (n *Node) InDegree() int {
	return n.inDegree
}

// Successors returns the node's successor indices in program order. Callers
// must not mutate the returned slice.
func (n *Node) Successors() []int {
	return n.succs
}

// Graph is the immutable dependency graph over a sequence's units.
type Graph struct {
	nodes     []*Node
	roots     []int
	edgeCount int
}

// Build computes the dependency graph of a sequence with a pairwise scan:
// for each pair (i, j) with i < j, an edge i->j is added when any buffer or
// resource use of unit i conflicts with one of unit j. O(n²) in unit count
// times footprint size, which is small per compiled region.
func Build(ctx context.Context, seq unit.Sequence) *Graph {
	logger := ctxlog.FromContext(ctx)

	g := &Graph{nodes: make([]*Node, len(seq))}
	for i, u := range seq {
		g.nodes[i] = &Node{index: i, unit: u}
	}

	for i := 0; i < len(seq); i++ {
		for j := i + 1; j < len(seq); j++ {
			if !conflicts(seq[i], seq[j]) {
				continue
			}
			g.nodes[i].succs = append(g.nodes[i].succs, j)
			g.nodes[j].inDegree++
			g.edgeCount++
		}
	}

	for _, n := range g.nodes {
		if n.inDegree == 0 {
			g.roots = append(g.roots, n.index)
		}
	}

	logger.Debug("Dependency graph built.",
		"units", len(g.nodes), "edges", g.edgeCount, "roots", len(g.roots))
	return g
}

// conflicts reports whether two units' footprints force an ordering.
func conflicts(a, b unit.Unit) bool {
	aBuf, bBuf := a.BufferUses(), b.BufferUses()
	for _, ua := range aBuf {
		for _, ub := range bBuf {
			if buffer.Conflicts(ua, ub) {
				return true
			}
		}
	}
	aRes, bRes := a.ResourceUses(), b.ResourceUses()
	for _, ua := range aRes {
		for _, ub := range bRes {
			if resource.Conflicts(ua, ub) {
				return true
			}
		}
	}
	return false
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node at the given program-order index.
func (g *Graph) Node(i int) *Node {
	return g.nodes[i]
}

// Roots returns the indices of nodes with no predecessors, in program
// order. Callers must not mutate the returned slice.
func (g *Graph) Roots() []int {
	return g.roots
}

// EdgeCount returns the total number of edges.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// Edges returns every edge as an ordered (from, to) pair, sorted by source
// then target. Used for diagnostics and isomorphism checks.
func (g *Graph) Edges() [][2]int {
	edges := make([][2]int, 0, g.edgeCount)
	for _, n := range g.nodes {
		for _, s := range n.succs {
			edges = append(edges, [2]int{n.index, s})
		}
	}
	return edges
}

// Dot renders the graph in Graphviz DOT format for diagnostics.
func (g *Graph) Dot() string {
	var b strings.Builder
	b.WriteString("digraph units {\n")
	b.WriteString("  rankdir=TB;\n")
	for _, n := range g.nodes {
		fmt.Fprintf(&b, "  n%d [label=\"%d: %s %s\"];\n",
			n.index, n.index, n.unit.Kind(), n.unit.Info().OpName)
	}
	for _, n := range g.nodes {
		for _, s := range n.succs {
			fmt.Fprintf(&b, "  n%d -> n%d;\n", n.index, s)
		}
	}
	b.WriteString("}\n")
	return b.String()
}
