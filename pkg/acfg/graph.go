// Package acfg is the Assembly Control-Flow Graph back-end: it takes a
// flat stream of lowered, pseudo-register-allocated instructions and
// turns it into basic blocks, optimizes them, computes liveness, resolves
// maybe-store placeholders, chooses a linear block order, and reflows the
// result into a final instruction stream with resolved labels and switch
// tables.
package acfg

import (
	"github.com/crank-lang/crank/internal/trace"
	"github.com/crank-lang/crank/pkg/loc"
)

// Graph owns every Node created for one function (spec.md §5: the ACFG is
// single-threaded per function and owns its own node pool — there is no
// sharing across functions).
type Graph struct {
	EntryLabel loc.Locator

	nodes    []*Node
	labelMap map[loc.Locator]*Node
	nextID   int

	builder *builderState

	log *trace.Logger
}

// New creates a graph with one initial node labeled entryLabel (spec.md
// §6, "new(entry_label, log)"). log may be nil, in which case diagnostics
// are discarded.
func New(entryLabel loc.Locator, log *trace.Logger) *Graph {
	if log == nil {
		log = trace.Discard
	}
	g := &Graph{EntryLabel: entryLabel, labelMap: make(map[loc.Locator]*Node), log: log}
	entry := g.pushNode(entryLabel)
	g.log.Point("GRAPH_NEW", entryLabel)
	_ = entry
	return g
}

// pushNode allocates a new node, appends it to the node pool, and
// registers its label if it carries one.
func (g *Graph) pushNode(label loc.Locator) *Node {
	n := newNode(g.nextID, label)
	g.nextID++
	g.nodes = append(g.nodes, n)
	if label.Valid() {
		g.labelMap[label] = n
	}
	return n
}

// last returns the graph's most recently created node: the Builder's
// "current node" (spec.md §4.2).
func (g *Graph) last() *Node {
	return g.nodes[len(g.nodes)-1]
}

// Nodes returns every live node in the graph, in pool order: creation
// order until a prune, which moves the last node into the pruned node's
// slot. Callers must not mutate the returned slice.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NodeCount reports the number of live nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Entry returns the graph's entry node: the one node whose label equals
// EntryLabel, which is never pruned (spec.md §3).
func (g *Graph) Entry() *Node { return g.labelMap[g.EntryLabel] }

// Lookup returns the node registered under label, if any.
func (g *Graph) Lookup(label loc.Locator) (*Node, bool) {
	n, ok := g.labelMap[label]
	return n, ok
}

// prune removes n from the node pool after detaching every output; n must
// already have no inputs (spec.md §3, "prune removes a node only after
// detaching all outputs; its inputs must already be empty").
func (g *Graph) prune(n *Node) {
	if len(n.Inputs) != 0 {
		panic("acfg: prune of node with live inputs")
	}
	for len(n.Outputs) > 0 {
		n.removeOutput(len(n.Outputs) - 1)
	}
	if n.Label.Valid() {
		delete(g.labelMap, n.Label)
	}
	for i, m := range g.nodes {
		if m == n {
			last := len(g.nodes) - 1
			g.nodes[i] = g.nodes[last]
			g.nodes = g.nodes[:last]
			return
		}
	}
}
