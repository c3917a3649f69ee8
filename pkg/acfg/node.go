package acfg

import "github.com/crank-lang/crank/pkg/loc"

// Node is one basic block (spec.md §3, asm_node). Rather than the
// original's overlaid vcover/vorder/vlive scratch union (spec.md §9,
// design note on scratch unions), each pass that needs per-node scratch
// state owns a side map keyed by Node.ID or *Node — the union trick is a
// memory optimization the source needed and a safe reimplementation does
// not.
type Node struct {
	// ID is assigned monotonically at creation and never reused; it also
	// serves as spec.md's original_order tie-breaker.
	ID int

	Label loc.Locator

	Code       []Inst
	OutputInst Inst

	Outputs []Edge
	Inputs  []*Node

	CFG loc.CFGNodeRef
}

func newNode(id int, label loc.Locator) *Node {
	return &Node{ID: id, Label: label}
}

// pushOutput appends edge to n.Outputs, and if edge.Node is non-nil,
// records the reciprocal input (spec.md §4.1, push_output).
func (n *Node) pushOutput(edge Edge) {
	n.Outputs = append(n.Outputs, edge)
	if edge.Node != nil {
		edge.Node.Inputs = append(edge.Node.Inputs, n)
	}
}

// removeOutput unlinks the reciprocal input on the target (swap-pop) and
// swap-pops outputs[i] itself (spec.md §4.1, remove_output). Order within
// Outputs is not preserved.
func (n *Node) removeOutput(i int) {
	target := n.Outputs[i].Node
	if target != nil {
		removeInputSwapPop(target, n)
	}
	last := len(n.Outputs) - 1
	n.Outputs[i] = n.Outputs[last]
	n.Outputs = n.Outputs[:last]
}

// replaceOutput detaches the old reciprocal input (if any) and installs
// with in its place, preserving outputs[i]'s position and case value
// (spec.md §4.1, replace_output). with may be nil.
func (n *Node) replaceOutput(i int, with *Node) {
	old := n.Outputs[i].Node
	if old != nil {
		removeInputSwapPop(old, n)
	}
	n.Outputs[i].Node = with
	if with != nil {
		with.Inputs = append(with.Inputs, n)
	}
}

// findOutput returns the first index whose edge targets target, or -1.
func (n *Node) findOutput(target *Node) int {
	for i, e := range n.Outputs {
		if e.Node == target {
			return i
		}
	}
	return -1
}

// findInput returns the first index in n.Inputs equal to source, or -1.
func (n *Node) findInput(source *Node) int {
	for i, p := range n.Inputs {
		if p == source {
			return i
		}
	}
	return -1
}

func removeInputSwapPop(target, source *Node) {
	for i, p := range target.Inputs {
		if p == source {
			last := len(target.Inputs) - 1
			target.Inputs[i] = target.Inputs[last]
			target.Inputs = target.Inputs[:last]
			return
		}
	}
}
