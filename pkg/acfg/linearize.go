package acfg

import (
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
)

// ToLinear lowers the optimized graph, walked in the given node order, into
// a flat instruction stream (spec.md §4.7). order is expected to be the
// result of Order(), but any permutation covering every node exactly once
// is accepted.
func (g *Graph) ToLinear(order []*Node) []Inst {
	vid := make(map[*Node]int, len(order))
	for i, n := range order {
		vid[n] = i
	}

	var tableCode []Inst
	for _, n := range order {
		if isa.IsSwitch(n.OutputInst.Op) {
			g.emitSwitchTable(n, vid, &tableCode)
		}
	}

	var code []Inst
	for i, n := range order {
		var prev, next *Node
		if i > 0 {
			prev = order[i-1]
		}
		if i+1 < len(order) {
			next = order[i+1]
		}
		if g.needsLabel(n, prev) {
			code = append(code, Inst{Op: isa.ASM_LABEL, Arg: effectiveLabel(n, vid[n])})
		}
		code = append(code, n.Code...)
		code = append(code, emitTerminator(n, vid, next)...)
	}

	return append(code, tableCode...)
}

// needsLabel reports whether node n must be preceded by a label during
// emission (spec.md §4.7 step 3).
func (g *Graph) needsLabel(n, prev *Node) bool {
	if n == g.Entry() {
		return true
	}
	if len(n.Inputs) >= 2 {
		return true
	}
	if len(n.Inputs) == 1 && n.Inputs[0] != prev {
		return true
	}
	for _, in := range n.Inputs {
		if isa.IsSwitch(in.OutputInst.Op) {
			return true
		}
	}
	return false
}

// effectiveLabel is node.label if it carries a real source label, or else
// its synthesized minor label (spec.md §4.7 step 1).
func effectiveLabel(n *Node, vid int) loc.Locator {
	if n.Label.Valid() && n.Label.Class() != loc.MinorLabel {
		return n.Label
	}
	return loc.MinorLabelOf(vid)
}

// emitTerminator emits node n's control transfer, eliding whichever edge
// targets next and inverting the branch condition when the physically next
// node is the edge the unmodified branch would have targeted (spec.md §4.7
// step 3).
func emitTerminator(n *Node, vid map[*Node]int, next *Node) []Inst {
	switch {
	case len(n.Outputs) == 0, isa.IsSwitch(n.OutputInst.Op):
		return []Inst{n.OutputInst}

	case len(n.Outputs) == 1:
		e := n.Outputs[0]
		if e.Node == next {
			return nil
		}
		return []Inst{{Op: isa.JMP_ABSOLUTE, Arg: effectiveLabel(e.Node, vid[e.Node])}}

	default:
		invariant(isa.IsBranch(n.OutputInst.Op), "node %d: 2-output terminator %v is not a branch", n.ID, n.OutputInst.Op)
		e0, e1 := n.Outputs[0], n.Outputs[1]
		switch {
		case e1.Node == next:
			return []Inst{{Op: n.OutputInst.Op, Arg: effectiveLabel(e0.Node, vid[e0.Node])}}
		case e0.Node == next:
			inv, ok := isa.InvertBranch(n.OutputInst.Op)
			invariant(ok, "node %d: branch op %v has no inverse", n.ID, n.OutputInst.Op)
			return []Inst{{Op: inv, Arg: effectiveLabel(e1.Node, vid[e1.Node])}}
		default:
			return []Inst{
				{Op: n.OutputInst.Op, Arg: effectiveLabel(e0.Node, vid[e0.Node])},
				{Op: isa.JMP_ABSOLUTE, Arg: effectiveLabel(e1.Node, vid[e1.Node])},
			}
		}
	}
}

// emitSwitchTable materializes the low/high jump-table pair for one switch
// terminator into tableCode, and adjusts the terminator's own operand
// offsets to index the table from zero (spec.md §4.7 step 2).
func (g *Graph) emitSwitchTable(n *Node, vid map[*Node]int, tableCode *[]Inst) {
	if len(n.Outputs) == 0 {
		return
	}
	cfg := n.OutputInst.Arg.CFGNode()

	min, max := n.Outputs[0].CaseValue, n.Outputs[0].CaseValue
	for _, e := range n.Outputs[1:] {
		if e.CaseValue < min {
			min = e.CaseValue
		}
		if e.CaseValue > max {
			max = e.CaseValue
		}
	}
	size := int(max-min) + 1
	invariant(size <= 256, "node %d: switch table size %d exceeds 256", n.ID, size)

	n.OutputInst.Arg.AdvanceOffset(int(-min))
	if n.OutputInst.Alt.Valid() {
		n.OutputInst.Alt.AdvanceOffset(int(-min))
	}

	lo := make([]loc.Locator, size)
	hi := make([]loc.Locator, size)
	for i := range lo {
		lo[i] = loc.ConstByteOf(0)
		hi[i] = loc.ConstByteOf(0)
	}
	for _, e := range n.Outputs {
		idx := int(e.CaseValue - min)
		base := effectiveLabel(e.Node, vid[e.Node]).WithAdvanceOffset(-1)
		lo[idx] = base.WithIs(loc.IsPtr)
		hi[idx] = base.WithIs(loc.IsPtrHi)
	}

	*tableCode = append(*tableCode, Inst{Op: isa.ASM_LABEL, Arg: loc.SwitchLoTableOf(cfg)})
	for _, l := range lo {
		*tableCode = append(*tableCode, Inst{Op: isa.ASM_DATA, Arg: l})
	}
	*tableCode = append(*tableCode, Inst{Op: isa.ASM_LABEL, Arg: loc.SwitchHiTableOf(cfg)})
	for _, l := range hi {
		*tableCode = append(*tableCode, Inst{Op: isa.ASM_DATA, Arg: l})
	}
}
