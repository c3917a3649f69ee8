package acfg

import (
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
)

// Optimize drives the fixpoint loop described in spec.md §4.3: repeat
// {changed = removeStubs | removeBranches | returns | peephole} while
// changed. Each pass is monotone on a finite lattice (stub removal
// decreases the node count, branch collapse specializes OutputInst, and
// tail-call folding, suffix merging and the peephole shrink the total
// Code length), so the loop is guaranteed to terminate (spec.md §5).
func (g *Graph) Optimize() {
	for {
		changed := g.removeStubs()
		changed = g.removeBranches() || changed
		changed = g.returns() || changed
		changed = g.peephole() || changed
		if !changed {
			return
		}
	}
}

// removeStubs deletes any non-entry node whose Code is empty and either
// has no inputs (fully dead) or has exactly one output distinct from
// itself (bypass, rewiring every input past it) (spec.md §4.3).
func (g *Graph) removeStubs() bool {
	entry := g.Entry()
	changed := false
	for i := 0; i < len(g.nodes); {
		n := g.nodes[i]
		if n == entry || len(n.Code) != 0 {
			i++
			continue
		}
		switch {
		case len(n.Inputs) == 0:
			g.pruneDetached(n)
			changed = true
			continue // g.nodes shrank in place; re-check index i
		case len(n.Outputs) == 1 && n.Outputs[0].Node != n:
			target := n.Outputs[0].Node
			for len(n.Inputs) > 0 {
				pred := n.Inputs[len(n.Inputs)-1]
				idx := pred.findOutput(n)
				invariant(idx >= 0, "stub %d has input %d with no matching output", n.ID, pred.ID)
				pred.replaceOutput(idx, target)
			}
			g.pruneDetached(n)
			changed = true
			continue
		default:
			i++
		}
	}
	return changed
}

// pruneDetached removes n's own outputs and then prunes it; n's inputs
// must already be empty by the time this is called.
func (g *Graph) pruneDetached(n *Node) {
	g.prune(n)
}

// removeBranches collapses any node whose ≥2 outputs all target the same
// (node, caseValue) pair down to one edge, rewriting OutputInst to
// JMP_ABSOLUTE (spec.md §4.3).
func (g *Graph) removeBranches() bool {
	changed := false
	for _, n := range g.nodes {
		if len(n.Outputs) < 2 {
			continue
		}
		first := n.Outputs[0]
		allSame := true
		for _, e := range n.Outputs[1:] {
			if e.Node != first.Node || e.CaseValue != first.CaseValue {
				allSame = false
				break
			}
		}
		if !allSame {
			continue
		}
		for len(n.Outputs) > 1 {
			n.removeOutput(len(n.Outputs) - 1)
		}
		n.OutputInst = Inst{Op: isa.JMP_ABSOLUTE}
		changed = true
	}
	return changed
}

// returns applies the tail-call and common-suffix-merge transforms on
// terminal nodes (spec.md §4.3).
func (g *Graph) returns() bool {
	changed := g.tailCallFold()
	changed = g.mergeCommonSuffixes() || changed
	return changed
}

// tailCallFold replaces `JSR foo; RTS` with a single JMP foo terminator,
// for any terminal node whose last Code instruction has a tail-call
// substitution (spec.md §4.3, §8 boundary behavior).
func (g *Graph) tailCallFold() bool {
	changed := false
	for _, n := range g.nodes {
		if len(n.Outputs) != 0 || n.OutputInst.Op != isa.RTS_IMPLIED {
			continue
		}
		if len(n.Code) == 0 {
			continue
		}
		last := n.Code[len(n.Code)-1]
		jmp, ok := isa.TailCallOp(last.Op)
		if !ok {
			continue
		}
		n.OutputInst = Inst{Op: jmp, Arg: last.Arg, Alt: last.Alt}
		n.Code = n.Code[:len(n.Code)-1]
		changed = true
	}
	return changed
}

// mergeCommonSuffixes finds pairs of terminal, non-switch nodes with
// equal OutputInst and factors their longest shared Code suffix (length
// ≥2) into a new shared tail node (spec.md §4.3).
func (g *Graph) mergeCommonSuffixes() bool {
	changed := false
	for a := 0; a < len(g.nodes); a++ {
		a2 := g.nodes[a]
		if len(a2.Outputs) != 0 || isa.IsSwitch(a2.OutputInst.Op) {
			continue
		}
		for b := a + 1; b < len(g.nodes); b++ {
			b2 := g.nodes[b]
			if b2 == a2 || len(b2.Outputs) != 0 || isa.IsSwitch(b2.OutputInst.Op) {
				continue
			}
			if !sameInst(a2.OutputInst, b2.OutputInst) {
				continue
			}
			n := commonSuffixLen(a2.Code, b2.Code)
			if n < 2 {
				continue
			}
			g.factorSuffix(a2, b2, n)
			changed = true
			break
		}
	}
	return changed
}

func sameInst(a, b Inst) bool {
	return a.Op == b.Op && a.Arg == b.Arg && a.Alt == b.Alt
}

func commonSuffixLen(a, b []Inst) int {
	n := 0
	for n < len(a) && n < len(b) && sameInst(a[len(a)-1-n], b[len(b)-1-n]) {
		n++
	}
	return n
}

// factorSuffix creates a new terminal node carrying the shared n-length
// suffix of a and b's Code plus a's OutputInst (a and b were already
// checked equal), truncates both predecessors, and retargets them to the
// new node with a plain jump.
//
// Design note (spec.md §9): the original copies a.output_inst into the
// new tail, then sets both a's and b's own terminators to JMP_ABSOLUTE;
// that is only correct because the equality check above already requires
// a.OutputInst == b.OutputInst, so nothing is lost by discarding b's copy.
func (g *Graph) factorSuffix(a, b *Node, n int) {
	invariant(sameInst(a.OutputInst, b.OutputInst), "suffix merge of nodes %d and %d with different terminators", a.ID, b.ID)
	tail := g.pushNode(loc.None)
	tail.Code = append(tail.Code, a.Code[len(a.Code)-n:]...)
	tail.OutputInst = a.OutputInst

	a.Code = a.Code[:len(a.Code)-n]
	b.Code = b.Code[:len(b.Code)-n]
	a.OutputInst = Inst{Op: isa.JMP_ABSOLUTE}
	b.OutputInst = Inst{Op: isa.JMP_ABSOLUTE}
	a.pushOutput(Edge{Node: tail, CaseValue: noCase})
	b.pushOutput(Edge{Node: tail, CaseValue: noCase})
}

// peephole is the local per-block rewriter spec.md §4.3 leaves undetailed
// beyond requiring it to be confluent with the other passes under the
// fixpoint loop. It removes one classic redundant-reload pattern: an
// instruction that reloads a register from the exact memory operand the
// previous instruction either just loaded it from or just stored it to.
// Deleting an instruction only ever shrinks Code, so this is monotone and
// the fixpoint always terminates.
func (g *Graph) peephole() bool {
	changed := false
	for _, n := range g.nodes {
		if peepholeBlock(n) {
			changed = true
		}
	}
	return changed
}

func peepholeBlock(n *Node) bool {
	changed := false
	for i := 0; i+1 < len(n.Code); i++ {
		if redundantReload(n.Code[i], n.Code[i+1]) {
			n.Code = append(n.Code[:i+1], n.Code[i+2:]...)
			changed = true
			i--
		}
	}
	return changed
}

// redundantReload reports whether b reloads, from the exact operand a just
// touched, a register a already left holding that value — either because a
// was the identical load, or because a stored that same register to that
// same address.
func redundantReload(a, b Inst) bool {
	if a.Arg != b.Arg || a.Alt != b.Alt {
		return false
	}
	bReg := isa.OutputRegs(b.Op) & (isa.RegA | isa.RegX | isa.RegY)
	if bReg == 0 || isa.InputRegs(b.Op)&isa.RegM == 0 || isa.OutputRegs(b.Op)&isa.RegM != 0 {
		return false // b isn't a plain single-register load from memory
	}
	if a.Op == b.Op {
		return true // identical reload
	}
	return isa.InputRegs(a.Op)&bReg != 0 && isa.OutputRegs(a.Op)&isa.RegM != 0 && isa.InputRegs(a.Op)&isa.RegM == 0
}
