package acfg

import (
	"github.com/crank-lang/crank/pkg/ir"
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
)

// deferredEdge records a (node, output-slot, label) triple awaiting
// resolution at finishAppending (spec.md §4.2): the node is known and a
// placeholder edge already reserves its slot in node.Outputs, but the
// target depends on a label that may not exist yet.
type deferredEdge struct {
	node  *Node
	index int
	label loc.Locator
}

// builderState holds the Builder's deferred edges across
// Graph.AppendCode/FinishAppending calls (spec.md §4.2, §6).
// Kept as a field on Graph rather than a separate type the caller must
// thread through, matching the exposed interface's shape
// (new/append_code/finish_appending on the same graph handle).
type builderState struct {
	deferred []deferredEdge
	finished bool
}

// AppendCode consumes one contiguous instruction buffer, dispatching each
// input op per the table in spec.md §4.2. switchTables supplies the
// case-label vector for every switch terminator referenced in buf. May be
// called multiple times before FinishAppending.
func (g *Graph) AppendCode(buf []Inst, switchTables map[loc.CFGNodeRef]ir.SwitchTable) error {
	if g.builder == nil {
		g.builder = &builderState{}
	}
	b := g.builder
	if b.finished {
		panic("acfg: AppendCode called after FinishAppending")
	}

	i := 0
	for i < len(buf) {
		inst := buf[i]
		switch {
		case inst.Op == isa.ASM_LABEL:
			if err := g.buildLabel(inst); err != nil {
				return err
			}

		case isa.IsReturn(inst.Op):
			cur := g.last()
			cur.OutputInst = inst
			g.pushNode(loc.None)

		case isa.IsSwitch(inst.Op):
			if err := g.buildSwitch(b, inst, switchTables); err != nil {
				return err
			}

		case isa.IsJump(inst.Op):
			cur := g.last()
			cur.OutputInst = inst
			cur.pushOutput(Edge{Node: nil, CaseValue: noCase})
			g.deferEdge(b, cur, inst.Arg)
			g.pushNode(loc.None)

		case isa.IsBranch(inst.Op):
			i = g.buildBranch(b, buf, i, inst)
			continue

		case inst.Op == isa.ASM_PRUNED:
			// discard

		default:
			cur := g.last()
			cur.Code = append(cur.Code, inst)
		}
		i++
	}
	return nil
}

// buildLabel terminates the current node with an implicit JMP_ABSOLUTE
// and starts a new successor node labeled with inst.Arg, carrying the
// source's CFG handle if the label is a CFGLabel (spec.md §4.2). Returns a
// ConstructionError if the label is already bound, surfaced the same way
// as buildSwitch's unresolved-label error (spec.md §3, §7).
func (g *Graph) buildLabel(inst Inst) error {
	cur := g.last()
	cur.OutputInst = Inst{Op: isa.JMP_ABSOLUTE}

	if _, dup := g.labelMap[inst.Arg]; inst.Arg.Valid() && dup {
		return duplicateLabelError("label already bound at node creation: %v", inst.Arg)
	}

	next := g.pushNode(inst.Arg)
	if inst.Arg.Class() == loc.CFGLabel {
		next.CFG = inst.Arg.CFGNode()
	}
	cur.pushOutput(Edge{Node: next, CaseValue: noCase})
	return nil
}

// buildSwitch resolves the switch table for inst.Arg's CFG node and
// records one deferred edge per case entry (spec.md §4.2).
func (g *Graph) buildSwitch(b *builderState, inst Inst, tables map[loc.CFGNodeRef]ir.SwitchTable) error {
	table, ok := tables[inst.Arg.CFGNode()]
	if !ok {
		return unresolvedLabelError("no switch table registered for %v", inst.Arg)
	}
	cur := g.last()
	cur.OutputInst = inst
	for i, label := range table.Labels {
		cur.pushOutput(Edge{Node: nil, CaseValue: table.Cases[i]})
		b.deferred = append(b.deferred, deferredEdge{node: cur, index: len(cur.Outputs) - 1, label: label})
	}
	g.pushNode(loc.None)
	return nil
}

// buildBranch implements the ASMF_BRANCH row of spec.md §4.2, including
// the inverse-branch folding special case, and returns the index of the
// next instruction to process.
func (g *Graph) buildBranch(b *builderState, buf []Inst, i int, inst Inst) int {
	cur := g.last()
	cur.OutputInst = inst
	cur.pushOutput(Edge{Node: nil, CaseValue: noCase})
	g.deferEdge(b, cur, inst.Arg)

	if i+1 < len(buf) {
		if inv, ok := isa.InvertBranch(inst.Op); ok && buf[i+1].Op == inv {
			cur.pushOutput(Edge{Node: nil, CaseValue: noCase})
			g.deferEdge(b, cur, buf[i+1].Arg)
			g.pushNode(loc.None)
			return i + 2
		}
	}

	// The fallthrough successor is itself the new current node: subsequent
	// instructions in the buffer belong to it, since fallthrough means
	// "falls into the code immediately following in the linear stream".
	fallthroughNode := g.pushNode(loc.None)
	cur.pushOutput(Edge{Node: fallthroughNode, CaseValue: noCase})
	return i + 1
}

// deferEdge records that the edge most recently reserved on node (its
// last Outputs slot) targets label, to be resolved in FinishAppending.
func (g *Graph) deferEdge(b *builderState, node *Node, label loc.Locator) {
	b.deferred = append(b.deferred, deferredEdge{node: node, index: len(node.Outputs) - 1, label: label})
}

// FinishAppending resolves every deferred edge against the graph's label
// map, returning a ConstructionError if any target was never defined
// (spec.md §4.2, §7).
func (g *Graph) FinishAppending() error {
	if g.builder == nil {
		g.builder = &builderState{}
	}
	b := g.builder
	for _, d := range b.deferred {
		target, ok := g.labelMap[d.label]
		if !ok {
			return unresolvedLabelError("branch/jump/switch target %v never defined", d.label)
		}
		d.node.replaceOutput(d.index, target)
	}
	b.deferred = nil
	b.finished = true

	g.pruneTrailingEmptyNode()
	return nil
}

// pruneTrailingEmptyNode removes the always-present unlinked node the
// builder starts after every terminator, if nothing was ever appended to
// it (the common case at end-of-function).
func (g *Graph) pruneTrailingEmptyNode() {
	last := g.last()
	if len(last.Code) == 0 && last.OutputInst.Op == 0 && len(last.Outputs) == 0 && len(last.Inputs) == 0 && !last.Label.Valid() {
		g.prune(last)
	}
}
