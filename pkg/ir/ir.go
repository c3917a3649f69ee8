// Package ir stubs the external, higher-level SSA IR this backend consumes.
// The SSA IR itself, its optimizations, and the ROM-array interning map are
// out of scope (see spec.md §1); this package fixes only the contracts the
// ACFG back-end calls across that boundary (spec.md §6).
package ir

import "github.com/crank-lang/crank/pkg/loc"

// CFGNode is a handle to a basic block in the higher-level IR. The ACFG
// keeps a reference to one per asm node purely for edge-weight scaling
// and switch-table naming (spec.md §3, Node.cfg).
type CFGNode struct {
	ID int

	// LoopDepth is the loop-nesting depth of this CFG node, as computed
	// by the (out of scope) front-end loop analysis.
	LoopDepth int

	// Incoming lists same-CFG-node label ancestors with a nonzero label
	// index, used by build_incoming (spec.md §4.6) to find every real
	// entry when a CFG node has multiple entry labels.
	Incoming []*CFGNode
}

// CFGHandleID satisfies loc.CFGNodeRef.
func (c *CFGNode) CFGHandleID() int { return c.ID }

// EdgeDepth returns the loop-nesting depth "between" two CFG nodes: the
// depth the compiler should use to scale an edge's layout weight. It
// returns 0 when a and b are the same node or either is nil, and
// otherwise the larger of the two LoopDepth values; it has no notion of
// whether two distinct nodes are related, so it never returns 0 for that
// reason.
func EdgeDepth(a, b *CFGNode) int {
	if a == nil || b == nil || a == b {
		return 0
	}
	if a.LoopDepth < b.LoopDepth {
		return b.LoopDepth
	}
	return a.LoopDepth
}

// SwitchTable is the case-label vector for one switch terminator, keyed
// by CFGNode in the map the Builder consumes (spec.md §4.2). Entry i is
// the label targeted by case value branch.Input(i+1) in the original's
// SSA daisy-chain; here the matching case values travel alongside the
// labels as parallel slices so the Builder need not reach back into the
// (out of scope) SSA IR to read them.
type SwitchTable struct {
	Labels []loc.Locator
	Cases  []int32
}
