package acfg

import (
	"github.com/crank-lang/crank/internal/trace"
	"github.com/crank-lang/crank/pkg/fn"
	"github.com/crank-lang/crank/pkg/isa"
)

// RemoveMaybes resolves every ASMF_MAYBE_STORE placeholder against
// liveness (spec.md §4.5): a maybe-store whose destination is live at
// that program point is promoted to a real store; otherwise it is
// replaced in place by an ASM_PRUNED instruction with no operands.
func (g *Graph) RemoveMaybes(summary *fn.Summary) {
	local := newLocalVarMap()
	for _, node := range g.nodes {
		for _, inst := range node.Code {
			if isa.IsMaybeStore(inst.Op) {
				local.add(inst.Arg.MemHead())
				if inst.Alt.Valid() {
					local.add(inst.Alt.MemHead())
				}
			}
		}
	}
	if local.Len() == 0 {
		return
	}

	lv := g.CalcLiveness(summary, local)

	for _, node := range g.nodes {
		live := lv.out[node.ID].clone()
		for i := len(node.Code) - 1; i >= 0; i-- {
			inst := node.Code[i]
			if isa.IsMaybeStore(inst.Op) {
				node.Code[i] = resolveMaybe(g.log, inst, local, live)
				inst = node.Code[i]
			}
			read, write := doInstRw(inst, summary, local)
			for b := 0; b < local.Len(); b++ {
				if write.Test(b) && !read.Test(b) {
					live.Clear(b)
				}
			}
			for b := 0; b < local.Len(); b++ {
				if read.Test(b) {
					live.Set(b)
				}
			}
		}
	}
}

func resolveMaybe(log *trace.Logger, inst Inst, local *localVarMap, live *bitset) Inst {
	idx, ok := local.Lookup(inst.Arg.MemHead())
	if !ok || !live.Test(idx) {
		log.Point("ASM_GRAPH_PRUNE", inst.Arg)
		return Inst{Op: isa.ASM_PRUNED}
	}
	if op, ok := isa.ChangeAddrMode(inst.Op, isa.ModeAbsolute); ok {
		return Inst{Op: op, Arg: inst.Arg, Alt: inst.Alt}
	}
	switch inst.Op {
	case isa.MAYBE_STORE_C:
		return Inst{Op: isa.STORE_C_ABSOLUTE, Arg: inst.Arg, Alt: inst.Alt}
	case isa.MAYBE_STORE_Z:
		return Inst{Op: isa.STORE_Z_ABSOLUTE, Arg: inst.Arg, Alt: inst.Alt}
	default:
		invariant(false, "unresolvable maybe-store op %v", inst.Op)
		return inst
	}
}
