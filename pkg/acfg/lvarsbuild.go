package acfg

import (
	"github.com/crank-lang/crank/pkg/fn"
	"github.com/crank-lang/crank/pkg/loc"
	"github.com/crank-lang/crank/pkg/lvars"
)

// BuildLvars runs liveness over the whole function and returns a
// populated interference manager (spec.md §6, "build_lvars(fn) →
// lvars-manager; internally runs liveness and populates interferences").
func (g *Graph) BuildLvars(summary *fn.Summary) *lvars.Manager {
	mgr := lvars.NewManager()
	g.gatherVariables(summary, mgr)

	lv := g.CalcLiveness(summary, mgr.Map())

	for _, node := range g.nodes {
		mgr.AddLvarInterferences(lv.out[node.ID])
		mgr.AddLvarInterferences(lv.in[node.ID])
	}
	g.recordFnInterferences(summary, mgr, lv)
	return mgr
}

// gatherVariables registers every locator the interference graph must
// track: every memory-class operand touched anywhere in the function's
// instructions, plus every parameter the function body references even if
// it never appears as a bare operand (spec.md §6,
// for_each_referenced_param_locator).
func (g *Graph) gatherVariables(summary *fn.Summary, mgr *lvars.Manager) {
	if summary != nil {
		summary.ForEachReferencedParamLocator(func(l loc.Locator) {
			mgr.Index(l)
		})
	}
	for _, node := range g.nodes {
		for _, inst := range node.Code {
			indexMemoryOperand(mgr, inst.Arg)
			indexMemoryOperand(mgr, inst.Alt)
		}
		indexMemoryOperand(mgr, node.OutputInst.Arg)
		indexMemoryOperand(mgr, node.OutputInst.Alt)
	}
}

func indexMemoryOperand(mgr *lvars.Manager, l loc.Locator) {
	switch l.Class() {
	case loc.Arg, loc.Return, loc.GMember:
		mgr.Index(l)
	}
}

// recordFnInterferences walks each node's code backward from its live-out
// set, recording that any variable live across a call instruction
// interferes with that call's calling convention (spec.md §6,
// "add_fn_interference(var_index, fn)").
func (g *Graph) recordFnInterferences(summary *fn.Summary, mgr *lvars.Manager, lv *Liveness) {
	n := mgr.Map().Len()
	for _, node := range g.nodes {
		live := lv.out[node.ID].clone()
		for i := len(node.Code) - 1; i >= 0; i-- {
			inst := node.Code[i]
			if inst.Arg.Class() == loc.Fn {
				for b := 0; b < n; b++ {
					if live.Test(b) {
						mgr.AddFnInterference(b, inst.Arg.Fn())
					}
				}
			}
			read, write := doInstRw(inst, summary, mgr.Map())
			for b := 0; b < n; b++ {
				if write.Test(b) && !read.Test(b) {
					live.Clear(b)
				}
			}
			for b := 0; b < n; b++ {
				if read.Test(b) {
					live.Set(b)
				}
			}
		}
	}
}
