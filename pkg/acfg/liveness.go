package acfg

import (
	"github.com/crank-lang/crank/pkg/fn"
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
	"github.com/oleiade/lane/v2"
)

// Liveness is the per-node in/out bitset table CalcLiveness produces
// (spec.md §4.4). It is a side table keyed by Node.ID rather than fields
// on Node itself, per the scratch-union design note (spec.md §9): the
// pass that computes it owns a parallel map, nothing is overlaid on Node.
type Liveness struct {
	n   int
	in  map[int]*bitset
	out map[int]*bitset
}

// Width reports |map|, the bit width every returned bitset shares.
func (lv *Liveness) Width() int { return lv.n }

// In reports whether variable index i is live-in at node.
func (lv *Liveness) In(node *Node, i int) bool { return lv.in[node.ID].Test(i) }

// Out reports whether variable index i is live-out at node.
func (lv *Liveness) Out(node *Node, i int) bool { return lv.out[node.ID].Test(i) }

func gmemberBit(g loc.GMemberRef) int {
	// Flattens (group, id) into one bit index. A single GMember group
	// realistically never approaches this width in this scaffold.
	return g.GroupID*4096 + g.ID
}

// doInstRw is the per-instruction read/write oracle of spec.md §4.4: for
// every bit index in vmap, it reports whether inst reads and/or writes
// that variable. summary is the function liveness is being computed for
// (used only by the return-instruction case, for its own gmember writes).
func doInstRw(inst Inst, summary *fn.Summary, vmap VarMap) (read, write *bitset) {
	n := vmap.Len()
	read = newBitset(n)
	write = newBitset(n)

	switch {
	case inst.Arg.Class() == loc.Fn:
		callee, _ := inst.Arg.Fn().(*fn.Summary)
		for i := 0; i < n; i++ {
			l := vmap.At(i)
			switch l.Class() {
			case loc.Arg:
				if l.Fn() == inst.Arg.Fn() {
					read.Set(i)
				}
			case loc.Return:
				if l.Fn() == inst.Arg.Fn() {
					write.Set(i)
				}
			case loc.GMember:
				if callee == nil {
					continue
				}
				bit := gmemberBit(l.GMember())
				if callee.FClass == fn.ClassMode {
					if callee.PrecheckGroupVars.Test(bit) {
						read.Set(i)
					}
					// Mode functions never report a gmember write here
					// (spec.md §4.4).
				} else {
					if callee.IRReads.Test(bit) {
						read.Set(i)
					}
					if callee.IRWrites.Test(bit) {
						write.Set(i)
					}
				}
			}
		}

	case isa.IsReturn(inst.Op):
		for i := 0; i < n; i++ {
			l := vmap.At(i)
			switch l.Class() {
			case loc.Return:
				read.Set(i)
			case loc.GMember:
				if summary != nil && summary.IRWrites.Test(gmemberBit(l.GMember())) {
					write.Set(i)
				}
			}
		}

	default:
		markOperand(inst.Arg, inst.Op, vmap, read, write)
		if isa.IndirectAddrMode(isa.AddrModeOf(inst.Op)) {
			markOperand(inst.Alt, inst.Op, vmap, read, write)
		}
	}
	return read, write
}

func markOperand(operand loc.Locator, op isa.Op, vmap VarMap, read, write *bitset) {
	idx, ok := vmap.Lookup(operand)
	if !ok {
		return
	}
	if isa.InputRegs(op)&isa.RegM != 0 {
		read.Set(idx)
	}
	if isa.OutputRegs(op)&isa.RegM != 0 {
		write.Set(idx)
	}
}

// genKill scans node's instructions forward, computing GEN (upward
// exposed reads, honoring read-before-write per instruction — spec.md
// §9's design note on INC-style read/write ordering) and outKill, the
// complement of the set of variables this node unconditionally
// overwrites.
func genKill(node *Node, summary *fn.Summary, vmap VarMap) (gen, outKill *bitset) {
	n := vmap.Len()
	gen = newBitset(n)
	written := newBitset(n)

	apply := func(inst Inst) {
		read, write := doInstRw(inst, summary, vmap)
		for i := 0; i < n; i++ {
			if read.Test(i) && !written.Test(i) {
				gen.Set(i)
			}
		}
		for i := 0; i < n; i++ {
			if write.Test(i) {
				written.Set(i)
			}
		}
	}
	for _, inst := range node.Code {
		apply(inst)
	}
	apply(node.OutputInst)

	outKill = written.complement()
	return gen, outKill
}

// CalcLiveness computes per-node in/out bitsets over vmap, an already
// complete locator-indexed variable map (spec.md §4.4). summary describes
// the function this graph belongs to (used for the return-instruction
// gmember-write case); it may be nil if the graph never returns gmembers.
func (g *Graph) CalcLiveness(summary *fn.Summary, vmap VarMap) *Liveness {
	n := vmap.Len()
	gen := make(map[int]*bitset, len(g.nodes))
	outKill := make(map[int]*bitset, len(g.nodes))
	in := make(map[int]*bitset, len(g.nodes))
	processed := make(map[int]bool, len(g.nodes))

	entry := g.Entry()
	for _, node := range g.nodes {
		ng, ok := genKill(node, summary, vmap)
		gen[node.ID] = ng
		outKill[node.ID] = ok
		in[node.ID] = newBitset(n)
	}
	if entry != nil {
		for i := 0; i < n; i++ {
			if vmap.At(i).Class() == loc.Arg {
				gen[entry.ID].Set(i)
			}
		}
	}

	queue := lane.NewQueue[*Node]()
	for _, node := range g.nodes {
		if len(node.Outputs) == 0 {
			queue.Enqueue(node)
		}
	}

	for {
		for queue.Size() > 0 {
			node, ok := queue.Dequeue()
			if !ok {
				break
			}
			temp := newBitset(n)
			for _, e := range node.Outputs {
				if e.Node != nil {
					temp.or(in[e.Node.ID])
				}
			}
			temp.and(outKill[node.ID])
			temp.or(gen[node.ID])

			changed := !temp.equal(in[node.ID])
			if changed || !processed[node.ID] {
				for _, pred := range node.Inputs {
					queue.Enqueue(pred)
				}
			}
			in[node.ID] = temp
			processed[node.ID] = true
		}

		var unreached []*Node
		for _, node := range g.nodes {
			if !processed[node.ID] {
				unreached = append(unreached, node)
			}
		}
		if len(unreached) == 0 {
			break
		}
		for _, node := range unreached {
			queue.Enqueue(node)
		}
	}

	out := make(map[int]*bitset, len(g.nodes))
	for _, node := range g.nodes {
		o := newBitset(n)
		for _, e := range node.Outputs {
			if e.Node != nil {
				o.or(in[e.Node.ID])
			}
		}
		out[node.ID] = o
	}

	return &Liveness{n: n, in: in, out: out}
}
