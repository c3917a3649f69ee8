package acfg

import (
	"testing"

	"github.com/crank-lang/crank/internal/trace"
	"github.com/crank-lang/crank/pkg/ir"
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
)

func TestToLinearSingleReturn(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	g.Entry().OutputInst = Inst{Op: isa.RTS_IMPLIED}

	out := g.ToLinear(g.Order())
	if len(out) != 2 || out[0].Op != isa.ASM_LABEL || out[1].Op != isa.RTS_IMPLIED {
		t.Fatalf("expected [LABEL entry, RTS], got %+v", out)
	}
}

func TestToLinearElidesFallthrough(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	tail := g.pushNode(loc.MinorLabelOf(1))
	entry.OutputInst = Inst{Op: isa.JMP_ABSOLUTE}
	entry.pushOutput(Edge{Node: tail, CaseValue: noCase})
	tail.OutputInst = Inst{Op: isa.RTS_IMPLIED}

	out := g.ToLinear([]*Node{entry, tail})
	for _, inst := range out {
		if inst.Op == isa.JMP_ABSOLUTE {
			t.Fatalf("expected the fallthrough jump elided, got %+v", out)
		}
	}
}

func TestToLinearSwitchHoles(t *testing.T) {
	cfg := &ir.CFGNode{ID: 1}
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	n2 := g.pushNode(loc.MinorLabelOf(2))
	n5 := g.pushNode(loc.MinorLabelOf(5))
	n0 := g.pushNode(loc.MinorLabelOf(6))
	for _, n := range []*Node{n2, n5, n0} {
		n.OutputInst = Inst{Op: isa.RTS_IMPLIED}
	}

	entry.OutputInst = Inst{Op: isa.SWITCH_ABSOLUTE, Arg: loc.CFGLabelOf(cfg, 0)}
	entry.pushOutput(Edge{Node: n0, CaseValue: 0})
	entry.pushOutput(Edge{Node: n2, CaseValue: 2})
	entry.pushOutput(Edge{Node: n5, CaseValue: 5})

	order := []*Node{entry, n0, n2, n5}
	out := g.ToLinear(order)

	var loTableStart int = -1
	for i, inst := range out {
		if inst.Op == isa.ASM_LABEL && inst.Arg.Class() == loc.SwitchLoTable {
			loTableStart = i
		}
	}
	if loTableStart == -1 {
		t.Fatal("expected a switch_lo_table label in the output")
	}
	entries := out[loTableStart+1 : loTableStart+7]
	if len(entries) != 6 {
		t.Fatalf("expected 6 low-table entries for a 0..5 span, got %d", len(entries))
	}
	for _, i := range []int{1, 3, 4} {
		if entries[i].Op != isa.ASM_DATA || entries[i].Arg.Class() != loc.ConstByte || entries[i].Arg.ByteValue() != 0 {
			t.Fatalf("expected slot %d to be const_byte(0), got %+v", i, entries[i])
		}
	}
	for _, i := range []int{0, 2, 5} {
		if entries[i].Arg.Class() != loc.ConstByte && entries[i].Arg.Is() != loc.IsPtr {
			t.Errorf("expected slot %d tagged IsPtr, got %+v", i, entries[i].Arg)
		}
	}
}

func TestToLinearSwitchOffsetsShifted(t *testing.T) {
	cfg := &ir.CFGNode{ID: 2}
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	targets := make([]*Node, 3)
	for i := range targets {
		targets[i] = g.pushNode(loc.MinorLabelOf(i + 10))
		targets[i].OutputInst = Inst{Op: isa.RTS_IMPLIED}
	}
	entry.OutputInst = Inst{Op: isa.SWITCH_ABSOLUTE, Arg: loc.CFGLabelOf(cfg, 0)}
	entry.pushOutput(Edge{Node: targets[0], CaseValue: 10})
	entry.pushOutput(Edge{Node: targets[1], CaseValue: 11})
	entry.pushOutput(Edge{Node: targets[2], CaseValue: 12})

	order := append([]*Node{entry}, targets...)
	out := g.ToLinear(order)

	var switchInst Inst
	for _, inst := range out {
		if inst.Op == isa.SWITCH_ABSOLUTE {
			switchInst = inst
		}
	}
	if switchInst.Arg.Offset() != -10 {
		t.Fatalf("expected the switch terminator's arg offset shifted by -10, got %d", switchInst.Arg.Offset())
	}
}
