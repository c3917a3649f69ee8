package acfg

import (
	"testing"

	"github.com/crank-lang/crank/internal/trace"
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
)

func TestRemoveStubsBypassesEmptyNode(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	stub := g.pushNode(loc.MinorLabelOf(1))
	tail := g.pushNode(loc.MinorLabelOf(2))
	tail.OutputInst = Inst{Op: isa.RTS_IMPLIED}

	entry.OutputInst = Inst{Op: isa.JMP_ABSOLUTE}
	entry.pushOutput(Edge{Node: stub, CaseValue: noCase})
	stub.OutputInst = Inst{Op: isa.JMP_ABSOLUTE}
	stub.pushOutput(Edge{Node: tail, CaseValue: noCase})

	if !g.removeStubs() {
		t.Fatal("expected removeStubs to report a change")
	}
	if g.NodeCount() != 2 {
		t.Fatalf("NodeCount() = %d, want 2 (stub removed)", g.NodeCount())
	}
	if entry.Outputs[0].Node != tail {
		t.Fatalf("expected entry rewired directly to tail, got %v", entry.Outputs[0].Node)
	}
}

func TestRemoveStubsDropsDeadStub(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	g.Entry().OutputInst = Inst{Op: isa.RTS_IMPLIED}
	dead := g.pushNode(loc.MinorLabelOf(1))
	_ = dead

	if !g.removeStubs() {
		t.Fatal("expected removeStubs to report a change")
	}
	if g.NodeCount() != 1 {
		t.Fatalf("NodeCount() = %d, want 1 (dead stub pruned)", g.NodeCount())
	}
}

func TestRemoveBranchesCollapsesIdenticalTargets(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	tail := g.pushNode(loc.MinorLabelOf(1))
	tail.OutputInst = Inst{Op: isa.RTS_IMPLIED}

	entry.OutputInst = Inst{Op: isa.BEQ_RELATIVE}
	entry.pushOutput(Edge{Node: tail, CaseValue: noCase})
	entry.pushOutput(Edge{Node: tail, CaseValue: noCase})

	if !g.removeBranches() {
		t.Fatal("expected removeBranches to report a change")
	}
	if len(entry.Outputs) != 1 {
		t.Fatalf("expected 1 output after collapse, got %d", len(entry.Outputs))
	}
	if entry.OutputInst.Op != isa.JMP_ABSOLUTE {
		t.Fatalf("expected JMP_ABSOLUTE after collapse, got %v", entry.OutputInst.Op)
	}
}

func TestTailCallFold(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	callee := loc.FnOf(nil)
	entry.Code = []Inst{{Op: isa.JSR_ABSOLUTE, Arg: callee}}
	entry.OutputInst = Inst{Op: isa.RTS_IMPLIED}

	if !g.tailCallFold() {
		t.Fatal("expected tailCallFold to report a change")
	}
	if entry.OutputInst.Op != isa.JMP_ABSOLUTE || entry.OutputInst.Arg != callee {
		t.Fatalf("expected JMP to callee, got %+v", entry.OutputInst)
	}
	if len(entry.Code) != 0 {
		t.Fatalf("expected the JSR consumed from Code, got %+v", entry.Code)
	}
}

func TestMergeCommonSuffixes(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	a := g.pushNode(loc.MinorLabelOf(1))
	b := g.pushNode(loc.MinorLabelOf(2))

	shared := []Inst{
		{Op: isa.LDA_IMMEDIATE},
		{Op: isa.STA_ABSOLUTE},
	}
	a.Code = append([]Inst{{Op: isa.LDX_IMMEDIATE}}, shared...)
	b.Code = append([]Inst{{Op: isa.LDY_IMMEDIATE}}, shared...)
	a.OutputInst = Inst{Op: isa.RTS_IMPLIED}
	b.OutputInst = Inst{Op: isa.RTS_IMPLIED}

	entry.OutputInst = Inst{Op: isa.BEQ_RELATIVE}
	entry.pushOutput(Edge{Node: a, CaseValue: noCase})
	entry.pushOutput(Edge{Node: b, CaseValue: noCase})

	if !g.mergeCommonSuffixes() {
		t.Fatal("expected mergeCommonSuffixes to report a change")
	}
	if len(a.Outputs) != 1 || len(b.Outputs) != 1 {
		t.Fatal("expected both a and b to now jump to a shared tail")
	}
	if a.Outputs[0].Node != b.Outputs[0].Node {
		t.Fatal("expected a and b to share the same tail node")
	}
	tail := a.Outputs[0].Node
	if len(tail.Code) != 2 {
		t.Fatalf("expected the shared tail to carry the 2-instruction suffix, got %d", len(tail.Code))
	}
	if a.OutputInst.Op != isa.JMP_ABSOLUTE || b.OutputInst.Op != isa.JMP_ABSOLUTE {
		t.Fatal("expected both predecessors rewritten to plain jumps")
	}
}

func TestPeepholeRemovesRedundantReload(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	addr := loc.GMemberOf(loc.GMemberRef{GroupID: 0, ID: 1})
	entry.Code = []Inst{
		{Op: isa.STA_ABSOLUTE, Arg: addr},
		{Op: isa.LDA_ABSOLUTE, Arg: addr},
	}
	entry.OutputInst = Inst{Op: isa.RTS_IMPLIED}

	if !g.peephole() {
		t.Fatal("expected peephole to report a change")
	}
	if len(entry.Code) != 1 || entry.Code[0].Op != isa.STA_ABSOLUTE {
		t.Fatalf("expected the redundant reload dropped, got %+v", entry.Code)
	}
}

func TestPeepholeLeavesDistinctOperandsAlone(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	a := loc.GMemberOf(loc.GMemberRef{GroupID: 0, ID: 1})
	b := loc.GMemberOf(loc.GMemberRef{GroupID: 0, ID: 2})
	entry.Code = []Inst{
		{Op: isa.STA_ABSOLUTE, Arg: a},
		{Op: isa.LDA_ABSOLUTE, Arg: b},
	}
	entry.OutputInst = Inst{Op: isa.RTS_IMPLIED}

	if g.peephole() {
		t.Fatal("expected no change for distinct operands")
	}
}
