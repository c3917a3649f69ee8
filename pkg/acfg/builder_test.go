package acfg

import (
	"strings"
	"testing"

	"github.com/crank-lang/crank/internal/trace"
	"github.com/crank-lang/crank/pkg/ir"
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
)

func TestBuilderSingleReturnGraph(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	if err := g.AppendCode([]Inst{{Op: isa.RTS_IMPLIED}}, nil); err != nil {
		t.Fatal(err)
	}
	if err := g.FinishAppending(); err != nil {
		t.Fatal(err)
	}

	if g.NodeCount() != 1 {
		t.Fatalf("NodeCount() = %d, want 1", g.NodeCount())
	}
	entry := g.Entry()
	if entry.OutputInst.Op != isa.RTS_IMPLIED || len(entry.Outputs) != 0 {
		t.Fatalf("expected entry to be a bare return node, got %+v", entry)
	}
}

func TestBuilderBranchImmediatelyFollowedByInverse(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	buf := []Inst{
		{Op: isa.BEQ_RELATIVE, Arg: loc.MinorLabelOf(1)},
		{Op: isa.BNE_RELATIVE, Arg: loc.MinorLabelOf(2)},
		{Op: isa.ASM_LABEL, Arg: loc.MinorLabelOf(1)},
		{Op: isa.RTS_IMPLIED},
		{Op: isa.ASM_LABEL, Arg: loc.MinorLabelOf(2)},
		{Op: isa.RTS_IMPLIED},
	}
	if err := g.AppendCode(buf, nil); err != nil {
		t.Fatal(err)
	}
	if err := g.FinishAppending(); err != nil {
		t.Fatal(err)
	}

	if g.NodeCount() != 3 {
		t.Fatalf("NodeCount() = %d, want 3 (no empty fallthrough successor)", g.NodeCount())
	}
	entry := g.Entry()
	if entry.OutputInst.Op != isa.BEQ_RELATIVE {
		t.Fatalf("expected entry terminator BEQ_RELATIVE, got %v", entry.OutputInst.Op)
	}
	if len(entry.Outputs) != 2 {
		t.Fatalf("expected entry to fold into a 2-output node, got %d outputs", len(entry.Outputs))
	}
	l1, _ := g.Lookup(loc.MinorLabelOf(1))
	l2, _ := g.Lookup(loc.MinorLabelOf(2))
	if entry.Outputs[0].Node != l1 || entry.Outputs[1].Node != l2 {
		t.Fatalf("expected outputs [l1, l2], got [%v, %v]", entry.Outputs[0].Node, entry.Outputs[1].Node)
	}
}

func TestBuilderSwitchCaseValues(t *testing.T) {
	cfg := &ir.CFGNode{ID: 1}
	g := New(loc.MinorLabelOf(0), trace.Discard)
	labels := []loc.Locator{loc.MinorLabelOf(1), loc.MinorLabelOf(2), loc.MinorLabelOf(3)}
	tables := map[loc.CFGNodeRef]ir.SwitchTable{
		cfg: {Labels: labels, Cases: []int32{0, 1, 255}},
	}
	buf := []Inst{
		{Op: isa.SWITCH_ABSOLUTE, Arg: loc.CFGLabelOf(cfg, 0)},
		{Op: isa.ASM_LABEL, Arg: loc.MinorLabelOf(1)},
		{Op: isa.RTS_IMPLIED},
		{Op: isa.ASM_LABEL, Arg: loc.MinorLabelOf(2)},
		{Op: isa.RTS_IMPLIED},
		{Op: isa.ASM_LABEL, Arg: loc.MinorLabelOf(3)},
		{Op: isa.RTS_IMPLIED},
	}
	if err := g.AppendCode(buf, tables); err != nil {
		t.Fatal(err)
	}
	if err := g.FinishAppending(); err != nil {
		t.Fatal(err)
	}

	entry := g.Entry()
	if entry.OutputInst.Op != isa.SWITCH_ABSOLUTE {
		t.Fatalf("expected SWITCH_ABSOLUTE terminator, got %v", entry.OutputInst.Op)
	}
	if len(entry.Outputs) != 3 {
		t.Fatalf("expected 3 switch arms, got %d", len(entry.Outputs))
	}
	wantCases := []int32{0, 1, 255}
	for i, e := range entry.Outputs {
		if e.CaseValue != wantCases[i] {
			t.Errorf("arm %d: CaseValue = %d, want %d", i, e.CaseValue, wantCases[i])
		}
	}
}

func TestBuilderDuplicateLabelReturnsError(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	buf := []Inst{
		{Op: isa.ASM_LABEL, Arg: loc.MinorLabelOf(1)},
		{Op: isa.RTS_IMPLIED},
		{Op: isa.ASM_LABEL, Arg: loc.MinorLabelOf(1)},
		{Op: isa.RTS_IMPLIED},
	}
	err := g.AppendCode(buf, nil)
	if err == nil {
		t.Fatal("expected a duplicate-label error")
	}
	if !strings.Contains(err.Error(), "already bound") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestBuilderUnresolvedLabelError(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	buf := []Inst{
		{Op: isa.JMP_ABSOLUTE, Arg: loc.MinorLabelOf(99)},
	}
	if err := g.AppendCode(buf, nil); err != nil {
		t.Fatal(err)
	}
	if err := g.FinishAppending(); err == nil {
		t.Fatal("expected an unresolved-label error")
	}
}
