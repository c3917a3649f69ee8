package acfg

import (
	"testing"
	"time"

	"github.com/crank-lang/crank/internal/trace"
	"github.com/crank-lang/crank/pkg/fn"
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
)

func buildVarMap(locs ...loc.Locator) *localVarMap {
	m := newLocalVarMap()
	for _, l := range locs {
		m.add(l)
	}
	return m
}

func TestDoInstRwPlainOperand(t *testing.T) {
	addr := loc.GMemberOf(loc.GMemberRef{GroupID: 0, ID: 1})
	vmap := buildVarMap(addr)

	read, write := doInstRw(Inst{Op: isa.LDA_ABSOLUTE, Arg: addr}, nil, vmap)
	if !read.Test(0) || write.Test(0) {
		t.Fatalf("LDA_ABSOLUTE should read memory, not write it (read=%v write=%v)", read.Test(0), write.Test(0))
	}

	read, write = doInstRw(Inst{Op: isa.STA_ABSOLUTE, Arg: addr}, nil, vmap)
	if read.Test(0) || !write.Test(0) {
		t.Fatalf("STA_ABSOLUTE should write memory, not read it (read=%v write=%v)", read.Test(0), write.Test(0))
	}

	read, write = doInstRw(Inst{Op: isa.INC_ABSOLUTE, Arg: addr}, nil, vmap)
	if !read.Test(0) || !write.Test(0) {
		t.Fatal("INC_ABSOLUTE should both read and write memory")
	}
}

type fakeFn struct{ id int }

func (f *fakeFn) FnHandleID() int { return f.id }

func TestDoInstRwCallOperand(t *testing.T) {
	callee := &fakeFn{id: 1}
	arg0 := loc.ArgOf(callee, 0)
	ret0 := loc.ReturnOf(callee, 0)
	vmap := buildVarMap(arg0, ret0)

	read, write := doInstRw(Inst{Op: isa.JSR_ABSOLUTE, Arg: loc.FnOf(callee)}, nil, vmap)
	if !read.Test(0) {
		t.Fatal("expected a call to read the callee's own arg slot")
	}
	if !write.Test(1) {
		t.Fatal("expected a call to write the callee's own return slot")
	}
}

func TestGenKillHonorsReadBeforeWrite(t *testing.T) {
	addr := loc.GMemberOf(loc.GMemberRef{GroupID: 0, ID: 1})
	vmap := buildVarMap(addr)
	n := mkNode(0)
	n.Code = []Inst{{Op: isa.INC_ABSOLUTE, Arg: addr}}
	n.OutputInst = Inst{Op: isa.RTS_IMPLIED}

	gen, _ := genKill(n, nil, vmap)
	if !gen.Test(0) {
		t.Fatal("expected INC's read (before its own write) to be upward-exposed")
	}
}

func TestGenKillSuppressesGenAfterEarlierWrite(t *testing.T) {
	addr := loc.GMemberOf(loc.GMemberRef{GroupID: 0, ID: 1})
	vmap := buildVarMap(addr)
	n := mkNode(0)
	n.Code = []Inst{
		{Op: isa.STA_ABSOLUTE, Arg: addr},
		{Op: isa.LDA_ABSOLUTE, Arg: addr},
	}
	n.OutputInst = Inst{Op: isa.RTS_IMPLIED}

	gen, _ := genKill(n, nil, vmap)
	if gen.Test(0) {
		t.Fatal("expected the later read to be satisfied by the earlier write, not upward-exposed")
	}
}

func TestCalcLivenessEntryGensArgs(t *testing.T) {
	callee := &fakeFn{id: 1}
	arg0 := loc.ArgOf(callee, 0)
	vmap := buildVarMap(arg0)

	g := New(loc.MinorLabelOf(0), trace.Discard)
	g.Entry().OutputInst = Inst{Op: isa.RTS_IMPLIED}

	lv := g.CalcLiveness(fn.NewSummary(0), vmap)
	if !lv.In(g.Entry(), 0) {
		t.Fatal("expected every Arg-class map entry to be live-in at the entry node")
	}
}

func TestCalcLivenessUnreachableLoopConverges(t *testing.T) {
	addr := loc.GMemberOf(loc.GMemberRef{GroupID: 0, ID: 1})
	vmap := buildVarMap(addr)

	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	entry.Code = []Inst{{Op: isa.LDA_ABSOLUTE, Arg: addr}}
	entry.OutputInst = Inst{Op: isa.JMP_ABSOLUTE}
	entry.pushOutput(Edge{Node: entry, CaseValue: noCase})

	done := make(chan *Liveness, 1)
	go func() {
		done <- g.CalcLiveness(fn.NewSummary(0), vmap)
	}()
	select {
	case lv := <-done:
		if lv.Width() != 1 {
			t.Fatalf("Width() = %d, want 1", lv.Width())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("CalcLiveness did not converge on an unreachable self-loop")
	}
}
