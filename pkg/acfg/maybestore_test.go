package acfg

import (
	"testing"

	"github.com/crank-lang/crank/internal/trace"
	"github.com/crank-lang/crank/pkg/fn"
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
)

func TestRemoveMaybesPrunesDeadStore(t *testing.T) {
	varX := loc.GMemberOf(loc.GMemberRef{GroupID: 0, ID: 1})
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	entry.Code = []Inst{{Op: isa.MAYBE_STORE_C, Arg: varX}}
	entry.OutputInst = Inst{Op: isa.RTS_IMPLIED}

	g.RemoveMaybes(fn.NewSummary(0))

	if entry.Code[0].Op != isa.ASM_PRUNED {
		t.Fatalf("expected MAYBE_STORE_C pruned when var_x is dead at return, got %v", entry.Code[0].Op)
	}
}

func TestRemoveMaybesPromotesLiveStore(t *testing.T) {
	addr := loc.GMemberOf(loc.GMemberRef{GroupID: 0, ID: 2})
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	tail := g.pushNode(loc.MinorLabelOf(1))

	entry.Code = []Inst{{Op: isa.MAYBE_STA, Arg: addr}}
	entry.OutputInst = Inst{Op: isa.JMP_ABSOLUTE}
	entry.pushOutput(Edge{Node: tail, CaseValue: noCase})

	tail.Code = []Inst{{Op: isa.LDA_ABSOLUTE, Arg: addr}}
	tail.OutputInst = Inst{Op: isa.RTS_IMPLIED}

	g.RemoveMaybes(fn.NewSummary(0))

	if entry.Code[0].Op != isa.STA_ABSOLUTE {
		t.Fatalf("expected MAYBE_STA promoted to STA_ABSOLUTE, got %v", entry.Code[0].Op)
	}
}

func TestRemoveMaybesNoOpWhenNoMaybeStores(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	g.Entry().OutputInst = Inst{Op: isa.RTS_IMPLIED}
	g.RemoveMaybes(fn.NewSummary(0)) // must not panic
}
