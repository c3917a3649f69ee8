package acfg

import (
	"testing"

	"github.com/crank-lang/crank/internal/trace"
	"github.com/crank-lang/crank/pkg/loc"
)

func TestNewCreatesEntryNode(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	if g.NodeCount() != 1 {
		t.Fatalf("NodeCount() = %d, want 1", g.NodeCount())
	}
	if g.Entry() == nil {
		t.Fatal("expected an entry node")
	}
	if g.Entry().Label != loc.MinorLabelOf(0) {
		t.Fatalf("entry label = %v, want minor label 0", g.Entry().Label)
	}
}

func TestLookupFindsRegisteredLabel(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	n := g.pushNode(loc.MinorLabelOf(1))
	got, ok := g.Lookup(loc.MinorLabelOf(1))
	if !ok || got != n {
		t.Fatal("expected Lookup to find the node just pushed")
	}
	if _, ok := g.Lookup(loc.MinorLabelOf(2)); ok {
		t.Fatal("expected Lookup to miss an unregistered label")
	}
}

func TestPruneDetachesAndRemovesFromLabelMap(t *testing.T) {
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	victim := g.pushNode(loc.MinorLabelOf(1))
	tail := g.pushNode(loc.MinorLabelOf(2))

	entry.pushOutput(Edge{Node: victim, CaseValue: noCase})
	victim.pushOutput(Edge{Node: tail, CaseValue: noCase})

	// victim has an input (from entry), so prune would violate its
	// invariant unless we detach that first.
	entry.removeOutput(entry.findOutput(victim))

	g.prune(victim)

	if g.NodeCount() != 2 {
		t.Fatalf("NodeCount() = %d, want 2 after pruning victim", g.NodeCount())
	}
	if _, ok := g.Lookup(loc.MinorLabelOf(1)); ok {
		t.Fatal("expected victim's label removed from the label map")
	}
	if len(tail.Inputs) != 0 {
		t.Fatal("expected victim's output edge detached from tail's inputs")
	}
}

func TestPrunePanicsOnLiveInputs(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic pruning a node with live inputs")
		}
	}()
	g := New(loc.MinorLabelOf(0), trace.Discard)
	entry := g.Entry()
	victim := g.pushNode(loc.MinorLabelOf(1))
	entry.pushOutput(Edge{Node: victim, CaseValue: noCase})
	g.prune(victim)
}
