// Package lvars is the local-variable interference manager the ACFG
// liveness pass reports into (spec.md §6, "Lvars manager"). Locators
// replace the teacher's pkg/regalloc interference graph's rtl.Reg keys:
// every locator observed live together is recorded as an interfering pair,
// so the (out of scope) ROM/stack allocator downstream can color them.
package lvars

import "github.com/crank-lang/crank/pkg/loc"

// VarMap is the insertion-ordered set of Locators described in spec.md §3
// ("A variable's bit index is its insertion position"). Locator's fields
// are all comparable (value types plus pointer-backed handle interfaces),
// so it works directly as a map key.
type VarMap struct {
	order []loc.Locator
	index map[loc.Locator]int
}

func newVarMap() *VarMap {
	return &VarMap{index: make(map[loc.Locator]int)}
}

// Index returns l's bit index, inserting it at the next free index if this
// is the first time l has been seen (spec.md §6, "index(locator)"). Keyed
// on l's memory head, so offsets into the same object share one variable.
func (m *VarMap) Index(l loc.Locator) int {
	head := l.MemHead()
	if i, ok := m.index[head]; ok {
		return i
	}
	i := len(m.order)
	m.order = append(m.order, head)
	m.index[head] = i
	return i
}

// Len reports the number of distinct locators recorded so far.
func (m *VarMap) Len() int { return len(m.order) }

// Lookup reports l's bit index without inserting, for callers (the
// liveness dataflow engine) that require the map to already be complete.
func (m *VarMap) Lookup(l loc.Locator) (int, bool) {
	i, ok := m.index[l.MemHead()]
	return i, ok
}

// At returns the locator inserted at bit index i.
func (m *VarMap) At(i int) loc.Locator { return m.order[i] }

// LiveBitset is the minimal read surface of the liveness bitset type this
// package needs, kept as an interface so lvars does not import pkg/acfg
// (acfg imports lvars, not the reverse).
type LiveBitset interface {
	Test(i int) bool
	Len() int
}

// Manager accumulates interference pairs and function-parameter
// interferences across every call site of AddLvarInterferences /
// AddFnInterference during one build_lvars run (spec.md §6).
type Manager struct {
	vars *VarMap

	// edges[i] is the set of bit indices that interfere with i.
	edges map[int]map[int]struct{}

	// fnEdges[i] is the set of callee handles whose call clobbers variable
	// i while it is live across the call site.
	fnEdges map[int]map[loc.FnRef]struct{}
}

// NewManager creates an empty interference manager.
func NewManager() *Manager {
	return &Manager{
		vars:    newVarMap(),
		edges:   make(map[int]map[int]struct{}),
		fnEdges: make(map[int]map[loc.FnRef]struct{}),
	}
}

// Index returns the bit index for l, assigning one if l is new (spec.md
// §6, "index(locator)").
func (mgr *Manager) Index(l loc.Locator) int { return mgr.vars.Index(l) }

// Map returns the underlying variable map (spec.md §6, "map()").
func (mgr *Manager) Map() *VarMap { return mgr.vars }

// AddLvarInterferences records that every pair of set bits in live is
// simultaneously live, and so must not share storage (spec.md §6,
// "add_lvar_interferences(live_bitset)"). acfg's BuildLvars calls it with
// each node's live-in and live-out set.
func (mgr *Manager) AddLvarInterferences(live LiveBitset) {
	var set []int
	for i := 0; i < live.Len(); i++ {
		if live.Test(i) {
			set = append(set, i)
		}
	}
	for a := 0; a < len(set); a++ {
		for b := a + 1; b < len(set); b++ {
			mgr.addEdge(set[a], set[b])
		}
	}
}

func (mgr *Manager) addEdge(a, b int) {
	if a == b {
		return
	}
	if mgr.edges[a] == nil {
		mgr.edges[a] = make(map[int]struct{})
	}
	if mgr.edges[b] == nil {
		mgr.edges[b] = make(map[int]struct{})
	}
	mgr.edges[a][b] = struct{}{}
	mgr.edges[b][a] = struct{}{}
}

// AddFnInterference records that variable varIndex is live across a call
// to fn, so it must not be allocated to a register fn's calling convention
// clobbers (spec.md §6, "add_fn_interference(var_index, fn)").
func (mgr *Manager) AddFnInterference(varIndex int, fn loc.FnRef) {
	if mgr.fnEdges[varIndex] == nil {
		mgr.fnEdges[varIndex] = make(map[loc.FnRef]struct{})
	}
	mgr.fnEdges[varIndex][fn] = struct{}{}
}

// Interferes reports whether variables a and b were ever observed live
// simultaneously.
func (mgr *Manager) Interferes(a, b int) bool {
	_, ok := mgr.edges[a][b]
	return ok
}

// InterferingFns returns the set of callees varIndex is live across.
func (mgr *Manager) InterferingFns(varIndex int) []loc.FnRef {
	fns := make([]loc.FnRef, 0, len(mgr.fnEdges[varIndex]))
	for fn := range mgr.fnEdges[varIndex] {
		fns = append(fns, fn)
	}
	return fns
}
