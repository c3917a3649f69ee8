package acfg

import "github.com/crank-lang/crank/pkg/loc"

// VarMap is the read-only view CalcLiveness needs of an insertion-ordered
// locator set (spec.md §3, "map"): by the time liveness runs, the map is
// already complete, so the dataflow engine only ever looks entries up, it
// never inserts. *lvars.VarMap and the local map built for maybe-store
// resolution (below) both satisfy this.
type VarMap interface {
	Len() int
	Lookup(l loc.Locator) (int, bool)
	At(i int) loc.Locator
}

// localVarMap is the small map built purely for one maybe-store
// resolution call, from every ASMF_MAYBE_STORE operand head in the
// function (spec.md §4.5) — unlike the lvars manager's map, it is
// discarded after the call and never accumulates interferences.
type localVarMap struct {
	order []loc.Locator
	index map[loc.Locator]int
}

func newLocalVarMap() *localVarMap {
	return &localVarMap{index: make(map[loc.Locator]int)}
}

func (m *localVarMap) add(l loc.Locator) {
	head := l.MemHead()
	if _, ok := m.index[head]; ok {
		return
	}
	m.index[head] = len(m.order)
	m.order = append(m.order, head)
}

func (m *localVarMap) Len() int { return len(m.order) }

func (m *localVarMap) At(i int) loc.Locator { return m.order[i] }

func (m *localVarMap) Lookup(l loc.Locator) (int, bool) {
	i, ok := m.index[l.MemHead()]
	return i, ok
}

// NewStaticVarMap builds a VarMap from a caller-supplied, already-complete
// set of locators, in the given order. It exists for callers outside this
// package (e.g. a driver CLI) that need to hand CalcLiveness a VarMap
// without reaching into acfg's own unexported map-building helpers.
func NewStaticVarMap(locs []loc.Locator) VarMap {
	m := newLocalVarMap()
	for _, l := range locs {
		m.add(l)
	}
	return m
}
