// Package fn stubs the per-function summary the (out of scope) front-end
// computes and the ACFG back-end reads from across the boundary fixed by
// spec.md §6: ir_reads/ir_writes, precheck_group_vars, fclass, and the
// referenced-parameter walk used to seed lvar interferences.
package fn

import "github.com/crank-lang/crank/pkg/loc"

// Class is the function's calling-convention class (spec.md §4.4,
// "fn.fclass"). ClassMode functions are interrupt/mode-switch routines whose
// gmember effects are summarized conservatively via PrecheckGroupVars
// instead of precise per-gmember read/write bits.
type Class int

const (
	// ClassNormal is an ordinary function.
	ClassNormal Class = iota
	// ClassMode is a mode-switch routine (spec.md §4.4).
	ClassMode
)

// GMemberSet is a small fixed-capacity bitset over global-member ids,
// sized generously enough for any realistic program; it exists purely so
// Summary can report reads/writes without depending on pkg/acfg's bitset
// (which is sized per liveness call, not per function).
type GMemberSet struct {
	bits []uint64
}

// Test reports whether id is a member of the set.
func (s *GMemberSet) Test(id int) bool {
	w := id / 64
	if s == nil || w >= len(s.bits) {
		return false
	}
	return s.bits[w]&(1<<uint(id%64)) != 0
}

// Set adds id to the set.
func (s *GMemberSet) Set(id int) {
	w := id / 64
	for w >= len(s.bits) {
		s.bits = append(s.bits, 0)
	}
	s.bits[w] |= 1 << uint(id%64)
}

// Summary is the function-level contract the ACFG liveness oracle and
// lvar-interference builder read from (spec.md §4.4, §6).
type Summary struct {
	id int

	FClass Class

	// IRReads/IRWrites report, per global-member id, whether this
	// function's body reads/writes it (spec.md §4.4, "fn.ir_reads()").
	IRReads  GMemberSet
	IRWrites GMemberSet

	// PrecheckGroupVars is the conservative read set used instead of
	// IRReads for ClassMode functions (spec.md §4.4).
	PrecheckGroupVars GMemberSet

	// params lists every parameter locator this function's body actually
	// references, in the order first referenced.
	params []loc.Locator
}

// NewSummary creates an empty function summary with the given identity.
func NewSummary(id int) *Summary {
	return &Summary{id: id}
}

// FnHandleID satisfies loc.FnRef.
func (s *Summary) FnHandleID() int { return s.id }

// AddReferencedParam records that the function body references the given
// parameter locator, preserving first-reference order.
func (s *Summary) AddReferencedParam(l loc.Locator) {
	s.params = append(s.params, l)
}

// ForEachReferencedParamLocator calls cb once per referenced parameter
// locator, in first-reference order (spec.md §6,
// "for_each_referenced_param_locator").
func (s *Summary) ForEachReferencedParamLocator(cb func(loc.Locator)) {
	for _, p := range s.params {
		cb(p)
	}
}
