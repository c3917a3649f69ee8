// Package loc defines Locator, the opaque tagged operand value threaded
// through every instruction the ACFG back-end touches (spec.md §3).
//
// This mirrors the teacher's convention of giving every IR its own small,
// value-typed operand kind (rtl.Reg, mach.MReg, ltl.Loc, ...); Locator
// plays that role here but is a richer tagged union since a 6502 operand
// can name a label, an argument slot, a return slot, a global member, a
// function, a switch table, or a byte constant — not just a register.
package loc

// Class is the locator's discriminant tag (spec.md §3, "lclass").
type Class int

const (
	// NONE is the empty locator: no operand.
	NONE Class = iota
	// MinorLabel is a synthetic label assigned during linearization
	// (spec.md §4.7) for blocks that never had a source-level label.
	MinorLabel
	// CFGLabel carries a CFG-node handle: the target of a branch/jump
	// that corresponds 1:1 to a higher-level IR basic block.
	CFGLabel
	// Arg is an incoming argument slot.
	Arg
	// Return is a return-value slot.
	Return
	// GMember is a member of a global (non-stack) memory object.
	GMember
	// Fn names a callee function.
	Fn
	// SwitchLoTable is the low-byte half of a switch jump table.
	SwitchLoTable
	// SwitchHiTable is the high-byte half of a switch jump table.
	SwitchHiTable
	// ConstByte is a literal byte constant.
	ConstByte
)

// Indirection marks how a locator's address should be taken, used by the
// switch-table construction in spec.md §4.7 (IS_PTR / IS_PTR_HI).
type Indirection int

const (
	// IsNone is the default: the locator denotes its value directly.
	IsNone Indirection = iota
	// IsPtr marks the low byte of a label's resolved address.
	IsPtr
	// IsPtrHi marks the high byte of a label's resolved address.
	IsPtrHi
)

// CFGNodeRef is satisfied by *ir.CFGNode; kept as an interface here so loc
// does not import the ir package (ir only ever supplies opaque handles to
// this package, never the reverse).
type CFGNodeRef interface {
	CFGHandleID() int
}

// FnRef is satisfied by *fn.Summary (or any callee handle); same rationale
// as CFGNodeRef.
type FnRef interface {
	FnHandleID() int
}

// GMemberRef identifies one member of a global object.
type GMemberRef struct {
	GroupID int
	ID      int
}

// Locator is a small, value-typed, hashable tagged union. Two locators
// with equal fields compare equal and hash equal, matching spec.md §3
// ("Locators are value-equal and hashable").
type Locator struct {
	class   Class
	offset  int
	is      Indirection
	cfg     CFGNodeRef
	fn      FnRef
	gmember GMemberRef
	byteVal byte
}

// None is the canonical empty locator.
var None = Locator{class: NONE}

// Class reports the locator's discriminant.
func (l Locator) Class() Class { return l.class }

// Offset reports the locator's byte offset, defaulting to 0.
func (l Locator) Offset() int { return l.offset }

// Is reports the locator's indirection tag.
func (l Locator) Is() Indirection { return l.is }

// Valid reports whether this locator carries an operand at all. It mirrors
// the original's `if(loc)` truthiness test on a locator value.
func (l Locator) Valid() bool { return l.class != NONE }

// CFGNode returns the CFG-node handle carried by a CFGLabel locator.
func (l Locator) CFGNode() CFGNodeRef { return l.cfg }

// Fn returns the function handle carried by an Fn (or Arg/Return bound to
// a callee) locator.
func (l Locator) Fn() FnRef { return l.fn }

// GMember returns the global-member descriptor carried by a GMember
// locator.
func (l Locator) GMember() GMemberRef { return l.gmember }

// ByteValue returns the literal value of a ConstByte locator.
func (l Locator) ByteValue() byte { return l.byteVal }

// MinorLabelOf constructs a minor (synthetic) label locator for the node
// with the given linearization id (spec.md §6, minor_label(u)).
func MinorLabelOf(id int) Locator {
	return Locator{class: MinorLabel, offset: id}
}

// ConstByteOf constructs a literal byte-constant locator (spec.md §6,
// const_byte(b)).
func ConstByteOf(b byte) Locator {
	return Locator{class: ConstByte, byteVal: b}
}

// SwitchLoTableOf constructs the low-byte switch-table locator for a CFG
// node (spec.md §6, switch_lo_table(cfg)).
func SwitchLoTableOf(cfg CFGNodeRef) Locator {
	return Locator{class: SwitchLoTable, cfg: cfg}
}

// SwitchHiTableOf constructs the high-byte switch-table locator for a CFG
// node (spec.md §6, switch_hi_table(cfg)).
func SwitchHiTableOf(cfg CFGNodeRef) Locator {
	return Locator{class: SwitchHiTable, cfg: cfg}
}

// CFGLabelOf constructs a label locator bound to a higher-level CFG node.
func CFGLabelOf(cfg CFGNodeRef, offset int) Locator {
	return Locator{class: CFGLabel, cfg: cfg, offset: offset}
}

// ArgOf constructs an argument-slot locator for the given callee.
func ArgOf(callee FnRef, offset int) Locator {
	return Locator{class: Arg, fn: callee, offset: offset}
}

// ReturnOf constructs a return-slot locator for the given callee.
func ReturnOf(callee FnRef, offset int) Locator {
	return Locator{class: Return, fn: callee, offset: offset}
}

// GMemberOf constructs a locator naming one member of a global object.
func GMemberOf(g GMemberRef) Locator {
	return Locator{class: GMember, gmember: g}
}

// FnOf constructs a locator naming a callee function directly (used as an
// instruction's call-target operand).
func FnOf(callee FnRef) Locator {
	return Locator{class: Fn, fn: callee}
}

// WithIs returns a copy of l tagged with the given indirection flag
// (spec.md §6, with_is(flag)).
func (l Locator) WithIs(is Indirection) Locator {
	l.is = is
	return l
}

// WithAdvanceOffset returns a copy of l with its offset advanced by n
// (spec.md §6, with_advance_offset(n)). n may be negative.
func (l Locator) WithAdvanceOffset(n int) Locator {
	l.offset += n
	return l
}

// AdvanceOffset mutates l's offset in place by n, matching the original's
// in-place `locator_t::advance_offset` used on an instruction's arg/alt
// during switch-table construction (spec.md §4.7).
func (l *Locator) AdvanceOffset(n int) {
	l.offset += n
}

// MemHead returns the locator stripped of its offset and indirection tag:
// the "head" identifying which memory location is touched, independent of
// which byte of it. Used to build the maybe-store operand map (spec.md
// §4.5, mem_head()).
func (l Locator) MemHead() Locator {
	l.offset = 0
	l.is = IsNone
	return l
}

// HasFn reports whether this locator's class can carry a function
// reference (Arg or Return), the has_fn(loc.lclass()) test of spec.md
// §4.4. The liveness oracle in pkg/acfg checks the Arg and Return classes
// directly and does not call it.
func (l Locator) HasFn() bool {
	return l.class == Arg || l.class == Return
}
