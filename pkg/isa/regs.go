package isa

// RegFlags is a bitmask over the small set of locations a 6502 instruction
// can read or write: the three general registers, the two status flags
// the back-end tracks individually, and "memory" (spec.md §3, REGF_M).
type RegFlags uint8

const (
	RegA RegFlags = 1 << iota
	RegX
	RegY
	RegC // carry flag
	RegZ // zero flag
	// RegM marks that the instruction's arg/alt operand (its memory
	// location) itself is read or written, as opposed to a CPU register.
	// This is the only flag the liveness oracle in spec.md §4.4 consults.
	RegM
)
