// Package isa is the instruction-set metadata the ACFG back-end consults
// through the op-table contract fixed by spec.md §6: op_flags,
// op_input_regs, op_output_regs, op_size, op_addr_mode, invert_branch,
// tail_call_op, change_addr_mode, is_return, is_branch, indirect_addr_mode.
//
// Addressing-mode sizing is delegated to github.com/beevik/go6502's opcode
// table rather than hand-rolled, the same way the rest of the back-end
// leans on real third-party metadata instead of duplicating it; the
// pseudo-ops the builder and layout passes synthesize (labels, switch
// terminators, maybe-stores, fused flag stores) have no go6502 entry and
// carry their sizes and flags directly.
package isa

import "github.com/beevik/go6502/cpu"

// Op is the closed set of instruction opcodes the ACFG back-end emits and
// reasons about (spec.md §3, asm_inst.op). Each addressable op names both
// the mnemonic and its addressing mode, matching how go6502 disambiguates
// instruction variants.
type Op int

const (
	opInvalid Op = iota

	// Pseudo-ops synthesized by the builder, optimizer, or layout passes.
	// ASM_LABEL, ASM_DATA, ASM_PRUNED and SWITCH_ABSOLUTE have no real 6502
	// encoding of their own; JMP, JSR, RTS and RTI are the real opcodes
	// those passes emit as terminators.
	ASM_LABEL   // marks the start of a new node during building (spec.md §4.2)
	ASM_DATA    // raw data byte, e.g. a switch-table entry (spec.md §4.7)
	ASM_PRUNED  // a dead maybe-store, erased in place (spec.md §4.5)
	JMP_ABSOLUTE
	JSR_ABSOLUTE
	RTS_IMPLIED
	RTI_IMPLIED
	SWITCH_ABSOLUTE // indirect jump through a resolved switch table

	// MAYBE_STA is a placeholder store awaiting the liveness verdict on its
	// destination; it resolves to STA_ABSOLUTE (live) or ASM_PRUNED (dead).
	MAYBE_STA
	// MAYBE_STORE_C / MAYBE_STORE_Z are placeholders for storing the carry
	// or zero flag as a byte; unlike MAYBE_STA they have no addressing-mode
	// family of their own, so a live verdict rewrites them directly to
	// STORE_C_ABSOLUTE / STORE_Z_ABSOLUTE rather than through
	// change_addr_mode (spec.md §4.5).
	MAYBE_STORE_C
	MAYBE_STORE_Z
	STORE_C_ABSOLUTE
	STORE_Z_ABSOLUTE

	// Real, addressable 6502 opcodes.
	LDA_IMMEDIATE
	LDA_ZEROPAGE
	LDA_ABSOLUTE
	STA_ZEROPAGE
	STA_ABSOLUTE
	LDX_IMMEDIATE
	LDX_ZEROPAGE
	LDX_ABSOLUTE
	LDY_IMMEDIATE
	LDY_ZEROPAGE
	LDY_ABSOLUTE
	INC_ZEROPAGE
	INC_ABSOLUTE
	DEC_ZEROPAGE
	DEC_ABSOLUTE
	CMP_IMMEDIATE
	CMP_ZEROPAGE
	CMP_ABSOLUTE
	CPX_IMMEDIATE
	CPY_IMMEDIATE
	ADC_IMMEDIATE
	ADC_ABSOLUTE
	SBC_IMMEDIATE
	SBC_ABSOLUTE
	AND_IMMEDIATE
	ORA_IMMEDIATE
	EOR_IMMEDIATE

	BEQ_RELATIVE
	BNE_RELATIVE
	BCC_RELATIVE
	BCS_RELATIVE
	BMI_RELATIVE
	BPL_RELATIVE
)

// AddrMode re-exports go6502's addressing-mode enum: the back-end never
// needs a mode go6502 doesn't already name.
type AddrMode = cpu.Mode

const (
	ModeImmediate = cpu.IMM
	ModeZeroPage  = cpu.ZPG
	ModeAbsolute  = cpu.ABS
	ModeRelative  = cpu.REL
	ModeImplied   = cpu.IMP
	ModeIndirect  = cpu.IND
	ModeIndirectX = cpu.IDX
	ModeIndirectY = cpu.IDY
)

// Flags is a bitmask over the handful of terminator/placeholder kinds the
// builder and optimizer dispatch on (spec.md §3, "asmf_*").
type Flags uint8

const (
	FlagJump Flags = 1 << iota
	FlagBranch
	FlagSwitch
	FlagCall
	FlagMaybeStore
)

type opInfo struct {
	mnemonic string // empty for pseudo-ops with no go6502 entry
	mode     AddrMode
	flags    Flags
	in, out  RegFlags
	// pseudoSize is used only when mnemonic == "" (pseudo-ops); real ops
	// look their size up from go6502's table.
	pseudoSize int
}

var table = map[Op]opInfo{
	ASM_LABEL:  {pseudoSize: 0},
	ASM_DATA:   {pseudoSize: 1},
	ASM_PRUNED: {pseudoSize: 0},

	JMP_ABSOLUTE: {mnemonic: "JMP", mode: ModeAbsolute, flags: FlagJump},
	JSR_ABSOLUTE: {mnemonic: "JSR", mode: ModeAbsolute, flags: FlagCall},
	RTS_IMPLIED:  {mnemonic: "RTS", mode: ModeImplied},
	RTI_IMPLIED:  {mnemonic: "RTI", mode: ModeImplied},

	// The indirect jump-table dispatch has no single go6502 mnemonic (it
	// lowers to a short real sequence once switch tables are materialized,
	// out of scope here); budget it at the size of the indexed load plus
	// the indirect jump it expands to.
	SWITCH_ABSOLUTE: {flags: FlagSwitch, in: RegX | RegM, pseudoSize: 6},

	MAYBE_STA:     {mnemonic: "STA", mode: ModeZeroPage, flags: FlagMaybeStore, in: RegA, out: RegM},
	MAYBE_STORE_C: {flags: FlagMaybeStore, in: RegC, out: RegM, pseudoSize: 5},
	MAYBE_STORE_Z: {flags: FlagMaybeStore, in: RegZ, out: RegM, pseudoSize: 5},
	// Fused flag-to-byte stores; the actual encode (branch+two STAs) is an
	// asmgen concern out of scope here, so they carry an estimated size.
	STORE_C_ABSOLUTE: {in: RegC, out: RegM, pseudoSize: 8},
	STORE_Z_ABSOLUTE: {in: RegZ, out: RegM, pseudoSize: 8},

	LDA_IMMEDIATE: {mnemonic: "LDA", mode: ModeImmediate, out: RegA},
	LDA_ZEROPAGE:  {mnemonic: "LDA", mode: ModeZeroPage, in: RegM, out: RegA},
	LDA_ABSOLUTE:  {mnemonic: "LDA", mode: ModeAbsolute, in: RegM, out: RegA},
	STA_ZEROPAGE:  {mnemonic: "STA", mode: ModeZeroPage, in: RegA, out: RegM},
	STA_ABSOLUTE:  {mnemonic: "STA", mode: ModeAbsolute, in: RegA, out: RegM},

	LDX_IMMEDIATE: {mnemonic: "LDX", mode: ModeImmediate, out: RegX},
	LDX_ZEROPAGE:  {mnemonic: "LDX", mode: ModeZeroPage, in: RegM, out: RegX},
	LDX_ABSOLUTE:  {mnemonic: "LDX", mode: ModeAbsolute, in: RegM, out: RegX},
	LDY_IMMEDIATE: {mnemonic: "LDY", mode: ModeImmediate, out: RegY},
	LDY_ZEROPAGE:  {mnemonic: "LDY", mode: ModeZeroPage, in: RegM, out: RegY},
	LDY_ABSOLUTE:  {mnemonic: "LDY", mode: ModeAbsolute, in: RegM, out: RegY},

	// INC/DEC read and write the same memory location: both in and out
	// carry RegM, and the ordering of that read before that write is what
	// the do_inst_rw oracle must preserve (spec.md §9, design note on
	// INC/DEC read-then-write ordering).
	INC_ZEROPAGE: {mnemonic: "INC", mode: ModeZeroPage, in: RegM, out: RegM},
	INC_ABSOLUTE: {mnemonic: "INC", mode: ModeAbsolute, in: RegM, out: RegM},
	DEC_ZEROPAGE: {mnemonic: "DEC", mode: ModeZeroPage, in: RegM, out: RegM},
	DEC_ABSOLUTE: {mnemonic: "DEC", mode: ModeAbsolute, in: RegM, out: RegM},

	CMP_IMMEDIATE: {mnemonic: "CMP", mode: ModeImmediate, in: RegA, out: RegC | RegZ},
	CMP_ZEROPAGE:  {mnemonic: "CMP", mode: ModeZeroPage, in: RegA | RegM, out: RegC | RegZ},
	CMP_ABSOLUTE:  {mnemonic: "CMP", mode: ModeAbsolute, in: RegA | RegM, out: RegC | RegZ},
	CPX_IMMEDIATE: {mnemonic: "CPX", mode: ModeImmediate, in: RegX, out: RegC | RegZ},
	CPY_IMMEDIATE: {mnemonic: "CPY", mode: ModeImmediate, in: RegY, out: RegC | RegZ},

	ADC_IMMEDIATE: {mnemonic: "ADC", mode: ModeImmediate, in: RegA | RegC, out: RegA | RegC | RegZ},
	ADC_ABSOLUTE:  {mnemonic: "ADC", mode: ModeAbsolute, in: RegA | RegC | RegM, out: RegA | RegC | RegZ},
	SBC_IMMEDIATE: {mnemonic: "SBC", mode: ModeImmediate, in: RegA | RegC, out: RegA | RegC | RegZ},
	SBC_ABSOLUTE:  {mnemonic: "SBC", mode: ModeAbsolute, in: RegA | RegC | RegM, out: RegA | RegC | RegZ},

	AND_IMMEDIATE: {mnemonic: "AND", mode: ModeImmediate, in: RegA, out: RegA | RegZ},
	ORA_IMMEDIATE: {mnemonic: "ORA", mode: ModeImmediate, in: RegA, out: RegA | RegZ},
	EOR_IMMEDIATE: {mnemonic: "EOR", mode: ModeImmediate, in: RegA, out: RegA | RegZ},

	BEQ_RELATIVE: {mnemonic: "BEQ", mode: ModeRelative, flags: FlagBranch, in: RegZ},
	BNE_RELATIVE: {mnemonic: "BNE", mode: ModeRelative, flags: FlagBranch, in: RegZ},
	BCC_RELATIVE: {mnemonic: "BCC", mode: ModeRelative, flags: FlagBranch, in: RegC},
	BCS_RELATIVE: {mnemonic: "BCS", mode: ModeRelative, flags: FlagBranch, in: RegC},
	BMI_RELATIVE: {mnemonic: "BMI", mode: ModeRelative, flags: FlagBranch},
	BPL_RELATIVE: {mnemonic: "BPL", mode: ModeRelative, flags: FlagBranch},
}

// branchInverse pairs each conditional branch with its logical negation,
// used by the builder's inverse-branch folding and the linearizer's
// branch inversion (spec.md §4.2, §4.7).
var branchInverse = map[Op]Op{
	BEQ_RELATIVE: BNE_RELATIVE,
	BNE_RELATIVE: BEQ_RELATIVE,
	BCC_RELATIVE: BCS_RELATIVE,
	BCS_RELATIVE: BCC_RELATIVE,
	BMI_RELATIVE: BPL_RELATIVE,
	BPL_RELATIVE: BMI_RELATIVE,
}

// tailCall pairs a call op with the unconditional jump it becomes when the
// optimizer folds a call immediately followed by a return (spec.md §4.3,
// tail_call_op).
var tailCall = map[Op]Op{
	JSR_ABSOLUTE: JMP_ABSOLUTE,
}

// addrFamily groups ops that are the same mnemonic under different
// addressing modes, for change_addr_mode's benefit.
var addrFamily = map[Op]map[AddrMode]Op{
	LDA_ZEROPAGE: {ModeZeroPage: LDA_ZEROPAGE, ModeAbsolute: LDA_ABSOLUTE},
	LDA_ABSOLUTE: {ModeZeroPage: LDA_ZEROPAGE, ModeAbsolute: LDA_ABSOLUTE},
	STA_ZEROPAGE: {ModeZeroPage: STA_ZEROPAGE, ModeAbsolute: STA_ABSOLUTE},
	STA_ABSOLUTE: {ModeZeroPage: STA_ZEROPAGE, ModeAbsolute: STA_ABSOLUTE},
	LDX_ZEROPAGE: {ModeZeroPage: LDX_ZEROPAGE, ModeAbsolute: LDX_ABSOLUTE},
	LDX_ABSOLUTE: {ModeZeroPage: LDX_ZEROPAGE, ModeAbsolute: LDX_ABSOLUTE},
	LDY_ZEROPAGE: {ModeZeroPage: LDY_ZEROPAGE, ModeAbsolute: LDY_ABSOLUTE},
	LDY_ABSOLUTE: {ModeZeroPage: LDY_ZEROPAGE, ModeAbsolute: LDY_ABSOLUTE},
	INC_ZEROPAGE: {ModeZeroPage: INC_ZEROPAGE, ModeAbsolute: INC_ABSOLUTE},
	INC_ABSOLUTE: {ModeZeroPage: INC_ZEROPAGE, ModeAbsolute: INC_ABSOLUTE},
	DEC_ZEROPAGE: {ModeZeroPage: DEC_ZEROPAGE, ModeAbsolute: DEC_ABSOLUTE},
	DEC_ABSOLUTE: {ModeZeroPage: DEC_ZEROPAGE, ModeAbsolute: DEC_ABSOLUTE},
	CMP_ZEROPAGE: {ModeZeroPage: CMP_ZEROPAGE, ModeAbsolute: CMP_ABSOLUTE},
	CMP_ABSOLUTE: {ModeZeroPage: CMP_ZEROPAGE, ModeAbsolute: CMP_ABSOLUTE},

	// MAYBE_STA promotes directly into the absolute-mode real store; it has
	// no zero-page real-store target since a promoted maybe-store is
	// always materialized at its full address (spec.md §4.5).
	MAYBE_STA: {ModeAbsolute: STA_ABSOLUTE},
}

// sizeCache holds every real op's go6502 length. It is filled once at
// package initialization and only read afterwards.
var sizeCache = map[Op]int{}

func init() {
	for op, inf := range table {
		if inf.mnemonic != "" {
			sizeCache[op] = lookupSize(inf.mnemonic, inf.mode)
		}
	}
}

func info(op Op) opInfo {
	inf, ok := table[op]
	if !ok {
		return opInfo{}
	}
	return inf
}

// OpFlags reports op's terminator/placeholder classification.
func OpFlags(op Op) Flags { return info(op).flags }

// InputRegs reports the registers/flags/memory op reads.
func InputRegs(op Op) RegFlags { return info(op).in }

// OutputRegs reports the registers/flags/memory op writes.
func OutputRegs(op Op) RegFlags { return info(op).out }

// Size reports op's encoded size in bytes, used by the layout cost model
// (spec.md §4.6) to compute node and path lengths.
func Size(op Op) int {
	inf := info(op)
	if inf.mnemonic == "" {
		return inf.pseudoSize
	}
	return sizeCache[op]
}

func lookupSize(mnemonic string, mode AddrMode) int {
	for _, inst := range cpu.GetInstructionSet(cpu.NMOS).GetInstructions(mnemonic) {
		if inst.Mode == mode {
			return int(inst.Length)
		}
	}
	return 0
}

// AddrModeOf reports op's addressing mode.
func AddrModeOf(op Op) AddrMode { return info(op).mode }

// InvertBranch returns the logical negation of a conditional branch op and
// reports whether op was invertible at all (spec.md §4.3, invert_branch).
func InvertBranch(op Op) (Op, bool) {
	inv, ok := branchInverse[op]
	return inv, ok
}

// TailCallOp returns the unconditional jump op to substitute for a call op
// immediately preceding a return, and reports whether op is a call at all
// (spec.md §4.3, tail_call_op).
func TailCallOp(op Op) (Op, bool) {
	j, ok := tailCall[op]
	return j, ok
}

// ChangeAddrMode returns the op in op's addressing-mode family that uses
// mode, reporting ok=false when op has no such family member (spec.md
// §4.5, change_addr_mode) — callers fall back to a hardcoded rewrite for
// MAYBE_STORE_C / MAYBE_STORE_Z, which have no family at all.
func ChangeAddrMode(op Op, mode AddrMode) (Op, bool) {
	fam, ok := addrFamily[op]
	if !ok {
		return opInvalid, false
	}
	out, ok := fam[mode]
	return out, ok
}

// IsReturn reports whether op ends a function (spec.md §4.2, is_return).
func IsReturn(op Op) bool { return op == RTS_IMPLIED || op == RTI_IMPLIED }

// IsBranch reports whether op is a conditional branch (spec.md §4.2/§4.3).
func IsBranch(op Op) bool { return info(op).flags&FlagBranch != 0 }

// IsJump reports whether op is an unconditional jump.
func IsJump(op Op) bool { return info(op).flags&FlagJump != 0 }

// IsCall reports whether op is a call.
func IsCall(op Op) bool { return info(op).flags&FlagCall != 0 }

// IsSwitch reports whether op is a multi-way switch terminator.
func IsSwitch(op Op) bool { return info(op).flags&FlagSwitch != 0 }

// IsMaybeStore reports whether op is a liveness-gated placeholder store
// (spec.md §4.5).
func IsMaybeStore(op Op) bool { return info(op).flags&FlagMaybeStore != 0 }

// IndirectAddrMode reports whether mode dereferences through memory rather
// than naming an operand directly — used by the liveness oracle to decide
// whether an instruction's alt operand (the pointer's high byte) must also
// be tested for reads (spec.md §4.4, indirect_addr_mode).
func IndirectAddrMode(mode AddrMode) bool {
	return mode == ModeIndirect || mode == ModeIndirectX || mode == ModeIndirectY
}

// String names op for diagnostics and test failure messages.
func (op Op) String() string {
	if inf, ok := table[op]; ok && inf.mnemonic != "" {
		return inf.mnemonic
	}
	switch op {
	case ASM_LABEL:
		return "ASM_LABEL"
	case ASM_DATA:
		return "ASM_DATA"
	case ASM_PRUNED:
		return "ASM_PRUNED"
	case SWITCH_ABSOLUTE:
		return "SWITCH_ABSOLUTE"
	case MAYBE_STA:
		return "MAYBE_STA"
	case MAYBE_STORE_C:
		return "MAYBE_STORE_C"
	case MAYBE_STORE_Z:
		return "MAYBE_STORE_Z"
	case STORE_C_ABSOLUTE:
		return "STORE_C_ABSOLUTE"
	case STORE_Z_ABSOLUTE:
		return "STORE_Z_ABSOLUTE"
	default:
		return "INVALID"
	}
}
