package acfg

import (
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
)

// Inst is one target instruction (spec.md §3, asm_inst): an opcode plus up
// to two symbolic operands. Alt is used for addressing modes that carry a
// second locator, e.g. an indirect pointer's high byte.
type Inst struct {
	Op  isa.Op
	Arg loc.Locator
	Alt loc.Locator
}
