// Package asmfmt prints the ACFG back-end's final linear instruction
// stream, playing the role the teacher's pkg/asm.Printer plays for ARM64:
// a terminal textual rendering in GNU-as-flavored syntax. It is output
// only; nothing in this package feeds back into the backend.
package asmfmt

import (
	"fmt"
	"io"

	"github.com/crank-lang/crank/pkg/acfg"
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
)

// Resolver names the external handles a Locator can carry so the printer
// never has to guess at a stable identity for a *fn.Summary or
// *ir.CFGNode; the caller supplies whatever naming makes sense for its
// input (e.g. the declared function name, or "cfgN" for an unnamed node).
type Resolver interface {
	FnName(id int) string
	CFGName(id int) string
}

// defaultResolver names everything positionally, used when the caller has
// no richer naming available.
type defaultResolver struct{}

func (defaultResolver) FnName(id int) string  { return fmt.Sprintf("fn%d", id) }
func (defaultResolver) CFGName(id int) string { return fmt.Sprintf("cfg%d", id) }

// Printer writes a linear instruction stream as assembly text.
type Printer struct {
	w io.Writer
	r Resolver
}

// NewPrinter creates a Printer writing to w. If r is nil, a positional
// default resolver is used.
func NewPrinter(w io.Writer, r Resolver) *Printer {
	if r == nil {
		r = defaultResolver{}
	}
	return &Printer{w: w, r: r}
}

// PrintFunction prints one function's label plus its flattened
// instruction stream (the output of Graph.ToLinear).
func (p *Printer) PrintFunction(name string, code []acfg.Inst) {
	fmt.Fprintf(p.w, "\t.text\n%s:\n", name)
	for _, inst := range code {
		p.printInst(inst)
	}
	fmt.Fprintln(p.w)
}

func (p *Printer) printInst(inst acfg.Inst) {
	switch inst.Op {
	case isa.ASM_LABEL:
		fmt.Fprintf(p.w, "%s:\n", p.operand(inst.Arg))
	case isa.ASM_DATA:
		fmt.Fprintf(p.w, "\t.byte\t%s\n", p.operand(inst.Arg))
	default:
		line := "\t" + inst.Op.String()
		var operands []string
		if inst.Arg.Valid() {
			operands = append(operands, p.operand(inst.Arg))
		}
		if inst.Alt.Valid() {
			operands = append(operands, p.operand(inst.Alt))
		}
		for i, o := range operands {
			if i == 0 {
				line += "\t" + o
			} else {
				line += ", " + o
			}
		}
		fmt.Fprintln(p.w, line)
	}
}

func (p *Printer) operand(l loc.Locator) string {
	prefix := ""
	switch l.Is() {
	case loc.IsPtr:
		prefix = "<"
	case loc.IsPtrHi:
		prefix = ">"
	}

	switch l.Class() {
	case loc.NONE:
		return ""
	case loc.MinorLabel:
		return fmt.Sprintf("%s.L%d", prefix, l.Offset())
	case loc.CFGLabel:
		name := p.r.CFGName(l.CFGNode().CFGHandleID())
		if l.Offset() != 0 {
			return fmt.Sprintf("%s.%s+%d", prefix, name, l.Offset())
		}
		return prefix + "." + name
	case loc.Arg:
		return fmt.Sprintf("arg%d(%s)", l.Offset(), p.r.FnName(l.Fn().FnHandleID()))
	case loc.Return:
		return fmt.Sprintf("ret%d(%s)", l.Offset(), p.r.FnName(l.Fn().FnHandleID()))
	case loc.GMember:
		g := l.GMember()
		return fmt.Sprintf("%sg%d_%d", prefix, g.GroupID, g.ID)
	case loc.Fn:
		return p.r.FnName(l.Fn().FnHandleID())
	case loc.SwitchLoTable:
		return fmt.Sprintf("%s.swlo_%s", prefix, p.r.CFGName(l.CFGNode().CFGHandleID()))
	case loc.SwitchHiTable:
		return fmt.Sprintf("%s.swhi_%s", prefix, p.r.CFGName(l.CFGNode().CFGHandleID()))
	case loc.ConstByte:
		return fmt.Sprintf("#$%02x", l.ByteValue())
	default:
		return "?"
	}
}
