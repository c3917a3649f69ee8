// Package program decodes a textual module description into the
// instruction buffers, switch tables, and function summaries the acfg
// Builder and liveness passes consume. It plays the role the teacher's
// own pkg/lexer+pkg/parser play for C source: a front-end boundary that
// turns a file on disk into the in-memory form the backend actually
// operates on. Nothing upstream of the flat instruction stream spec.md §1
// assigns to the ACFG back-end is in scope here, so the format is
// deliberately close to the Inst/Locator wire shape rather than a real
// surface syntax.
package program

import (
	"fmt"
	"os"

	"github.com/crank-lang/crank/pkg/acfg"
	"github.com/crank-lang/crank/pkg/fn"
	"github.com/crank-lang/crank/pkg/ir"
	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
	"gopkg.in/yaml.v3"
)

// operand is the YAML shape of one instruction operand.
type operand struct {
	Kind   string `yaml:"kind"`
	CFG    int    `yaml:"cfg,omitempty"`
	ID     int    `yaml:"id,omitempty"`
	Group  int    `yaml:"group,omitempty"`
	Offset int    `yaml:"offset,omitempty"`
	Fn     string `yaml:"fn,omitempty"`
	Byte   int    `yaml:"byte,omitempty"`
}

type instYAML struct {
	Op  string   `yaml:"op"`
	Arg *operand `yaml:"arg,omitempty"`
	Alt *operand `yaml:"alt,omitempty"`
}

type cfgNodeYAML struct {
	ID        int   `yaml:"id"`
	LoopDepth int   `yaml:"loop_depth,omitempty"`
	Incoming  []int `yaml:"incoming,omitempty"`
}

type caseYAML struct {
	Value int     `yaml:"value"`
	Label operand `yaml:"label"`
}

type switchTableYAML struct {
	CFG   int        `yaml:"cfg"`
	Cases []caseYAML `yaml:"cases"`
}

type functionYAML struct {
	Name         string            `yaml:"name"`
	Class        string            `yaml:"class,omitempty"`
	Reads        []int             `yaml:"reads,omitempty"`
	Writes       []int             `yaml:"writes,omitempty"`
	PrecheckVars []int             `yaml:"precheck_vars,omitempty"`
	CFGNodes     []cfgNodeYAML     `yaml:"cfg_nodes,omitempty"`
	Code         []instYAML        `yaml:"code"`
	SwitchTables []switchTableYAML `yaml:"switch_tables,omitempty"`
}

type moduleYAML struct {
	Functions []functionYAML `yaml:"functions"`
}

// Function is one decoded function: its buildable instruction stream, its
// switch tables keyed the way Graph.AppendCode expects, and the summary
// the liveness/lvars passes read from.
type Function struct {
	Name         string
	Summary      *fn.Summary
	Code         []acfg.Inst
	SwitchTables map[loc.CFGNodeRef]ir.SwitchTable
}

// Module is a decoded set of functions, name-resolved against each other
// so that calls, argument slots, and return slots can cross function
// boundaries (spec.md §6, loc.Fn()/loc.HasFn()).
type Module struct {
	Functions []*Function
}

// opNames maps the YAML op mnemonic to its isa.Op constant. Kept as an
// explicit table (rather than reusing isa.Op.String) because several
// addressing-mode variants share a mnemonic; the YAML name always spells
// out the mode, matching the Go identifier exactly.
var opNames = map[string]isa.Op{
	"ASM_LABEL":        isa.ASM_LABEL,
	"ASM_DATA":         isa.ASM_DATA,
	"ASM_PRUNED":       isa.ASM_PRUNED,
	"JMP_ABSOLUTE":     isa.JMP_ABSOLUTE,
	"JSR_ABSOLUTE":     isa.JSR_ABSOLUTE,
	"RTS_IMPLIED":      isa.RTS_IMPLIED,
	"RTI_IMPLIED":      isa.RTI_IMPLIED,
	"SWITCH_ABSOLUTE":  isa.SWITCH_ABSOLUTE,
	"MAYBE_STA":        isa.MAYBE_STA,
	"MAYBE_STORE_C":    isa.MAYBE_STORE_C,
	"MAYBE_STORE_Z":    isa.MAYBE_STORE_Z,
	"STORE_C_ABSOLUTE": isa.STORE_C_ABSOLUTE,
	"STORE_Z_ABSOLUTE": isa.STORE_Z_ABSOLUTE,
	"LDA_IMMEDIATE":    isa.LDA_IMMEDIATE,
	"LDA_ZEROPAGE":     isa.LDA_ZEROPAGE,
	"LDA_ABSOLUTE":     isa.LDA_ABSOLUTE,
	"STA_ZEROPAGE":     isa.STA_ZEROPAGE,
	"STA_ABSOLUTE":     isa.STA_ABSOLUTE,
	"LDX_IMMEDIATE":    isa.LDX_IMMEDIATE,
	"LDX_ZEROPAGE":     isa.LDX_ZEROPAGE,
	"LDX_ABSOLUTE":     isa.LDX_ABSOLUTE,
	"LDY_IMMEDIATE":    isa.LDY_IMMEDIATE,
	"LDY_ZEROPAGE":     isa.LDY_ZEROPAGE,
	"LDY_ABSOLUTE":     isa.LDY_ABSOLUTE,
	"INC_ZEROPAGE":     isa.INC_ZEROPAGE,
	"INC_ABSOLUTE":     isa.INC_ABSOLUTE,
	"DEC_ZEROPAGE":     isa.DEC_ZEROPAGE,
	"DEC_ABSOLUTE":     isa.DEC_ABSOLUTE,
	"CMP_IMMEDIATE":    isa.CMP_IMMEDIATE,
	"CMP_ZEROPAGE":     isa.CMP_ZEROPAGE,
	"CMP_ABSOLUTE":     isa.CMP_ABSOLUTE,
	"CPX_IMMEDIATE":    isa.CPX_IMMEDIATE,
	"CPY_IMMEDIATE":    isa.CPY_IMMEDIATE,
	"ADC_IMMEDIATE":    isa.ADC_IMMEDIATE,
	"ADC_ABSOLUTE":     isa.ADC_ABSOLUTE,
	"SBC_IMMEDIATE":    isa.SBC_IMMEDIATE,
	"SBC_ABSOLUTE":     isa.SBC_ABSOLUTE,
	"AND_IMMEDIATE":    isa.AND_IMMEDIATE,
	"ORA_IMMEDIATE":    isa.ORA_IMMEDIATE,
	"EOR_IMMEDIATE":    isa.EOR_IMMEDIATE,
	"BEQ_RELATIVE":     isa.BEQ_RELATIVE,
	"BNE_RELATIVE":     isa.BNE_RELATIVE,
	"BCC_RELATIVE":     isa.BCC_RELATIVE,
	"BCS_RELATIVE":     isa.BCS_RELATIVE,
	"BMI_RELATIVE":     isa.BMI_RELATIVE,
	"BPL_RELATIVE":     isa.BPL_RELATIVE,
}

// Load reads and decodes a module description from path.
func Load(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("program: reading %s: %w", path, err)
	}
	return Decode(data)
}

// Decode parses a module description from its YAML bytes.
func Decode(data []byte) (*Module, error) {
	var raw moduleYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("program: parsing module: %w", err)
	}

	d := &decoder{
		fns:  map[string]*fn.Summary{},
		cfgs: map[string]map[int]*ir.CFGNode{},
	}
	for i, f := range raw.Functions {
		if _, dup := d.fns[f.Name]; dup {
			return nil, fmt.Errorf("program: function %q declared twice", f.Name)
		}
		d.fns[f.Name] = fn.NewSummary(i)
	}

	mod := &Module{}
	for _, f := range raw.Functions {
		decoded, err := d.decodeFunction(f)
		if err != nil {
			return nil, fmt.Errorf("program: function %q: %w", f.Name, err)
		}
		mod.Functions = append(mod.Functions, decoded)
	}
	return mod, nil
}

type decoder struct {
	fns  map[string]*fn.Summary
	cfgs map[string]map[int]*ir.CFGNode
}

func (d *decoder) decodeFunction(f functionYAML) (*Function, error) {
	summary := d.fns[f.Name]
	switch f.Class {
	case "", "normal":
		summary.FClass = fn.ClassNormal
	case "mode":
		summary.FClass = fn.ClassMode
	default:
		return nil, fmt.Errorf("unknown class %q", f.Class)
	}
	for _, id := range f.Reads {
		summary.IRReads.Set(id)
	}
	for _, id := range f.Writes {
		summary.IRWrites.Set(id)
	}
	for _, id := range f.PrecheckVars {
		summary.PrecheckGroupVars.Set(id)
	}

	cfgs := map[int]*ir.CFGNode{}
	d.cfgs[f.Name] = cfgs
	for _, c := range f.CFGNodes {
		cfgs[c.ID] = &ir.CFGNode{ID: c.ID, LoopDepth: c.LoopDepth}
	}
	for _, c := range f.CFGNodes {
		node := cfgs[c.ID]
		for _, in := range c.Incoming {
			other, ok := cfgs[in]
			if !ok {
				return nil, fmt.Errorf("cfg node %d: unknown incoming node %d", c.ID, in)
			}
			node.Incoming = append(node.Incoming, other)
		}
	}

	code := make([]acfg.Inst, 0, len(f.Code))
	for _, raw := range f.Code {
		op, ok := opNames[raw.Op]
		if !ok {
			return nil, fmt.Errorf("unknown op %q", raw.Op)
		}
		inst := acfg.Inst{Op: op}
		if raw.Arg != nil {
			l, err := d.decodeOperand(f.Name, summary, cfgs, *raw.Arg)
			if err != nil {
				return nil, err
			}
			inst.Arg = l
		}
		if raw.Alt != nil {
			l, err := d.decodeOperand(f.Name, summary, cfgs, *raw.Alt)
			if err != nil {
				return nil, err
			}
			inst.Alt = l
		}
		code = append(code, inst)
	}

	tables := map[loc.CFGNodeRef]ir.SwitchTable{}
	for _, st := range f.SwitchTables {
		cfgNode, ok := cfgs[st.CFG]
		if !ok {
			return nil, fmt.Errorf("switch table references unknown cfg node %d", st.CFG)
		}
		table := ir.SwitchTable{}
		for _, c := range st.Cases {
			l, err := d.decodeOperand(f.Name, summary, cfgs, c.Label)
			if err != nil {
				return nil, err
			}
			table.Labels = append(table.Labels, l)
			table.Cases = append(table.Cases, int32(c.Value))
		}
		tables[loc.CFGNodeRef(cfgNode)] = table
	}

	return &Function{Name: f.Name, Summary: summary, Code: code, SwitchTables: tables}, nil
}

func (d *decoder) decodeOperand(selfName string, self *fn.Summary, cfgs map[int]*ir.CFGNode, o operand) (loc.Locator, error) {
	resolveFn := func() (*fn.Summary, error) {
		name := o.Fn
		if name == "" || name == "self" {
			return self, nil
		}
		callee, ok := d.fns[name]
		if !ok {
			return nil, fmt.Errorf("operand references unknown function %q", name)
		}
		return callee, nil
	}

	switch o.Kind {
	case "none", "":
		return loc.None, nil
	case "minor_label":
		return loc.MinorLabelOf(o.ID), nil
	case "cfg_label":
		cfgNode, ok := cfgs[o.CFG]
		if !ok {
			return loc.None, fmt.Errorf("operand references unknown cfg node %d", o.CFG)
		}
		return loc.CFGLabelOf(cfgNode, o.Offset), nil
	case "arg":
		callee, err := resolveFn()
		if err != nil {
			return loc.None, err
		}
		return loc.ArgOf(callee, o.Offset), nil
	case "return":
		callee, err := resolveFn()
		if err != nil {
			return loc.None, err
		}
		return loc.ReturnOf(callee, o.Offset), nil
	case "gmember":
		return loc.GMemberOf(loc.GMemberRef{GroupID: o.Group, ID: o.ID}), nil
	case "fn":
		callee, err := resolveFn()
		if err != nil {
			return loc.None, err
		}
		return loc.FnOf(callee), nil
	case "switch_lo_table":
		cfgNode, ok := cfgs[o.CFG]
		if !ok {
			return loc.None, fmt.Errorf("operand references unknown cfg node %d", o.CFG)
		}
		return loc.SwitchLoTableOf(cfgNode), nil
	case "switch_hi_table":
		cfgNode, ok := cfgs[o.CFG]
		if !ok {
			return loc.None, fmt.Errorf("operand references unknown cfg node %d", o.CFG)
		}
		return loc.SwitchHiTableOf(cfgNode), nil
	case "const_byte":
		return loc.ConstByteOf(byte(o.Byte)), nil
	default:
		return loc.None, fmt.Errorf("unknown operand kind %q", o.Kind)
	}
}
