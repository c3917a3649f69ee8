package program

import (
	"testing"

	"github.com/crank-lang/crank/pkg/isa"
	"github.com/crank-lang/crank/pkg/loc"
)

func TestDecodeSingleReturnFunction(t *testing.T) {
	mod, err := Decode([]byte(`
functions:
  - name: main
    code:
      - op: RTS_IMPLIED
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(mod.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(mod.Functions))
	}
	f := mod.Functions[0]
	if f.Name != "main" || len(f.Code) != 1 || f.Code[0].Op != isa.RTS_IMPLIED {
		t.Fatalf("unexpected decoded function: %+v", f)
	}
}

func TestDecodeCrossFunctionReturnOperand(t *testing.T) {
	mod, err := Decode([]byte(`
functions:
  - name: callee
    code:
      - op: RTS_IMPLIED
  - name: caller
    code:
      - op: JSR_ABSOLUTE
        arg: {kind: fn, fn: callee}
      - op: LDA_ABSOLUTE
        arg: {kind: return, fn: callee, offset: 0}
      - op: RTS_IMPLIED
`))
	if err != nil {
		t.Fatal(err)
	}
	caller := mod.Functions[1]
	retArg := caller.Code[1].Arg
	if retArg.Class() != loc.Return {
		t.Fatalf("expected a Return-class operand, got %v", retArg.Class())
	}
	if retArg.Fn().FnHandleID() != mod.Functions[0].Summary.FnHandleID() {
		t.Fatal("expected the return slot's Fn to resolve to the callee function, not the caller")
	}
}

func TestDecodeSwitchTable(t *testing.T) {
	mod, err := Decode([]byte(`
functions:
  - name: dispatch
    cfg_nodes:
      - id: 1
    code:
      - op: SWITCH_ABSOLUTE
        arg: {kind: cfg_label, cfg: 1}
      - op: ASM_LABEL
        arg: {kind: minor_label, id: 1}
      - op: RTS_IMPLIED
      - op: ASM_LABEL
        arg: {kind: minor_label, id: 2}
      - op: RTS_IMPLIED
    switch_tables:
      - cfg: 1
        cases:
          - value: 0
            label: {kind: minor_label, id: 1}
          - value: 1
            label: {kind: minor_label, id: 2}
`))
	if err != nil {
		t.Fatal(err)
	}
	f := mod.Functions[0]
	if len(f.SwitchTables) != 1 {
		t.Fatalf("expected 1 switch table, got %d", len(f.SwitchTables))
	}
	for _, table := range f.SwitchTables {
		if len(table.Cases) != 2 || table.Cases[0] != 0 || table.Cases[1] != 1 {
			t.Fatalf("unexpected switch table cases: %+v", table.Cases)
		}
	}
}

func TestDecodeUnknownOpError(t *testing.T) {
	_, err := Decode([]byte(`
functions:
  - name: main
    code:
      - op: NOT_A_REAL_OP
`))
	if err == nil {
		t.Fatal("expected an error for an unknown op mnemonic")
	}
}

func TestDecodeDuplicateFunctionNameError(t *testing.T) {
	_, err := Decode([]byte(`
functions:
  - name: main
    code:
      - op: RTS_IMPLIED
  - name: main
    code:
      - op: RTS_IMPLIED
`))
	if err == nil {
		t.Fatal("expected an error for a duplicate function name")
	}
}

func TestDecodeUnknownCFGNodeError(t *testing.T) {
	_, err := Decode([]byte(`
functions:
  - name: main
    code:
      - op: SWITCH_ABSOLUTE
        arg: {kind: cfg_label, cfg: 99}
`))
	if err == nil {
		t.Fatal("expected an error for a reference to an undeclared cfg node")
	}
}
