// Command crank-cg drives the ACFG back-end end to end: build, optimize,
// compute liveness, resolve maybe-stores, choose a block layout, and
// linearize, over every function in a decoded module file. It mirrors the
// shape of the teacher's cmd/ralph-cc: a cobra root command, a family of
// CompCert-style -d<pass> dump flags for every intermediate stage, and a
// final textual emission of the last stage reached.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crank-lang/crank/internal/trace"
	"github.com/crank-lang/crank/pkg/acfg"
	"github.com/crank-lang/crank/pkg/asmfmt"
	"github.com/crank-lang/crank/pkg/loc"
	"github.com/crank-lang/crank/pkg/program"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	dBuild   bool
	dOpt     bool
	dLive    bool
	dMaybe   bool
	dLayout  bool
	dAsm     bool
	verbose  bool
	outSuffx string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "crank-cg [file]",
		Short:         "crank-cg lowers a 6502 instruction stream into laid-out, linearized assembly",
		Long:          `crank-cg drives the crank ACFG back-end over a module description, one function at a time: build, optimize, liveness, maybe-store resolution, layout, and linearization.`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return compile(args[0], out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVar(&dBuild, "dbuild", false, "dump the graph after building, before any optimization")
	rootCmd.Flags().BoolVar(&dOpt, "dopt", false, "dump the graph after the optimizer fixpoint")
	rootCmd.Flags().BoolVar(&dLive, "dlive", false, "dump per-node liveness sets")
	rootCmd.Flags().BoolVar(&dMaybe, "dmaybe", false, "dump the graph after maybe-store resolution")
	rootCmd.Flags().BoolVar(&dLayout, "dlayout", false, "dump the chosen block order")
	rootCmd.Flags().BoolVar(&dAsm, "dasm", false, "dump the final linearized assembly")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable pass-level trace logging")
	rootCmd.Flags().StringVar(&outSuffx, "out-suffix", ".s", "suffix for the emitted assembly file")

	return rootCmd
}

// moduleResolver names operands using the function registry built while
// decoding the input module, falling back to positional cfgN names (CFG
// nodes carry no declared name of their own in the input format).
type moduleResolver struct {
	names map[int]string
}

func (r moduleResolver) FnName(id int) string {
	if n, ok := r.names[id]; ok {
		return n
	}
	return fmt.Sprintf("fn%d", id)
}

func (r moduleResolver) CFGName(id int) string { return fmt.Sprintf("cfg%d", id) }

func compile(filename string, out, errOut io.Writer) error {
	mod, err := program.Load(filename)
	if err != nil {
		fmt.Fprintf(errOut, "crank-cg: %v\n", err)
		return err
	}

	names := map[int]string{}
	for _, f := range mod.Functions {
		names[f.Summary.FnHandleID()] = f.Name
	}
	resolver := moduleResolver{names: names}
	printer := asmfmt.NewPrinter(out, resolver)

	outputFilename := asmOutputFilename(filename, outSuffx)
	outFile, err := os.Create(outputFilename)
	if err != nil {
		fmt.Fprintf(errOut, "crank-cg: error creating %s: %v\n", outputFilename, err)
		return err
	}
	defer outFile.Close()
	filePrinter := asmfmt.NewPrinter(outFile, resolver)

	for _, f := range mod.Functions {
		if err := compileFunction(f, errOut, printer, filePrinter); err != nil {
			fmt.Fprintf(errOut, "crank-cg: %s: %v\n", f.Name, err)
			return err
		}
	}
	return nil
}

func compileFunction(f *program.Function, errOut io.Writer, printer, filePrinter *asmfmt.Printer) error {
	log := trace.Discard
	if verbose {
		log = trace.New(errOut, true)
	}

	g := acfg.New(loc.MinorLabelOf(0), log)
	if err := g.AppendCode(f.Code, f.SwitchTables); err != nil {
		return err
	}
	if err := g.FinishAppending(); err != nil {
		return err
	}
	if dBuild {
		dumpGraph(errOut, "build", f.Name, g)
	}

	g.Optimize()
	if dOpt {
		dumpGraph(errOut, "opt", f.Name, g)
	}

	vmap := gatherVarMap(g)
	lv := g.CalcLiveness(f.Summary, vmap)
	if dLive {
		dumpLiveness(errOut, f.Name, g, vmap, lv)
	}

	g.RemoveMaybes(f.Summary)
	if dMaybe {
		dumpGraph(errOut, "maybe", f.Name, g)
	}

	_ = g.BuildLvars(f.Summary)

	order := g.Order()
	if dLayout {
		dumpOrder(errOut, f.Name, order)
	}

	code := g.ToLinear(order)
	if dAsm {
		printer.PrintFunction(f.Name, code)
	}
	filePrinter.PrintFunction(f.Name, code)
	return nil
}

// gatherVarMap builds the ephemeral locator->bit-index map CalcLiveness
// needs, covering every operand touched anywhere in the graph (spec.md
// §4.4). This mirrors acfg's own localVarMap construction but must live
// here since that type is unexported — the CLI is an ordinary client of
// the package's public liveness entry point, not a peer of it.
func gatherVarMap(g *acfg.Graph) acfg.VarMap {
	seen := map[loc.Locator]bool{}
	var order []loc.Locator
	add := func(l loc.Locator) {
		if !l.Valid() {
			return
		}
		head := l.MemHead()
		if seen[head] {
			return
		}
		seen[head] = true
		order = append(order, head)
	}
	for _, n := range g.Nodes() {
		for _, inst := range n.Code {
			add(inst.Arg)
			add(inst.Alt)
		}
		add(n.OutputInst.Arg)
		add(n.OutputInst.Alt)
	}
	return acfg.NewStaticVarMap(order)
}

func dumpGraph(w io.Writer, stage, fname string, g *acfg.Graph) {
	fmt.Fprintf(w, "--- %s: %s ---\n", stage, fname)
	for _, n := range g.Nodes() {
		fmt.Fprintf(w, "node %d (label=%v cfg=%v):\n", n.ID, n.Label, n.CFG)
		for _, inst := range n.Code {
			fmt.Fprintf(w, "  %v %v %v\n", inst.Op, inst.Arg, inst.Alt)
		}
		fmt.Fprintf(w, "  term: %v -> %s\n", n.OutputInst.Op, edgeTargets(n))
	}
}

func edgeTargets(n *acfg.Node) string {
	var ids []string
	for _, e := range n.Outputs {
		if e.Node == nil {
			ids = append(ids, "?")
			continue
		}
		ids = append(ids, fmt.Sprintf("%d", e.Node.ID))
	}
	return strings.Join(ids, ",")
}

func dumpLiveness(w io.Writer, fname string, g *acfg.Graph, vmap acfg.VarMap, lv *acfg.Liveness) {
	fmt.Fprintf(w, "--- liveness: %s ---\n", fname)
	for _, n := range g.Nodes() {
		var live []string
		for i := 0; i < vmap.Len(); i++ {
			if lv.In(n, i) {
				live = append(live, fmt.Sprintf("%v", vmap.At(i)))
			}
		}
		fmt.Fprintf(w, "node %d live-in: {%s}\n", n.ID, strings.Join(live, ", "))
	}
}

func dumpOrder(w io.Writer, fname string, order []*acfg.Node) {
	fmt.Fprintf(w, "--- layout: %s ---\n", fname)
	var ids []string
	for _, n := range order {
		ids = append(ids, fmt.Sprintf("%d", n.ID))
	}
	fmt.Fprintln(w, strings.Join(ids, " -> "))
}

func asmOutputFilename(filename, suffix string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		if strings.HasSuffix(filename, ext) {
			return filename[:len(filename)-len(ext)] + suffix
		}
	}
	return filename + suffix
}
