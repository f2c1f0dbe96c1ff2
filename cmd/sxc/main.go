// Command sxc is a small CLI front end over the sx core: it compiles one of
// a handful of named example functions and reports on it, the way
// cmd/sentra's flat dispatcher drives its own toolchain subcommands.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"sx/internal/alg"
	"sx/internal/codegen"
	"sx/internal/compile"
	"sx/internal/eval"
	"sx/internal/serialize"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "list":
		listExamples()
	case "build":
		err = runBuild(rest)
	case "dump":
		err = runDump(rest)
	case "eval":
		err = runEval(rest)
	case "jac":
		err = runJacobian(rest)
	case "export":
		err = runExport(rest)
	case "save":
		err = runSave(rest)
	case "load":
		err = runLoad(rest)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "sxc: unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "sxc: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("sxc - SX function compiler and inspector")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sxc list                        List the named example functions")
	fmt.Println("  sxc build <name>                Compile an example and report its shape")
	fmt.Println("  sxc dump <name>                 Compile and print disp_more")
	fmt.Println("  sxc eval <name> <arg...>         Compile and evaluate at a numeric point")
	fmt.Println("  sxc jac <name>                   Print the symbolic Jacobian matrix")
	fmt.Println("  sxc export <name> --target=T     Export compiled source (matlab|llvm)")
	fmt.Println("  sxc save <name> <dsn>           Compile and persist to a SQL store")
	fmt.Println("  sxc load <id> <dsn>             Load a persisted function and dump it")
}

func listExamples() {
	for name, ex := range examples {
		fmt.Printf("  %-10s %s\n", name, ex.describe)
	}
}

func compileExample(name string) (*alg.Function, error) {
	ex, ok := examples[name]
	if !ok {
		return nil, fmt.Errorf("no example named %q (see sxc list)", name)
	}
	store, fname, inNames, outNames, inputs, outputs := ex.build()
	return compile.NewFunction(store, fname, inNames, outNames, inputs, outputs, alg.DefaultOptions())
}

func runBuild(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sxc build <name>")
	}
	f, err := compileExample(args[0])
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := serialize.Serialize(&buf, f); err != nil {
		return fmt.Errorf("serializing for size report: %w", err)
	}

	fmt.Printf("function:    %s\n", f.Name)
	fmt.Printf("instructions: %s\n", humanize.Comma(int64(len(f.Algorithm))))
	fmt.Printf("worksize:    %s\n", humanize.Comma(int64(f.Worksize)))
	fmt.Printf("call table:  %s entries\n", humanize.Comma(int64(len(f.CallTable))))
	fmt.Printf("free vars:   %d\n", len(f.FreeVars))
	fmt.Printf("is_smooth:   %v\n", f.IsSmooth())
	fmt.Printf("serialized:  %s\n", humanize.Bytes(uint64(buf.Len())))
	return nil
}

func runDump(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sxc dump <name>")
	}
	f, err := compileExample(args[0])
	if err != nil {
		return err
	}
	f.DispMore(os.Stdout)
	return nil
}

func runEval(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: sxc eval <name> <arg...>")
	}
	f, err := compileExample(args[0])
	if err != nil {
		return err
	}

	vals := args[1:]
	if len(vals) != len(f.NNZIn) {
		return fmt.Errorf("%s expects %d scalar input(s), got %d", f.Name, len(f.NNZIn), len(vals))
	}

	arg := make([][]float64, len(vals))
	for i, v := range vals {
		x, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return fmt.Errorf("parsing input %d (%q): %w", i, v, perr)
		}
		arg[i] = []float64{x}
	}

	res := make([][]float64, len(f.NNZOut))
	for i := range res {
		res[i] = make([]float64, f.NNZOut[i])
	}
	w := make([]float64, f.SzW())

	if err := eval.EvalDouble(f, arg, res, nil, w); err != nil {
		return fmt.Errorf("evaluating %s: %w", f.Name, err)
	}

	for i, name := range f.OutNames {
		fmt.Printf("%s = %v\n", name, res[i])
	}
	return nil
}

func runJacobian(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sxc jac <name>")
	}
	ex, ok := examples[args[0]]
	if !ok {
		return fmt.Errorf("no example named %q (see sxc list)", args[0])
	}
	store, fname, inNames, outNames, inputs, outputs := ex.build()

	f, err := compile.Jacobian(store, fname, inNames, outNames, inputs, outputs, alg.DefaultOptions())
	if err != nil {
		return err
	}
	f.DispMore(os.Stdout)
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	target := fs.String("target", "matlab", "export target: matlab|llvm")
	// Flags may come before or after the example name.
	var flags, names []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			flags = append(flags, a)
		} else {
			names = append(names, a)
		}
	}
	if err := fs.Parse(flags); err != nil {
		return err
	}
	if len(names) != 1 {
		return fmt.Errorf("usage: sxc export <name> --target=matlab|llvm")
	}

	f, err := compileExample(names[0])
	if err != nil {
		return err
	}

	switch strings.ToLower(*target) {
	case "matlab":
		return codegen.EmitMatlab(os.Stdout, f)
	case "llvm":
		mod, err := codegen.EmitLLVMIR(f)
		if err != nil {
			return err
		}
		if isatty.IsTerminal(os.Stdout.Fd()) {
			fmt.Fprintln(os.Stderr, "# writing LLVM IR to stdout")
		}
		_, err = fmt.Fprint(os.Stdout, mod.String())
		return err
	default:
		return fmt.Errorf("unknown export target %q (want matlab or llvm)", *target)
	}
}

func runSave(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: sxc save <name> <dsn>")
	}
	f, err := compileExample(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := serialize.Open(ctx, args[1])
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.Put(ctx, f)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runLoad(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: sxc load <id> <dsn>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("parsing id: %w", err)
	}

	ctx := context.Background()
	store, err := serialize.Open(ctx, args[1])
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := store.Get(ctx, id, resolveExample)
	if err != nil {
		return err
	}
	f.DispMore(os.Stdout)
	return nil
}
