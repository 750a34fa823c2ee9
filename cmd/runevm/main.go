// Command runevm is a minimal smoke-test driver for the compiler+VM: it
// reads a script, compiles every top-level fn into one Unit, and runs
// `main` to completion. A real embedder drives compile/runtime/context
// directly instead of shelling out to this binary; spec.md §1 places
// CLI front-ends out of scope beyond this kind of smoke-test harness.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jcorbin/runevm/ast"
	"github.com/jcorbin/runevm/compile"
	"github.com/jcorbin/runevm/hir"
	"github.com/jcorbin/runevm/internal/logio"
	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/parse"
	"github.com/jcorbin/runevm/runtime"
	"github.com/jcorbin/runevm/source"
)

func main() {
	var (
		trace      bool
		dump       bool
		timeout    time.Duration
		stepBudget int
		instances  int
	)
	flag.BoolVar(&trace, "trace", false, "enable VM instruction trace logging")
	flag.BoolVar(&dump, "dump", false, "print the compiled unit's disassembly before running")
	flag.DurationVar(&timeout, "timeout", 0, "cancel the run after this long")
	flag.IntVar(&stepBudget, "step-budget", 0, "bound the number of dispatched instructions (0 = unbounded)")
	flag.IntVar(&instances, "instances", 1, "run this many independent VM instances concurrently against the same compiled unit")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)
	defer os.Exit(log.ExitCode())

	path := "<stdin>"
	var data []byte
	if args := flag.Args(); len(args) > 0 {
		path = args[0]
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			log.Errorf("%v", err)
			return
		}
	} else {
		buf := make([]byte, 0, 4096)
		tmp := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(tmp)
			buf = append(buf, tmp[:n]...)
			if err != nil {
				break
			}
		}
		data = buf
	}

	var srcs source.Sources
	sourceID := srcs.Insert(path, data)

	unit, err := compileScript(data, sourceID)
	if err != nil {
		log.Errorf("%v", err)
		return
	}

	if dump {
		lw := &logio.Writer{Logf: log.Leveledf("DUMP")}
		defer lw.Close()
		compile.Disassemble(lw, unit)
	}

	ctx := context.Background()
	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	entry := item.GlobalFn(item.Path{item.Named("main")}, item.EMPTY)
	if instances <= 1 {
		result, err := runInstance(ctx, unit, 0, trace, stepBudget, &log, entry)
		if err != nil {
			log.Errorf("%v", err)
			return
		}
		fmt.Fprintln(os.Stdout, result.String())
		return
	}

	// Multiple VM instances run concurrently over the single immutable
	// unit compiled above, demonstrating that a compiled Unit is safe to
	// share read-only across goroutines: each instance owns its own
	// operand stack, call frames, and locals.
	g, gctx := errgroup.WithContext(ctx)
	results := make([]runtime.Value, instances)
	for i := 0; i < instances; i++ {
		i := i
		g.Go(func() error {
			result, err := runInstance(gctx, unit, i, trace, stepBudget, &log, entry)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Errorf("%v", err)
		return
	}
	for i, result := range results {
		fmt.Fprintf(os.Stdout, "instance %d: %s\n", i, result.String())
	}
}

// runInstance builds and runs one fresh VM against unit, tagging trace
// output with the instance index so concurrent -instances runs stay
// distinguishable in -trace output.
func runInstance(ctx context.Context, unit *compile.Unit, idx int, trace bool, stepBudget int, log *logio.Logger, entry item.Hash) (runtime.Value, error) {
	opts := []runtime.Option{runtime.WithStdout(os.Stdout)}
	if trace {
		opts = append(opts, runtime.WithLogf(log.Leveledf(fmt.Sprintf("TRACE[%d]", idx))))
	}
	if stepBudget > 0 {
		opts = append(opts, runtime.WithStepBudget(stepBudget))
	}
	vm := runtime.New(unit, opts...)
	return vm.Run(ctx, entry)
}

// compileScript runs the full lexer->parser->HIR->bytecode pipeline over
// one self-contained script and returns its compiled Unit. A multi-module
// program additionally drives indexing.Indexer and query.Engine per
// source before this step; this smoke-test harness only ever sees one
// source, so name resolution across modules is not exercised here.
func compileScript(data []byte, sourceID source.ID) (*compile.Unit, error) {
	p := parse.New(data)
	file := p.ParseFile()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("parse: %s", errs[0].Error())
	}

	c := compile.New()
	for _, it := range file.Items {
		switch decl := it.(type) {
		case *ast.FnDecl:
			lowered := hir.LowerFunc(decl.Params, decl.IsAsync, decl.Body)
			hash := item.GlobalFn(item.Path{item.Named(decl.Name)}, item.EMPTY)
			c.CompileFunction(hash, decl.Name, lowered, sourceID)
		case *ast.StructDecl:
			hash := item.GlobalFn(item.Path{item.Named(decl.Name)}, item.EMPTY)
			c.CompileStruct(hash, decl.Name, fieldNames(decl.Fields))
		case *ast.EnumDecl:
			for _, v := range decl.Variants {
				hash := item.GlobalFn(item.Path{item.Named(decl.Name), item.Named(v.Name)}, item.EMPTY)
				c.CompileVariant(hash, decl.Name+"::"+v.Name, fieldNames(v.Fields))
			}
		}
	}
	if c.Errors().HasErrors() {
		return nil, c.Errors()
	}
	return c.Unit(), nil
}

func fieldNames(fields []ast.StructField) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
