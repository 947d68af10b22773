// vrpdump: a tool for displaying the range table and rewrite trace the
// solver produces for a demo function.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/irtools/rangeprop/config"
	"github.com/irtools/rangeprop/ir"
	"github.com/irtools/rangeprop/vrp"
)

// flags
var (
	trace   bool
	confDir string
)

func init() {
	flag.BoolVar(&trace, "trace", false, "Print rewrite trace lines")
	flag.StringVar(&confDir, "conf", ".", "Directory to resolve rangeprop.conf from")
}

// demoFunc is a counted loop with a provably dead overflow check:
//
//	i := 0
//	for i < 1000 {
//		if i > 1000 { unreachable }
//		q := i / 4
//		i = i + 1
//	}
func demoFunc() *ir.Func {
	fn := ir.NewFunc("demo")

	entry := fn.NewBlock(ir.BlockPlain)
	head := fn.NewBlock(ir.BlockIf)
	body := fn.NewBlock(ir.BlockIf)
	dead := fn.NewBlock(ir.BlockPlain)
	latch := fn.NewBlock(ir.BlockPlain)
	exit := fn.NewBlock(ir.BlockExit)

	zero := entry.NewConst(fn, ir.I32, 0)
	limit := entry.NewConst(fn, ir.I32, 1000)
	four := entry.NewConst(fn, ir.I32, 4)
	one := entry.NewConst(fn, ir.I32, 1)

	fn.AddEdge(entry, head)

	phi := head.NewValue(fn, ir.OpPhi, ir.I32, zero) // latch arg added below
	cond := head.NewValue(fn, ir.OpLess, ir.Bool, phi, limit)
	head.SetControl(cond)
	fn.AddEdge(head, body)
	fn.AddEdge(head, exit)

	sigma := body.NewValue(fn, ir.OpSigma, ir.I32, phi)
	over := body.NewValue(fn, ir.OpGreater, ir.Bool, sigma, limit)
	body.SetControl(over)
	fn.AddEdge(body, dead)
	fn.AddEdge(body, latch)
	body.Loop = head
	dead.Loop = head
	latch.Loop = head

	dead.NewValue(fn, ir.OpDiv, ir.I32, sigma, four)
	fn.AddEdge(dead, latch)

	lsig := latch.NewValue(fn, ir.OpPhi, ir.I32, sigma, sigma)
	latch.NewValue(fn, ir.OpDiv, ir.I32, lsig, four)
	next := latch.NewValue(fn, ir.OpAdd, ir.I32, lsig, one)
	fn.AddEdge(latch, head)
	phi.Args = append(phi.Args, next)

	return fn
}

func main() {
	flag.Parse()

	cfg, err := config.Load(confDir)
	if err != nil {
		log.Fatal(err)
	}
	opts := cfg.Options()
	if trace || cfg.Trace {
		opts.Trace = os.Stderr
	}

	fn := demoFunc()
	solver := vrp.NewSolver(fn, nil, opts)
	n := solver.Run(fn)

	solver.Store().DumpAllValueRanges(os.Stdout)
	fmt.Printf("%d statements simplified or folded\n", n)
}
