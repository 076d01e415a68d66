package maincmd

import (
	"context"
	"os"

	"github.com/mna/mainer"

	"github.com/arbor-lang/arbor/lang/machine"
	"github.com/arbor-lang/arbor/lang/parser"
	"github.com/arbor-lang/arbor/lang/resolver"
)

// Resolve parses and type-checks the single file named by args[0], printing
// the expression tree annotated with each node's static type (spec §4.3).
func (c *Cmd) Resolve(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ResolveFile(stdio, args[0], c.useColor(stdio))
}

func ResolveFile(stdio mainer.Stdio, path string, color bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	top, perr := parser.ParseProgram(path, src, machine.Globals)
	if perr != nil {
		// cannot resolve a tree that failed to parse
		return printError(stdio, perr)
	}

	_, rerr := resolver.Resolve(top)
	dumpTree(stdio.Stdout, top, color, true)
	if rerr != nil {
		return printError(stdio, rerr)
	}
	return nil
}
