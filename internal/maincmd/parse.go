package maincmd

import (
	"context"
	"os"

	"github.com/mna/mainer"

	"github.com/arbor-lang/arbor/lang/machine"
	"github.com/arbor-lang/arbor/lang/parser"
)

// Parse scans and parses the single file named by args[0], printing the
// resulting expression tree (spec §4.2). Parse errors are reported but do
// not stop the dump: every top-level expression that did parse is still
// shown, panic-mode recovery having already resynchronized the parser.
func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ParseFile(stdio, args[0], c.useColor(stdio))
}

func ParseFile(stdio mainer.Stdio, path string, color bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	top, perr := parser.ParseProgram(path, src, machine.Globals)
	if top != nil {
		dumpTree(stdio.Stdout, top, color, false)
	}
	if perr != nil {
		return printError(stdio, perr)
	}
	return nil
}
