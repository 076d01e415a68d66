package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/arbor-lang/arbor/lang/machine"
)

// Run parses, type-checks, compiles to bytecode and executes the single
// file named by args[0] on the stack VM (spec §4.5, §6's "interpret(source)
// -> TaggedValue | Error" embedder contract), printing its final value.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return RunFile(stdio, args[0])
}

func RunFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	cfg, err := machine.LoadConfig()
	if err != nil {
		return printError(stdio, err)
	}

	th := machine.NewThread(cfg)
	th.Stdout = stdio.Stdout

	result, rerr := th.Interpret(string(src))
	if rerr != nil {
		return printError(stdio, rerr)
	}
	fmt.Fprintln(stdio.Stdout, result)
	return nil
}
