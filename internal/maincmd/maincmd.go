// Package maincmd implements the arbor command-line tool's subcommands,
// following the teacher's internal/maincmd split (maincmd.go for flag
// parsing and dispatch, one file per subcommand): tokenize, parse, resolve,
// run and wasm. None of this is part of the specified contract (spec §1
// names the CLI an out-of-scope "external collaborator"); it exists so the
// two back ends are reachable end to end from outside a test binary.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mna/mainer"
)

const binName = "arbor"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> <path>
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> <path>
       %[1]s -h|--help
       %[1]s -v|--version

Compiler and runtime for the %[1]s programming language.

The <command> can be one of:
       tokenize                  Scan the file and print its tokens.
       parse                     Scan and parse the file, printing the
                                 resulting expression tree.
       resolve                   Parse and type-check the file, printing
                                 the expression tree with every
                                 expression annotated with its type.
       run                       Parse, type-check, compile to bytecode
                                 and execute the file on the stack VM,
                                 printing its final value.
       wasm                      Parse, type-check and lower the file to
                                 a WebAssembly module, writing it to
                                 <path>.wasm (or -o).

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       -o --out                  Output path for the 'wasm' command
                                 (default: <path> with its extension
                                 replaced by .wasm).
       --color                   Force ANSI-colored tree output, even when
                                 stdout is not a terminal.
       --no-color                Disable ANSI-colored tree output, even
                                 when stdout is a terminal.

More information on the arbor programming language is in this
repository's spec.md.
`, binName)
)

// Cmd is the arbor CLI's flag/command holder, parsed and dispatched by
// mainer.Parser exactly as the teacher's maincmd.Cmd is.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Out      string `flag:"o,out"`
	Color    bool   `flag:"color"`
	NoColor  bool   `flag:"no-color"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) { c.flags = flags }

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]
	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	if len(c.args[1:]) != 1 {
		return fmt.Errorf("%s: exactly one file path is required", cmdName)
	}

	if c.Color && c.NoColor {
		return errors.New("--color and --no-color are mutually exclusive")
	}

	return nil
}

// useColor decides whether tree-dumping commands should emit ANSI color
// codes: an explicit flag wins, otherwise stdout's terminal-ness decides,
// matching the kind of terminal-awareness a CLI in this corpus carries
// (SPEC_FULL.md §A.1).
func (c *Cmd) useColor(stdio mainer.Stdio) bool {
	switch {
	case c.NoColor:
		return false
	case c.Color:
		return true
	}
	f, ok := stdio.Stdout.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: strings.ToUpper(binName) + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		return mainer.Failure
	}
	return mainer.Success
}

// buildCmds mirrors the teacher's reflection-based dispatch table: any
// exported method of *Cmd matching func(context.Context, mainer.Stdio,
// []string) error becomes a subcommand named after its lowercased method
// name.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}

func printError(stdio mainer.Stdio, err error) error {
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
	}
	return err
}
