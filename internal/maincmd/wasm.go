package maincmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mna/mainer"

	"github.com/arbor-lang/arbor/lang/machine"
	"github.com/arbor-lang/arbor/lang/parser"
	"github.com/arbor-lang/arbor/lang/resolver"
	"github.com/arbor-lang/arbor/lang/wasmgen"
)

// Wasm parses, type-checks and lowers the single file named by args[0] to a
// WebAssembly module (spec §4.6, §6's "wasmize(source, env) -> (bytes,
// ResultType) | Error" embedder contract), writing the module bytes to the
// -o path, or to the input path with its extension replaced by ".wasm".
func (c *Cmd) Wasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	out := c.Out
	if out == "" {
		out = wasmOutPath(args[0])
	}
	return WasmFile(stdio, args[0], out)
}

func wasmOutPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".wasm"
}

func WasmFile(stdio mainer.Stdio, path, out string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	top, perr := parser.ParseProgram(path, src, machine.Globals)
	if perr != nil {
		return printError(stdio, perr)
	}
	prog, rerr := resolver.Resolve(top)
	if rerr != nil {
		return printError(stdio, rerr)
	}

	bytes, resultType, werr := wasmgen.Emit(prog, uuid.New())
	if werr != nil {
		return printError(stdio, werr)
	}

	if err := os.WriteFile(out, bytes, 0o644); err != nil {
		return printError(stdio, err)
	}
	fmt.Fprintf(stdio.Stdout, "wrote %s (%d bytes, main : %s)\n", out, len(bytes), resultType)
	return nil
}
