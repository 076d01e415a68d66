// Command arbor is the all-in-one compiler/runtime tool for the Arbor
// language: tokenize, parse, resolve, run (bytecode VM) and wasm (emit a
// .wasm module), grounded in the teacher's cmd/nenuphar/main.go shape.
package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/arbor-lang/arbor/internal/maincmd"
)

var (
	// placeholder values, replaced on build
	version   = "{v}" // must be N.N[.N]
	buildDate = "{d}" // must be YYYY-mm-DD
)

func main() {
	c := maincmd.Cmd{BuildVersion: version, BuildDate: buildDate}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
