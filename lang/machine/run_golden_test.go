package machine_test

import (
	"bytes"
	"flag"
	"path/filepath"
	"testing"

	"github.com/mna/mainer"

	"github.com/arbor-lang/arbor/internal/filetest"
	"github.com/arbor-lang/arbor/internal/maincmd"
)

var testUpdateRunTests = flag.Bool("test.update-run-tests", false, "If set, replace expected run test results with actual results.")

// TestRunGolden drives every lang/machine/testdata/in/*.arbor fixture
// through the same internal/maincmd.RunFile path the arbor CLI's "run"
// subcommand uses, covering spec §8's six end-to-end scenarios plus the
// divide-by-zero and print-overload-dispatch edge cases against a golden
// stdout/stderr pair per fixture.
func TestRunGolden(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".arbor") {
		t.Run(fi.Name(), func(t *testing.T) {
			var buf, ebuf bytes.Buffer
			stdio := mainer.Stdio{Stdout: &buf, Stderr: &ebuf}

			// error is ignored, we just want it reflected in ebuf
			_ = maincmd.RunFile(stdio, filepath.Join(srcDir, fi.Name()))
			filetest.DiffOutput(t, fi, buf.String(), resultDir, testUpdateRunTests)
			filetest.DiffErrors(t, fi, ebuf.String(), resultDir, testUpdateRunTests)
		})
	}
}
