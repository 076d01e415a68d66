package maincmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/arbor-lang/arbor/lang/ast"
)

const (
	ansiKind  = "\x1b[36m" // cyan
	ansiPos   = "\x1b[90m" // gray
	ansiType  = "\x1b[33m" // yellow
	ansiReset = "\x1b[0m"
)

// dumpTree prints an indented, one-node-per-line rendering of root: each
// line carries the node's own Format label (dispatched through fmt's "%#v"
// verb, the '#' flag asking for child-count info), its source line, and
// (when withTypes is set, as the resolve command does) its static type. This plays the role of
// the teacher's ast.Printer for a tree shape that, unlike the teacher's
// statement/chunk AST, is purely expression-oriented.
func dumpTree(w io.Writer, root ast.Node, color bool, withTypes bool) {
	depth := 0
	var visit ast.VisitorFunc
	visit = func(n ast.Node, dir ast.VisitDirection) ast.Visitor {
		if dir != ast.VisitEnter {
			depth--
			return nil
		}
		indent := strings.Repeat("  ", depth)
		pos := fmt.Sprintf("line %d", n.Span())

		var typ string
		if withTypes {
			if e, ok := n.(ast.Expr); ok {
				if t, err := e.Type(); err == nil {
					typ = t.String()
				} else {
					typ = "<error: " + err.Error() + ">"
				}
			}
		}

		if color {
			fmt.Fprintf(w, "%s%s%#v%s %s(%s)%s", indent, ansiKind, n, ansiReset, ansiPos, pos, ansiReset)
			if typ != "" {
				fmt.Fprintf(w, " %s:%s%s", ansiType, typ, ansiReset)
			}
		} else {
			fmt.Fprintf(w, "%s%#v (%s)", indent, n, pos)
			if typ != "" {
				fmt.Fprintf(w, " :%s", typ)
			}
		}
		fmt.Fprintln(w)

		depth++
		return visit
	}
	ast.Walk(visit, root)
}
