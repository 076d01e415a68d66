package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/arbor-lang/arbor/lang/scanner"
	"github.com/arbor-lang/arbor/lang/token"
)

// Tokenize scans the single file named by args[0] and prints one line per
// token: its position, kind, and literal text when it carries one.
func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return TokenizeFile(stdio, args[0])
}

func TokenizeFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	file := token.NewFile(path, len(src))
	var errs token.ErrorList
	var sc scanner.Scanner
	sc.Init(file, src, errs.Add)

	var val token.Value
	for {
		tok := sc.Scan(&val)
		fmt.Fprintf(stdio.Stdout, "%s: %s", file.Position(val.Pos), tok)
		if lit := literalOf(tok, val); lit != "" {
			fmt.Fprintf(stdio.Stdout, " %s", lit)
		}
		fmt.Fprintln(stdio.Stdout)
		if tok == token.EOF {
			break
		}
	}

	errs.Sort()
	if err := errs.Err(); err != nil {
		return printError(stdio, err)
	}
	return nil
}

func literalOf(tok token.Token, val token.Value) string {
	switch tok {
	case token.IDENT, token.ILLEGAL:
		return val.Raw
	case token.INT, token.FLOAT:
		return val.Raw
	case token.STRING:
		return fmt.Sprintf("%q", val.Str)
	default:
		return ""
	}
}
