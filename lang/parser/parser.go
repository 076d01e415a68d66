// Package parser implements the Pratt parser that turns a token stream into
// the expression tree defined by lang/ast (spec §4.2). It follows the
// teacher's parser shape (a single `parser` struct driving `advance`,
// `expect`, `errorExpected`, panic-mode recovery via `panic(errPanicMode)`
// and `recover`), adapted to Arbor's much smaller, purely-expression-
// oriented grammar: there are no statements, so there is only one
// `parseExprList` loop instead of the teacher's separate statement/chunk
// machinery.
package parser

import (
	"errors"
	"fmt"

	"github.com/arbor-lang/arbor/lang/ast"
	"github.com/arbor-lang/arbor/lang/scanner"
	"github.com/arbor-lang/arbor/lang/token"
	"github.com/arbor-lang/arbor/lang/types"
)

// ParseProgram parses a full source file into a *ast.TopLevel. The returned
// error, if non-nil, is a token.ErrorList collecting every parse error found
// (parsing never stops at the first error: panic-mode recovery resynchronizes
// at the next top-level expression).
func ParseProgram(filename string, src []byte, globals map[string]*types.Type) (*ast.TopLevel, error) {
	var p parser
	p.globals = globals
	p.init(filename, src)
	top := p.parseTopLevel()
	p.errors.Sort()
	return top, p.errors.Err()
}

var errPanicMode = errors.New("panic")

type parser struct {
	file    *token.File
	scanner scanner.Scanner
	errors  token.ErrorList
	globals map[string]*types.Type

	// typeEnv maps a type annotation's bare name to its concrete Type: the
	// four scalars, seeded up front, plus one entry per record type as its
	// `Name := type {...}` definition is parsed. Type annotations may only
	// reference a name already in typeEnv, so (like every other name in
	// the language) a record type cannot be referenced before its
	// definition.
	typeEnv map[string]*types.Type

	tok token.Token
	val token.Value
}

func (p *parser) init(filename string, src []byte) {
	p.file = token.NewFile(filename, len(src))
	p.scanner.Init(p.file, src, p.errors.Add)
	p.typeEnv = map[string]*types.Type{
		"Int": types.TInt, "Float": types.TFloat, "Str": types.TStr, "Bool": types.TBool,
	}
	p.advance()
}

func (p *parser) advance() {
	p.tok = p.scanner.Scan(&p.val)
}

func (p *parser) pos() token.Pos { return p.val.Pos }

func (p *parser) error(pos token.Pos, msg string) {
	p.errors.Add(p.file.Position(pos), msg)
}

func (p *parser) errorf(pos token.Pos, format string, args ...any) {
	p.error(pos, fmt.Sprintf(format, args...))
}

func (p *parser) errorExpected(pos token.Pos, what string) {
	msg := "expected " + what
	if pos == p.val.Pos {
		msg += ", found " + p.tok.GoString()
	}
	p.error(pos, msg)
}

// expect consumes the current token if it matches tok, else records an
// error and panics with errPanicMode for panic-mode recovery.
func (p *parser) expect(tok token.Token) token.Pos {
	pos := p.val.Pos
	if p.tok != tok {
		p.errorExpected(pos, tok.GoString())
		panic(errPanicMode)
	}
	p.advance()
	return pos
}

// expectIdent consumes an IDENT and returns its text.
func (p *parser) expectIdent() (string, token.Pos) {
	pos := p.val.Pos
	if p.tok != token.IDENT {
		p.errorExpected(pos, "identifier")
		panic(errPanicMode)
	}
	name := p.val.Raw
	p.advance()
	return name, pos
}

// parseTopLevel parses the whole program: a sequence of expressions up to
// EOF, recovering at the next expression boundary on error.
func (p *parser) parseTopLevel() *ast.TopLevel {
	exprs := p.parseExprList(token.EOF)
	top := ast.NewTopLevel(exprs, p.globals)
	ast.SetParent(top)
	return top
}

// parseExprList parses expressions until tok end (or EOF) is the current
// token, recovering from a panic by skipping to the next plausible
// expression start.
func (p *parser) parseExprList(end token.Token) []ast.Expr {
	var exprs []ast.Expr
	for p.tok != end && p.tok != token.EOF {
		e := p.parseOneRecovering()
		if e != nil {
			exprs = append(exprs, e)
		}
	}
	return exprs
}

func (p *parser) parseOneRecovering() (expr ast.Expr) {
	defer func() {
		if r := recover(); r != nil {
			if r != errPanicMode {
				panic(r)
			}
			expr = p.syncToNextExpr()
		}
	}()
	return p.parseStatementExpr()
}

// syncToNextExpr skips tokens until one that can plausibly start a new
// expression (or a block/file boundary), matching the teacher's
// statement-granularity recovery.
func (p *parser) syncToNextExpr() ast.Expr {
	start := p.pos()
	for {
		switch p.tok {
		case token.EOF, token.RBRACE:
			return ast.NewErrorExpr(start, "syntax error")
		case token.IDENT, token.INT, token.FLOAT, token.STRING, token.LPAREN,
			token.LBRACK, token.LBRACE, token.PIPE, token.TYPE, token.IF,
			token.TRUE, token.FALSE, token.SOME, token.MINUS, token.BANG, token.AT:
			return ast.NewErrorExpr(start, "syntax error")
		}
		p.advance()
	}
}

// parseStatementExpr parses one expression at block/top-level position: an
// assignment `name := value` or a plain expression.
func (p *parser) parseStatementExpr() ast.Expr {
	if p.tok == token.IDENT {
		name, pos := p.val.Raw, p.val.Pos
		// Only a bare identifier immediately followed by ':=' is an
		// assignment; anything else and this identifier is just the start
		// of a larger expression, so re-enter precedence parsing with it
		// as the already-consumed left operand.
		p.advance()
		if p.tok == token.DEFINE {
			p.advance()
			value := p.parsePrecedence(precNone)
			if typeDef, ok := value.(*ast.TypeDefExpr); ok {
				typeDef.Name = name
				if t, err := typeDef.Type(); err == nil {
					p.typeEnv[name] = t.Ret
				}
			}
			if fn, ok := value.(*ast.FunctionExpr); ok {
				if t := fullyAnnotatedFuncType(fn); t != nil {
					fn.SelfName = name
					fn.SelfType = t
				}
			}
			return ast.NewAssignmentExpr(pos, name, value)
		}
		left := ast.NewIdentExpr(pos, name)
		return p.parseInfix(precNone, left)
	}
	return p.parsePrecedence(precNone)
}

func fullyAnnotatedFuncType(fn *ast.FunctionExpr) *types.Type {
	if fn.RetAnnot == nil {
		return nil
	}
	args := make([]*types.Type, len(fn.Params))
	for i, pm := range fn.Params {
		if pm.Annot == nil {
			return nil
		}
		args[i] = pm.Annot.Annot
	}
	return types.NewFunc(args, fn.RetAnnot.Annot)
}

