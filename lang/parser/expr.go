package parser

import (
	"github.com/arbor-lang/arbor/lang/ast"
	"github.com/arbor-lang/arbor/lang/token"
	"github.com/arbor-lang/arbor/lang/types"
)

// Precedence levels, lowest to highest, exactly as named (spec §4.2):
// None, Assignment, Or, And, Equality, Comparison, Range, Term, Factor,
// Unary, Call, Primary, plus one addition: precArrow for the map operator
// `->`, which the spec's precedence list doesn't name. It sits directly
// above precNone — looser than every other binary operator — so `f -> xs`
// reads as "map, then whatever's left" rather than binding tighter than,
// say, `+`. Assignment itself is not a Pratt level at all: `:=` is only
// legal at block/top-level statement position (see
// parser.parseStatementExpr), so every sub-expression entry point parses
// starting at precNone, not precArrow — using precArrow as an entry floor
// would make the parser unable to ever consume a leading `->`, since
// parseInfix only continues past operators strictly above the floor.
const (
	precNone = iota
	precArrow
	precOr
	precAnd
	precEquality
	precComparison
	precRange
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

func infixPrec(tok token.Token) (int, bool) {
	switch tok {
	case token.LPAREN, token.DOT:
		return precCall, true
	case token.ARROW:
		return precArrow, true
	case token.OR:
		return precOr, true
	case token.AND:
		return precAnd, true
	case token.EQ, token.NEQ:
		return precEquality, true
	case token.LT, token.LE, token.GT, token.GE:
		return precComparison, true
	case token.TO:
		return precRange, true
	case token.PLUS, token.MINUS:
		return precTerm, true
	case token.STAR, token.SLASH:
		return precFactor, true
	}
	return precNone, false
}

// parsePrecedence parses an expression of at least floor+1 precedence:
// a prefix term, then as many infix/postfix operators above floor as
// follow it.
func (p *parser) parsePrecedence(floor int) ast.Expr {
	left := p.parsePrefix()
	return p.parseInfix(floor, left)
}

// parseInfix continues an already-parsed left operand through any
// remaining infix/postfix operators whose precedence exceeds floor.
// Recursing with parsePrecedence(prec) (not prec-1) on the right operand
// makes every binary operator here left-associative: a further operator of
// the same precedence is left for this loop, not the recursive call, to
// consume.
func (p *parser) parseInfix(floor int, left ast.Expr) ast.Expr {
	for {
		prec, ok := infixPrec(p.tok)
		if !ok || prec <= floor {
			return left
		}
		left = p.parseInfixOp(left, prec)
	}
}

func (p *parser) parseInfixOp(left ast.Expr, prec int) ast.Expr {
	switch p.tok {
	case token.LPAREN:
		return p.parseCallSuffix(left)
	case token.DOT:
		p.expect(token.DOT)
		field, pos := p.expectIdent()
		return ast.NewGetFieldExpr(pos, left, field)
	case token.ARROW:
		pos := p.expect(token.ARROW)
		right := p.parsePrecedence(prec)
		return ast.NewMapExpr(pos, left, right)
	default:
		op := p.tok
		pos := p.val.Pos
		p.advance()
		right := p.parsePrecedence(prec)
		return ast.NewBinaryExpr(pos, op, left, right)
	}
}

// parsePrefix parses a primary expression or a prefix-operator form.
func (p *parser) parsePrefix() ast.Expr {
	switch p.tok {
	case token.INT:
		v, pos := p.val.Int, p.val.Pos
		p.advance()
		return ast.NewIntLiteral(pos, v)
	case token.FLOAT:
		v, pos := p.val.Float, p.val.Pos
		p.advance()
		return ast.NewFloatLiteral(pos, v)
	case token.STRING:
		v, pos := p.val.Str, p.val.Pos
		p.advance()
		return ast.NewStrLiteral(pos, v)
	case token.TRUE:
		pos := p.val.Pos
		p.advance()
		return ast.NewBoolLiteral(pos, true)
	case token.FALSE:
		pos := p.val.Pos
		p.advance()
		return ast.NewBoolLiteral(pos, false)
	case token.IDENT:
		name, pos := p.expectIdent()
		return ast.NewIdentExpr(pos, name)
	case token.MINUS, token.BANG, token.AT:
		op, pos := p.tok, p.val.Pos
		p.advance()
		operand := p.parsePrecedence(precUnary)
		return ast.NewUnaryExpr(pos, op, operand)
	case token.SOME:
		pos := p.expect(token.SOME)
		inner := p.parsePrecedence(precUnary)
		return ast.NewSomeExpr(pos, inner)
	case token.LPAREN:
		p.expect(token.LPAREN)
		inner := p.parsePrecedence(precNone)
		p.expect(token.RPAREN)
		return inner
	case token.LBRACK:
		return p.parseArrayExpr()
	case token.PIPE:
		return p.parseFunctionExpr()
	case token.LBRACE:
		return p.parseBlockOrNullExpr()
	case token.TYPE:
		return p.parseTypeDefExpr()
	case token.IF:
		return p.parseIfExpr()
	}
	p.errorExpected(p.val.Pos, "expression")
	panic(errPanicMode)
}

func (p *parser) parseCallSuffix(left ast.Expr) ast.Expr {
	pos := p.expect(token.LPAREN)
	var args []ast.Expr
	for p.tok != token.RPAREN {
		args = append(args, p.parsePrecedence(precNone))
		if p.tok != token.COMMA {
			break
		}
		p.advance()
	}
	p.expect(token.RPAREN)
	return desugarMagicCall(ast.NewCallExpr(pos, left, args))
}

// desugarMagicCall turns a call to one of the five built-in functional-
// operator names into its dedicated node kind, when the callee is a bare
// identifier and the argument count matches. These names are not
// reserved words — a user is free to shadow them with an ordinary
// assignment, in which case Resolve (block-scoped, not global) finds the
// user's binding first and this desugaring never had anything to look up
// anyway, since it runs purely syntactically, not through name
// resolution, and only on direct calls, not through any indirection.
func desugarMagicCall(call *ast.CallExpr) ast.Expr {
	id, ok := call.Callee.(*ast.IdentExpr)
	if !ok {
		return call
	}
	switch id.Name {
	case "len":
		if len(call.Args) == 1 {
			return ast.NewLenExpr(call.Span(), call.Args[0])
		}
	case "unwrap":
		if len(call.Args) == 2 {
			return ast.NewUnwrapExpr(call.Span(), call.Args[0], call.Args[1])
		}
	case "reduce":
		if len(call.Args) == 3 {
			return ast.NewReduceExpr(call.Span(), call.Args[0], call.Args[1], call.Args[2])
		}
	case "filter":
		if len(call.Args) == 2 {
			return ast.NewFilterExpr(call.Span(), call.Args[0], call.Args[1])
		}
	case "zipmap":
		if len(call.Args) >= 2 {
			return ast.NewZipMapExpr(call.Span(), call.Args[0], call.Args[1:])
		}
	}
	return call
}

func (p *parser) parseArrayExpr() ast.Expr {
	pos := p.expect(token.LBRACK)
	if p.tok == token.RBRACK {
		p.advance()
		if p.tok == token.COLON {
			p.advance()
			annot := p.parseTypeAnnotation()
			return ast.NewArrayExpr(pos, nil, annot)
		}
		p.errorf(pos, "empty array literal requires a type annotation, e.g. []:Int")
		return ast.NewErrorExpr(pos, "empty array literal without annotation")
	}
	var elems []ast.Expr
	for {
		elems = append(elems, p.parsePrecedence(precNone))
		if p.tok != token.COMMA {
			break
		}
		p.advance()
	}
	p.expect(token.RBRACK)
	return ast.NewArrayExpr(pos, elems, nil)
}

func (p *parser) parseFunctionExpr() *ast.FunctionExpr {
	pos := p.expect(token.PIPE)
	var params []ast.Param
	if p.tok != token.PIPE {
		for {
			name, _ := p.expectIdent()
			var annot *ast.TypeAnnotationExpr
			if p.tok == token.COLON {
				p.advance()
				annot = p.parseTypeAnnotation()
			}
			params = append(params, ast.Param{Name: name, Annot: annot})
			if p.tok != token.COMMA {
				break
			}
			p.advance()
		}
	}
	p.expect(token.PIPE)
	var ret *ast.TypeAnnotationExpr
	if p.tok == token.COLON {
		p.advance()
		ret = p.parseTypeAnnotation()
	}
	body := p.parseBlock()
	return ast.NewFunctionExpr(pos, params, ret, body)
}

func (p *parser) parseBlock() *ast.Block {
	pos := p.expect(token.LBRACE)
	exprs := p.parseExprList(token.RBRACE)
	p.expect(token.RBRACE)
	if len(exprs) == 0 {
		p.errorf(pos, "block must contain at least one expression")
	}
	return ast.NewBlock(pos, exprs)
}

// parseBlockOrNullExpr disambiguates `{` in primary position: an empty
// `{}` immediately followed by `:T` is the null Maybe literal; anything
// else is a regular block.
func (p *parser) parseBlockOrNullExpr() ast.Expr {
	pos := p.val.Pos
	p.expect(token.LBRACE)
	if p.tok == token.RBRACE {
		p.advance()
		if p.tok == token.COLON {
			p.advance()
			annot := p.parseTypeAnnotation()
			return ast.NewNullExpr(pos, annot)
		}
		p.errorf(pos, "empty block requires a type annotation for a null value, e.g. {}:Int")
		return ast.NewErrorExpr(pos, "empty block without annotation")
	}
	exprs := p.parseExprList(token.RBRACE)
	p.expect(token.RBRACE)
	return ast.NewBlock(pos, exprs)
}

func (p *parser) parseTypeDefExpr() *ast.TypeDefExpr {
	pos := p.expect(token.TYPE)
	p.expect(token.LBRACE)
	var fields []ast.FieldDecl
	for p.tok != token.RBRACE && p.tok != token.EOF {
		name, _ := p.expectIdent()
		p.expect(token.COLON)
		annot := p.parseTypeAnnotation()
		fields = append(fields, ast.FieldDecl{Name: name, Annot: annot})
		if p.tok == token.COMMA {
			p.advance()
		}
	}
	p.expect(token.RBRACE)
	return ast.NewTypeDefExpr(pos, fields)
}

func (p *parser) parseIfExpr() *ast.IfExpr {
	pos := p.expect(token.IF)
	cond := p.parsePrecedence(precNone)
	then := p.parseBlock()
	var els *ast.Block
	if p.tok == token.ELSE {
		p.advance()
		els = p.parseBlock()
	}
	return ast.NewIfExpr(pos, cond, then, els)
}

// parseTypeAnnotation parses a type reference: a bare scalar/record name,
// or `[T]` for Arr(T). Iter, Func and Maybe types are never spelled out
// directly in source — they only ever arise from expressions (`to`,
// `->`, `reduce`/`filter`/`zipmap`, `some`/`{}:T`) — so the grammar has no
// production for them.
func (p *parser) parseTypeAnnotation() *ast.TypeAnnotationExpr {
	pos := p.val.Pos
	t := p.parseTypeRef()
	return ast.NewTypeAnnotationExpr(pos, t)
}

func (p *parser) parseTypeRef() *types.Type {
	switch p.tok {
	case token.LBRACK:
		p.advance()
		elem := p.parseTypeRef()
		p.expect(token.RBRACK)
		return types.NewArr(elem)
	case token.IDENT:
		name, pos := p.val.Raw, p.val.Pos
		p.advance()
		if t, ok := p.typeEnv[name]; ok {
			return t
		}
		p.errorf(pos, "undefined type %q", name)
		return types.TInt
	}
	p.errorExpected(p.val.Pos, "type")
	panic(errPanicMode)
}
