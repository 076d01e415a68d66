package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-lang/arbor/lang/scanner"
	"github.com/arbor-lang/arbor/lang/token"
)

func scanAll(t *testing.T, src string) ([]token.Token, []token.Value, error) {
	t.Helper()
	var el token.ErrorList
	file := token.NewFile("test", len(src))
	var s scanner.Scanner
	s.Init(file, []byte(src), el.Add)

	var toks []token.Token
	var vals []token.Value
	for {
		var val token.Value
		tok := s.Scan(&val)
		toks = append(toks, tok)
		vals = append(vals, val)
		if tok == token.EOF {
			break
		}
	}
	return toks, vals, el.Err()
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks, _, err := scanAll(t, `( ) { } [ ] | , . := -> == != <= >= < > + - * / @ !`)
	require.NoError(t, err)
	want := []token.Token{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE,
		token.LBRACK, token.RBRACK, token.PIPE, token.COMMA, token.DOT,
		token.DEFINE, token.ARROW, token.EQ, token.NEQ, token.LE, token.GE,
		token.LT, token.GT, token.PLUS, token.MINUS, token.STAR, token.SLASH,
		token.AT, token.BANG, token.EOF,
	}
	assert.Equal(t, want, toks)
}

func TestScanKeywords(t *testing.T) {
	toks, _, err := scanAll(t, `and or type if else true false to some frobnicate`)
	require.NoError(t, err)
	want := []token.Token{
		token.AND, token.OR, token.TYPE, token.IF, token.ELSE, token.TRUE,
		token.FALSE, token.TO, token.SOME, token.IDENT, token.EOF,
	}
	assert.Equal(t, want, toks)
}

func TestScanNumbers(t *testing.T) {
	toks, vals, err := scanAll(t, `123 3.14 0 007`)
	require.NoError(t, err)
	require.Equal(t, []token.Token{token.INT, token.FLOAT, token.INT, token.INT, token.EOF}, toks)
	assert.Equal(t, int64(123), vals[0].Int)
	assert.InDelta(t, 3.14, vals[1].Float, 1e-9)
	assert.Equal(t, int64(7), vals[3].Int)
}

func TestScanString(t *testing.T) {
	toks, vals, err := scanAll(t, `"hello world"`)
	require.NoError(t, err)
	require.Equal(t, []token.Token{token.STRING, token.EOF}, toks)
	assert.Equal(t, "hello world", vals[0].Str)
}

func TestScanUnterminatedString(t *testing.T) {
	_, _, err := scanAll(t, `"hello`)
	require.Error(t, err)
}

func TestScanLineComment(t *testing.T) {
	toks, _, err := scanAll(t, "1 ? this is a comment\n2")
	require.NoError(t, err)
	assert.Equal(t, []token.Token{token.INT, token.INT, token.EOF}, toks)
}

func TestScanIllegalCharacter(t *testing.T) {
	toks, _, err := scanAll(t, `1 $ 2`)
	require.Error(t, err)
	assert.Equal(t, []token.Token{token.INT, token.ILLEGAL, token.INT, token.EOF}, toks)
}

func TestScanLineNumbers(t *testing.T) {
	_, vals, err := scanAll(t, "1\n2\n\n3")
	require.NoError(t, err)
	assert.Equal(t, token.Pos(1), vals[0].Pos)
	assert.Equal(t, token.Pos(2), vals[1].Pos)
	assert.Equal(t, token.Pos(4), vals[2].Pos)
}
