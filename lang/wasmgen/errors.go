package wasmgen

import "fmt"

// ErrorKind distinguishes the ways emission can fail for reasons specific
// to the WASM backend (spec §7's "Compile error — backend limitation"),
// separate from lang/ast's type errors (which Emit assumes were already
// caught; compiling a program that failed resolution is undefined
// behavior, same contract as lang/compiler.Compile).
type ErrorKind uint8

const (
	// ErrUnsupportedType is returned for a construct this backend does not
	// lower: emitExpr returns it for reduce, filter and zipmap expressions.
	ErrUnsupportedType ErrorKind = iota
	// ErrTooManyLocals is returned when a single function needs more
	// locals than fit in the numtype-count encoding this emitter writes
	// (one run-length entry per local; see functionBody).
	ErrTooManyLocals
	ErrTooManyFuncs
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupportedType:
		return "unsupported type"
	case ErrTooManyLocals:
		return "too many locals"
	case ErrTooManyFuncs:
		return "too many functions"
	default:
		return "compile error"
	}
}

// CompileError is the single error type Emit returns for any
// backend-specific failure; embedders distinguish cases on Kind rather
// than string-matching Error().
type CompileError struct {
	Kind    ErrorKind
	Message string
}

func (e *CompileError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newCompileError(kind ErrorKind, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
