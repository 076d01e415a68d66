package token

import (
	"fmt"
	"sort"
	"strings"
)

// Error is a single diagnostic produced by any phase (scanner, parser,
// resolver, compiler) that reports positioned errors.
type Error struct {
	Pos Position
	Msg string
}

func (e Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
	}
	return e.Msg
}

// ErrorList accumulates Errors across a phase so that, e.g., the parser can
// report more than the first syntax error it encounters. The zero value is
// an empty, ready to use list.
type ErrorList []Error

// Add records a new error at the given position.
func (el *ErrorList) Add(pos Position, msg string) {
	*el = append(*el, Error{Pos: pos, Msg: msg})
}

// Addf is like Add but formats msg with args.
func (el *ErrorList) Addf(pos Position, format string, args ...any) {
	el.Add(pos, fmt.Sprintf(format, args...))
}

// Sort orders the errors by filename then line number, stably.
func (el ErrorList) Sort() {
	sort.SliceStable(el, func(i, j int) bool {
		if el[i].Pos.Filename != el[j].Pos.Filename {
			return el[i].Pos.Filename < el[j].Pos.Filename
		}
		return el[i].Pos.Line < el[j].Pos.Line
	})
}

// Err returns nil if the list is empty, otherwise it returns the list itself
// as an error.
func (el ErrorList) Err() error {
	if len(el) == 0 {
		return nil
	}
	return el
}

func (el ErrorList) Error() string {
	switch len(el) {
	case 0:
		return "no errors"
	case 1:
		return el[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (and %d more errors)", el[0], len(el)-1)
	return sb.String()
}

// Unwrap exposes each entry as an error so that errors.Is/errors.As compose
// across an ErrorList the way they would across any wrapped error chain.
func (el ErrorList) Unwrap() []error {
	errs := make([]error, len(el))
	for i, e := range el {
		errs[i] = e
	}
	return errs
}
