// Package program ties the compiler and VM together into the single
// compile-then-run sequence every host (CLI, HTTP service, LSP) needs.
// It is the one place that knows both packages exist.
package program

import (
	"io"

	cerrors "github.com/Alligator/jqawk/compiler/errors"
	"github.com/Alligator/jqawk/compiler/lexer"
	"github.com/Alligator/jqawk/compiler/parser"
	"github.com/Alligator/jqawk/vm"
)

// Program is a compiled jqawk source plus its root selector, ready to
// run against any number of input documents.
type Program struct {
	Rules    []vm.Rule
	Selector []vm.OpCode

	// Source and SelectorSource are the texts the program was compiled
	// from.
	Source         string
	SelectorSource string
}

// DefaultSelector is the root selector used when the host doesn't
// override it with -r/--root.
const DefaultSelector = "$"

// Compile compiles source into a Program using selector (typically
// "$", or whatever -r/--root supplied). Either error is a
// *compiler/errors.CompileError.
func Compile(source, selector string) (*Program, error) {
	rules, err := CompileRules(source)
	if err != nil {
		return nil, err
	}
	sel, err := CompileSelector(selector)
	if err != nil {
		return nil, err
	}
	return &Program{
		Rules:          rules,
		Selector:       sel,
		Source:         source,
		SelectorSource: selector,
	}, nil
}

// CompileRules compiles just the rule program, used by the LSP (which
// diagnoses the program file independently of any selector) and by
// the cache (whose key is the rule source alone).
func CompileRules(source string) ([]vm.Rule, error) {
	lex := lexer.New(source)
	c := parser.New(lex)
	rules, err := c.CompileRules()
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// CompileSelector compiles a standalone root-selector expression.
func CompileSelector(selector string) ([]vm.OpCode, error) {
	lex := lexer.New(selector)
	c := parser.New(lex)
	return c.CompileExpression()
}

// Run executes the program against r, writing Print output through
// whatever Sink opts configures (stdout by default).
func (p *Program) Run(r io.Reader, opts ...vm.Option) error {
	machine := vm.New(opts...)
	return machine.Run(r, p.Selector, p.Rules)
}

// IsCompileError reports whether err came from Compile/CompileRules/
// CompileSelector, letting hosts type-switch without importing
// compiler/errors directly.
func IsCompileError(err error) (*cerrors.CompileError, bool) {
	ce, ok := err.(*cerrors.CompileError)
	return ce, ok
}

// IsRuntimeError reports whether err came from Program.Run.
func IsRuntimeError(err error) (*vm.RuntimeError, bool) {
	re, ok := err.(*vm.RuntimeError)
	return re, ok
}
