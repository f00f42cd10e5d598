// Package parser compiles jqawk source into bytecode. It is a
// single-pass, precedence-climbing (Pratt) compiler: there is no
// intermediate AST. Every rule produces two opcode sequences — a
// pattern and a body — sharing one operand-stack convention with the
// VM that will later execute them.
package parser

import (
	"strconv"

	"github.com/Alligator/jqawk/compiler/errors"
	"github.com/Alligator/jqawk/compiler/lexer"
	"github.com/Alligator/jqawk/vm"
)

// Operator precedence levels, low to high.
const (
	precNone = iota
	precAssignment
	precLogical
	precEqual
	precComparison
	precAddition
	precMultiplication
	precFunc
)

type prefixFn func(*Compiler) error
type infixFn func(*Compiler) error

type parseRule struct {
	prec   int
	prefix prefixFn
	infix  infixFn
}

// Compiler turns a token stream into a list of vm.Rule. CompileRules
// is the only exported entry point besides CompileExpression, which
// compiles one standalone expression (used for the root selector).
type Compiler struct {
	current lexer.Token
	prev    lexer.Token
	lexer   *lexer.Lexer
	output  []vm.OpCode
}

// New creates a Compiler reading from lex.
func New(lex *lexer.Lexer) *Compiler {
	return &Compiler{
		lexer: lex,
	}
}

func (c *Compiler) getRule(kind lexer.TokenKind) parseRule {
	switch kind {
	case lexer.TOKEN_DOLLAR:
		return parseRule{prec: precNone, prefix: (*Compiler).field}
	case lexer.TOKEN_STR:
		return parseRule{prec: precNone, prefix: (*Compiler).string}
	case lexer.TOKEN_NUM:
		return parseRule{prec: precNone, prefix: (*Compiler).number}
	case lexer.TOKEN_IDENTIFIER:
		return parseRule{prec: precNone, prefix: (*Compiler).variable}
	case lexer.TOKEN_DOT:
		return parseRule{prec: precFunc, infix: (*Compiler).member}
	case lexer.TOKEN_LSQUARE:
		return parseRule{prec: precFunc, infix: (*Compiler).computedMember}
	case lexer.TOKEN_EQUAL:
		return parseRule{prec: precAssignment, infix: (*Compiler).assign}
	case lexer.TOKEN_EQUAL_EQUAL:
		return parseRule{prec: precEqual, infix: (*Compiler).binary}
	case lexer.TOKEN_TILDE:
		return parseRule{prec: precEqual, infix: (*Compiler).binary}
	case lexer.TOKEN_BANG_TILDE:
		return parseRule{prec: precEqual, infix: (*Compiler).binary}
	case lexer.TOKEN_AND:
		return parseRule{prec: precLogical, infix: (*Compiler).binary}
	case lexer.TOKEN_OR:
		return parseRule{prec: precLogical, infix: (*Compiler).binary}
	case lexer.TOKEN_RANGLE:
		return parseRule{prec: precComparison, infix: (*Compiler).binary}
	case lexer.TOKEN_PLUS, lexer.TOKEN_MINUS:
		return parseRule{prec: precAddition, infix: (*Compiler).binary}
	case lexer.TOKEN_STAR:
		return parseRule{prec: precMultiplication, infix: (*Compiler).binary}
	case lexer.TOKEN_SLASH:
		return parseRule{prec: precMultiplication, prefix: (*Compiler).regex, infix: (*Compiler).binary}
	default:
		return parseRule{prec: precNone}
	}
}

// parsing utils

func (c *Compiler) advance() error {
	t := c.lexer.Next()
	if t.Kind == lexer.TOKEN_ERROR {
		return &errors.CompileError{Msg: t.Text, Line: t.Line}
	}
	c.prev = c.current
	c.current = t
	return nil
}

func (c *Compiler) consume(kind lexer.TokenKind) error {
	if c.current.Kind != kind {
		return &errors.CompileError{
			Msg:  "unexpected token " + c.current.String() + " expected " + kind.String(),
			Line: c.current.Line,
		}
	}
	return c.advance()
}

func (c *Compiler) errorf(message string, line int) error {
	return &errors.CompileError{Msg: message, Line: line}
}

func (c *Compiler) emit(op vm.OpCode) {
	c.output = append(c.output, op)
}

// grammar

func (c *Compiler) expression(prec int) error {
	rule := c.getRule(c.current.Kind)
	if rule.prefix == nil {
		return c.errorf("unexpected prefix "+c.current.String(), c.current.Line)
	}
	if err := rule.prefix(c); err != nil {
		return err
	}

	for prec <= c.getRule(c.current.Kind).prec {
		infixRule := c.getRule(c.current.Kind)
		if infixRule.infix == nil {
			return c.errorf("unexpected infix "+c.current.String(), c.current.Line)
		}
		if err := infixRule.infix(c); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) atStatementEnd() bool {
	return c.current.Kind == lexer.TOKEN_SEMICOLON || c.current.Kind == lexer.TOKEN_RCURLY
}

func (c *Compiler) statement() error {
	if c.current.Kind == lexer.TOKEN_PRINT {
		if err := c.consume(lexer.TOKEN_PRINT); err != nil {
			return err
		}
		argCount := 0
		for !c.atStatementEnd() {
			if err := c.expression(precAssignment); err != nil {
				return err
			}
			argCount++
			if c.current.Kind == lexer.TOKEN_COMMA {
				if err := c.consume(lexer.TOKEN_COMMA); err != nil {
					return err
				}
			} else {
				break
			}
		}
		c.emit(vm.Print(argCount))
		return nil
	}
	return c.expression(precAssignment)
}

func (c *Compiler) field() error {
	if err := c.consume(lexer.TOKEN_DOLLAR); err != nil {
		return err
	}
	c.emit(vm.GetField(""))
	return nil
}

func (c *Compiler) binary() error {
	token := c.current
	prec := c.getRule(token.Kind).prec
	if err := c.advance(); err != nil {
		return err
	}
	if err := c.expression(prec); err != nil {
		return err
	}
	switch token.Kind {
	case lexer.TOKEN_EQUAL_EQUAL:
		c.emit(vm.Equal())
	case lexer.TOKEN_AND:
		c.emit(vm.And())
	case lexer.TOKEN_OR:
		c.emit(vm.Or())
	case lexer.TOKEN_RANGLE:
		c.emit(vm.Greater())
	case lexer.TOKEN_PLUS:
		c.emit(vm.Add())
	case lexer.TOKEN_MINUS:
		c.emit(vm.Subtract())
	case lexer.TOKEN_STAR:
		c.emit(vm.Multiply())
	case lexer.TOKEN_SLASH:
		c.emit(vm.Divide())
	case lexer.TOKEN_TILDE:
		c.emit(vm.Match())
	case lexer.TOKEN_BANG_TILDE:
		c.emit(vm.Match())
		c.emit(vm.Negate())
	default:
		return c.errorf("unknown operator "+token.Kind.String(), token.Line)
	}
	return nil
}

func (c *Compiler) variable() error {
	if err := c.consume(lexer.TOKEN_IDENTIFIER); err != nil {
		return err
	}
	c.emit(vm.GetGlobal(c.prev.Text))
	return nil
}

func (c *Compiler) member() error {
	if err := c.consume(lexer.TOKEN_DOT); err != nil {
		return err
	}
	if err := c.consume(lexer.TOKEN_IDENTIFIER); err != nil {
		return err
	}
	c.emit(vm.PushImmediate(vm.Str(c.prev.Text)))
	c.emit(vm.GetMember())
	return nil
}

func (c *Compiler) computedMember() error {
	if err := c.consume(lexer.TOKEN_LSQUARE); err != nil {
		return err
	}
	if err := c.expression(precAssignment); err != nil {
		return err
	}
	if err := c.consume(lexer.TOKEN_RSQUARE); err != nil {
		return err
	}
	c.emit(vm.GetMember())
	return nil
}

// assign is the infix handler for `=`. By the time it fires, the
// left-hand side has already been compiled as a Get opcode (it had
// to be — this is a single-pass compiler with no lookahead past one
// token). We stash that opcode, compile the right-hand side, then
// rewrite the stashed Get into the matching Set.
func (c *Compiler) assign() error {
	if err := c.consume(lexer.TOKEN_EQUAL); err != nil {
		return err
	}

	last := c.output[len(c.output)-1]
	c.output = c.output[:len(c.output)-1]

	if err := c.expression(precAssignment); err != nil {
		return err
	}

	if last.Op != vm.OpGetGlobal {
		return c.errorf("invalid assignment target", c.prev.Line)
	}
	c.emit(vm.SetGlobal(last.Name))
	return nil
}

func (c *Compiler) string() error {
	if err := c.consume(lexer.TOKEN_STR); err != nil {
		return err
	}
	c.emit(vm.PushImmediate(vm.Str(c.prev.Text)))
	return nil
}

// regex is the prefix handler for `/` in prefix position: it asks the
// lexer to read a regex literal instead of continuing to lex
// division. This is the only place the compiler drives the lexer
// directly instead of calling advance.
func (c *Compiler) regex() error {
	t := c.lexer.ReadRegex()
	if t.Kind == lexer.TOKEN_ERROR {
		return c.errorf(t.Text, t.Line)
	}
	c.prev = c.current
	c.current = t
	if err := c.advance(); err != nil {
		return err
	}
	c.emit(vm.PushImmediate(vm.Regex(c.prev.Text)))
	return nil
}

func (c *Compiler) number() error {
	if err := c.consume(lexer.TOKEN_NUM); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(c.prev.Text, 64)
	if err != nil {
		return c.errorf("invalid number "+c.prev.Text, c.prev.Line)
	}
	c.emit(vm.PushImmediate(vm.Num(n)))
	return nil
}

func (c *Compiler) compileRule() (vm.Rule, error) {
	kind := vm.RuleMatch

	switch c.current.Kind {
	case lexer.TOKEN_LCURLY:
		// no pattern
	case lexer.TOKEN_BEGIN:
		kind = vm.RuleBegin
		if err := c.consume(lexer.TOKEN_BEGIN); err != nil {
			return vm.Rule{}, err
		}
	case lexer.TOKEN_END:
		kind = vm.RuleEnd
		if err := c.consume(lexer.TOKEN_END); err != nil {
			return vm.Rule{}, err
		}
	default:
		if err := c.expression(precAssignment); err != nil {
			return vm.Rule{}, err
		}
	}

	pattern := c.output
	c.output = nil

	if c.current.Kind != lexer.TOKEN_LCURLY {
		c.emit(vm.Print(0))
	} else {
		if err := c.consume(lexer.TOKEN_LCURLY); err != nil {
			return vm.Rule{}, err
		}
		for c.current.Kind != lexer.TOKEN_RCURLY {
			if err := c.statement(); err != nil {
				return vm.Rule{}, err
			}
			if c.current.Kind != lexer.TOKEN_RCURLY {
				if err := c.consume(lexer.TOKEN_SEMICOLON); err != nil {
					return vm.Rule{}, err
				}
			}
		}
		if err := c.consume(lexer.TOKEN_RCURLY); err != nil {
			return vm.Rule{}, err
		}
	}

	body := c.output
	c.output = nil

	return vm.Rule{Pattern: pattern, Body: body, Kind: kind}, nil
}

// CompileExpression compiles one standalone expression, used to
// compile the root selector separately from the rule program.
func (c *Compiler) CompileExpression() ([]vm.OpCode, error) {
	if err := c.advance(); err != nil {
		return nil, err
	}
	if err := c.expression(precAssignment); err != nil {
		return nil, err
	}
	return c.output, nil
}

// CompileRules compiles a full program of rules up to EOF.
func (c *Compiler) CompileRules() ([]vm.Rule, error) {
	if err := c.advance(); err != nil {
		return nil, err
	}

	var rules []vm.Rule
	for c.current.Kind != lexer.TOKEN_EOF {
		rule, err := c.compileRule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
