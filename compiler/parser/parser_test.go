package parser

import (
	"testing"

	"github.com/Alligator/jqawk/compiler/errors"
	"github.com/Alligator/jqawk/compiler/lexer"
	"github.com/Alligator/jqawk/vm"
)

// compileRules is a helper that runs source through a fresh lexer and
// compiler and fails the test if compilation returns an error.
func compileRules(t *testing.T, source string) []vm.Rule {
	t.Helper()
	c := New(lexer.New(source))
	rules, err := c.CompileRules()
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return rules
}

func compileExpr(t *testing.T, source string) []vm.OpCode {
	t.Helper()
	c := New(lexer.New(source))
	ops, err := c.CompileExpression()
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return ops
}

func opKinds(ops []vm.OpCode) []vm.OpKind {
	kinds := make([]vm.OpKind, len(ops))
	for i, op := range ops {
		kinds[i] = op.Op
	}
	return kinds
}

func assertOpKinds(t *testing.T, ops []vm.OpCode, expected ...vm.OpKind) {
	t.Helper()
	got := opKinds(ops)
	if len(got) != len(expected) {
		t.Fatalf("expected %d opcodes, got %d: %v", len(expected), len(got), got)
	}
	for i, k := range expected {
		if got[i] != k {
			t.Errorf("opcode %d: expected %v, got %v", i, k, got[i])
		}
	}
}

func TestCompileBareExpressionRule(t *testing.T) {
	rules := compileRules(t, `$.active`)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	rule := rules[0]
	if rule.Kind != vm.RuleMatch {
		t.Fatalf("expected a match rule, got %v", rule.Kind)
	}
	assertOpKinds(t, rule.Pattern, vm.OpGetField, vm.OpPushImmediate, vm.OpGetMember)
	assertOpKinds(t, rule.Body, vm.OpPrint)
	if rule.Body[0].Count != 0 {
		t.Errorf("expected an implicit Print(0), got Print(%d)", rule.Body[0].Count)
	}
}

func TestCompileBeginEndRules(t *testing.T) {
	rules := compileRules(t, `BEGIN { print "start" } END { print "end" }`)
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Kind != vm.RuleBegin {
		t.Errorf("expected first rule to be BEGIN, got %v", rules[0].Kind)
	}
	if rules[1].Kind != vm.RuleEnd {
		t.Errorf("expected second rule to be END, got %v", rules[1].Kind)
	}
	if len(rules[0].Pattern) != 0 || len(rules[1].Pattern) != 0 {
		t.Errorf("BEGIN/END rules should have no pattern")
	}
}

func TestCompileBareBlockRule(t *testing.T) {
	rules := compileRules(t, `{ print $.name }`)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if len(rules[0].Pattern) != 0 {
		t.Errorf("expected no pattern, got %v", rules[0].Pattern)
	}
}

func TestCompilePrintMultipleArgs(t *testing.T) {
	rules := compileRules(t, `{ print $.name, $.age }`)
	body := rules[0].Body
	last := body[len(body)-1]
	if last.Op != vm.OpPrint || last.Count != 2 {
		t.Fatalf("expected Print(2), got %v", last)
	}
}

func TestCompileAssignment(t *testing.T) {
	rules := compileRules(t, `{ total = total + $.amount }`)
	body := rules[0].Body
	last := body[len(body)-1]
	if last.Op != vm.OpSetGlobal || last.Name != "total" {
		t.Fatalf("expected SetGlobal(total), got %v", last)
	}
	// the LHS's GetGlobal(total) must have been stashed and rewritten,
	// not left in the stream ahead of the RHS's own GetGlobal(total).
	getGlobalCount := 0
	for _, op := range body {
		if op.Op == vm.OpGetGlobal && op.Name == "total" {
			getGlobalCount++
		}
	}
	if getGlobalCount != 1 {
		t.Fatalf("expected exactly 1 GetGlobal(total) (the RHS read), got %d", getGlobalCount)
	}
}

func TestCompileInvalidAssignmentTarget(t *testing.T) {
	c := New(lexer.New(`{ "x" = 1 }`))
	_, err := c.CompileRules()
	if err == nil {
		t.Fatal("expected a compile error for an invalid assignment target")
	}
	ce, ok := err.(*errors.CompileError)
	if !ok {
		t.Fatalf("expected *errors.CompileError, got %T", err)
	}
	if ce.Msg == "" {
		t.Errorf("expected a non-empty error message")
	}
}

func TestCompileComparisonAndLogical(t *testing.T) {
	ops := compileExpr(t, `$.age > 18 && $.active`)
	kinds := opKinds(ops)
	foundGreater, foundAnd := false, false
	for _, k := range kinds {
		if k == vm.OpGreater {
			foundGreater = true
		}
		if k == vm.OpAnd {
			foundAnd = true
		}
	}
	if !foundGreater || !foundAnd {
		t.Fatalf("expected both Greater and And opcodes, got %v", kinds)
	}
}

func TestCompileRegexMatch(t *testing.T) {
	ops := compileExpr(t, `$.name ~ /^bob/`)
	assertOpKinds(t, ops, vm.OpGetField, vm.OpPushImmediate, vm.OpGetMember, vm.OpPushImmediate, vm.OpMatch)
}

func TestCompileNotMatch(t *testing.T) {
	ops := compileExpr(t, `$.name !~ /^bob/`)
	last := ops[len(ops)-1]
	secondLast := ops[len(ops)-2]
	if secondLast.Op != vm.OpMatch || last.Op != vm.OpNegate {
		t.Fatalf("expected Match then Negate, got %v then %v", secondLast, last)
	}
}

func TestCompileComputedMember(t *testing.T) {
	ops := compileExpr(t, `$.items[0]`)
	assertOpKinds(t, ops, vm.OpGetField, vm.OpPushImmediate, vm.OpGetMember, vm.OpPushImmediate, vm.OpGetMember)
}

func TestCompileNumberLiteral(t *testing.T) {
	ops := compileExpr(t, `42`)
	if len(ops) != 1 || ops[0].Op != vm.OpPushImmediate || ops[0].Value.Num != 42 {
		t.Fatalf("expected PushImmediate(42), got %v", ops)
	}
}

func TestCompileRootSelector(t *testing.T) {
	ops := compileExpr(t, `$`)
	assertOpKinds(t, ops, vm.OpGetField)
	if ops[0].Name != "" {
		t.Errorf("expected an empty field name for the root selector, got %q", ops[0].Name)
	}
}

func TestCompileErrorUnexpectedToken(t *testing.T) {
	c := New(lexer.New(`$.`))
	_, err := c.CompileExpression()
	if err == nil {
		t.Fatal("expected a compile error for a dangling dot")
	}
}

func TestCompileErrorUnterminatedRegex(t *testing.T) {
	c := New(lexer.New(`/abc`))
	_, err := c.CompileExpression()
	if err == nil {
		t.Fatal("expected a compile error for an unterminated regex")
	}
}
