package vm

import (
	"strings"
	"testing"
)

func run(t *testing.T, input string, selector []OpCode, rules []Rule) *SliceSink {
	t.Helper()
	sink := &SliceSink{}
	machine := New(WithSink(sink))
	if err := machine.Run(strings.NewReader(input), selector, rules); err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	return sink
}

func TestRunPrintsEachArrayElement(t *testing.T) {
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{Kind: RuleMatch, Body: []OpCode{Print(0)}},
	}
	sink := run(t, `[1, 2, 3]`, selector, rules)
	expected := []string{"1", "2", "3"}
	if len(sink.Lines) != len(expected) {
		t.Fatalf("expected %d lines, got %d: %v", len(expected), len(sink.Lines), sink.Lines)
	}
	for i, e := range expected {
		if sink.Lines[i] != e {
			t.Errorf("line %d: expected %q, got %q", i, e, sink.Lines[i])
		}
	}
}

func TestRunIteratesObjectValuesInOrder(t *testing.T) {
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{Kind: RuleMatch, Body: []OpCode{
			GetField(""), PushImmediate(Str("name")), GetMember(), Print(1),
		}},
	}
	sink := run(t, `{"b": {"name": "bob"}, "a": {"name": "alice"}}`, selector, rules)
	if len(sink.Lines) != 2 || sink.Lines[0] != "bob" || sink.Lines[1] != "alice" {
		t.Fatalf("expected [bob alice] in source key order, got %v", sink.Lines)
	}
}

func TestRunPatternGatesBody(t *testing.T) {
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{
			Kind: RuleMatch,
			Pattern: []OpCode{
				GetField(""), PushImmediate(Str("active")), GetMember(),
			},
			Body: []OpCode{Print(0)},
		},
	}
	sink := run(t, `[{"active": "yes"}, {"active": ""}]`, selector, rules)
	if len(sink.Lines) != 1 {
		t.Fatalf("expected only the truthy element to print, got %v", sink.Lines)
	}
}

func TestRunBeginEndRunOnce(t *testing.T) {
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{Kind: RuleBegin, Body: []OpCode{PushImmediate(Str("start")), Print(1)}},
		{Kind: RuleMatch, Body: []OpCode{Print(0)}},
		{Kind: RuleEnd, Body: []OpCode{PushImmediate(Str("end")), Print(1)}},
	}
	sink := run(t, `[1, 2]`, selector, rules)
	expected := []string{"start", "1", "2", "end"}
	if len(sink.Lines) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, sink.Lines)
	}
	for i, e := range expected {
		if sink.Lines[i] != e {
			t.Errorf("line %d: expected %q, got %q", i, e, sink.Lines[i])
		}
	}
}

func TestRunGlobalAssignmentAccumulates(t *testing.T) {
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{Kind: RuleMatch, Body: []OpCode{
			GetGlobal("total"), GetField(""), Add(), SetGlobal("total"),
		}},
		{Kind: RuleEnd, Body: []OpCode{GetGlobal("total"), Print(1)}},
	}
	sink := run(t, `[1, 2, 3]`, selector, rules)
	if len(sink.Lines) != 1 || sink.Lines[0] != "6" {
		t.Fatalf("expected total 6, got %v", sink.Lines)
	}
}

func TestRunUnsetGlobalDefaultsToZero(t *testing.T) {
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{Kind: RuleMatch, Body: []OpCode{GetGlobal("missing"), Print(1)}},
	}
	sink := run(t, `[1]`, selector, rules)
	if sink.Lines[0] != "0" {
		t.Fatalf("expected unset global to read as 0, got %q", sink.Lines[0])
	}
}

func TestRunNRIncrementsPerElement(t *testing.T) {
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{Kind: RuleMatch, Body: []OpCode{GetGlobal("NR"), Print(1)}},
	}
	sink := run(t, `[10, 20, 30]`, selector, rules)
	expected := []string{"1", "2", "3"}
	for i, e := range expected {
		if sink.Lines[i] != e {
			t.Errorf("line %d: expected NR=%s, got %s", i, e, sink.Lines[i])
		}
	}
}

func TestRunRegexMatch(t *testing.T) {
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{
			Kind:    RuleMatch,
			Pattern: []OpCode{GetField(""), PushImmediate(Regex("^b"))},
			Body:    []OpCode{Print(0)},
		},
	}
	rules[0].Pattern = append(rules[0].Pattern, Match())
	sink := run(t, `["bob", "alice", "bart"]`, selector, rules)
	if len(sink.Lines) != 2 || sink.Lines[0] != "bob" || sink.Lines[1] != "bart" {
		t.Fatalf("expected [bob bart], got %v", sink.Lines)
	}
}

func TestRunBareStatementEndPrintStillExecutesFollowingOps(t *testing.T) {
	// A bare `print` (Count 0) must not truncate the rest of the body.
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{Kind: RuleMatch, Body: []OpCode{
			Print(0),
			PushImmediate(Str("after")), SetGlobal("marker"),
		}},
		{Kind: RuleEnd, Body: []OpCode{GetGlobal("marker"), Print(1)}},
	}
	sink := run(t, `[1]`, selector, rules)
	if sink.Lines[len(sink.Lines)-1] != "after" {
		t.Fatalf("expected the opcode after a bare Print(0) to still run, got %v", sink.Lines)
	}
}

func TestRunErrorOnUnknownField(t *testing.T) {
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{Kind: RuleMatch, Body: []OpCode{GetField("nope"), Print(1)}},
	}
	sink := &SliceSink{}
	machine := New(WithSink(sink))
	err := machine.Run(strings.NewReader(`[1]`), selector, rules)
	if err == nil {
		t.Fatal("expected a runtime error for an unknown field")
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
}

func TestRunErrorOnNonContainerRoot(t *testing.T) {
	selector := []OpCode{GetField("")}
	sink := &SliceSink{}
	machine := New(WithSink(sink))
	err := machine.Run(strings.NewReader(`"just a string"`), selector, nil)
	if err == nil {
		t.Fatal("expected a runtime error when the root isn't an object or array")
	}
}

func TestRunErrorOnUnknownObjectKey(t *testing.T) {
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{Kind: RuleMatch, Body: []OpCode{
			GetField(""), PushImmediate(Str("missing")), GetMember(), Print(1),
		}},
	}
	sink := &SliceSink{}
	machine := New(WithSink(sink))
	err := machine.Run(strings.NewReader(`[{"name": "bob"}]`), selector, rules)
	if err == nil {
		t.Fatal("expected a runtime error for an unknown object key")
	}
}

func TestRunArrayOutOfRangeIsZero(t *testing.T) {
	selector := []OpCode{GetField("")}
	rules := []Rule{
		{Kind: RuleMatch, Body: []OpCode{
			GetField(""), PushImmediate(Num(5)), GetMember(), Print(1),
		}},
	}
	sink := run(t, `[[1, 2]]`, selector, rules)
	if sink.Lines[0] != "0" {
		t.Fatalf("expected out-of-range array access to read as 0, got %q", sink.Lines[0])
	}
}

func TestRunSelectorNarrowsRoot(t *testing.T) {
	selector := []OpCode{
		GetField(""), PushImmediate(Str("items")), GetMember(),
	}
	rules := []Rule{
		{Kind: RuleMatch, Body: []OpCode{Print(0)}},
	}
	sink := run(t, `{"items": [1, 2], "ignored": "x"}`, selector, rules)
	if len(sink.Lines) != 2 {
		t.Fatalf("expected the selector to narrow iteration to items, got %v", sink.Lines)
	}
}
