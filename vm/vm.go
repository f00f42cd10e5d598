package vm

import (
	"io"
	"os"
	"regexp"
)

// VM owns an operand stack, a global-variable map, and a small
// field-name map holding the current root element under the key
// "root". It is single-threaded and synchronous: Run executes to
// completion or to the first RuntimeError. A VM is not reused across
// unrelated documents; construct a fresh one per Run.
type VM struct {
	fields    map[string]Value
	variables map[string]Value
	stack     []Value
	sink      Sink
	debug     *Tracer
}

// Option configures a VM at construction.
type Option func(*VM)

// WithSink overrides the default stdout sink.
func WithSink(sink Sink) Option {
	return func(v *VM) { v.sink = sink }
}

// WithTracer attaches an opcode/stack tracer, used by --debug.
func WithTracer(t *Tracer) Option {
	return func(v *VM) { v.debug = t }
}

// New creates a VM with NR pre-seeded to 0 and output going to os.Stdout
// unless overridden with WithSink.
func New(opts ...Option) *VM {
	v := &VM{
		fields:    map[string]Value{},
		variables: map[string]Value{"NR": Num(0)},
		stack:     nil,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.sink == nil {
		v.sink = NewWriterSink(os.Stdout)
	}
	return v
}

// NR returns the current value of the NR global, mainly useful to
// hosts that want the final count after Run returns.
func (v *VM) NR() float64 {
	return v.variables["NR"].AsFloat()
}

func (v *VM) push(val Value) {
	v.stack = append(v.stack, val)
}

func (v *VM) pop() (Value, error) {
	if len(v.stack) == 0 {
		return Value{}, runtimeErrorf("attempted to pop an empty stack")
	}
	last := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return last, nil
}

// Run parses r as a single JSON document, executes selector to find
// the iteration root, runs all Begin rules, then one Match pass per
// element of the root (array index order, or object values in
// source order), then all End rules.
func (v *VM) Run(r io.Reader, selector []OpCode, rules []Rule) error {
	decoded, err := DecodeJSON(r)
	if err != nil {
		return runtimeErrorf("error parsing JSON: %s", err)
	}
	root := FromJSON(decoded)

	v.fields["root"] = root
	if err := v.eval(selector); err != nil {
		return err
	}

	s, err := v.pop()
	if err != nil {
		return runtimeErrorf("expected a value on the stack after the selector")
	}

	if err := v.evalRules(rules, RuleBegin, s); err != nil {
		return err
	}

	if err := v.forEachIn(s, func(elem Value) error {
		v.variables["NR"] = Num(v.NR() + 1)
		return v.evalRules(rules, RuleMatch, elem)
	}); err != nil {
		return err
	}

	if err := v.evalRules(rules, RuleEnd, s); err != nil {
		return err
	}

	if flusher, ok := v.sink.(*WriterSink); ok {
		return flusher.Flush()
	}
	return nil
}

func (v *VM) forEachIn(s Value, fn func(Value) error) error {
	switch s.Kind {
	case ValueArray:
		for _, item := range s.Array {
			if err := fn(FromJSON(item)); err != nil {
				return err
			}
		}
		return nil
	case ValueObject:
		for _, key := range s.Object.Keys() {
			item, _ := s.Object.Get(key)
			if err := fn(FromJSON(item)); err != nil {
				return err
			}
		}
		return nil
	default:
		return runtimeErrorf("JSON must be an object or an array, got %s", s.TypeName())
	}
}

func (v *VM) evalRules(rules []Rule, kind RuleKind, root Value) error {
	v.fields["root"] = root
	for _, rule := range rules {
		if rule.Kind != kind {
			continue
		}
		if len(rule.Pattern) == 0 {
			if err := v.eval(rule.Body); err != nil {
				return err
			}
			continue
		}

		if err := v.eval(rule.Pattern); err != nil {
			return err
		}
		p, err := v.pop()
		if err != nil {
			return runtimeErrorf("expected one value on the stack after pattern")
		}
		if p.Truthy() {
			if err := v.eval(rule.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

// eval executes one opcode sequence (a pattern or a body) against the
// VM's current stack/fields/variables state.
func (v *VM) eval(prog []OpCode) error {
	for _, op := range prog {
		if v.debug != nil {
			v.debug.Op(op)
			v.debug.Stack(v.stack)
		}

		switch op.Op {
		case OpGetField:
			if op.Name == "" {
				v.push(v.fields["root"])
				break
			}
			field, ok := v.fields[op.Name]
			if !ok {
				return runtimeErrorf("unknown field: %s", op.Name)
			}
			v.push(field)

		case OpPushImmediate:
			v.push(op.Value)

		case OpGetMember:
			member, err := v.pop()
			if err != nil {
				return err
			}
			target, err := v.pop()
			if err != nil {
				return err
			}

			switch target.Kind {
			case ValueArray:
				if member.Kind != ValueNum {
					return runtimeErrorf("cannot index an array with a %s", member.TypeName())
				}
				idx := int(member.Num)
				if idx < 0 || idx >= len(target.Array) {
					v.push(Num(0))
				} else {
					v.push(FromJSON(target.Array[idx]))
				}
			case ValueObject:
				var key string
				switch member.Kind {
				case ValueStr:
					key = member.Str
				case ValueNum:
					key = FormatNum(member.Num)
				default:
					return runtimeErrorf("cannot access member on object with %s", member.TypeName())
				}
				val, ok := target.Object.Get(key)
				if !ok {
					return runtimeErrorf("unknown key %s", key)
				}
				v.push(FromJSON(val))
			default:
				return runtimeErrorf("can only access members on objects or arrays, found %s", target.TypeName())
			}

		case OpEqual:
			right, err := v.pop()
			if err != nil {
				return err
			}
			left, err := v.pop()
			if err != nil {
				return err
			}
			v.push(boolNum(left.Equal(right)))

		case OpAnd:
			right, err := v.pop()
			if err != nil {
				return err
			}
			left, err := v.pop()
			if err != nil {
				return err
			}
			v.push(boolNum(left.Truthy() && right.Truthy()))

		case OpOr:
			right, err := v.pop()
			if err != nil {
				return err
			}
			left, err := v.pop()
			if err != nil {
				return err
			}
			v.push(boolNum(left.Truthy() || right.Truthy()))

		case OpAdd, OpSubtract, OpMultiply, OpDivide:
			right, err := v.pop()
			if err != nil {
				return err
			}
			left, err := v.pop()
			if err != nil {
				return err
			}
			l, r := left.AsFloat(), right.AsFloat()
			var result float64
			switch op.Op {
			case OpAdd:
				result = l + r
			case OpSubtract:
				result = l - r
			case OpMultiply:
				result = l * r
			case OpDivide:
				result = l / r
			}
			v.push(Num(result))

		case OpGreater:
			right, err := v.pop()
			if err != nil {
				return err
			}
			left, err := v.pop()
			if err != nil {
				return err
			}
			if left.Kind == ValueStr && right.Kind == ValueStr {
				v.push(boolNum(left.Str > right.Str))
			} else {
				v.push(boolNum(left.AsFloat() > right.AsFloat()))
			}

		case OpMatch:
			right, err := v.pop()
			if err != nil {
				return err
			}
			left, err := v.pop()
			if err != nil {
				return err
			}
			if left.Kind != ValueStr || right.Kind != ValueRegex {
				return runtimeErrorf("can only match a string against a regex")
			}
			re, err := regexp.Compile(right.Str)
			if err != nil {
				return runtimeErrorf("invalid regex: %s", err)
			}
			v.push(boolNum(re.MatchString(left.Str)))

		case OpNegate:
			arg, err := v.pop()
			if err != nil {
				return err
			}
			if arg.Kind != ValueNum {
				return runtimeErrorf("can only negate a number")
			}
			v.push(boolNum(arg.Num == 0))

		case OpPrint:
			if op.Count == 0 {
				v.sink.Write(v.fields["root"].Display())
				break
			}
			args := make([]string, op.Count)
			for i := op.Count - 1; i >= 0; i-- {
				val, err := v.pop()
				if err != nil {
					return err
				}
				args[i] = val.Display()
			}
			v.sink.Write(joinWithSpace(args))

		case OpGetGlobal:
			val, ok := v.variables[op.Name]
			if !ok {
				v.push(Num(0))
			} else {
				v.push(val)
			}

		case OpSetGlobal:
			val, err := v.pop()
			if err != nil {
				return err
			}
			v.variables[op.Name] = val

		default:
			return runtimeErrorf("unknown opcode %v", op)
		}

		if v.debug != nil {
			v.debug.Stack(v.stack)
		}
	}
	return nil
}

func boolNum(b bool) Value {
	if b {
		return Num(1)
	}
	return Num(0)
}

func joinWithSpace(args []string) string {
	out := args[0]
	for _, a := range args[1:] {
		out += " " + a
	}
	return out
}

