package vm

import "fmt"

// RuntimeError is raised by the VM when it cannot continue executing
// the current opcode sequence: unknown field, unknown object key, a
// wrong operand kind for member access or match, an empty-stack pop,
// an invalid regex, or iterating a non-container root. It aborts
// execution immediately; no further rules run.
type RuntimeError struct {
	Msg string
}

func (e *RuntimeError) Error() string {
	return e.Msg
}

func runtimeErrorf(format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Msg: fmt.Sprintf(format, args...)}
}
