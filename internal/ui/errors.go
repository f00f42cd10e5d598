// Package ui renders the CLI's two error shapes — a compile error
// with a source line, or a bare runtime error — either colorized for
// a terminal or as JSON for scripting.
package ui

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	cerrors "github.com/Alligator/jqawk/compiler/errors"
	"github.com/Alligator/jqawk/vm"
)

// WriteCompileError prints a *compiler/errors.CompileError, either as
// "error on line N: msg" in red, or as a JSON object when asJSON is
// set (see CompileError.ToJSON).
func WriteCompileError(w io.Writer, err *cerrors.CompileError, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.Encode(map[string]interface{}{
			"status": "error",
			"errors": []interface{}{err.ToJSON()},
		})
		return
	}
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(w, "error on line %d: %s\n", err.Line, err.Msg)
}

// WriteRuntimeError prints a *vm.RuntimeError as "runtime error: msg",
// or as JSON when asJSON is set.
func WriteRuntimeError(w io.Writer, err *vm.RuntimeError, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.Encode(map[string]interface{}{
			"status":  "error",
			"runtime": map[string]interface{}{"msg": err.Msg},
		})
		return
	}
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(w, "runtime error: %s\n", err.Msg)
}

// WriteHostError prints an error that originates outside the compiler
// and VM (a missing file, a bad flag combination) — the CLI's exit
// code 1 case.
func WriteHostError(w io.Writer, err error, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.Encode(map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(w, "%s\n", fmt.Sprint(err))
}

// Success prints a green confirmation line, used by `init`.
func Success(w io.Writer, message string) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(w, "✓ %s\n", message)
}
