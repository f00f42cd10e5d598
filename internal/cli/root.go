// Package cli wires jqawk's cobra commands: the default positional
// PROGRAM [INPUT] surface plus init/serve/lsp/token/history.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Alligator/jqawk/internal/program"
	"github.com/Alligator/jqawk/internal/ui"
	"github.com/Alligator/jqawk/vm"
)

var (
	fileFlag  string
	rootFlag  string
	debugFlag bool
	jsonFlag  bool
)

// cliError carries the process exit code a failure should produce,
// distinguishing compile errors (2), runtime errors (3) and host
// failures (1) without cobra's default error printing getting in the
// way (the command has already written its own error output).
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// NewRootCommand builds the jqawk root command: PROGRAM [INPUT] by
// default, with init/serve/lsp/token/history as subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jqawk [flags] PROGRAM [INPUT]",
		Short: "An AWK-style tool for querying and transforming JSON",
		Long: color.CyanString(`jqawk - an AWK-style tool for querying and transforming JSON

jqawk runs a small pattern/action program against a JSON document,
the same way awk runs one against lines of text.`),
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}

	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "read the program from FILE instead of the first argument")
	rootCmd.Flags().StringVarP(&rootFlag, "root", "r", program.DefaultSelector, "root selector expression")
	rootCmd.Flags().BoolVar(&debugFlag, "debug", false, "print compiled opcodes and a VM trace to stderr")
	rootCmd.Flags().BoolVar(&jsonFlag, "json", false, "emit errors as JSON instead of colorized text")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newLSPCommand())
	rootCmd.AddCommand(newTokenCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd := NewRootCommand()
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	if ce, ok := err.(*cliError); ok {
		return ce.code
	}
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(rootCmd.ErrOrStderr(), "%s\n", err)
	return 1
}

func runRoot(cmd *cobra.Command, args []string) error {
	source, inputPath, err := resolveProgramAndInput(args)
	if err != nil {
		ui.WriteHostError(cmd.ErrOrStderr(), err, jsonFlag)
		return &cliError{1, err}
	}

	input, err := openInput(inputPath)
	if err != nil {
		ui.WriteHostError(cmd.ErrOrStderr(), err, jsonFlag)
		return &cliError{1, err}
	}
	if closer, ok := input.(io.Closer); ok && inputPath != "" {
		defer closer.Close()
	}

	prog, err := program.Compile(source, rootFlag)
	if err != nil {
		if ce, ok := program.IsCompileError(err); ok {
			ui.WriteCompileError(cmd.ErrOrStderr(), ce, jsonFlag)
			return &cliError{2, err}
		}
		ui.WriteHostError(cmd.ErrOrStderr(), err, jsonFlag)
		return &cliError{1, err}
	}

	sink := vm.NewWriterSink(cmd.OutOrStdout())
	opts := []vm.Option{vm.WithSink(sink)}
	if debugFlag {
		vm.PrintRules(cmd.ErrOrStderr(), prog.Rules)
		opts = append(opts, vm.WithTracer(vm.NewTracer(cmd.ErrOrStderr())))
	}

	runErr := prog.Run(input, opts...)
	sink.Flush()
	if runErr != nil {
		if re, ok := program.IsRuntimeError(runErr); ok {
			ui.WriteRuntimeError(cmd.ErrOrStderr(), re, jsonFlag)
			return &cliError{3, runErr}
		}
		ui.WriteHostError(cmd.ErrOrStderr(), runErr, jsonFlag)
		return &cliError{1, runErr}
	}
	return nil
}

// resolveProgramAndInput works out the program source and the input
// path (empty meaning stdin) from --file and the positional args,
// which shift meaning depending on whether -f was given.
func resolveProgramAndInput(args []string) (source string, inputPath string, err error) {
	if fileFlag != "" {
		raw, err := os.ReadFile(fileFlag)
		if err != nil {
			return "", "", fmt.Errorf("failed to read program file %q: %w", fileFlag, err)
		}
		source = string(raw)
		if len(args) > 0 {
			inputPath = args[0]
		}
		return source, inputPath, nil
	}

	if len(args) == 0 {
		return "", "", fmt.Errorf("missing PROGRAM argument (or pass -f FILE)")
	}
	source = args[0]
	if len(args) > 1 {
		inputPath = args[1]
	}
	return source, inputPath, nil
}

func openInput(path string) (io.Reader, error) {
	if path == "" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %q: %w", path, err)
	}
	return f, nil
}
