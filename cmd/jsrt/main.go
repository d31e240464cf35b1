package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kristofer/jsrt/pkg/bytecode"
	"github.com/kristofer/jsrt/pkg/value"
	"github.com/kristofer/jsrt/pkg/vm"
)

const version = "0.1.0"

var (
	verbose  bool
	stepMode bool
)

func main() {
	root := &cobra.Command{
		Use:   "jsrt",
		Short: "jsrt runs pre-compiled bytecode modules against the engine core",
		Long: `jsrt is a minimal embedder demo for the engine core described in
this repository: value universe, object model, functions, bytecode
executor, and promise/microtask machinery. It has no parser or compiler
of its own (those are out of scope, per spec.md's non-goals) — it only
loads and runs ".sgc" bytecode modules produced by an external compiler.`,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable structured trace logging")
	root.PersistentFlags().BoolVar(&stepMode, "step", false, "single-step every instruction through the debugger logger")

	root.AddCommand(
		runCmd(),
		disassembleCmd(),
		replCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print jsrt's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("jsrt version %s\n", version)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file.sgc>",
		Short: "load and execute a compiled bytecode module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			code, err := loadBytecode(args[0])
			if err != nil {
				return err
			}

			ctx := newRealm(logger)
			machine := vm.New(ctx)
			if stepMode {
				dbg := vm.NewDebugger(logger)
				dbg.Enable()
				dbg.SetStepMode(true)
				machine.SetDebugger(dbg)
			}

			result, err := machine.Run(code)
			if err != nil {
				fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
				for _, line := range machine.StackTrace() {
					fmt.Fprintln(os.Stderr, line)
				}
				os.Exit(1)
			}
			if pending, ok := ctx.PendingException(); ok {
				fmt.Fprintf(os.Stderr, "uncaught exception: %s\n", describe(pending))
				os.Exit(1)
			}
			if !result.IsUndefined() {
				fmt.Println(describe(result))
			}
			return nil
		},
	}
}

func disassembleCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "disassemble <file.sgc>",
		Aliases: []string{"disasm"},
		Short:   "print a human-readable disassembly of a bytecode module",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := loadBytecode(args[0])
			if err != nil {
				return err
			}
			printDisassembly(args[0], code)
			return nil
		},
	}
}

// replCmd starts an interactive loop over a persistent realm: each line
// is the path to a ".sgc" module, loaded and run in turn against the
// same VM and context. There is no incremental source compiler here to
// feed raw expressions to (parsing and compilation are out of scope for
// this engine core); state instead persists the way a module loader's
// does, across successive `Run` calls sharing one Context.Globals.
func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "interactively load and run bytecode modules against one persistent realm",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			ctx := newRealm(logger)
			machine := vm.New(ctx)

			fmt.Printf("jsrt repl v%s — enter a .sgc module path per line, :quit to exit\n", version)
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("jsrt> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case ":quit", ":exit":
					return nil
				}

				code, err := loadBytecode(line)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%v\n", err)
					continue
				}
				result, err := machine.Run(code)
				if err != nil {
					fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
					continue
				}
				if pending, ok := ctx.PendingException(); ok {
					fmt.Fprintf(os.Stderr, "uncaught exception: %s\n", describe(pending))
					ctx.ClearException()
					continue
				}
				if !result.IsUndefined() {
					fmt.Println(describe(result))
				}
			}
			return nil
		},
	}
}

func loadBytecode(filename string) (*bytecode.Bytecode, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	defer f.Close()

	code, err := bytecode.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filename, err)
	}
	return code, nil
}

func newLogger() *zap.Logger {
	if !verbose && !stepMode {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// describe renders a value for CLI output. It never invokes
// toString/valueOf user hooks — that would require calling back into the
// VM with a live frame, which a top-level print doesn't have — so
// objects print structurally instead of via their Symbol.toPrimitive.
func describe(v value.Value) string {
	switch v.Kind() {
	case value.KindUndefined:
		return "undefined"
	case value.KindNull:
		return "null"
	case value.KindBoolean:
		return fmt.Sprintf("%t", v.AsBool())
	case value.KindNumber:
		return fmt.Sprintf("%v", v.AsNumber())
	case value.KindBigInt:
		return v.AsBigInt().String() + "n"
	case value.KindString:
		return v.AsString()
	case value.KindSymbol:
		return fmt.Sprintf("Symbol(%s)", v.AsSymbol().Description)
	case value.KindObject:
		return fmt.Sprintf("[object %T]", v.AsObject())
	default:
		return "<catch marker>"
	}
}
