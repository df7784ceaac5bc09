// Command evmgas prices EVM opcode sequences under a selectable fork.
//
// Usage:
//
//	evmgas [global flags] <command> [flags] [arguments]
//
// Commands:
//
//	opcodes     List the effective opcode table of a fork
//	cost        Price a single opcode
//	analyze     Price an opcode sequence or contract bytecode
//	compare     Show the opcode differences between two forks
//	advise      Print optimization advice for a fork
//	validate    Check the opcode registry for inconsistencies
//	disasm      Disassemble bytecode
//	dumpconfig  Print the effective configuration as TOML
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/eth2030/evmgas/metrics"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code. It takes the full
// argument vector including the program name so tests can drive it.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := newApp()
	app.Reader = stdin
	app.Writer = stdout
	app.ErrWriter = stderr

	if err := app.Run(args); err != nil {
		fmt.Fprintf(stderr, "Fatal: %v\n", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "evmgas",
		Usage:   "EVM gas cost calculator",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Flags: []cli.Flag{
			configFileFlag,
			forkFlag,
			logLevelFlag,
			logFormatFlag,
			outputFormatFlag,
			metricsFlag,
		},
		Commands: []*cli.Command{
			opcodesCommand,
			costCommand,
			analyzeCommand,
			compareCommand,
			adviseCommand,
			validateCommand,
			disasmCommand,
			dumpConfigCommand,
		},
		// Errors are reported by run; never let the library exit the process.
		ExitErrHandler: func(*cli.Context, error) {},
		After: func(ctx *cli.Context) error {
			if !ctx.Bool(metricsFlag.Name) {
				return nil
			}
			return metrics.WriteText(ctx.App.ErrWriter, metrics.DefaultRegistry, "evmgas")
		},
	}
}
