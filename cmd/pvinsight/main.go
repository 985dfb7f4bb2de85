// Command pvinsight analyses PVSyst hourly results and TMY weather files.
//
// Usage:
//
//	pvinsight serve   [-config F] [-port N] [-open]
//	pvinsight hourly  -file F [-threshold T] [-column E_Grid] [-night=true] [-capacity C] [-out DIR] [-json]
//	pvinsight tmy     -file F [-out DIR] [-json]
//	pvinsight compare -a A -b B [-out DIR] [-json]
//	pvinsight batch   -manifest M.hcl [-parallelism N] [-json]
//	pvinsight mcp     [-config F]
//	pvinsight tools   [-json]
//	pvinsight version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"pvinsight/internal/config"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// errUsage marks command line mistakes.
var errUsage = errors.New("usage error")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

// env carries the process streams so commands can be tested.
type env struct {
	stdout io.Writer
	stderr io.Writer
}

var commands = []command{
	{"serve", "Start the HTTP API, websocket and metrics server", runServe},
	{"hourly", "Analyse a PVSyst hourly results file", runHourly},
	{"tmy", "Analyse a TMY weather file", runTMY},
	{"compare", "Compare two TMY weather files", runCompare},
	{"batch", "Run every analysis listed in an HCL manifest", runBatch},
	{"mcp", "Serve the analysis tools over MCP on stdio", runMCP},
	{"tools", "List the analysis tools", runTools},
	{"version", "Print the version", runVersion},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	e := &env{stdout: stdout, stderr: stderr}
	if len(args) == 0 || args[0] == "-h" || args[0] == "-help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		err := cmd.run(ctx, e, args[1:])
		switch {
		case err == nil:
			return exitOK
		case errors.Is(err, flag.ErrHelp):
			return exitOK
		case errors.Is(err, errUsage):
			fmt.Fprintf(stderr, "pvinsight %s: %v\n", cmd.name, err)
			return exitUsage
		default:
			fmt.Fprintf(stderr, "pvinsight %s: %v\n", cmd.name, err)
			return exitFailure
		}
	}

	fmt.Fprintf(stderr, "pvinsight: unknown command %q\n\n", args[0])
	usage(stderr)
	return exitUsage
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n\nUsage: pvinsight <command> [flags]\n\nCommands:\n", config.AppName, config.AppVersion)
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(w, "\nRun 'pvinsight <command> -h' for the flags of a command.")
}

func runVersion(_ context.Context, e *env, _ []string) error {
	fmt.Fprintf(e.stdout, "%s %s\n", config.AppName, config.AppVersion)
	return nil
}
