// cmd/knightc/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"knight/internal/distributed"
	"knight/internal/engine"
	"knight/internal/engineconfig"
	"knight/internal/errors"
	"knight/internal/fixpoint"
	"knight/internal/trace"
)

const VERSION = "0.1.0"

// Build variables - can be set during build with ldflags, same as the
// teacher's own cmd/sentra/main.go.
var (
	BuildDate = time.Now().Format("2006-01-02")
	GitCommit = "unknown"
)

// Command aliases mapping
var commandAliases = map[string]string{
	"a": "analyze",
	"d": "demo",
	"v": "version",
	"h": "help",
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main's recoverable body: a Violation raised anywhere in the
// engine crosses this one boundary as a stack-trace-carrying error
// (spec §7.1) instead of an unhandled panic reaching the runtime.
func run(args []string, stdout, stderr *os.File) (code int) {
	defer func() {
		if err := errors.Recover(recover()); err != nil {
			fmt.Fprintf(stderr, "knightc: %+v\n", err)
			code = 1
		}
	}()

	if len(args) == 0 {
		showUsage(stdout)
		return 0
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage(stdout)
		return 0
	case "--version", "-v", "version":
		showVersion(stdout)
		return 0
	case "demo":
		return runDemo(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "knightc: unknown command %q\n", args[0])
		showUsage(stderr)
		return 1
	}
}

func showUsage(w *os.File) {
	fmt.Fprintln(w, "knightc - sound static analyzer driver")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  knightc demo [flags]   Run the built-in demo function set through the engine (alias: d)")
	fmt.Fprintln(w, "  knightc version        Print version information                           (alias: v)")
	fmt.Fprintln(w, "  knightc help           Show this message                                    (alias: h)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Demo flags:")
	fmt.Fprintln(w, "  --dump-state           Print each function's exit-state summary")
	fmt.Fprintln(w, "  --verbose              Use kr/pretty's reflective dump instead of the terse one")
	fmt.Fprintln(w, "  --stats                Print interning-pool occupancy after the run")
	fmt.Fprintln(w, "  --no-color             Disable ANSI highlighting even on a terminal")
	fmt.Fprintln(w, "  --concurrency N        Bound how many functions analyze at once (default: unbounded)")
	fmt.Fprintln(w, "  --trace PATH           Persist per-function summaries to a sqlite file")
}

func showVersion(w *os.File) {
	fmt.Fprintf(w, "knightc %s\n", VERSION)
	fmt.Fprintf(w, "Build Date: %s\n", BuildDate)
	if GitCommit != "unknown" {
		fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)
	}
}

type demoOptions struct {
	dumpState   bool
	verbose     bool
	stats       bool
	noColor     bool
	concurrency int
	tracePath   string
}

func parseDemoFlags(args []string) (demoOptions, error) {
	var opts demoOptions
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--dump-state":
			opts.dumpState = true
		case "--verbose":
			opts.verbose = true
		case "--stats":
			opts.stats = true
		case "--no-color":
			opts.noColor = true
		case "--concurrency":
			i++
			if i >= len(args) {
				return opts, fmt.Errorf("--concurrency requires a number")
			}
			if _, err := fmt.Sscanf(args[i], "%d", &opts.concurrency); err != nil {
				return opts, fmt.Errorf("--concurrency: %w", err)
			}
		case "--trace":
			i++
			if i >= len(args) {
				return opts, fmt.Errorf("--trace requires a path")
			}
			opts.tracePath = args[i]
		default:
			return opts, fmt.Errorf("unknown flag %q", args[i])
		}
	}
	return opts, nil
}

func runDemo(args []string, stdout, stderr *os.File) int {
	opts, err := parseDemoFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, "knightc: %v\n", err)
		return 1
	}

	minLevel := errors.LevelWarn
	if opts.verbose {
		minLevel = errors.LevelDebug
	}
	logger := errors.NewLogger(stderr, minLevel)

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithConcurrency(opts.concurrency),
		engine.WithBudgets(engineconfig.Default()),
	}

	var store *trace.Store
	if opts.tracePath != "" {
		store, err = trace.Open(opts.tracePath)
		if err != nil {
			fmt.Fprintf(stderr, "knightc: %v\n", err)
			return 1
		}
		defer store.Close()
		engineOpts = append(engineOpts, engine.WithTrace(store))
	}

	e := engine.New(engineOpts...)
	result := e.Run(context.Background(), demoFunctions())

	color := !opts.noColor && isatty.IsTerminal(stdout.Fd())
	exitCode := 0
	for _, sm := range result.Summaries {
		if sm.Err != nil {
			fmt.Fprintf(stderr, "knightc: %s: %v\n", sm.FunctionName, sm.Err)
			exitCode = 1
			continue
		}
		printSummary(stdout, sm, opts, color)
	}

	if opts.stats {
		fmt.Fprintln(stdout, e.States.Stats().String())
	}
	return exitCode
}

func printSummary(w *os.File, sm distributed.Summary, opts demoOptions, color bool) {
	res, ok := sm.Value.(fixpoint.Result)
	if !ok {
		return
	}
	name := sm.FunctionName
	if color {
		name = "\x1b[1;36m" + name + "\x1b[0m"
	}
	status := "sound"
	if res.MayBeUnsound {
		status = "possibly unsound"
		if color {
			status = "\x1b[1;33m" + status + "\x1b[0m"
		}
	}
	fmt.Fprintf(w, "%s: %s\n", name, status)

	if !opts.dumpState {
		return
	}
	if opts.verbose {
		fmt.Fprintln(w, res.Summary.DumpVerbose())
	} else {
		fmt.Fprint(w, res.Summary.Dump())
	}
}
