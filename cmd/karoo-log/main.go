// Command karoo-log views and analyzes protocol trace files.
//
// Trace files are written by karoo-host and karoo-ext when run with the
// -protocol-log flag.
//
// Usage:
//
//	karoo-log <command> [flags] <file.klog>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSONL or CSV format
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	karoo-log view host.klog
//
//	# View only binding and consumer transitions
//	karoo-log view --layer bridge host.klog
//
//	# Export to JSONL
//	karoo-log export --format jsonl host.klog
//
//	# Keep only the traffic of one consumer
//	karoo-log filter --target 3f2a... -o consumer.klog host.klog
//
//	# Show statistics
//	karoo-log stats host.klog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jpweytjens/karoo-ext/cmd/karoo-log/commands"
)

const usage = `karoo-log - Karoo Extension Protocol Trace Analyzer

Usage:
  karoo-log <command> [flags] <file.klog>

Commands:
  view     View trace file in human-readable format
  export   Export trace file to JSONL or CSV format
  filter   Filter trace file and write to new file
  stats    Show statistics about the trace file

Use "karoo-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "karoo-log %s - %s\n\nUsage:\n  karoo-log %s [flags] <file.klog>\n\nFlags:\n", name, synopsis, name)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and returns the trace file path.
func parse(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := newFlagSet("view", "View trace file in human-readable format")
	layer := fs.String("layer", "", "Filter by layer (transport, wire, bridge)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, control, state, error)")
	path := parse(fs, args)

	var filter commands.ViewFilter
	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fail(err)
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export trace file to JSONL or CSV format")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parse(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter trace file and write to new file")
	var opts commands.FilterOptions
	fs.StringVar(&opts.Output, "o", "", "Output file (required)")
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.Target, "target", "", "Filter by consumer, emitter or handler ID")
	fs.StringVar(&opts.Package, "package", "", "Filter by extension package")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, bridge)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, control, state, error)")
	path := parse(fs, args)

	if opts.Output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	if err := commands.RunFilter(path, opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the trace file")
	path := parse(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
