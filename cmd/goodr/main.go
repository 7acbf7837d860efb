// Command goodr compiles ASN.1 modules into ODR artifacts and runs the BER
// codec against them.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/golangsnmp/goodr"
	"github.com/golangsnmp/goodr/cmd/internal/cliutil"
)

// Exit codes.
const (
	exitOK    = 0 // success
	exitError = 1 // processing failure or fatal diagnostic
	exitUsage = 2 // bad command line
)

const usage = `goodr - ASN.1 to ODR compiler and BER codec

Usage:
  goodr <command> [options] [arguments]

Commands:
  compile  Compile ASN.1 files into an ODR artifact
  dump     Print the type tree of every module in an artifact
  modules  List the modules of an artifact with their OIDs
  decode   Decode BER PDUs and print them as YAML
  encode   Encode a YAML value as BER
  version  Show version

Common options:
  -v, --verbose     Enable debug logging
  -vv               Enable trace logging (implies -v)
  -h, --help        Show help
  --version         Show version

Examples:
  goodr compile -o z3950.odr z-diag.asn -s z3950v3.asn
  goodr dump z3950.odr
  goodr decode z3950.odr pdu.ber
  goodr encode z3950.odr pdu.yaml > pdu.ber
`

type cli struct {
	verbose  int
	helpFlag bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var c cli
	var cmdArgs []string
	var cmd string

	for _, arg := range args {
		switch {
		case arg == "-h" || arg == "--help":
			c.helpFlag = true
		case arg == "-v" || arg == "--verbose":
			if c.verbose < 1 {
				c.verbose = 1
			}
		case arg == "-vv":
			c.verbose = 2
		case arg == "--version":
			printVersion()
			return exitOK
		case len(arg) > 0 && arg[0] == '-':
			cmdArgs = append(cmdArgs, arg)
		default:
			if cmd == "" {
				cmd = arg
			} else {
				cmdArgs = append(cmdArgs, arg)
			}
		}
	}

	if c.helpFlag && cmd == "" {
		_, _ = fmt.Fprint(os.Stdout, usage)
		return exitOK
	}

	if cmd == "" {
		_, _ = fmt.Fprint(os.Stderr, usage)
		return exitUsage
	}

	switch cmd {
	case "compile":
		return c.cmdCompile(cmdArgs)
	case "dump":
		return c.cmdDump(cmdArgs)
	case "modules":
		return c.cmdModules(cmdArgs)
	case "decode":
		return c.cmdDecode(cmdArgs)
	case "encode":
		return c.cmdEncode(cmdArgs)
	case "version":
		printVersion()
		return exitOK
	case "help":
		_, _ = fmt.Fprint(os.Stdout, usage)
		return exitOK
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		_, _ = fmt.Fprint(os.Stderr, usage)
		return exitUsage
	}
}

func (c *cli) setupLogger() *slog.Logger {
	if c.verbose == 0 {
		return nil
	}
	level := slog.LevelDebug
	if c.verbose >= 2 {
		level = goodr.LevelTrace
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// usageError prints msg and the command usage to stderr.
func usageError(text, msg string) int {
	printError("%s", msg)
	_, _ = fmt.Fprint(os.Stderr, text)
	return exitUsage
}

func printVersion() {
	version := "(devel)"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		version = info.Main.Version
	}
	fmt.Printf("goodr %s\n", version)
}

func printError(format string, args ...any) {
	cliutil.PrintError(format, args...)
}
