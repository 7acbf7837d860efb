package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/golangsnmp/goodr"
	"github.com/golangsnmp/goodr/cmd/internal/cliutil"
	"github.com/golangsnmp/goodr/odr"
)

const dumpUsage = `goodr dump - Print the type tree of every module in an artifact

Usage:
  goodr dump [options] ARTIFACT

Options:
  -m, --module NAME   Only dump the named module (repeatable)
  -h, --help          Show help

Examples:
  goodr dump z3950.odr
  goodr dump -m Z39-50-APDU-1995 z3950.odr
`

type stringList []string

func (l *stringList) String() string     { return fmt.Sprint([]string(*l)) }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

func (c *cli) cmdDump(args []string) int {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, dumpUsage) }

	var only stringList
	fs.Var(&only, "m", "only dump the named module")
	fs.Var(&only, "module", "only dump the named module")
	help := fs.Bool("h", false, "show help")
	fs.BoolVar(help, "help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *help || c.helpFlag {
		_, _ = fmt.Fprint(os.Stdout, dumpUsage)
		return exitOK
	}
	if fs.NArg() != 1 {
		return usageError(dumpUsage, "expected one artifact")
	}

	s, err := cliutil.LoadSchema(fs.Arg(0))
	if err != nil {
		printError("%v", err)
		return exitError
	}

	mods := s.Dump()
	if len(only) > 0 {
		mods = slices.DeleteFunc(mods, func(m odr.ModuleDump) bool {
			return !slices.Contains(only, m.Name)
		})
		if len(mods) == 0 {
			printError("no module named %v", []string(only))
			return exitError
		}
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(mods); err != nil {
		printError("encoding YAML: %v", err)
		return exitError
	}
	return exitOK
}

const modulesUsage = `goodr modules - List the modules of an artifact

Usage:
  goodr modules [options] ARTIFACT

Prints one line per module with a real OID: the dotted OID, then the name.

Options:
  --count      Print only the module count
  -h, --help   Show help
`

func (c *cli) cmdModules(args []string) int {
	fs := flag.NewFlagSet("modules", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, modulesUsage) }

	count := fs.Bool("count", false, "print only the module count")
	help := fs.Bool("h", false, "show help")
	fs.BoolVar(help, "help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *help || c.helpFlag {
		_, _ = fmt.Fprint(os.Stdout, modulesUsage)
		return exitOK
	}
	if fs.NArg() != 1 {
		return usageError(modulesUsage, "expected one artifact")
	}

	s, err := cliutil.LoadSchema(fs.Arg(0))
	if err != nil {
		printError("%v", err)
		return exitError
	}

	mods := s.Modules()
	if *count {
		fmt.Println(len(mods))
		return exitOK
	}

	type line struct{ oid, name string }
	lines := make([]line, 0, len(mods))
	for name, oid := range mods {
		dotted, err := goodr.FormatOID(oid)
		if err != nil {
			dotted = "-"
		}
		lines = append(lines, line{dotted, name})
	}
	slices.SortFunc(lines, func(a, b line) int {
		return strings.Compare(a.name, b.name)
	})
	for _, l := range lines {
		fmt.Printf("%-32s %s\n", l.oid, l.name)
	}
	return exitOK
}
