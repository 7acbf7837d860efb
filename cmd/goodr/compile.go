package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/golangsnmp/goodr"
	"github.com/golangsnmp/goodr/cmd/internal/cliutil"
)

const compileUsage = `goodr compile - Compile ASN.1 files into an ODR artifact

Usage:
  goodr compile [options] FILE... -s FILE [FILE...]

Files are read in the order given. The first module of the start file
supplies the type decoding begins with.

Options:
  -s FILE          Mark FILE as the start file
  -n               Leave type and component names out of the artifact
  -o FILE          Write the artifact to FILE instead of stdout
  --strict         Fail on warnings
  -h, --help       Show help

Examples:
  goodr compile -o z3950.odr z-diag.asn -s z3950v3.asn
  goodr compile -n -s pdu.asn > pdu.odr
`

func (c *cli) cmdCompile(args []string) int {
	var (
		paths  []string
		start  = -1
		output string
		opts   []goodr.Option
	)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-s":
			if i+1 >= len(args) {
				return usageError(compileUsage, "-s needs a file")
			}
			i++
			if start < 0 {
				start = len(paths)
			}
			paths = append(paths, args[i])
		case arg == "-n":
			opts = append(opts, goodr.WithoutNames())
		case arg == "-o" || arg == "--output":
			if i+1 >= len(args) {
				return usageError(compileUsage, "-o needs a file")
			}
			i++
			output = args[i]
		case strings.HasPrefix(arg, "--output="):
			output = arg[len("--output="):]
		case arg == "--strict":
			opts = append(opts, goodr.WithDiagnosticConfig(goodr.StrictConfig()))
		case len(arg) > 0 && arg[0] == '-':
			return usageError(compileUsage, "unknown option "+arg)
		default:
			paths = append(paths, arg)
		}
	}

	if c.helpFlag {
		_, _ = fmt.Fprint(os.Stdout, compileUsage)
		return exitOK
	}
	if len(paths) == 0 {
		return usageError(compileUsage, "no files specified")
	}
	if start < 0 {
		return usageError(compileUsage, "no start file (-s)")
	}

	ctx := context.Background()
	inputs, err := goodr.ReadInputs(ctx, goodr.Files(paths...), paths[start])
	if err != nil {
		printError("%v", err)
		return exitError
	}

	if logger := c.setupLogger(); logger != nil {
		opts = append(opts, goodr.WithLogger(logger))
	}
	res, err := goodr.Compile(ctx, inputs, opts...)
	if res != nil {
		for _, d := range res.Diagnostics {
			fmt.Fprintln(os.Stderr, d.String())
		}
	}
	if err != nil {
		// A failing diagnostic has already been printed with the rest.
		var ce *goodr.CompileError
		if errors.As(err, &ce) && res != nil && slices.Contains(res.Diagnostics, ce.Diagnostic) {
			return exitError
		}
		printError("%v", err)
		return exitError
	}

	out, done, err := cliutil.GetOutput(output)
	if err != nil {
		printError("%v", err)
		return exitError
	}
	defer done()
	if _, err := out.Write(res.Artifact); err != nil {
		printError("writing artifact: %v", err)
		return exitError
	}
	return exitOK
}
