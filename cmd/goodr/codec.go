package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/golangsnmp/goodr/ber"
	"github.com/golangsnmp/goodr/cmd/internal/cliutil"
)

const chunkSize = 4096

const decodeUsage = `goodr decode - Decode BER PDUs and print them as YAML

Usage:
  goodr decode [options] ARTIFACT [FILE]

Reads BER from FILE, or stdin, and prints one YAML document per PDU.

Options:
  --max-depth N     Nesting limit (default 40)
  --max-choices N   Untagged CHOICE nesting limit (default 8)
  -h, --help        Show help

Examples:
  goodr decode z3950.odr pdu.ber
  cat session.ber | goodr decode z3950.odr
`

func (c *cli) codecOptions(maxDepth, maxChoices, window int) []ber.Option {
	opts := []ber.Option{
		ber.WithMaxDepth(maxDepth),
		ber.WithMaxChoices(maxChoices),
		ber.WithWindow(window),
	}
	if logger := c.setupLogger(); logger != nil {
		opts = append(opts, ber.WithLogger(logger))
	}
	return opts
}

func (c *cli) cmdDecode(args []string) int {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, decodeUsage) }

	maxDepth := fs.Int("max-depth", ber.DefaultMaxDepth, "nesting limit")
	maxChoices := fs.Int("max-choices", ber.DefaultMaxChoices, "untagged CHOICE nesting limit")
	help := fs.Bool("h", false, "show help")
	fs.BoolVar(help, "help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *help || c.helpFlag {
		_, _ = fmt.Fprint(os.Stdout, decodeUsage)
		return exitOK
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return usageError(decodeUsage, "expected an artifact and at most one input")
	}

	s, err := cliutil.LoadSchema(fs.Arg(0))
	if err != nil {
		printError("%v", err)
		return exitError
	}
	in, done, err := cliutil.GetInput(fs.Arg(1))
	if err != nil {
		printError("%v", err)
		return exitError
	}
	defer done()

	d := ber.NewDecoder(s, c.codecOptions(*maxDepth, *maxChoices, ber.DefaultWindow)...)
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	buf := make([]byte, chunkSize)
	pdus := 0
	partial := false
	for {
		n, rerr := in.Read(buf)
		chunk := buf[:n]
		for len(chunk) > 0 {
			v, tail, ok, err := d.Decode(chunk)
			if err != nil {
				printError("PDU %d: %v", pdus+1, err)
				return exitError
			}
			if !ok {
				partial = true
				break
			}
			partial = false
			pdus++
			if err := enc.Encode(v); err != nil {
				printError("PDU %d: encoding YAML: %v", pdus, err)
				return exitError
			}
			chunk = tail
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			printError("reading input: %v", rerr)
			return exitError
		}
	}
	if partial {
		printError("input ends inside PDU %d", pdus+1)
		return exitError
	}
	return exitOK
}

const encodeUsage = `goodr encode - Encode YAML values as BER

Usage:
  goodr encode [options] ARTIFACT [FILE]

Reads YAML documents from FILE, or stdin, and writes the BER encoding of
each to stdout. Mappings are keyed by component ordinal; sequences are
SEQUENCE OF values.

Options:
  -o FILE           Write to FILE instead of stdout
  --window N        Bytes held back to compute definite lengths (default 4096)
  --max-depth N     Nesting limit (default 40)
  --max-choices N   Untagged CHOICE nesting limit (default 8)
  -h, --help        Show help

Examples:
  goodr encode z3950.odr pdu.yaml > pdu.ber
  goodr decode z3950.odr pdu.ber | goodr encode z3950.odr
`

func (c *cli) cmdEncode(args []string) int {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, encodeUsage) }

	output := fs.String("o", "", "output file")
	window := fs.Int("window", ber.DefaultWindow, "definite length window")
	maxDepth := fs.Int("max-depth", ber.DefaultMaxDepth, "nesting limit")
	maxChoices := fs.Int("max-choices", ber.DefaultMaxChoices, "untagged CHOICE nesting limit")
	help := fs.Bool("h", false, "show help")
	fs.BoolVar(help, "help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *help || c.helpFlag {
		_, _ = fmt.Fprint(os.Stdout, encodeUsage)
		return exitOK
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return usageError(encodeUsage, "expected an artifact and at most one input")
	}

	s, err := cliutil.LoadSchema(fs.Arg(0))
	if err != nil {
		printError("%v", err)
		return exitError
	}
	in, closeIn, err := cliutil.GetInput(fs.Arg(1))
	if err != nil {
		printError("%v", err)
		return exitError
	}
	defer closeIn()
	out, closeOut, err := cliutil.GetOutput(*output)
	if err != nil {
		printError("%v", err)
		return exitError
	}
	defer closeOut()

	logger := c.setupLogger()
	opts := c.codecOptions(*maxDepth, *maxChoices, *window)
	dec := yaml.NewDecoder(in)
	buf := make([]byte, chunkSize)
	var e *ber.Encoder
	for doc := 1; ; doc++ {
		var v ber.Value
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return exitOK
			}
			printError("document %d: %v", doc, err)
			return exitError
		}
		if e == nil {
			e = ber.NewEncoder(s, v, opts...)
		} else {
			e.Reset(v)
		}
		size := 0
		for {
			n, done, err := e.Encode(buf)
			if err != nil {
				printError("document %d: %v", doc, err)
				return exitError
			}
			if _, err := out.Write(buf[:n]); err != nil {
				printError("writing output: %v", err)
				return exitError
			}
			size += n
			if done {
				break
			}
		}
		if logger != nil {
			logger.Debug("document encoded", slog.Int("document", doc), slog.Int("size", size))
		}
	}
}
