// Package cliutil provides shared helpers for the goodr command-line tools.
package cliutil

import (
	"fmt"
	"io"
	"os"

	"github.com/golangsnmp/goodr/odr"
)

// LoadSchema reads and validates an ODR artifact file.
func LoadSchema(path string) (*odr.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := odr.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// GetInput opens the input file, or returns stdin for "" and "-".
func GetInput(inputFile string) (io.Reader, func(), error) {
	if inputFile == "" || inputFile == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(inputFile)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// GetOutput opens the output file or returns stdout.
func GetOutput(outputFile string) (*os.File, func(), error) {
	if outputFile == "" || outputFile == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// PrintError writes a formatted error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
